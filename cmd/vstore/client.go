package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/vango-go/vstore/internal/config"
	"github.com/vango-go/vstore/internal/errors"
	"github.com/vango-go/vstore/pkg/server"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// serverURL returns the hub base URL: the flag if set, otherwise the
// address in the nearest vstore.json, otherwise the default address.
func serverURL(flag string) string {
	if flag != "" {
		return strings.TrimSuffix(flag, "/")
	}
	if cfg, err := config.LoadFromWorkingDir(); err == nil {
		return cfg.URL()
	}
	return "http://" + config.DefaultHost + ":" + strconv.Itoa(config.DefaultPort)
}

func storeURL(base, name string) string {
	return base + "/stores/" + url.PathEscape(name)
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// responseError converts a non-success hub response into an E402 error,
// carrying the hub's own error code when the body has one.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var remote struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	detail := resp.Status
	if json.Unmarshal(body, &remote) == nil && remote.Code != "" {
		detail = fmt.Sprintf("%s: %s %s", resp.Status, remote.Code, remote.Message)
		if remote.Detail != "" {
			detail += " (" + remote.Detail + ")"
		}
	}
	return errors.New("E402").WithDetail(detail)
}

func getCmd() *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print the current value of a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := httpClient.Get(storeURL(serverURL(base), args[0]))
			if err != nil {
				return errors.New("E402").Wrap(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return responseError(resp)
			}
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return errors.New("E402").Wrap(err)
			}

			var out bytes.Buffer
			if err := json.Indent(&out, data, "", "  "); err != nil {
				out.Reset()
				out.Write(data)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "server", "", "Hub URL (default from vstore.json)")
	return cmd
}

func setCmd() *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "set <name> <json>",
		Short: "Replace the value of a store",
		Long: `Replace the value of a writable store. The value must be JSON.

Examples:
  vstore set counter 42
  vstore set user '{"name":"Ada"}'
  vstore set greeting '"hello"'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := []byte(args[1])
			if !json.Valid(value) {
				return errors.New("E403").WithExample(`vstore set ` + args[0] + ` '"` + args[1] + `"'`)
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPut, storeURL(serverURL(base), args[0]), bytes.NewReader(value))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := httpClient.Do(req)
			if err != nil {
				return errors.New("E402").Wrap(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
				return responseError(resp)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "server", "", "Hub URL (default from vstore.json)")
	return cmd
}

func watchCmd() *cobra.Command {
	var (
		base  string
		count int
	)

	cmd := &cobra.Command{
		Use:   "watch <name>",
		Short: "Stream a store's values until interrupted",
		Long: `Subscribe to a store over WebSocket and print each value,
starting with the current one.

Examples:
  vstore watch counter
  vstore watch counter --count 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), serverURL(base), args[0], count)
		},
	}

	cmd.Flags().StringVar(&base, "server", "", "Hub URL (default from vstore.json)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many values (0 = unlimited)")
	return cmd
}

func runWatch(ctx context.Context, out io.Writer, base, name string, count int) error {
	wsURL := "ws" + strings.TrimPrefix(storeURL(base, name), "http") + "/ws"

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return responseError(resp)
		}
		return errors.New("E402").Wrap(err)
	}
	defer ws.Close()

	go func() {
		<-ctx.Done()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ws.Close()
	}()

	for seen := 0; count == 0 || seen < count; seen++ {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return errors.New("E402").Wrap(err)
		}

		var f server.Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Store == "" {
			fmt.Fprintf(out, "! %s\n", data)
			continue
		}
		fmt.Fprintf(out, "%d %s\n", f.Seq, f.Value)
	}
	return nil
}
