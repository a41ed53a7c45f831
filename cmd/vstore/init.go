package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-go/vstore/internal/config"
	"github.com/vango-go/vstore/internal/errors"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a vstore.json with default settings",
		Long: `Create a vstore.json in the given directory (default: current).

Examples:
  vstore init
  vstore init ./hub --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing vstore.json")

	return cmd
}

func runInit(dir string, force bool) error {
	if config.Exists(dir) && !force {
		return errors.New("E401").
			WithDetail(filepath.Join(dir, config.ConfigFileName) + " already exists").
			WithSuggestion("Run 'vstore init --force' to overwrite it")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	cfg := config.New()
	cfg.Stores = []config.StoreConfig{
		{Name: "counter", Initial: []byte("0"), Persist: true},
	}
	cfg.Persist.Backend = config.BackendFile

	path := filepath.Join(dir, config.ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		return err
	}

	success("Created %s", path)
	info("Start the hub with 'vstore serve'")
	return nil
}
