package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	verrors "github.com/vango-go/vstore/internal/errors"
)

// codeFor maps a registry error to its error code.
func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "E201"
	case errors.Is(err, ErrReadOnly):
		return "E202"
	case errors.Is(err, ErrInvalidValue):
		return "E203"
	case errors.Is(err, ErrExists):
		return "E204"
	default:
		return "E206"
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, verrors.New(code).WithDetail(detail).FormatJSON())
}

func writeJSON(w http.ResponseWriter, v []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(v)
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

func (h *Hub) handleList(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(h.registry.List())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "E206", err.Error())
		return
	}
	writeJSON(w, data)
}

func (h *Hub) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.registry.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, codeFor(err), err.Error())
		return
	}
	writeJSON(w, e.Get())
}

func (h *Hub) handlePut(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxMessageSize))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, "E203", err.Error())
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "E203", "request body is not valid JSON")
		return
	}

	var e *Entry
	if h.config.AutoCreate {
		e, err = h.registry.GetOrCreate(r.Context(), name)
	} else {
		e, err = h.registry.Lookup(name)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, codeFor(err), err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, codeFor(err), err.Error())
		}
		return
	}

	if err := e.Set(body); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrReadOnly) {
			status = http.StatusMethodNotAllowed
		}
		writeError(w, status, codeFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	e, err := h.registry.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, codeFor(err), err.Error())
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err, "store", e.Name())
		h.config.Metrics.RecordWebSocketError("upgrade")
		return
	}

	c := newConn(h, ws, e)
	h.track(c)
	go c.writeLoop()
	c.subscribe()
	c.logger.Debug("connection opened", "remote", r.RemoteAddr)
	c.readLoop()
}
