package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onnwee/ezclip/version"
)

// Status is the live bot state the probes report on.
type Status interface {
	Authenticated() bool
	ChatConnected() bool
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	status Status
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(status Status) *Handlers {
	return &Handlers{status: status}
}

// HandleHealthz answers liveness probes. The process is alive as long as it serves.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the bot holds tokens and its chat connection is open.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"credentials", func() error {
			if h.status == nil || !h.status.Authenticated() {
				return errors.New("not authenticated")
			}
			return nil
		}},
		{"chat", func() error {
			if h.status == nil || !h.status.ChatConnected() {
				return errors.New("chat not connected")
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus returns a JSON summary of the bot.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"version":        version.CurrentVersion,
		"authenticated":  h.status != nil && h.status.Authenticated(),
		"chat_connected": h.status != nil && h.status.ChatConnected(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
