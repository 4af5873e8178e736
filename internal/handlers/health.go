package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the readiness payload.
type HealthResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies,omitempty"`
}

// Healthz checks every named dependency and answers 200 when all respond.
func Healthz(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "ok", Dependencies: make(map[string]dependencyStatus, len(deps))}
		status := http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				resp.Dependencies[name] = dependencyStatus{OK: false, Message: err.Error()}
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Dependencies[name] = dependencyStatus{OK: true}
		}
		writeJSON(w, status, resp)
	}
}
