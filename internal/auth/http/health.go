package http

import (
	"net/http"
	"time"

	"github.com/warungtech/gatekit/internal/auth/store"
	"github.com/warungtech/gatekit/pkg/httpx"
)

type HealthHandler struct {
	Store        store.Store
	BuildVersion string
	StartTime    time.Time
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// HandleLivez reports process liveness only.
func (h *HealthHandler) HandleLivez(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: h.BuildVersion,
		Uptime:  time.Since(h.StartTime).Round(time.Second).String(),
	})
}

// HandleReadyz additionally checks the database connection.
func (h *HealthHandler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:  "degraded",
			Version: h.BuildVersion,
			Uptime:  time.Since(h.StartTime).Round(time.Second).String(),
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: h.BuildVersion,
		Uptime:  time.Since(h.StartTime).Round(time.Second).String(),
	})
}
