package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is anything that can report whether storage answers.
// *sqlite.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /healthz for load balancers.
type HealthHandler struct {
	db   Pinger
	resp *Responder
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db Pinger, resp *Responder) *HealthHandler {
	return &HealthHandler{db: db, resp: resp}
}

// HandleHealth answers 200 {"status":"ok"} when storage responds within two
// seconds and 503 otherwise.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
