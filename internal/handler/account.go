package handler

import (
	"net/http"

	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/service"
)

// AccountHandler serves the signed-in user's profile.
//
//	GET /api/me    current user, with profile_complete
//	PUT /api/me    update names and time zone
type AccountHandler struct {
	accounts *service.AccountService
	resp     *Responder
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, resp *Responder) *AccountHandler {
	return &AccountHandler{accounts: accounts, resp: resp}
}

type settingsRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	TimeZone  string `json:"time_zone" validate:"max=64"`
}

// HandleMe returns the current user.
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	email, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.resp.Unauthorized(w)
		return
	}

	user, err := h.accounts.GetUser(r.Context(), email)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}

// HandleUpdateMe saves the settings form. An empty time_zone keeps the
// server default.
func (h *AccountHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	email, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.resp.Unauthorized(w)
		return
	}

	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	user, err := h.accounts.UpdateSettings(r.Context(), email, req.FirstName, req.LastName, req.TimeZone)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}
