package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler runs the sign-in flow and session management.
//
//	GET  /auth/google/login     redirect to the provider's consent page
//	GET  /auth/google/callback  exchange the code, sign in, set the session cookie
//	POST /auth/logout           clear the session cookie
type AuthHandler struct {
	provider   auth.IdentityProvider
	accounts   *service.AccountService
	sessionTTL time.Duration
	secure     bool
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secure marks cookies HTTPS-only
// and should be true in production.
func NewAuthHandler(
	provider auth.IdentityProvider,
	accounts *service.AccountService,
	sessionTTL time.Duration,
	secure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:   provider,
		accounts:   accounts,
		sessionTTL: sessionTTL,
		secure:     secure,
		logger:     logger,
	}
}

// HandleLogin redirects to the provider.
//
// A random state value goes both into a short-lived cookie and into the
// consent URL. The callback only proceeds when the two match, which proves
// this server started the flow.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the flow.
//
//  1. Check the state parameter against the cookie
//  2. Exchange the code for a verified identity
//  3. Sign in (creating the user on first visit)
//  4. Set the session cookie
//  5. Redirect to settings when the profile is incomplete, else to the list
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	result, err := h.accounts.SignIn(r.Context(), *identity)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed", slog.String("error", err.Error()))
		status, _ := classify(err)
		http.Error(w, "authentication failed", status)
		return
	}

	http.SetCookie(w, auth.SessionCookie(result.Token, h.sessionTTL, h.secure))

	target := "/todos"
	if !result.User.ProfileComplete() {
		target = "/settings"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// The JWT stays valid until it expires, but without the cookie the browser
// can no longer send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearSessionCookie(h.secure))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
