package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/handler"
)

// fakeProvider hands out a fixed identity for code "good-code".
type fakeProvider struct {
	identity auth.Identity
}

func (p *fakeProvider) AuthURL(state string) string {
	return "https://accounts.example.com/consent?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*auth.Identity, error) {
	if code != "good-code" {
		return nil, errors.New("bad code")
	}
	id := p.identity
	return &id, nil
}

func newAuthHandler(env *testEnv, id auth.Identity) *handler.AuthHandler {
	return handler.NewAuthHandler(&fakeProvider{identity: id}, env.accounts, time.Hour, false, env.logger)
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// login runs HandleLogin and returns the state cookie it set.
func login(t *testing.T, h *handler.AuthHandler) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	state := findCookie(rec, "oauth_state")
	require.NotNil(t, state)
	require.NotEmpty(t, state.Value)
	assert.True(t, state.HttpOnly)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, loc.Query().Get("state"))
	return state
}

func callback(h *handler.AuthHandler, state *http.Cookie, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+query, nil)
	if state != nil {
		req.AddCookie(state)
	}
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)
	return rec
}

func TestCallback_FirstSignInGoesToSettings(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env, auth.Identity{Email: "Arthur@Camelot.example"})

	state := login(t, h)
	rec := callback(h, state, "code=good-code&state="+state.Value)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/settings", rec.Header().Get("Location"))

	session := findCookie(rec, auth.CookieName)
	require.NotNil(t, session)
	email, err := env.tokens.Validate(session.Value)
	require.NoError(t, err)
	assert.Equal(t, "arthur@camelot.example", email)

	user, err := env.accounts.GetUser(context.Background(), "arthur@camelot.example")
	require.NoError(t, err)
	assert.Equal(t, "US/Eastern", user.TimeZone)
}

func TestCallback_CompleteProfileGoesToList(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env, auth.Identity{Email: "lancelot@camelot.example", FirstName: "Lancelot", LastName: "du Lac"})

	state := login(t, h)
	rec := callback(h, state, "code=good-code&state="+state.Value)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/todos", rec.Header().Get("Location"))
}

func TestCallback_Rejections(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env, auth.Identity{Email: "robin@camelot.example"})
	state := login(t, h)

	t.Run("no state cookie", func(t *testing.T) {
		rec := callback(h, nil, "code=good-code&state="+state.Value)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("state mismatch", func(t *testing.T) {
		rec := callback(h, state, "code=good-code&state=forged")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, findCookie(rec, auth.CookieName))
	})

	t.Run("user denied", func(t *testing.T) {
		rec := callback(h, state, "error=access_denied&state="+state.Value)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/?auth=denied", rec.Header().Get("Location"))
	})

	t.Run("exchange fails", func(t *testing.T) {
		rec := callback(h, state, "code=bad-code&state="+state.Value)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestLogout_ClearsSession(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env, auth.Identity{})

	rec := httptest.NewRecorder()
	h.HandleLogout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	session := findCookie(rec, auth.CookieName)
	require.NotNil(t, session)
	assert.Empty(t, session.Value)
	assert.Negative(t, session.MaxAge)
}
