package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/todolist/internal/auth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// LOGGER TESTS
// ============================================================================

func TestLogger_LogsRouteAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(Logger(logger))
	r.Get("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("nope"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/42", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/api/tasks/42", entry["path"])
	assert.Equal(t, "/api/tasks/{id}", entry["route"])
	assert.Equal(t, float64(404), entry["status"])
	assert.Equal(t, float64(4), entry["bytes"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestResponseWriter_KeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := wrapResponseWriter(rec)

	rw.Write([]byte("ok"))
	rw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusOK, rw.statusCode)
	assert.Same(t, rw, wrapResponseWriter(rw))
}

// ============================================================================
// INSTRUMENT TESTS
// ============================================================================

type recordedRequest struct {
	method, route string
	status        int
}

type fakeRequestRecorder struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (f *fakeRequestRecorder) RecordRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedRequest{method, route, status})
}

func TestInstrument_UsesRoutePattern(t *testing.T) {
	rec := &fakeRequestRecorder{}

	r := chi.NewRouter()
	r.Use(Instrument(rec))
	r.Delete("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/tasks/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))

	require.Len(t, rec.seen, 2)
	assert.Equal(t, recordedRequest{"DELETE", "/api/tasks/{id}", 204}, rec.seen[0])
	assert.Equal(t, recordedRequest{"GET", "unmatched", 404}, rec.seen[1])
}

// ============================================================================
// RATE LIMITER TESTS
// ============================================================================

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(user string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	if user != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), user))
	}
	return req
}

func TestRateLimiter_AllowsBurstThenRejects(t *testing.T) {
	rejected := 0
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 3, CleanupInterval: time.Minute}, discardLogger(), func() { rejected++ })
	defer rl.Stop()
	h := rl.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestAs("brian@example.com"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs("brian@example.com"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body["error"])
	assert.Equal(t, 1, rejected)
}

func TestRateLimiter_BucketsArePerUser(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.01, Burst: 1, CleanupInterval: time.Minute}, discardLogger(), nil)
	defer rl.Stop()
	h := rl.Middleware(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs("brian@example.com"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs("brian@example.com"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs("judith@example.com"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, rl.LimiterCount())
}

func TestRateLimiter_AnonymousPassesThrough(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.01, Burst: 1}, discardLogger(), nil)
	defer rl.Stop()
	h := rl.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestAs(""))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Zero(t, rl.LimiterCount())
}

func TestRateLimiter_CleanupDropsIdleUsers(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute}, discardLogger(), nil)
	defer rl.Stop()

	rl.limiterFor("brian@example.com")
	rl.cleanup(time.Now().Add(time.Minute))
	assert.Equal(t, 1, rl.LimiterCount())

	rl.cleanup(time.Now().Add(3 * time.Minute))
	assert.Zero(t, rl.LimiterCount())
}

func TestPerMinute(t *testing.T) {
	cfg := PerMinute(120)
	assert.InDelta(t, 2.0, float64(cfg.Rate), 1e-9)
	assert.Equal(t, 120, cfg.Burst)
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(PerMinute(60), discardLogger(), nil)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
