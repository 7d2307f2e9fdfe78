package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"expired", fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrTokenExpired), http.StatusUnauthorized, CodeTokenExpired, msgTokenExpired},
		{"invalid", fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrWrongTokenType), http.StatusUnauthorized, CodeTokenInvalid, msgTokenInvalid},
		{"unauthorized detail", common.NewError(common.ErrorUnauthorized, "Invalid API key"), http.StatusUnauthorized, CodeAuthentication, "Invalid API key"},
		{"unauthorized bare", common.ErrorUnauthorized, http.StatusUnauthorized, CodeAuthentication, "Authentication required"},
		{"forbidden", common.NewError(common.ErrorForbidden, "Admin access required"), http.StatusForbidden, CodeForbidden, "Admin access required"},
		{"not found bare", common.ErrorNotFound, http.StatusNotFound, CodeNotFound, "Resource not found"},
		{"conflict", common.NewError(common.ErrorConflict, "Email already registered"), http.StatusConflict, CodeConflict, "Email already registered"},
		{"validation", common.NewError(common.ErrorValidation, "bad"), http.StatusUnprocessableEntity, CodeValidation, "bad"},
		{"bad request", common.NewError(common.ErrorBadRequest, "Invalid or expired reset token"), http.StatusBadRequest, CodeBadRequest, "Invalid or expired reset token"},
		{"configuration", fmt.Errorf("token codec: %w", common.ErrConfiguration), http.StatusInternalServerError, CodeConfiguration, "Service is not configured"},
		{"wrapped internal", fmt.Errorf("db error: %w", errors.New("boom")), http.StatusInternalServerError, CodeInternal, msgInternal},
		{"internal sentinel", common.NewError(common.ErrorInternal, "Failed to look up user"), http.StatusInternalServerError, CodeInternal, msgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, msg := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, msg)
		})
	}
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })
	return r
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())

	w := do(r, http.MethodGet, "/ping", "", map[string]string{common.RequestIDHeaderName: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(common.RequestIDHeaderName))

	w = do(r, http.MethodGet, "/ping", "", nil)
	_, err := uuid.Parse(w.Header().Get(common.RequestIDHeaderName))
	assert.NoError(t, err)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New(logging.FormatJSON, "debug", &buf)
	require.NoError(t, err)

	r := newEngine(RequestID(), RequestLogger(l))
	do(r, http.MethodGet, "/ping?x=1", "", map[string]string{common.RequestIDHeaderName: "req-1"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line), buf.String())
	assert.Equal(t, "request completed", line["msg"])
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/ping", line["path"])
	assert.Equal(t, float64(200), line["status"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "x=1", line["query"])
	assert.Contains(t, line, "duration_ms")
	assert.Contains(t, line, "client_ip")
}

func TestRecovery(t *testing.T) {
	r := newEngine(RequestID(), Recovery(logging.Nop{}))

	w := do(r, http.MethodGet, "/boom", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	e := decodeError(t, w)
	assert.Equal(t, CodeInternal, e.Code)
	assert.Equal(t, msgInternal, e.Message)
	assert.Equal(t, "/boom", e.Path)
	assert.NotContains(t, w.Body.String(), "kaboom")
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"http://localhost:3000"}, "X-API-Key"))

	w := do(r, http.MethodGet, "/ping", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = do(r, http.MethodGet, "/ping", "", map[string]string{"Origin": "http://evil.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodOptions, "/ping", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_Wildcard(t *testing.T) {
	r := newEngine(CORS([]string{"*"}))

	w := do(r, http.MethodGet, "/ping", "", map[string]string{"Origin": "http://anything.example"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_ListedOriginWithWildcard(t *testing.T) {
	r := newEngine(CORS([]string{"*", "http://localhost:3000"}))

	w := do(r, http.MethodGet, "/ping", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = do(r, http.MethodGet, "/ping", "", map[string]string{"Origin": "http://other.example"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestHTTPServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewHTTPServer(ln.Addr().String(), newEngine(), logging.Nop{})

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	res, err := http.Get("http://" + ln.Addr().String() + "/ping")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHTTPServer_ServeWaitsForInFlightRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	var finished atomic.Bool
	r := newEngine()
	r.GET("/slow", func(c *gin.Context) {
		close(started)
		time.Sleep(300 * time.Millisecond)
		finished.Store(true)
		c.Status(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := NewHTTPServer(ln.Addr().String(), r, logging.Nop{})

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resCh := make(chan int, 1)
	go func() {
		res, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			resCh <- 0
			return
		}
		res.Body.Close()
		resCh <- res.StatusCode
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.True(t, finished.Load(), "Serve returned before the request finished")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, http.StatusOK, <-resCh)
}

func TestHTTPServer_RunListenError(t *testing.T) {
	s := NewHTTPServer("bad-address", newEngine(), logging.Nop{})
	assert.Error(t, s.Run(context.Background()))
}

func TestWriteError_EnvelopeAndHeader(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { writeError(c, http.StatusUnauthorized, CodeAuthentication, "nope") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?y=1", nil))

	e := decodeError(t, w)
	assert.Equal(t, "/x", e.Path)
	assert.Equal(t, http.StatusUnauthorized, e.Status)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}
