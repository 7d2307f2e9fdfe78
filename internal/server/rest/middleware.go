package rest

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/logging"
	"github.com/dmitrijs2005/foliokeeper/internal/server/identity"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey = "request_id"
	identityKey  = "identity"
)

// RequestID reuses the caller's X-Request-ID or generates one, and echoes
// it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(common.RequestIDHeaderName))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(common.RequestIDHeaderName, id)
		c.Next()
	}
}

// RequestLogger logs every completed request, at a level chosen by status.
func RequestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(requestIDKey),
			"client_ip", c.ClientIP(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			args = append(args, "query", q)
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			l.Error(ctx, "request completed", args...)
		case status >= http.StatusBadRequest:
			l.Warn(ctx, "request completed", args...)
		default:
			l.Info(ctx, "request completed", args...)
		}
	}
}

// Recovery turns a panic into the generic 500 envelope.
func Recovery(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				l.Error(c.Request.Context(), "panic recovered",
					"error", fmt.Sprint(r),
					"path", c.Request.URL.Path,
					"request_id", c.GetString(requestIDKey),
					"stack", string(debug.Stack()),
				)
				writeError(c, http.StatusInternalServerError, CodeInternal, msgInternal)
			}
		}()
		c.Next()
	}
}

// CORS allows the configured origins and answers preflight requests. Listed
// origins are echoed with credentials allowed; "*" matches any other origin
// without credentials.
func CORS(origins []string, headers ...string) gin.HandlerFunc {
	allowHeaders := strings.Join(append([]string{"Authorization", "Content-Type", common.RequestIDHeaderName}, headers...), ", ")
	wildcard := slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		listed := origin != "" && origin != "*" && slices.Contains(origins, origin)
		if listed || (origin != "" && wildcard) {
			h := c.Writer.Header()
			if listed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			} else {
				h.Set("Access-Control-Allow-Origin", "*")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Expose-Headers", common.RequestIDHeaderName)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, id *identity.Identity) {
	c.Set(identityKey, id)
	c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
}

// currentIdentity returns the identity stored by one of the auth
// middlewares, or nil.
func currentIdentity(c *gin.Context) *identity.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*identity.Identity)
	return id
}

type resolveFunc func(ctx context.Context, header string) (*identity.Identity, error)

func (h *handler) authenticate(resolve resolveFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			h.fail(c, err)
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

// requireIdentity rejects requests without a valid bearer token.
func (h *handler) requireIdentity() gin.HandlerFunc {
	return h.authenticate(h.resolver.Required)
}

func (h *handler) requireAdmin() gin.HandlerFunc {
	return h.authenticate(h.resolver.Admin)
}

// optionalIdentity never fails: an invalid token reads as anonymous.
func (h *handler) optionalIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := h.resolver.Optional(c.Request.Context(), c.GetHeader("Authorization")); id != nil {
			setIdentity(c, id)
		}
		c.Next()
	}
}

func (h *handler) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := h.resolver.APIKey(c.GetHeader(h.cfg.APIKeyHeader))
		if err != nil {
			h.fail(c, err)
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}
