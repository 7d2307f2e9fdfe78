// Package rest exposes the HTTP API on top of gin. Routes are mounted under
// the configured prefix; the self-hosted auth routes and the delegated admin
// routes are only mounted in their own mode.
package rest

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/foliokeeper/internal/logging"
	"github.com/dmitrijs2005/foliokeeper/internal/server/auth/tokens"
	"github.com/dmitrijs2005/foliokeeper/internal/server/cognito"
	"github.com/dmitrijs2005/foliokeeper/internal/server/config"
	"github.com/dmitrijs2005/foliokeeper/internal/server/identity"
	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
	"github.com/dmitrijs2005/foliokeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AuthService is the self-hosted account API, satisfied by
// *services.AuthService.
type AuthService interface {
	Register(ctx context.Context, email, password, fullName string) (*tokens.TokenPair, error)
	Login(ctx context.Context, email, password string) (*tokens.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*tokens.TokenPair, error)
	RequestPasswordReset(ctx context.Context, email string) (*services.ResetRequest, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	CurrentUser(ctx context.Context, id string) (*models.User, error)
}

// StatementService is satisfied by *services.StatementService.
type StatementService interface {
	CreateManual(ctx context.Context, userID string, in services.ManualStatement) (*services.StatementDetail, error)
	Get(ctx context.Context, userID, id string) (*models.Statement, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*models.Statement, error)
	Transactions(ctx context.Context, userID, id string) ([]*models.ParsedTransaction, error)
	Confirm(ctx context.Context, userID, id string) (*models.Statement, error)
}

// Directory answers admin user lookups, satisfied by *cognito.Service.
type Directory interface {
	Configured() bool
	GetUserBySub(ctx context.Context, sub string) (*cognito.User, error)
	IsUserInGroup(ctx context.Context, username, group string) (bool, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps collects what the router needs. Auth is required in self-hosted
// mode, Directory in delegated mode. DB may be nil when no database is
// configured.
type Deps struct {
	Config     *config.Config
	Logger     logging.Logger
	Resolver   *identity.Resolver
	Auth       AuthService
	Statements StatementService
	Directory  Directory
	DB         Pinger
}

type handler struct {
	cfg        *config.Config
	logger     logging.Logger
	resolver   *identity.Resolver
	auth       AuthService
	statements StatementService
	directory  Directory
	db         Pinger
}

// fail writes the envelope for err. Server-side failures are logged with
// the underlying error; the caller only sees the generic message.
func (h *handler) fail(c *gin.Context, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed",
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
	}
	writeError(c, status, code, msg)
}

// bind decodes a JSON body and reports binding failures as validation
// errors.
func (h *handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, bindingError(err))
		return false
	}
	return true
}
