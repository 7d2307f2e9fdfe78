package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/logging"
	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
)

// ResetNotifier delivers a password reset token to its owner.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, user *models.User, token string, ttl time.Duration) error
}

// LogNotifier records that a reset was requested. The token itself is never
// logged.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "reset_notifier")}
}

func (n *LogNotifier) NotifyPasswordReset(ctx context.Context, user *models.User, _ string, ttl time.Duration) error {
	n.logger.Info(ctx, "password reset requested", "user_id", user.ID, "email", user.Email, "expires_in", ttl.String())
	return nil
}
