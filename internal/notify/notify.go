// Package notify delivers account emails: the welcome message after
// sign-up and the password reset link.
package notify

import (
	"context"
	"net/url"

	"github.com/getkayan/warden/internal/domain"
	"go.uber.org/zap"
)

var (
	_ domain.Notifier = (*SMTPNotifier)(nil)
	_ domain.Notifier = (*LogNotifier)(nil)
)

// ResetLink appends token to base as the "token" query parameter.
func ResetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// LogNotifier writes notifications to the log instead of sending them.
// It is used when no SMTP server is configured.
type LogNotifier struct {
	logger        *zap.Logger
	resetLinkBase string
}

func NewLogNotifier(logger *zap.Logger, resetLinkBase string) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger, resetLinkBase: resetLinkBase}
}

func (n *LogNotifier) NotifyReset(_ context.Context, email, resetToken string) error {
	n.logger.Debug("password reset email",
		zap.String("to", email),
		zap.String("link", ResetLink(n.resetLinkBase, resetToken)),
	)
	return nil
}

func (n *LogNotifier) NotifyWelcome(_ context.Context, email, name string) error {
	n.logger.Debug("welcome email", zap.String("to", email), zap.String("name", name))
	return nil
}
