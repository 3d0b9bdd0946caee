// Package flow implements the credential flows: registration, login and
// logout, and the forgot-password handshake.
package flow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Response messages shared with the HTTP layer.
const (
	MessageLoggedOut     = "Logged out successfully"
	MessageResetSent     = "If that email exists, we'll send a password reset link."
	MessagePasswordReset = "Password reset successfully"
)

// notifyTimeout bounds a single out-of-band delivery.
const notifyTimeout = 30 * time.Second

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// dispatcher runs notifications outside the request so a slow or failing
// mail server never changes what the caller sees.
type dispatcher struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

func (d *dispatcher) dispatch(ctx context.Context, kind string, fn func(context.Context) error) {
	// Detach from the request so the send outlives the response.
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			d.logger.Warn("notification failed", zap.String("kind", kind), zap.Error(err))
		}
	}()
}

// Wait blocks until every dispatched notification has finished.
func (d *dispatcher) Wait() {
	d.wg.Wait()
}
