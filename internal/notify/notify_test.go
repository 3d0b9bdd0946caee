package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type captured struct {
	from, to string
	msg      string
}

func newTestNotifier(t *testing.T) (*SMTPNotifier, *[]captured) {
	t.Helper()
	var sent []captured
	n := NewSMTPNotifier(SMTPConfig{
		Host:          "smtp.example.com",
		Port:          2525,
		FromEmail:     "noreply@example.com",
		FromName:      "Warden",
		ResetLinkBase: "https://app.example.com/reset-password",
	}, zap.NewNop())
	n.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	n.send = func(_ context.Context, from, to string, msg []byte) error {
		sent = append(sent, captured{from, to, string(msg)})
		return nil
	}
	return n, &sent
}

func TestSMTPNotifier_Reset(t *testing.T) {
	n, sent := newTestNotifier(t)

	require.NoError(t, n.NotifyReset(context.Background(), "alice@example.com", "tok_en-123"))
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "noreply@example.com", mail.from)
	assert.Equal(t, "alice@example.com", mail.to)
	assert.Contains(t, mail.msg, "To: alice@example.com\r\n")
	assert.Contains(t, mail.msg, "Subject: Password Reset Request\r\n")
	assert.Contains(t, mail.msg, "From: Warden <noreply@example.com>\r\n")
	assert.Contains(t, mail.msg, "multipart/alternative")
	assert.Contains(t, mail.msg, "https://app.example.com/reset-password?token=tok_en-123")
	assert.Contains(t, mail.msg, "This link will expire in 1 hour.")
}

func TestSMTPNotifier_WelcomeEscapesName(t *testing.T) {
	n, sent := newTestNotifier(t)

	require.NoError(t, n.NotifyWelcome(context.Background(), "bob@example.com", "<b>Bob</b>"))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].msg, "&lt;b&gt;Bob&lt;/b&gt;")
	assert.Contains(t, (*sent)[0].msg, "Hello <b>Bob</b>,")
}

func TestSMTPNotifier_SendError(t *testing.T) {
	n, _ := newTestNotifier(t)
	n.send = func(context.Context, string, string, []byte) error { return errors.New("550 mailbox unavailable") }

	err := n.NotifyWelcome(context.Background(), "bob@example.com", "Bob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550 mailbox unavailable")
}

func TestResetLink(t *testing.T) {
	assert.Equal(t, "http://localhost:3000/reset-password?token=abc", ResetLink("http://localhost:3000/reset-password", "abc"))
	assert.Equal(t, "https://x.io/r?lang=en&token=a%2Bb", ResetLink("https://x.io/r?lang=en", "a+b"))
}

func TestDescribeTTL(t *testing.T) {
	assert.Equal(t, "1 hour", describeTTL(0))
	assert.Equal(t, "2 hours", describeTTL(2*time.Hour))
	assert.Equal(t, "15 minutes", describeTTL(15*time.Minute))
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	n := NewLogNotifier(zap.New(core), "http://localhost:3000/reset-password")

	require.NoError(t, n.NotifyReset(context.Background(), "alice@example.com", "tok"))
	require.NoError(t, n.NotifyWelcome(context.Background(), "alice@example.com", "Alice"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.True(t, strings.HasSuffix(entries[0].ContextMap()["link"].(string), "?token=tok"))
	assert.Equal(t, "Alice", entries[1].ContextMap()["name"])
}
