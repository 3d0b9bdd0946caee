package flow

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/getkayan/warden/internal/domain"
)

// requestReset runs Initiate and returns the token that was mailed.
func (f *fixture) requestReset(t *testing.T, email string) string {
	t.Helper()
	msg, err := f.recovery.Initiate(context.Background(), email)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if msg != MessageResetSent {
		t.Fatalf("unexpected message %q", msg)
	}
	f.recovery.Wait()
	mail, ok := f.notifier.last("reset")
	if !ok {
		t.Fatal("no reset email sent")
	}
	return mail.payload
}

func TestRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com", "old-password")

	token := f.requestReset(t, "alice@example.com")

	msg, err := f.recovery.Reset(ctx, "alice@example.com", token, "new-password")
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if msg != MessagePasswordReset {
		t.Errorf("unexpected message %q", msg)
	}

	if _, err := f.login.Login(ctx, "alice@example.com", "old-password"); err == nil {
		t.Error("old password still accepted")
	}
	if _, err := f.login.Login(ctx, "alice@example.com", "new-password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestRecovery_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com", "old-password")
	token := f.requestReset(t, "alice@example.com")

	if _, err := f.recovery.Reset(ctx, "alice@example.com", token, "first"); err != nil {
		t.Fatal(err)
	}
	_, err := f.recovery.Reset(ctx, "alice@example.com", token, "second")
	assertCode(t, err, domain.CodeBadRequest)
	if err.Error() != "Invalid or expired reset token" {
		t.Errorf("unexpected message %q", err)
	}

	if _, err := f.login.Login(ctx, "alice@example.com", "first"); err != nil {
		t.Error("second reset must not change the password")
	}
}

func TestRecovery_ReissueInvalidatesEarlierToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com", "old-password")

	first := f.requestReset(t, "alice@example.com")
	second := f.requestReset(t, "alice@example.com")
	if first == second {
		t.Fatal("reset tokens must differ")
	}

	_, err := f.recovery.Reset(ctx, "alice@example.com", first, "new-password")
	assertCode(t, err, domain.CodeBadRequest)

	if _, err := f.recovery.Reset(ctx, "alice@example.com", second, "new-password"); err != nil {
		t.Errorf("latest token rejected: %v", err)
	}
}

func TestRecovery_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com", "pw")

	known, err := f.recovery.Initiate(ctx, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	unknown, err := f.recovery.Initiate(ctx, "ghost@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if known != unknown {
		t.Errorf("responses differ: %q vs %q", known, unknown)
	}

	f.recovery.Wait()
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	for _, m := range f.notifier.sent {
		if m.email == "ghost@example.com" {
			t.Error("email sent to unknown address")
		}
	}
}

func TestRecovery_ResetUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.recovery.Reset(context.Background(), "ghost@example.com", "tok", "pw")
	assertCode(t, err, domain.CodeNotFound)
}

func TestRecovery_WrongOrMissingToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com", "pw")

	_, err := f.recovery.Reset(ctx, "alice@example.com", "never-issued", "new")
	assertCode(t, err, domain.CodeBadRequest)

	f.requestReset(t, "alice@example.com")
	_, err = f.recovery.Reset(ctx, "alice@example.com", "guess", "new")
	assertCode(t, err, domain.CodeBadRequest)
}

func TestRecovery_NotifierFailureIsHidden(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "pw")
	f.notifier.err = errors.New("smtp down")

	msg, err := f.recovery.Initiate(context.Background(), "alice@example.com")
	if err != nil || msg != MessageResetSent {
		t.Fatalf("got %q, %v", msg, err)
	}
	f.recovery.Wait()
}

func TestRecovery_ConcurrentReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com", "pw")
	token := f.requestReset(t, "alice@example.com")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.recovery.Reset(ctx, "alice@example.com", token, "new-password"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one successful reset, got %d", wins.Load())
	}
}

func TestGenerateResetToken(t *testing.T) {
	a, err := GenerateResetToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateResetToken()
	if a == b {
		t.Fatal("tokens repeat")
	}
	raw, err := base64.RawURLEncoding.DecodeString(a)
	if err != nil || len(raw) != ResetTokenBytes {
		t.Errorf("token %q is not %d url-safe bytes", a, ResetTokenBytes)
	}
}
