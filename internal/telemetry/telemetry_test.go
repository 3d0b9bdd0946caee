package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, h http.Handler) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestProvider_Records(t *testing.T) {
	p, err := NewProvider(Config{ServiceName: "warden", ServiceVersion: "test", Enabled: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	ctx := context.Background()
	p.RecordLogin(ctx, true)
	p.RecordLogin(ctx, false)
	p.RecordRegistration(ctx, true)
	p.RecordLogout(ctx)
	p.RecordRecovery(ctx, "reset", false)
	p.RecordAuthDuration(ctx, 20*time.Millisecond, true)

	code, body := scrape(t, p.Handler())
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "warden_login_total")
	assert.Contains(t, body, `status="failure"`)
	assert.Contains(t, body, "warden_registration_total")
	assert.Contains(t, body, "warden_logout_total")
	assert.Contains(t, body, `stage="reset"`)
	assert.Contains(t, body, "warden_auth_duration")
}

func TestProvider_Disabled(t *testing.T) {
	p, err := NewProvider(Config{ServiceName: "warden"})
	require.NoError(t, err)

	// Recording on a disabled or nil provider is a no-op.
	p.RecordLogin(context.Background(), true)
	var nilProvider *Provider
	nilProvider.RecordLogout(context.Background())
	assert.NoError(t, nilProvider.Shutdown(context.Background()))

	code, _ := scrape(t, p.Handler())
	assert.Equal(t, http.StatusNotFound, code)
}
