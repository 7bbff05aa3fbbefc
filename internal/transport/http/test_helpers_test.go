package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/formsync/internal/auth"
	"github.com/vovakirdan/formsync/internal/config"
	"github.com/vovakirdan/formsync/internal/core"
	"github.com/vovakirdan/formsync/internal/forms"
	"github.com/vovakirdan/formsync/internal/live"
	"github.com/vovakirdan/formsync/internal/store"
	"github.com/vovakirdan/formsync/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store store.Store
	jwt   *auth.JWTConfig
}

// startTestServer runs the full server on an in-memory store.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(testSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(st, &disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		MaxMessageBytes:   1 << 20,
		CommandsPerMinute: 100,
	}

	server := NewServer(hub, authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)

	// The server goes first so open channels are closed before the hub stops.
	t.Cleanup(cancel)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, store: st, jwt: jwtConfig}
}

func (e *testEnv) token(t *testing.T, subject, name string) string {
	t.Helper()

	token, err := auth.GenerateToken(e.jwt, subject, name, subject+"@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (e *testEnv) createForm(t *testing.T, title string) *store.Form {
	t.Helper()

	res, err := e.hub.Do(context.Background(), core.Command{Kind: core.CommandCreateForm, Title: title})
	if err != nil {
		t.Fatalf("create form: %v", err)
	}
	return res.Form
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newResponsesManager(t *testing.T, env *testEnv, formID, token string) *live.Manager[forms.Responses] {
	t.Helper()

	m := forms.NewResponsesManager(formID, live.StaticCredential(token), live.WithBaseURL(env.ts.URL))
	t.Cleanup(func() { _ = m.Close() })
	m.Start(context.Background())
	waitFor(t, "responses bootstrap", func() bool { return m.Snapshot().State != nil })
	return m
}
