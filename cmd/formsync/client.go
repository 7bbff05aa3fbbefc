package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vovakirdan/formsync/internal/live"
)

const accessTokenEnv = "FORMSYNC_ACCESS_TOKEN"

// managerOptions builds manager options from the client side of the config.
func managerOptions(e *env) []live.Option {
	return []live.Option{
		live.WithBaseURL(e.cfg.BaseURL),
		live.WithLogger(e.log),
		live.WithDialer(dialer(e)),
		live.WithReconnectPolicy(live.ReconnectPolicy{
			Delay:       e.cfg.ReconnectDelay,
			MaxAttempts: e.cfg.MaxReconnectAttempts,
		}),
	}
}

// dialer caps inbound frames at the configured message size.
func dialer(e *env) live.WebSocketDialer {
	return live.WebSocketDialer{ReadLimit: e.cfg.MaxMessageBytes}
}

// credentials prefers the configured token and falls back to reading the
// environment on every open.
func credentials(e *env) live.CredentialProvider {
	if e.cfg.AccessToken != "" {
		return live.StaticCredential(e.cfg.AccessToken)
	}
	return live.EnvCredential(accessTokenEnv)
}

// await blocks until cond holds for a snapshot of m. It fails on terminal
// manager errors and when ctx ends.
func await[T any](ctx context.Context, m *live.Manager[T], cond func(live.Snapshot[T]) bool) (live.Snapshot[T], error) {
	for {
		snap := m.Snapshot()
		if cond(snap) {
			return snap, nil
		}
		if live.IsTerminal(snap.Err) {
			return snap, snap.Err
		}
		select {
		case _, ok := <-m.Updates():
			if !ok {
				return m.Snapshot(), fmt.Errorf("manager closed")
			}
		case <-ctx.Done():
			return m.Snapshot(), ctx.Err()
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
