package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/formsync/internal/store"
	"github.com/vovakirdan/formsync/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed while waiting for event kind %v", kind)
			}
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

// mustClose drains ch until it is closed and returns the drained events.
func mustClose(t *testing.T, ch <-chan *Event) []*Event {
	t.Helper()

	var drained []*Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return drained
			}
			drained = append(drained, ev)
		case <-deadline:
			t.Fatalf("channel not closed")
			return nil
		}
	}
}

func startTestHub(t *testing.T) (*Hub, store.Store) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(st, nil)
	go hub.Run(ctx)
	return hub, st
}

func mustCreateForm(t *testing.T, hub *Hub, title string) *store.Form {
	t.Helper()

	res, err := hub.Do(context.Background(), Command{Kind: CommandCreateForm, Title: title})
	if err != nil {
		t.Fatalf("create form: %v", err)
	}
	return res.Form
}
