package live

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/formsync/internal/proto"
)

func newTestManager(t *testing.T, dialer Dialer, delay time.Duration, creds CredentialProvider) *Manager[[]item] {
	t.Helper()

	m := New[[]item](proto.FormResource("f1"), creds, itemRouter{},
		WithBaseURL("ws://example.test"),
		WithDialer(dialer),
		WithReconnectPolicy(ReconnectPolicy{Delay: delay}),
	)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerBootstrapReplacesState(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, time.Second, StaticCredential("tok"))
	m.Start(context.Background())

	conn := dialer.next(t)
	if got := dialer.endpoints[0]; got != "ws://example.test/ws/formularios/f1?access_token=tok" {
		t.Fatalf("unexpected endpoint: %s", got)
	}
	waitFor(t, m, func(s Snapshot[[]item]) bool { return s.Connected })

	conn.push(t, `{"tipo":"bootstrap","conteudo":[{"id":"a","text":"1"},{"id":"b","text":"2"}]}`)
	snap := waitFor(t, m, func(s Snapshot[[]item]) bool { return s.State != nil })
	if snap.Loading {
		t.Fatal("loading should be false after bootstrap")
	}
	if len(*snap.State) != 2 || (*snap.State)[1].Text != "2" {
		t.Fatalf("unexpected state: %+v", *snap.State)
	}

	// The last full snapshot wins.
	conn.push(t, `{"tipo":"bootstrap","conteudo":[{"id":"c","text":"3"}]}`)
	snap = waitFor(t, m, func(s Snapshot[[]item]) bool { return len(*s.State) == 1 })
	if (*snap.State)[0].ID != "c" {
		t.Fatalf("unexpected state after second bootstrap: %+v", *snap.State)
	}
}

func TestManagerMalformedFrameKeepsState(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, time.Second, StaticCredential("tok"))
	m.Start(context.Background())

	conn := dialer.next(t)
	conn.push(t, `{"tipo":"bootstrap","conteudo":[{"id":"a","text":"1"}]}`)
	waitFor(t, m, func(s Snapshot[[]item]) bool { return s.State != nil })

	conn.push(t, `{"tipo":"bootstrap",`)
	snap := waitFor(t, m, func(s Snapshot[[]item]) bool { return s.Err != nil })
	if !errors.Is(snap.Err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", snap.Err)
	}
	if len(*snap.State) != 1 || (*snap.State)[0].ID != "a" {
		t.Fatalf("state must survive a bad frame: %+v", *snap.State)
	}
	if !snap.Connected {
		t.Fatal("bad frame must not tear down the channel")
	}

	// A payload that decodes as a frame but not as state is also dropped.
	conn.push(t, `{"tipo":"bootstrap","conteudo":{"not":"a list"}}`)
	conn.push(t, `{"tipo":"presence","conteudo":[{"id":"u1","nome":"Ana"}]}`)
	snap = waitFor(t, m, func(s Snapshot[[]item]) bool { return len(s.Presence) == 1 })
	if len(*snap.State) != 1 {
		t.Fatalf("state changed by undecodable bootstrap: %+v", *snap.State)
	}
}

func TestManagerUnknownTagIgnored(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, time.Second, StaticCredential("tok"))
	m.Start(context.Background())

	conn := dialer.next(t)
	conn.push(t, `{"tipo":"something_new","conteudo":{"x":1}}`)
	conn.push(t, `{"tipo":"bootstrap","conteudo":[]}`)
	snap := waitFor(t, m, func(s Snapshot[[]item]) bool { return s.State != nil })
	if snap.Err != nil {
		t.Fatalf("unknown tag must not surface an error: %v", snap.Err)
	}
}

func TestManagerPresenceReplacedWholesale(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, time.Second, StaticCredential("tok"))
	m.Start(context.Background())

	conn := dialer.next(t)
	conn.push(t, `{"tipo":"presence","conteudo":[{"id":"u1","nome":"Ana"},{"id":"u2","nome":"Bia"}]}`)
	waitFor(t, m, func(s Snapshot[[]item]) bool { return len(s.Presence) == 2 })

	conn.push(t, `{"tipo":"presence","conteudo":[{"id":"u3","nome":"Caio"}]}`)
	snap := waitFor(t, m, func(s Snapshot[[]item]) bool { return len(s.Presence) == 1 })
	if snap.Presence[0].ID != "u3" {
		t.Fatalf("unexpected presence: %+v", snap.Presence)
	}
}

func TestManagerAbnormalCloseSchedulesOneReconnect(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, 50*time.Millisecond, StaticCredential("tok"))
	m.Start(context.Background())

	conn := dialer.next(t)
	waitFor(t, m, func(s Snapshot[[]item]) bool { return s.Connected })

	conn.drop(websocket.StatusAbnormalClosure, "")
	snap := waitFor(t, m, func(s Snapshot[[]item]) bool { return !s.Connected })
	if snap.Err == nil {
		t.Fatal("abnormal close should surface an error")
	}

	dialer.next(t)
	waitFor(t, m, func(s Snapshot[[]item]) bool { return s.Connected && s.Err == nil })

	time.Sleep(200 * time.Millisecond)
	if n := dialer.dialCount(); n != 2 {
		t.Fatalf("expected exactly 2 dials, got %d", n)
	}
}

func TestManagerNormalCloseDoesNotReconnect(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, 50*time.Millisecond, StaticCredential("tok"))
	m.Start(context.Background())

	conn := dialer.next(t)
	waitFor(t, m, func(s Snapshot[[]item]) bool { return s.Connected })

	conn.drop(websocket.StatusNormalClosure, "bye")
	snap := waitFor(t, m, func(s Snapshot[[]item]) bool { return !s.Connected })
	if snap.Err != nil {
		t.Fatalf("normal close should not surface an error: %v", snap.Err)
	}

	time.Sleep(300 * time.Millisecond)
	if n := dialer.dialCount(); n != 1 {
		t.Fatalf("expected no reconnect, got %d dials", n)
	}
}

func TestManagerRetriesForeverAtFixedDelay(t *testing.T) {
	dialer := newFakeDialer()
	dialer.err = errors.New("connection refused")
	m := newTestManager(t, dialer, 20*time.Millisecond, StaticCredential("tok"))
	m.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for dialer.dialCount() < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := dialer.dialCount(); n < 5 {
		t.Fatalf("expected repeated attempts, got %d", n)
	}
	if snap := m.Snapshot(); snap.Err == nil || snap.Connected {
		t.Fatalf("unexpected snapshot while unreachable: %+v", snap)
	}
}

func TestManagerBoundedPolicyGivesUp(t *testing.T) {
	dialer := newFakeDialer()
	dialer.err = errors.New("connection refused")
	m := New[[]item](proto.FormResource("f1"), StaticCredential("tok"), itemRouter{},
		WithDialer(dialer),
		WithReconnectPolicy(ReconnectPolicy{Delay: 10 * time.Millisecond, MaxAttempts: 2}),
	)
	t.Cleanup(func() { _ = m.Close() })
	m.Start(context.Background())

	snap := waitFor(t, m, func(s Snapshot[[]item]) bool { return errors.Is(s.Err, ErrReconnectExhausted) })
	if snap.Connected {
		t.Fatal("should not be connected")
	}
	if !IsTerminal(snap.Err) {
		t.Fatalf("exhausted policy must be terminal: %v", snap.Err)
	}
	if n := dialer.dialCount(); n != 3 {
		t.Fatalf("expected initial dial plus 2 retries, got %d", n)
	}
}

func TestManagerTeardownCancelsPendingReconnect(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, 150*time.Millisecond, StaticCredential("tok"))
	m.Start(context.Background())

	conn := dialer.next(t)
	waitFor(t, m, func(s Snapshot[[]item]) bool { return s.Connected })

	conn.drop(websocket.StatusAbnormalClosure, "")
	waitFor(t, m, func(s Snapshot[[]item]) bool { return !s.Connected })

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	time.Sleep(400 * time.Millisecond)
	if n := dialer.dialCount(); n != 1 {
		t.Fatalf("reconnect fired after teardown: %d dials", n)
	}
}

func TestManagerTeardownClosesChannelNormally(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, 50*time.Millisecond, StaticCredential("tok"))
	m.Start(context.Background())

	conn := dialer.next(t)
	waitFor(t, m, func(s Snapshot[[]item]) bool { return s.Connected })

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	conn.mu.Lock()
	closed, code := conn.closed, conn.code
	conn.mu.Unlock()
	if !closed || code != websocket.StatusNormalClosure {
		t.Fatalf("expected normal close, got closed=%v code=%v", closed, code)
	}

	time.Sleep(200 * time.Millisecond)
	if n := dialer.dialCount(); n != 1 {
		t.Fatalf("self-triggered close must not reconnect: %d dials", n)
	}
	if _, ok := <-m.Updates(); ok {
		// drain a pending signal, then the channel must be closed
		if _, ok := <-m.Updates(); ok {
			t.Fatal("updates channel should be closed after teardown")
		}
	}
}

func TestManagerSendBeforeOpenFails(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, time.Second, StaticCredential("tok"))

	cmd, _ := proto.NewCommand(proto.CommandUpdateForm, map[string]string{"titulo": "x"})
	if err := m.Send(context.Background(), cmd); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if snap := m.Snapshot(); !errors.Is(snap.Err, ErrNotConnected) {
		t.Fatalf("not connected notice missing: %v", snap.Err)
	}
	if n := dialer.dialCount(); n != 0 {
		t.Fatalf("send must not dial: %d", n)
	}

	m.Start(context.Background())
	conn := dialer.next(t)
	waitFor(t, m, func(s Snapshot[[]item]) bool { return s.Connected })

	if err := m.Send(context.Background(), cmd); err != nil {
		t.Fatalf("send: %v", err)
	}
	if n := conn.writeCount(); n != 1 {
		t.Fatalf("expected one write, got %d", n)
	}
	if w := conn.write(0); !strings.Contains(string(w), `"tipo":"update_formulario"`) {
		t.Fatalf("unexpected write: %s", w)
	}

	conn.drop(websocket.StatusNormalClosure, "")
	waitFor(t, m, func(s Snapshot[[]item]) bool { return !s.Connected })
	if err := m.Send(context.Background(), cmd); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after close, got %v", err)
	}
	if n := conn.writeCount(); n != 1 {
		t.Fatalf("no write expected while closed, got %d", n)
	}
}

func TestManagerMissingCredentialIsTerminal(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, 10*time.Millisecond, StaticCredential(""))
	m.Start(context.Background())

	snap := m.Snapshot()
	if !errors.Is(snap.Err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", snap.Err)
	}
	if snap.Loading || snap.State != nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	time.Sleep(50 * time.Millisecond)
	if n := dialer.dialCount(); n != 0 {
		t.Fatalf("no dial expected without credential, got %d", n)
	}
}

func TestManagerUnresolvedResourceIsIdle(t *testing.T) {
	dialer := newFakeDialer()
	m := New[[]item](proto.FormResource(""), StaticCredential("tok"), itemRouter{}, WithDialer(dialer))
	t.Cleanup(func() { _ = m.Close() })
	m.Start(context.Background())

	snap := m.Snapshot()
	if snap.Loading || snap.State != nil || snap.Err != nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	time.Sleep(50 * time.Millisecond)
	if n := dialer.dialCount(); n != 0 {
		t.Fatalf("no dial expected without resource id, got %d", n)
	}
}

func TestManagerRejectedHandshakeIsTerminal(t *testing.T) {
	dialer := newFakeDialer()
	dialer.err = ErrNotAuthenticated
	m := newTestManager(t, dialer, 10*time.Millisecond, StaticCredential("tok"))
	m.Start(context.Background())

	snap := waitFor(t, m, func(s Snapshot[[]item]) bool { return errors.Is(s.Err, ErrNotAuthenticated) })
	if !IsTerminal(snap.Err) {
		t.Fatalf("rejected credential must be terminal: %v", snap.Err)
	}
	if IsTerminal(ErrNotConnected) || IsTerminal(ErrMalformedFrame) {
		t.Fatal("recoverable errors reported as terminal")
	}
	time.Sleep(100 * time.Millisecond)
	if n := dialer.dialCount(); n != 1 {
		t.Fatalf("rejected credential must not be retried, got %d dials", n)
	}
}
