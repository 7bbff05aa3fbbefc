package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/formsync/internal/proto"
)

type fakeConn struct {
	frames  chan []byte
	closing chan error

	mu     sync.Mutex
	writes [][]byte
	closed bool
	code   websocket.StatusCode
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames:  make(chan []byte, 16),
		closing: make(chan error, 1),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.frames:
		return data, nil
	case err := <-c.closing:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed conn")
	}
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) Close(code websocket.StatusCode, reason string) error {
	c.mu.Lock()
	c.closed = true
	c.code = code
	c.mu.Unlock()
	c.drop(code, reason)
	return nil
}

// drop simulates the peer closing the channel with code.
func (c *fakeConn) drop(code websocket.StatusCode, reason string) {
	select {
	case c.closing <- websocket.CloseError{Code: code, Reason: reason}:
	default:
	}
}

func (c *fakeConn) push(t *testing.T, frame string) {
	t.Helper()
	select {
	case c.frames <- []byte(frame):
	case <-time.After(time.Second):
		t.Fatal("frame buffer full")
	}
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) write(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[i]
}

type fakeDialer struct {
	mu        sync.Mutex
	dials     int
	endpoints []string
	err       error
	conns     chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, endpoint string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.endpoints = append(d.endpoints, endpoint)
	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn()
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-d.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("expected a dial")
		return nil
	}
}

// item and itemRouter are a minimal keyed collection used to drive the manager.
type item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type itemRouter struct{}

func (itemRouter) Field() proto.PayloadField { return proto.PayloadConteudo }

func (itemRouter) Route(state *[]item, kind proto.Kind, payload json.RawMessage) (*[]item, bool, error) {
	switch kind {
	case proto.KindBootstrap:
		var items []item
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, true, err
		}
		return &items, true, nil
	default:
		return state, false, nil
	}
}

func waitFor[T any](t *testing.T, m *Manager[T], cond func(Snapshot[T]) bool) Snapshot[T] {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := m.Snapshot()
		if cond(snap) {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached, last snapshot: %+v", m.Snapshot())
	return Snapshot[T]{}
}
