package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/formsync/internal/proto"
)

// Router folds inbound frames into state of type T.
//
// Route must not modify *state; it returns a new value when something changed
// or state itself when nothing did. handled is false for kinds the router does
// not know, which the manager logs and ignores.
type Router[T any] interface {
	Field() proto.PayloadField
	Route(state *T, kind proto.Kind, payload json.RawMessage) (next *T, handled bool, err error)
}

// Snapshot is a read-only view of a manager.
type Snapshot[T any] struct {
	State     *T
	Presence  []proto.Principal
	Loading   bool
	Connected bool
	Err       error
}

type options struct {
	baseURL string
	dialer  Dialer
	policy  ReconnectPolicy
	logger  *zerolog.Logger
}

// Option configures a Manager.
type Option func(*options)

// WithBaseURL sets the server address channels are opened against.
func WithBaseURL(base string) Option {
	return func(o *options) { o.baseURL = base }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithReconnectPolicy replaces the default fixed three second policy.
func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// DefaultBaseURL is used when no base address is configured.
const DefaultBaseURL = "ws://localhost:8080"

// Manager keeps one resource synchronized over a single channel.
type Manager[T any] struct {
	resource proto.Resource
	creds    CredentialProvider
	router   Router[T]
	opts     options
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	credential string
	state      *T
	presence   Presence
	loading    bool
	err        error
	conn       Conn
	gen        uint64
	attempts   int
	timer      *time.Timer
	timerSeq   uint64
	started    bool
	closed     bool
	updates    chan struct{}
}

// New builds a manager for resource. Nothing happens until Start.
func New[T any](resource proto.Resource, creds CredentialProvider, router Router[T], opts ...Option) *Manager[T] {
	o := options{
		baseURL: DefaultBaseURL,
		dialer:  WebSocketDialer{},
		policy:  DefaultReconnectPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := zerolog.Nop()
	if o.logger != nil {
		logger = *o.logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager[T]{
		resource: resource,
		creds:    creds,
		router:   router,
		opts:     o,
		log:      logger.With().Str("resource", resource.Path()).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan struct{}, 1),
	}
}

// Resource returns the handle this manager synchronizes.
func (m *Manager[T]) Resource() proto.Resource { return m.resource }

// Updates signals after every change visible through Snapshot.
// Signals coalesce; the channel is closed by Close.
func (m *Manager[T]) Updates() <-chan struct{} { return m.updates }

// Start resolves the credential and opens the channel asynchronously.
// A missing resource id or credential leaves the manager idle with no
// connection attempt.
func (m *Manager[T]) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	if !m.resource.Resolved() {
		m.log.Debug().Msg("resource not resolved, staying idle")
		m.notify()
		return
	}

	credential, err := m.resolveCredential(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if err != nil {
		m.err = err
		m.log.Warn().Err(err).Msg("no credential, not connecting")
		m.notifyLocked()
		return
	}

	m.credential = credential
	m.loading = true
	m.openLocked()
}

func (m *Manager[T]) resolveCredential(ctx context.Context) (string, error) {
	if m.creds == nil {
		return "", ErrNotAuthenticated
	}
	credential, err := m.creds.Credential(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if credential == "" {
		return "", ErrNotAuthenticated
	}
	return credential, nil
}

// Snapshot returns the current view.
func (m *Manager[T]) Snapshot() Snapshot[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot[T]{
		State:     m.state,
		Presence:  m.presence.Members(),
		Loading:   m.loading,
		Connected: m.conn != nil,
		Err:       m.err,
	}
}

// Send writes cmd to the open channel. It never queues: while the channel is
// not open it records and returns ErrNotConnected without touching the network.
func (m *Manager[T]) Send(ctx context.Context, cmd proto.Command) error {
	m.mu.Lock()
	conn := m.conn
	if conn == nil || m.closed {
		m.err = ErrNotConnected
		m.notifyLocked()
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.mu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	if err := conn.Write(ctx, data); err != nil {
		err = fmt.Errorf("send: %w", err)
		m.mu.Lock()
		m.err = err
		m.notifyLocked()
		m.mu.Unlock()
		m.log.Warn().Err(err).Str("tipo", cmd.Tipo).Msg("command not sent")
		return err
	}
	return nil
}

// Close tears the manager down: the channel is closed normally, any pending
// reconnect is cancelled and no further attempts are made.
func (m *Manager[T]) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	// Bumping the generation turns the close handler of the current channel
	// into a no-op before it is closed below.
	m.gen++
	m.stopTimerLocked()
	conn := m.conn
	m.conn = nil
	close(m.updates)
	m.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "closing")
	}
	m.cancel()
	m.log.Info().Msg("manager closed")
	return err
}

// openLocked starts a new channel generation and dials it in the background.
func (m *Manager[T]) openLocked() {
	m.gen++
	gen := m.gen

	endpoint, err := proto.Endpoint(m.opts.baseURL, m.resource, m.credential)
	if err != nil {
		m.err = err
		m.loading = false
		m.log.Error().Err(err).Msg("cannot build channel endpoint")
		m.notifyLocked()
		return
	}

	m.log.Info().Uint64("gen", gen).Msg("opening channel")
	go m.dial(gen, endpoint)
}

func (m *Manager[T]) dial(gen uint64, endpoint string) {
	conn, err := m.opts.dialer.Dial(m.ctx, endpoint)

	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "superseded")
		}
		return
	}

	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			m.err = err
			m.loading = false
			m.log.Warn().Err(err).Msg("credential rejected, not reconnecting")
			m.notifyLocked()
			m.mu.Unlock()
			return
		}
		m.onErrorLocked(err)
		m.onCloseLocked(websocket.StatusAbnormalClosure)
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.onOpenLocked(gen)
	m.mu.Unlock()

	m.readLoop(gen, conn)
}

func (m *Manager[T]) onOpenLocked(gen uint64) {
	m.err = nil
	m.attempts = 0
	m.stopTimerLocked()
	m.log.Info().Uint64("gen", gen).Msg("channel open")
	m.notifyLocked()
}

func (m *Manager[T]) onErrorLocked(err error) {
	m.err = err
	m.loading = false
	m.log.Warn().Err(err).Msg("channel error")
	m.notifyLocked()
}

func (m *Manager[T]) onCloseLocked(code websocket.StatusCode) {
	m.conn = nil
	if IsNormalClosure(code) {
		m.log.Info().Int("code", int(code)).Msg("channel closed normally")
		m.notifyLocked()
		return
	}
	m.scheduleReconnectLocked(code)
	m.notifyLocked()
}

func (m *Manager[T]) scheduleReconnectLocked(code websocket.StatusCode) {
	if m.timer != nil {
		return
	}

	delay, ok := m.opts.policy.next(m.attempts)
	if !ok {
		m.err = ErrReconnectExhausted
		m.log.Error().Int("attempts", m.attempts).Msg("giving up on reconnect")
		return
	}
	m.attempts++

	m.timerSeq++
	seq := m.timerSeq
	m.timer = time.AfterFunc(delay, func() { m.fireReconnect(seq) })

	m.log.Warn().
		Int("code", int(code)).
		Dur("delay", delay).
		Int("attempt", m.attempts).
		Msg("channel closed abnormally, reconnect scheduled")
}

func (m *Manager[T]) fireReconnect(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.timer == nil || seq != m.timerSeq {
		return
	}
	m.timer = nil
	m.openLocked()
}

func (m *Manager[T]) stopTimerLocked() {
	if m.timer == nil {
		return
	}
	m.timer.Stop()
	m.timer = nil
	m.timerSeq++
}

func (m *Manager[T]) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.Read(m.ctx)
		if err != nil {
			m.mu.Lock()
			if !m.closed && gen == m.gen {
				code := closeCode(err)
				if !IsNormalClosure(code) {
					m.onErrorLocked(fmt.Errorf("channel closed: %w", err))
				}
				m.onCloseLocked(code)
			}
			m.mu.Unlock()
			return
		}
		m.handleFrame(gen, data)
	}
}

func (m *Manager[T]) handleFrame(gen uint64, data []byte) {
	var frame proto.Frame
	decodeErr := json.Unmarshal(data, &frame)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.gen {
		return
	}

	if decodeErr != nil {
		m.malformedLocked("", decodeErr)
		return
	}

	kind := proto.ParseKind(frame.Tipo)
	payload := frame.Payload(m.router.Field())

	if kind == proto.KindPresence {
		if err := m.presence.Apply(payload); err != nil {
			m.malformedLocked(frame.Tipo, err)
			return
		}
		m.notifyLocked()
		return
	}

	next, handled, err := m.router.Route(m.state, kind, payload)
	if err != nil {
		m.malformedLocked(frame.Tipo, err)
		return
	}
	if !handled {
		m.log.Debug().Str("tipo", frame.Tipo).Msg("ignoring frame")
		return
	}

	m.state = next
	if next != nil {
		m.loading = false
	}
	m.notifyLocked()
}

func (m *Manager[T]) malformedLocked(tipo string, err error) {
	m.err = fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	m.log.Warn().Err(err).Str("tipo", tipo).Msg("dropping malformed frame")
	m.notifyLocked()
}

func (m *Manager[T]) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyLocked()
}

func (m *Manager[T]) notifyLocked() {
	if m.closed {
		return
	}
	select {
	case m.updates <- struct{}{}:
	default:
	}
}
