package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Minhal128/CodeX/common/id"
	"github.com/Minhal128/CodeX/common/logger"
	"github.com/Minhal128/CodeX/common/metrics"
)

const (
	DefaultReconnectDelay       = 20 * time.Second
	DefaultMaxReconnectAttempts = 5

	// sentIDLimit bounds the ids remembered for echo suppression.
	sentIDLimit = 1024
)

var (
	ErrNoChannel  = errors.New("no channel has been initialized")
	ErrInvalidKey = errors.New("channel key must not be empty")
)

// Handler receives the data of one inbound event.
type Handler func(ctx context.Context, data json.RawMessage)

type Option func(*Manager)

func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.reconnectDelay = d
		}
	}
}

// WithMaxReconnectAttempts caps consecutive failed connection attempts. Once
// reached, no retry is scheduled until Reset. n <= 0 disables automatic
// reconnection.
func WithMaxReconnectAttempts(n int) Option {
	return func(m *Manager) {
		m.maxAttempts = max(n, 0)
	}
}

// WithEchoSuppression stamps outbound envelopes with an id and drops inbound
// envelopes carrying an id this manager sent.
func WithEchoSuppression() Option {
	return func(m *Manager) {
		m.echoSuppression = true
	}
}

// Manager owns one realtime channel connection. It moves between
// Disconnected, Connecting and Connected, reconnecting after failures with a
// fixed delay until the attempt cap is reached.
type Manager struct {
	dialer          Dialer
	clock           clockwork.Clock
	reconnectDelay  time.Duration
	maxAttempts     int
	echoSuppression bool

	mu        sync.Mutex
	ctx       context.Context
	key       string
	open      bool
	phase     Phase
	attempts  int
	conn      Conn
	handlers  map[string][]Handler
	retry     clockwork.Timer
	epoch     uint64
	sentIDs   map[string]struct{}
	sentOrder []string
	listeners []func(State)
	queued    []State
}

func NewManager(dialer Dialer, opts ...Option) *Manager {
	m := &Manager{
		dialer:         dialer,
		clock:          clockwork.NewRealClock(),
		reconnectDelay: DefaultReconnectDelay,
		maxAttempts:    DefaultMaxReconnectAttempts,
		ctx:            context.Background(),
		sentIDs:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize tears down any existing channel, including its handlers, and
// connects to key. A failed first attempt is returned and retried on the
// usual schedule.
func (m *Manager) Initialize(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	m.teardownLocked()
	m.key = key
	m.open = true
	m.attempts = 0
	m.handlers = make(map[string][]Handler)
	m.ctx = logger.WithLogFields(context.WithoutCancel(ctx), logger.LogFields{
		ChannelKey: logger.Ptr(key),
		Component:  "codex.channel",
	})
	epoch := m.epoch
	m.unlockAndNotify()

	return m.connect(epoch)
}

// Send publishes payload as event. It returns false when the channel is not
// connected or the publish fails.
func (m *Manager) Send(ctx context.Context, event string, payload any) bool {
	m.mu.Lock()
	if m.phase != Connected || m.conn == nil {
		m.mu.Unlock()
		metrics.ChannelSends.WithLabelValues(metrics.ResultRejected).Inc()
		return false
	}
	conn := m.conn
	var envelopeID string
	if m.echoSuppression {
		envelopeID = id.NewString()
		m.rememberLocked(envelopeID)
	}
	m.mu.Unlock()

	data, err := Encode(event, envelopeID, payload)
	if err != nil {
		metrics.ChannelSends.WithLabelValues(metrics.ResultError).Inc()
		slog.ErrorContext(ctx, "failed to encode channel event", "event", event, "error", err)
		return false
	}

	if err := conn.Publish(ctx, data); err != nil {
		metrics.ChannelSends.WithLabelValues(metrics.ResultError).Inc()
		slog.WarnContext(ctx, "channel publish failed", "event", event, "error", err)
		return false
	}

	metrics.ChannelSends.WithLabelValues(metrics.ResultOK).Inc()
	return true
}

// Receive registers handler for event. Handlers survive reconnects and Reset
// but not Initialize or Close. It returns false when no channel exists.
func (m *Manager) Receive(event string, handler Handler) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return false
	}
	m.handlers[event] = append(m.handlers[event], handler)
	return true
}

// Reset cancels any pending retry, drops the live connection, clears the
// attempt counter and connects to the same key again.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return ErrNoChannel
	}
	m.teardownLocked()
	m.attempts = 0
	epoch := m.epoch
	key := m.key
	m.unlockAndNotify()

	slog.InfoContext(ctx, "channel reset requested", "key", key)
	return m.connect(epoch)
}

// Close tears down the channel. The manager can be reused with Initialize.
func (m *Manager) Close() {
	m.mu.Lock()
	m.teardownLocked()
	m.open = false
	m.key = ""
	m.handlers = nil
	m.unlockAndNotify()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// OnStateChange registers fn to observe phase transitions. fn runs after the
// manager's lock is released.
func (m *Manager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) connect(epoch uint64) error {
	m.mu.Lock()
	if epoch != m.epoch || !m.open {
		m.mu.Unlock()
		return nil
	}
	m.retry = nil
	m.setPhaseLocked(Connecting)
	key, ctx := m.key, m.ctx
	m.unlockAndNotify()

	conn, err := m.dialer.Dial(ctx, key)

	m.mu.Lock()
	if epoch != m.epoch || !m.open {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}

	if err != nil {
		if m.attempts < m.maxAttempts {
			m.attempts++
		}
		attempts := m.attempts
		scheduled := m.scheduleRetryLocked(epoch)
		m.setPhaseLocked(Disconnected)
		m.unlockAndNotify()

		metrics.ChannelReconnects.WithLabelValues(metrics.ResultError).Inc()
		slog.WarnContext(ctx, "channel connect failed",
			"error", err,
			"attempts", attempts,
			"retry_scheduled", scheduled)
		return fmt.Errorf("connecting to channel %q: %w", key, err)
	}

	m.attempts = 0
	m.conn = conn
	m.setPhaseLocked(Connected)
	m.unlockAndNotify()

	metrics.ChannelReconnects.WithLabelValues(metrics.ResultOK).Inc()
	slog.InfoContext(ctx, "channel connected")

	go m.read(ctx, conn, epoch)
	return nil
}

// read delivers the events of conn sequentially until it ends.
func (m *Manager) read(ctx context.Context, conn Conn, epoch uint64) {
	for data := range conn.Messages() {
		m.dispatch(ctx, data, epoch)
	}

	// An ended transport may still hold a subscription that resubscribes on
	// its own.
	cause := conn.Err()
	if err := conn.Close(); err != nil {
		slog.DebugContext(ctx, "closing dropped channel connection", "error", err)
	}

	m.mu.Lock()
	if epoch != m.epoch || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	scheduled := m.scheduleRetryLocked(epoch)
	m.setPhaseLocked(Disconnected)
	m.unlockAndNotify()

	slog.WarnContext(ctx, "channel connection lost",
		"error", cause,
		"retry_scheduled", scheduled)
}

func (m *Manager) dispatch(ctx context.Context, data []byte, epoch uint64) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.WarnContext(ctx, "dropping malformed channel envelope",
			"error", err,
			"data", logger.Truncate(string(data), 200))
		return
	}

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	if m.echoSuppression && env.ID != "" {
		if _, mine := m.sentIDs[env.ID]; mine {
			m.mu.Unlock()
			return
		}
	}
	handlers := append([]Handler(nil), m.handlers[env.Event]...)
	m.mu.Unlock()

	for _, h := range handlers {
		m.invoke(ctx, env.Event, h, env.Data)
	}
}

func (m *Manager) invoke(ctx context.Context, event string, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in channel handler",
				"event", event,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	h(ctx, data)
}

// scheduleRetryLocked arms the reconnect timer unless the attempt cap has
// been reached. It must be called with m.mu held.
func (m *Manager) scheduleRetryLocked(epoch uint64) bool {
	if m.attempts >= m.maxAttempts {
		return false
	}
	m.retry = m.clock.AfterFunc(m.reconnectDelay, func() {
		_ = m.connect(epoch)
	})
	return true
}

// teardownLocked invalidates the current connection and any pending retry.
func (m *Manager) teardownLocked() {
	m.epoch++
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			slog.WarnContext(m.ctx, "closing channel connection", "error", err)
		}
		m.conn = nil
	}
	m.setPhaseLocked(Disconnected)
}

func (m *Manager) rememberLocked(envelopeID string) {
	m.sentIDs[envelopeID] = struct{}{}
	m.sentOrder = append(m.sentOrder, envelopeID)
	if len(m.sentOrder) > sentIDLimit {
		delete(m.sentIDs, m.sentOrder[0])
		m.sentOrder = m.sentOrder[1:]
	}
}

func (m *Manager) setPhaseLocked(p Phase) {
	if m.phase == p {
		return
	}
	m.phase = p
	for _, candidate := range []Phase{Disconnected, Connecting, Connected} {
		value := 0.0
		if candidate == p {
			value = 1
		}
		metrics.ChannelPhase.WithLabelValues(candidate.String()).Set(value)
	}
	m.queued = append(m.queued, m.snapshotLocked())
}

func (m *Manager) snapshotLocked() State {
	key := ""
	if m.open {
		key = m.key
	}
	return State{
		Phase:                m.phase,
		Key:                  key,
		ReconnectAttempts:    m.attempts,
		MaxReconnectAttempts: m.maxAttempts,
		RetryScheduled:       m.retry != nil,
	}
}

// unlockAndNotify releases m.mu and then delivers queued state changes.
func (m *Manager) unlockAndNotify() {
	states := m.queued
	m.queued = nil
	listeners := append([](func(State))(nil), m.listeners...)
	m.mu.Unlock()

	for _, s := range states {
		for _, fn := range listeners {
			fn(s)
		}
	}
}
