// Package realtime maintains the push channel for live notification
// delivery: at most one logical connection per authenticated session, a
// connect/reconnect state machine, and in-order fan-out of inbound
// events. Transport failures never reach calling code; they only drive
// state transitions and retries.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/communitas-app/session_layer/internal/logging"
	"github.com/communitas-app/session_layer/internal/metrics"
	"github.com/communitas-app/session_layer/internal/notification"
	"github.com/communitas-app/session_layer/internal/observable"
	"github.com/communitas-app/session_layer/internal/session"
	"github.com/communitas-app/session_layer/internal/timers"
)

// ErrTokenMissing is returned by Connect when no authenticated session
// token is present. It is fatal to the caller (re-login required) and
// never enters the retry loop.
var ErrTokenMissing = errors.New("realtime: connect requires an authenticated session token")

// State is the connection lifecycle state of the notifier.
type State int

const (
	// Disconnected means no channel and no attempt in flight.
	Disconnected State = iota

	// Connecting means the first handshake for this session is in flight.
	Connecting

	// Connected means the channel is live and delivering events.
	Connected

	// Reconnecting means the channel dropped or a handshake failed and
	// a retry is scheduled.
	Reconnecting
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// backoffSchedule is the fixed reconnect delay table, indexed by the
// number of consecutive failures since the last successful connection.
// Past the end, retries repeat at the last delay until success or stop.
var backoffSchedule = []time.Duration{
	0,
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

const defaultHeartbeatInterval = 30 * time.Second

// Config configures the notifier.
type Config struct {
	// HubURL is the notification hub endpoint.
	HubURL string

	// Sessions supplies the auth token and publishes session changes.
	Sessions *session.Store

	// Dialer defaults to a WebsocketDialer.
	Dialer Dialer

	// Scheduler drives backoff and heartbeat timers; defaults to real
	// timers.
	Scheduler timers.Scheduler

	// HeartbeatInterval is the client->server connectivity-test period.
	// Zero means the default; negative disables the heartbeat.
	HeartbeatInterval time.Duration

	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// Notifier owns the channel lifecycle. Every connect, stop, retry, and
// transport event serializes through one mutex and is tagged with a
// generation; Stop bumps the generation so anything in flight for the
// old one aborts without side effects. No two attempts are ever
// simultaneously live.
type Notifier struct {
	mu         sync.Mutex
	generation uint64
	state      State
	failures   int
	conn       Conn
	retryTimer timers.Timer
	hbTimer    timers.Timer

	writeMu sync.Mutex

	cfg       Config
	dialer    Dialer
	scheduler timers.Scheduler
	logger    *logging.Logger

	stateCell *observable.Cell[State]
	latest    *observable.Cell[*notification.Event]
	handlers  []func(notification.Event)
}

// New creates a notifier. It does not connect; call Connect or
// BindSessions.
func New(cfg Config) *Notifier {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &WebsocketDialer{}
	}
	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = timers.Real{}
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	return &Notifier{
		cfg:       cfg,
		dialer:    dialer,
		scheduler: scheduler,
		logger:    cfg.Logger.OrDiscard(),
		stateCell: observable.NewCell(Disconnected),
		latest:    observable.NewCell[*notification.Event](nil),
	}
}

// BindSessions subscribes the notifier to session changes: an
// authenticated session triggers Connect, a sign-out triggers Stop.
// The session publish is observed before this returns, so no channel is
// ever opened against a stale token. Returns the unsubscribe function.
func (n *Notifier) BindSessions() func() {
	return n.cfg.Sessions.Subscribe(func(sess *session.Session) {
		if sess.Authenticated() {
			if err := n.Connect(); err != nil {
				n.logger.WithError(err).Warn("Connect after session change failed")
			}
			return
		}
		n.Stop()
	})
}

// OnEvent registers a handler for inbound notification events. Handlers
// run synchronously on the read loop, in registration order, after the
// latest-event cache is updated; together those are the two delivery
// sinks and they see every event in receipt order.
func (n *Notifier) OnEvent(fn func(notification.Event)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, fn)
}

// State returns the current connection state.
func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// SubscribeState registers fn for connection state changes; this backs
// the best-effort connected/disconnected indicator.
func (n *Notifier) SubscribeState(fn func(State)) func() {
	return n.stateCell.Subscribe(fn)
}

// Latest returns the most recent event, nil when none arrived since the
// last Stop. Banner/toast UI reads this.
func (n *Notifier) Latest() *notification.Event {
	return n.latest.Get()
}

// SubscribeLatest registers fn for latest-event updates.
func (n *Notifier) SubscribeLatest(fn func(*notification.Event)) func() {
	return n.latest.Subscribe(fn)
}

// Connect starts the channel. It is idempotent: when an attempt is
// already owned (any non-Disconnected state) it returns immediately
// with no side effects. When no token is present it fails with
// ErrTokenMissing and schedules nothing.
func (n *Notifier) Connect() error {
	n.mu.Lock()
	if n.state != Disconnected {
		n.mu.Unlock()
		return nil
	}
	if n.cfg.Sessions.Token() == "" {
		n.mu.Unlock()
		return ErrTokenMissing
	}
	n.state = Connecting
	n.cfg.Metrics.SetConnectionState(int(Connecting))
	gen := n.generation
	n.mu.Unlock()

	n.stateCell.Set(Connecting)
	go n.attempt(gen)
	return nil
}

// Stop tears the channel down deterministically from any state: it
// cancels any pending backoff timer, closes the connection, clears the
// latest-event cache, and leaves the notifier Disconnected. A reconnect
// racing with Stop loses: the generation bump invalidates it.
func (n *Notifier) Stop() {
	n.mu.Lock()
	n.generation++
	if n.retryTimer != nil {
		n.retryTimer.Cancel()
		n.retryTimer = nil
	}
	if n.hbTimer != nil {
		n.hbTimer.Cancel()
		n.hbTimer = nil
	}
	conn := n.conn
	n.conn = nil
	n.failures = 0
	changed := n.state != Disconnected
	n.state = Disconnected
	n.cfg.Metrics.SetConnectionState(int(Disconnected))
	n.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	n.latest.Set(nil)
	if changed {
		n.stateCell.Set(Disconnected)
	}
}

// Reset is an alias for Stop.
func (n *Notifier) Reset() {
	n.Stop()
}

// attempt performs one handshake. It is only ever in flight once per
// generation: Connect spawns the first, and each retry timer spawns the
// next after the previous one has finished.
func (n *Notifier) attempt(gen uint64) {
	n.mu.Lock()
	if gen != n.generation {
		n.mu.Unlock()
		return
	}
	token := n.cfg.Sessions.Token()
	if token == "" {
		// Session vanished between scheduling and firing.
		n.state = Disconnected
		n.cfg.Metrics.SetConnectionState(int(Disconnected))
		n.mu.Unlock()
		n.stateCell.Set(Disconnected)
		return
	}
	n.mu.Unlock()

	n.cfg.Metrics.ConnectAttempt()
	conn, err := n.dialer.Dial(context.Background(), n.cfg.HubURL, token)

	n.mu.Lock()
	if gen != n.generation {
		n.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		n.failures++
		delay := n.backoffDelayLocked()
		n.state = Reconnecting
		n.cfg.Metrics.SetConnectionState(int(Reconnecting))
		n.scheduleRetryLocked(gen, delay)
		failures := n.failures
		n.mu.Unlock()

		n.logger.WithError(err).WithFields(map[string]interface{}{
			"failures":   failures,
			"next_retry": delay.String(),
		}).Debug("Handshake failed, retry scheduled")
		n.stateCell.Set(Reconnecting)
		return
	}

	n.conn = conn
	n.failures = 0
	n.state = Connected
	n.cfg.Metrics.SetConnectionState(int(Connected))
	n.scheduleHeartbeatLocked(gen)
	n.mu.Unlock()

	n.logger.Info("Notification channel connected")
	n.stateCell.Set(Connected)
	go n.readLoop(gen, conn)
}

// backoffDelayLocked returns the delay before the next attempt, indexed
// by consecutive failures. A transport drop counts as the first failure
// of a streak, so the first retry after a drop is immediate.
func (n *Notifier) backoffDelayLocked() time.Duration {
	idx := n.failures - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}

func (n *Notifier) scheduleRetryLocked(gen uint64, delay time.Duration) {
	n.retryTimer = n.scheduler.Schedule(delay, func() {
		n.mu.Lock()
		if gen != n.generation || n.state != Reconnecting {
			n.mu.Unlock()
			return
		}
		n.retryTimer = nil
		n.mu.Unlock()
		n.attempt(gen)
	})
}

func (n *Notifier) scheduleHeartbeatLocked(gen uint64) {
	if n.cfg.HeartbeatInterval < 0 {
		return
	}
	n.hbTimer = n.scheduler.Schedule(n.cfg.HeartbeatInterval, func() {
		n.mu.Lock()
		if gen != n.generation || n.state != Connected || n.conn == nil {
			n.mu.Unlock()
			return
		}
		conn := n.conn
		n.scheduleHeartbeatLocked(gen)
		n.mu.Unlock()
		n.writeJSON(conn, frame{Type: framePing})
	})
}

// readLoop delivers frames until the transport drops, then hands the
// drop to the reconnect policy. Read errors never propagate further.
func (n *Notifier) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			n.handleDrop(gen, err)
			return
		}
		n.handleFrame(gen, conn, data)
	}
}

func (n *Notifier) handleDrop(gen uint64, cause error) {
	n.mu.Lock()
	if gen != n.generation {
		n.mu.Unlock()
		return
	}
	n.conn = nil
	if n.hbTimer != nil {
		n.hbTimer.Cancel()
		n.hbTimer = nil
	}
	n.failures++
	delay := n.backoffDelayLocked()
	n.state = Reconnecting
	n.cfg.Metrics.SetConnectionState(int(Reconnecting))
	n.scheduleRetryLocked(gen, delay)
	n.mu.Unlock()

	n.logger.WithError(cause).WithField("next_retry", delay.String()).Debug("Transport dropped, retry scheduled")
	n.stateCell.Set(Reconnecting)
}

// Hub frame types.
const (
	frameNotification = "notification"
	framePing         = "ping"
	framePong         = "pong"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (n *Notifier) handleFrame(gen uint64, conn Conn, data []byte) {
	switch gjson.GetBytes(data, "type").String() {
	case frameNotification:
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			n.logger.WithError(err).Warn("Dropping malformed hub frame")
			return
		}
		var ev notification.Event
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			n.logger.WithError(err).Warn("Dropping malformed notification payload")
			return
		}
		n.dispatch(gen, ev)
	case framePing:
		// Server connectivity test.
		n.writeJSON(conn, frame{Type: framePong})
	case framePong:
		// Reply to our own heartbeat.
	default:
		n.logger.WithField("type", gjson.GetBytes(data, "type").String()).Debug("Ignoring unknown hub frame")
	}
}

// dispatch fans an event out to the two sinks in receipt order: the
// latest-event cache first, then every registered handler. It runs on
// the read loop, so no reordering or coalescing is possible.
func (n *Notifier) dispatch(gen uint64, ev notification.Event) {
	n.mu.Lock()
	if gen != n.generation {
		n.mu.Unlock()
		return
	}
	handlers := make([]func(notification.Event), len(n.handlers))
	copy(handlers, n.handlers)
	n.mu.Unlock()

	n.cfg.Metrics.EventReceived()
	n.latest.Set(&ev)
	for _, fn := range handlers {
		fn(ev)
	}
}

func (n *Notifier) writeJSON(conn Conn, v interface{}) {
	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		n.logger.WithError(err).Debug("Hub write failed")
	}
}
