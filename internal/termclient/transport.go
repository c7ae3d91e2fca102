// Package termclient implements the client side of the terminal socket: a
// long-lived Transport owning one WebSocket connection at a time, with an
// auth-first handshake, periodic keepalive and automatic reconnection with
// exponential backoff. All outcomes are delivered through callbacks, public
// methods never block on the network.
package termclient

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/JongoDB/arc4de/internal/termproto"
)

// DefaultEndpointPath is where the server exposes the terminal socket.
const DefaultEndpointPath = "/ws/terminal"

const (
	defaultKeepAliveInterval = 30 * time.Second
	defaultMinReconnectDelay = time.Second
	defaultMaxReconnectDelay = 30 * time.Second
	defaultWriteTimeout      = time.Second
)

// Events carries the callbacks a Transport reports through. Set once at
// construction time. Callbacks are invoked outside of internal locks, in
// arrival order for events originating from the same socket.
type Events struct {
	// OnOutput receives process output bytes verbatim.
	OnOutput func(data string)
	// OnStateChange is invoked on every connection state transition.
	OnStateChange func(state State)
	// OnError receives authentication failures and server-reported errors.
	OnError func(err error)
}

// Config controls Transport behavior. Zero values fall back to defaults
// matching the wire contract (30s keepalive, 1s..30s reconnect backoff).
type Config struct {
	// Origin is the default http(s) origin to connect to, used when Connect
	// is called without an explicit one.
	Origin string
	// Path of the terminal socket endpoint, DefaultEndpointPath by default.
	Path string

	KeepAliveInterval time.Duration
	MinReconnectDelay time.Duration
	MaxReconnectDelay time.Duration
	WriteTimeout      time.Duration

	// Dialer to use for WebSocket connections, websocket.DefaultDialer
	// if nil.
	Dialer *websocket.Dialer
}

// Transport manages one logical authenticated terminal connection. It is
// long-lived: a single instance survives any number of connect/disconnect
// cycles. Lifecycle methods (Connect/Disconnect) must be serialized by the
// caller, event delivery is internally synchronized.
type Transport struct {
	mu     sync.Mutex
	config Config
	events Events

	state State
	conn  *websocket.Conn

	// gen is bumped every time the current socket or pending timers are
	// torn down. Socket reader goroutines and timer callbacks carry the
	// generation they were created under and are discarded when stale --
	// the equivalent of detaching event handlers before closing a socket.
	gen uint64

	token     string
	sessionID string
	origin    string

	retry          *backoff.ExponentialBackOff
	reconnectTimer *time.Timer
	keepaliveStop  chan struct{}
	disposed       bool

	pending []func()
}

// New creates a Transport in the Disconnected state.
func New(config Config, events Events) *Transport {
	if config.Path == "" {
		config.Path = DefaultEndpointPath
	}
	if config.KeepAliveInterval == 0 {
		config.KeepAliveInterval = defaultKeepAliveInterval
	}
	if config.MinReconnectDelay == 0 {
		config.MinReconnectDelay = defaultMinReconnectDelay
	}
	if config.MaxReconnectDelay == 0 {
		config.MaxReconnectDelay = defaultMaxReconnectDelay
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaultWriteTimeout
	}
	if config.Dialer == nil {
		config.Dialer = websocket.DefaultDialer
	}
	return &Transport{
		config: config,
		events: events,
		state:  StateDisconnected,
		retry:  newRetryPolicy(config.MinReconnectDelay, config.MaxReconnectDelay),
	}
}

// newRetryPolicy builds the reconnect delay schedule: min, 2*min, 4*min ...
// capped at max, without jitter.
func newRetryPolicy(min, max time.Duration) *backoff.ExponentialBackOff {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = min
	retry.MaxInterval = max
	retry.Multiplier = 2
	retry.RandomizationFactor = 0
	retry.Reset()
	return retry
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect starts a new connection sequence with the given credentials,
// superseding any in-flight attempt or established connection. sessionID
// and origin may be empty: an empty sessionID asks the server for a fresh
// session, an empty origin falls back to the configured default. The stored
// credentials are reused verbatim by automatic reconnect attempts until the
// next Connect call.
func (t *Transport) Connect(token, sessionID, origin string) {
	t.mu.Lock()
	t.disposed = false
	t.teardownLocked()
	t.token = token
	t.sessionID = sessionID
	t.origin = origin
	t.retry.Reset()
	t.dialLocked()
	t.unlockAndFlush()
}

// Disconnect tears down the connection and all pending timers. No reconnect
// is scheduled and no callbacks fire after it returns, until the next
// Connect call.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.disposed = true
	t.teardownLocked()
	t.setStateLocked(StateDisconnected)
	t.unlockAndFlush()
}

// SendInput transmits raw input bytes. A silent no-op unless connected:
// callers are expected to gate input on the state callback, and a dropped
// keystroke during a reconnect is visible and acceptable.
func (t *Transport) SendInput(data string) {
	t.send(termproto.Message{Type: termproto.TypeInput, Data: data})
}

// SendResize transmits viewport geometry. A silent no-op unless connected.
func (t *Transport) SendResize(cols, rows int) {
	t.send(termproto.Message{Type: termproto.TypeResize, Cols: cols, Rows: rows})
}

func (t *Transport) send(msg termproto.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateConnected || t.conn == nil {
		return
	}
	t.writeLocked(t.conn, msg)
}

// teardownLocked is the disposal checklist run before every new socket and
// before declaring the transport disconnected: cancel the reconnect timer,
// stop the keepalive, detach and close the current socket. Bumping gen
// guarantees no event from the superseded socket or timers can re-enter
// the state machine.
func (t *Transport) teardownLocked() {
	t.gen++
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	t.stopKeepaliveLocked()
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

func (t *Transport) dialLocked() {
	t.setStateLocked(StateConnecting)
	endpoint, err := t.endpointLocked()
	if err != nil {
		// A bad origin cannot be retried into a good one: report and
		// settle in Disconnected without scheduling a reconnect.
		t.queueErrorLocked(err)
		t.setStateLocked(StateDisconnected)
		return
	}
	gen := t.gen
	dialer := t.config.Dialer
	go func() {
		conn, resp, err := dialer.Dial(endpoint, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		t.mu.Lock()
		if t.gen != gen || t.disposed {
			// Superseded while dialing.
			t.mu.Unlock()
			if conn != nil {
				_ = conn.Close()
			}
			return
		}
		if err != nil {
			log.Debug().Err(err).Str("endpoint", endpoint).Msg("terminal socket dial failed")
			t.closeAndRetryLocked()
			t.unlockAndFlush()
			return
		}
		t.conn = conn
		t.setStateLocked(StateAuthenticating)
		t.writeLocked(conn, termproto.Message{
			Type:      termproto.TypeAuth,
			Token:     t.token,
			SessionID: t.sessionID,
		})
		go t.readLoop(conn, gen)
		t.unlockAndFlush()
	}()
}

func (t *Transport) endpointLocked() (string, error) {
	origin := t.origin
	if origin == "" {
		origin = t.config.Origin
	}
	return EndpointURL(origin, t.config.Path)
}

// EndpointURL derives the terminal socket URL from an http(s) origin by
// substituting the scheme (http -> ws, https -> wss) and appending path.
func EndpointURL(origin, path string) (string, error) {
	if origin == "" {
		return "", errors.New("no target origin configured")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", origin, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func (t *Transport) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.socketClosed(gen)
			return
		}
		t.handleFrame(gen, data)
	}
}

func (t *Transport) handleFrame(gen uint64, data []byte) {
	msg, err := termproto.Decode(data)
	if err != nil {
		// A single corrupt frame must not disrupt an otherwise healthy
		// stream.
		return
	}
	t.mu.Lock()
	if t.gen != gen || t.disposed {
		t.mu.Unlock()
		return
	}
	switch msg.Type {
	case termproto.TypeAuthOK:
		if t.state == StateConnected {
			// Duplicate ack, the keepalive is already running.
			break
		}
		t.retry.Reset()
		t.setStateLocked(StateConnected)
		t.startKeepaliveLocked(gen)
	case termproto.TypeAuthFail:
		reason := msg.Reason
		if reason == "" {
			reason = "authentication failed"
		}
		t.queueErrorLocked(errors.New(reason))
		// Retrying with a rejected credential is pointless: tear down
		// without scheduling a reconnect.
		t.teardownLocked()
		t.setStateLocked(StateDisconnected)
	case termproto.TypeOutput:
		if cb := t.events.OnOutput; cb != nil {
			data := msg.Data
			t.pending = append(t.pending, func() { cb(data) })
		}
	case termproto.TypePong:
		// Informational only. Liveness detection relies on the socket's
		// own close signaling, not on missed-pong accounting.
	case termproto.TypeError:
		message := msg.Message
		if message == "" {
			message = "server error"
		}
		t.queueErrorLocked(errors.New(message))
	}
	t.unlockAndFlush()
}

// socketClosed handles a socket close that was not initiated by Disconnect
// or a superseding Connect.
func (t *Transport) socketClosed(gen uint64) {
	t.mu.Lock()
	if t.gen != gen || t.disposed {
		t.mu.Unlock()
		return
	}
	t.closeAndRetryLocked()
	t.unlockAndFlush()
}

func (t *Transport) closeAndRetryLocked() {
	t.teardownLocked()
	t.setStateLocked(StateDisconnected)
	t.scheduleReconnectLocked()
}

func (t *Transport) scheduleReconnectLocked() {
	delay := t.retry.NextBackOff()
	gen := t.gen
	log.Debug().Dur("delay", delay).Msg("terminal socket reconnect scheduled")
	t.reconnectTimer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		if t.gen != gen || t.disposed || t.state != StateDisconnected {
			t.mu.Unlock()
			return
		}
		t.reconnectTimer = nil
		t.dialLocked()
		t.unlockAndFlush()
	})
}

func (t *Transport) startKeepaliveLocked(gen uint64) {
	stop := make(chan struct{})
	t.keepaliveStop = stop
	interval := t.config.KeepAliveInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				if t.gen != gen || t.state != StateConnected || t.conn == nil {
					t.mu.Unlock()
					return
				}
				t.writeLocked(t.conn, termproto.Message{Type: termproto.TypePing})
				t.mu.Unlock()
			}
		}
	}()
}

func (t *Transport) stopKeepaliveLocked() {
	if t.keepaliveStop != nil {
		close(t.keepaliveStop)
		t.keepaliveStop = nil
	}
}

func (t *Transport) writeLocked(conn *websocket.Conn, msg termproto.Message) {
	data, err := termproto.Encode(msg)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// The read loop observes the broken socket and drives the state
		// transition, a failed write is not reported separately.
		log.Debug().Err(err).Msg("terminal socket write failed")
	}
}

func (t *Transport) setStateLocked(state State) {
	if t.state == state {
		return
	}
	t.state = state
	if cb := t.events.OnStateChange; cb != nil {
		t.pending = append(t.pending, func() { cb(state) })
	}
}

func (t *Transport) queueErrorLocked(err error) {
	if cb := t.events.OnError; cb != nil {
		t.pending = append(t.pending, func() { cb(err) })
	}
}

// unlockAndFlush releases the lock and invokes callbacks queued by the
// current critical section, preserving their order.
func (t *Transport) unlockAndFlush() {
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()
	for _, cb := range pending {
		cb()
	}
}
