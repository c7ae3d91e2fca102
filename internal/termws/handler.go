// Package termws serves the terminal WebSocket endpoint. The protocol is
// auth-first: the opening frame must be an auth message carrying a valid
// access token, everything after the auth.ok acknowledgement is a
// bidirectional bridge between the socket and an attached terminal
// session.
package termws

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/JongoDB/arc4de/internal/metrics"
	"github.com/JongoDB/arc4de/internal/termproto"
)

// Session is a live terminal bridge: reads return output bytes, writes
// feed input, Resize adjusts the window.
type Session interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Resize(cols, rows int) error
	Close() error
}

// Attacher binds an authenticated connection to a terminal session. An
// empty sessionID requests a fresh session.
type Attacher func(sessionID string, cols, rows int) (Session, error)

// TokenVerifier validates the access token from an auth frame.
type TokenVerifier func(token string) error

// Handler handles terminal WebSocket connections.
type Handler struct {
	config   Config
	verify   TokenVerifier
	attach   Attacher
	upgrader *websocket.Upgrader
}

// NewHandler creates a Handler. checkOrigin may be nil to accept only
// same-host origins (the upgrader default).
func NewHandler(config Config, verify TokenVerifier, attach Attacher, checkOrigin func(r *http.Request) bool) *Handler {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		CheckOrigin:     checkOrigin,
	}
	return &Handler{
		config:   config,
		verify:   verify,
		attach:   attach,
		upgrader: upgrader,
	}
}

// client wraps a connection with write synchronization: the output pump
// and the control loop both transmit frames.
type client struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
}

func (c *client) send(msg termproto.Message) error {
	data, err := termproto.Encode(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) closeWithCode(code int, reason string) {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(c.writeTimeout))
	c.writeMu.Unlock()
	_ = c.conn.Close()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade error")
		return
	}
	conn.SetReadLimit(int64(h.config.messageSizeLimit()))
	c := &client{conn: conn, writeTimeout: h.config.writeTimeout()}

	auth, ok := h.authenticate(c)
	if !ok {
		return
	}

	session, err := h.attach(auth.SessionID, auth.Cols, auth.Rows)
	if err != nil {
		log.Debug().Err(err).Str("session_id", auth.SessionID).Msg("terminal attach failed")
		_ = c.send(termproto.Message{Type: termproto.TypeError, Message: err.Error()})
		c.closeWithCode(websocket.CloseNormalClosure, "")
		return
	}

	metrics.TerminalConnectsTotal.Inc()
	metrics.TerminalConnections.Inc()
	defer metrics.TerminalConnections.Dec()

	h.bridge(c, session)
}

// authenticate runs the auth phase: the first frame, within the auth
// timeout, must carry a valid token. Returns the auth frame on success.
func (h *Handler) authenticate(c *client) (termproto.Message, bool) {
	fail := func(code int, reason string) (termproto.Message, bool) {
		metrics.TerminalAuthFailuresTotal.Inc()
		_ = c.send(termproto.Message{Type: termproto.TypeAuthFail, Reason: reason})
		c.closeWithCode(code, "")
		return termproto.Message{}, false
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(h.config.authTimeout()))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fail(CloseAuthTimeout, "Auth timeout")
		}
		_ = c.conn.Close()
		return termproto.Message{}, false
	}

	msg, err := termproto.Decode(data)
	if err != nil || msg.Type != termproto.TypeAuth {
		return fail(CloseUnexpectedFrame, "Expected auth message")
	}
	if msg.Token == "" {
		return fail(CloseMissingToken, "Missing token")
	}
	if err := h.verify(msg.Token); err != nil {
		return fail(CloseInvalidToken, "Invalid or expired token")
	}

	_ = c.conn.SetReadDeadline(time.Time{})
	if err := c.send(termproto.Message{Type: termproto.TypeAuthOK}); err != nil {
		_ = c.conn.Close()
		return termproto.Message{}, false
	}
	return msg, true
}

// bridge forwards terminal output to the socket and socket frames to the
// terminal until either side goes away.
func (h *Handler) bridge(c *client, session Session) {
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	// Output pump: terminal -> socket.
	go func() {
		defer stop()
		buf := make([]byte, 4096)
		for {
			n, err := session.Read(buf)
			if n > 0 {
				metrics.TerminalOutputBytesTotal.Add(float64(n))
				if sendErr := c.send(termproto.Message{
					Type: termproto.TypeOutput,
					Data: string(buf[:n]),
				}); sendErr != nil {
					return
				}
			}
			if err != nil {
				// EIO is the normal end of an attached PTY.
				return
			}
		}
	}()

	// Control loop: socket -> terminal.
	go func() {
		defer stop()
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := termproto.Decode(data)
			if err != nil {
				// A single corrupt frame does not end the session.
				continue
			}
			metrics.TerminalFramesReceivedTotal.WithLabelValues(msg.Type).Inc()
			switch msg.Type {
			case termproto.TypePing:
				_ = c.send(termproto.Message{Type: termproto.TypePong})
			case termproto.TypeInput:
				if _, err := session.Write([]byte(msg.Data)); err != nil {
					return
				}
			case termproto.TypeResize:
				if err := session.Resize(msg.Cols, msg.Rows); err != nil {
					log.Debug().Err(err).Msg("terminal resize failed")
				}
			default:
				_ = c.send(termproto.Message{
					Type:    termproto.TypeError,
					Message: "unknown message type: " + msg.Type,
				})
			}
		}
	}()

	<-done
	_ = session.Close()
	_ = c.conn.Close()
}
