package termws

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/JongoDB/arc4de/internal/termproto"
)

// fakeSession is an in-memory Session: output is fed through a pipe,
// input and resizes are recorded.
type fakeSession struct {
	outR *io.PipeReader
	outW *io.PipeWriter

	mu      sync.Mutex
	input   []byte
	resizes [][2]int
	closed  bool
}

func newFakeSession() *fakeSession {
	r, w := io.Pipe()
	return &fakeSession{outR: r, outW: w}
}

func (s *fakeSession) Read(p []byte) (int, error) { return s.outR.Read(p) }

func (s *fakeSession) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = append(s.input, p...)
	return len(p), nil
}

func (s *fakeSession) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizes = append(s.resizes, [2]int{cols, rows})
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.outW.Close()
}

func (s *fakeSession) inputString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.input)
}

type handlerFixture struct {
	server  *httptest.Server
	session *fakeSession

	mu       sync.Mutex
	attaches []string
}

func newHandlerFixture(t *testing.T, config Config) *handlerFixture {
	t.Helper()
	f := &handlerFixture{session: newFakeSession()}
	verify := func(token string) error {
		if token != "good-token" {
			return errors.New("token verification failed")
		}
		return nil
	}
	attach := func(sessionID string, cols, rows int) (Session, error) {
		f.mu.Lock()
		f.attaches = append(f.attaches, sessionID)
		f.mu.Unlock()
		if sessionID == "broken" {
			return nil, errors.New("session not found")
		}
		return f.session, nil
	}
	h := NewHandler(config, verify, attach, func(r *http.Request) bool { return true })
	f.server = httptest.NewServer(h)
	t.Cleanup(f.server.Close)
	return f
}

func (f *handlerFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, msg termproto.Message) {
	t.Helper()
	data, err := termproto.Encode(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readFrame(t *testing.T, conn *websocket.Conn) termproto.Message {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := termproto.Decode(data)
	require.NoError(t, err)
	return msg
}

func requireClosedWith(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, code, closeErr.Code)
}

func authenticate(t *testing.T, f *handlerFixture, sessionID string) *websocket.Conn {
	t.Helper()
	conn := f.dial(t)
	sendFrame(t, conn, termproto.Message{
		Type: termproto.TypeAuth, Token: "good-token", SessionID: sessionID,
	})
	require.Equal(t, termproto.TypeAuthOK, readFrame(t, conn).Type)
	return conn
}

func TestAuthThenBridge(t *testing.T) {
	f := newHandlerFixture(t, Config{})
	conn := authenticate(t, f, "sess1")
	require.Equal(t, []string{"sess1"}, f.attaches)

	sendFrame(t, conn, termproto.Message{Type: termproto.TypeInput, Data: "ls -la\r"})
	sendFrame(t, conn, termproto.Message{Type: termproto.TypeResize, Cols: 120, Rows: 40})

	_, err := f.session.outW.Write([]byte("total 0\r\n"))
	require.NoError(t, err)
	out := readFrame(t, conn)
	require.Equal(t, termproto.TypeOutput, out.Type)
	require.Equal(t, "total 0\r\n", out.Data)

	require.Eventually(t, func() bool {
		return f.session.inputString() == "ls -la\r"
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		f.session.mu.Lock()
		defer f.session.mu.Unlock()
		return len(f.session.resizes) == 1 && f.session.resizes[0] == [2]int{120, 40}
	}, time.Second, 5*time.Millisecond)
}

func TestPingPong(t *testing.T) {
	f := newHandlerFixture(t, Config{})
	conn := authenticate(t, f, "")
	sendFrame(t, conn, termproto.Message{Type: termproto.TypePing})
	require.Equal(t, termproto.TypePong, readFrame(t, conn).Type)
}

func TestFirstFrameMustBeAuth(t *testing.T) {
	f := newHandlerFixture(t, Config{})
	conn := f.dial(t)
	sendFrame(t, conn, termproto.Message{Type: termproto.TypeInput, Data: "x"})

	msg := readFrame(t, conn)
	require.Equal(t, termproto.TypeAuthFail, msg.Type)
	require.Equal(t, "Expected auth message", msg.Reason)
	requireClosedWith(t, conn, CloseUnexpectedFrame)
}

func TestMissingToken(t *testing.T) {
	f := newHandlerFixture(t, Config{})
	conn := f.dial(t)
	sendFrame(t, conn, termproto.Message{Type: termproto.TypeAuth})

	msg := readFrame(t, conn)
	require.Equal(t, termproto.TypeAuthFail, msg.Type)
	require.Equal(t, "Missing token", msg.Reason)
	requireClosedWith(t, conn, CloseMissingToken)
}

func TestInvalidToken(t *testing.T) {
	f := newHandlerFixture(t, Config{})
	conn := f.dial(t)
	sendFrame(t, conn, termproto.Message{Type: termproto.TypeAuth, Token: "forged"})

	msg := readFrame(t, conn)
	require.Equal(t, termproto.TypeAuthFail, msg.Type)
	require.Equal(t, "Invalid or expired token", msg.Reason)
	requireClosedWith(t, conn, CloseInvalidToken)
	require.Empty(t, f.attaches)
}

func TestAuthTimeout(t *testing.T) {
	f := newHandlerFixture(t, Config{AuthTimeout: 50 * time.Millisecond})
	conn := f.dial(t)

	msg := readFrame(t, conn)
	require.Equal(t, termproto.TypeAuthFail, msg.Type)
	require.Equal(t, "Auth timeout", msg.Reason)
	requireClosedWith(t, conn, CloseAuthTimeout)
}

func TestAttachFailure(t *testing.T) {
	f := newHandlerFixture(t, Config{})
	conn := f.dial(t)
	sendFrame(t, conn, termproto.Message{
		Type: termproto.TypeAuth, Token: "good-token", SessionID: "broken",
	})
	require.Equal(t, termproto.TypeAuthOK, readFrame(t, conn).Type)

	msg := readFrame(t, conn)
	require.Equal(t, termproto.TypeError, msg.Type)
	require.Equal(t, "session not found", msg.Message)
	requireClosedWith(t, conn, websocket.CloseNormalClosure)
}

func TestMalformedFrameIgnored(t *testing.T) {
	f := newHandlerFixture(t, Config{})
	conn := authenticate(t, f, "")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	sendFrame(t, conn, termproto.Message{Type: termproto.TypePing})
	require.Equal(t, termproto.TypePong, readFrame(t, conn).Type)
}

func TestUnknownFrameType(t *testing.T) {
	f := newHandlerFixture(t, Config{})
	conn := authenticate(t, f, "")
	sendFrame(t, conn, termproto.Message{Type: "bogus"})

	msg := readFrame(t, conn)
	require.Equal(t, termproto.TypeError, msg.Type)
	require.Contains(t, msg.Message, "bogus")
}

func TestSessionClosedOnDisconnect(t *testing.T) {
	f := newHandlerFixture(t, Config{})
	conn := authenticate(t, f, "")
	conn.Close()

	require.Eventually(t, func() bool {
		f.session.mu.Lock()
		defer f.session.mu.Unlock()
		return f.session.closed
	}, time.Second, 5*time.Millisecond)
}
