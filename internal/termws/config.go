package termws

import "time"

// EndpointPath of the terminal socket.
const EndpointPath = "/ws/terminal"

// Close codes sent when the authentication phase fails.
const (
	CloseAuthTimeout     = 4001
	CloseUnexpectedFrame = 4002
	CloseMissingToken    = 4003
	CloseInvalidToken    = 4004
)

const (
	DefaultAuthTimeout      = 30 * time.Second
	DefaultWriteTimeout     = time.Second
	DefaultMessageSizeLimit = 65536
)

// Config of the terminal socket handler.
type Config struct {
	// AuthTimeout bounds how long a freshly opened socket may wait before
	// sending its auth frame.
	AuthTimeout time.Duration
	// WriteTimeout applied to every outgoing frame.
	WriteTimeout time.Duration
	// MessageSizeLimit caps inbound frame size in bytes.
	MessageSizeLimit int

	ReadBufferSize  int
	WriteBufferSize int
}

func (c Config) authTimeout() time.Duration {
	if c.AuthTimeout == 0 {
		return DefaultAuthTimeout
	}
	return c.AuthTimeout
}

func (c Config) writeTimeout() time.Duration {
	if c.WriteTimeout == 0 {
		return DefaultWriteTimeout
	}
	return c.WriteTimeout
}

func (c Config) messageSizeLimit() int {
	if c.MessageSizeLimit == 0 {
		return DefaultMessageSizeLimit
	}
	return c.MessageSizeLimit
}
