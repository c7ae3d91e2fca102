// Package tmuxctl manages the tmux sessions backing remote terminals:
// creation, listing, TTL cleanup and PTY attachment. Sessions live on the
// regular tmux server and carry an "arc4de-" name prefix so that unrelated
// user sessions are never touched.
package tmuxctl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionPrefix marks tmux sessions owned by this server.
const SessionPrefix = "arc4de-"

// ErrSessionNotFound is returned for operations on unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionInfo is the externally visible session metadata.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	TmuxName  string    `json:"tmux_name"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Config for a Manager.
type Config struct {
	// SocketPath optionally targets a dedicated tmux server socket instead
	// of the user's default server.
	SocketPath string
	// SessionTTL after which idle sessions are reclaimed by the cleanup
	// loop. Zero disables TTL cleanup.
	SessionTTL time.Duration
	// Width and Height of newly created sessions.
	Width  int
	Height int
}

type registryEntry struct {
	name      string
	createdAt time.Time
}

// Manager wraps the tmux CLI for session lifecycle operations. tmux itself
// does not store custom metadata, so display names and creation times live
// in an in-memory registry that is reconciled against live tmux sessions
// on every List call.
type Manager struct {
	config Config

	mu       sync.Mutex
	registry map[string]registryEntry

	// run executes a tmux command, split out for tests.
	run func(args ...string) (string, error)
}

func NewManager(config Config) *Manager {
	if config.Width == 0 {
		config.Width = 200
	}
	if config.Height == 0 {
		config.Height = 50
	}
	m := &Manager{
		config:   config,
		registry: make(map[string]registryEntry),
	}
	m.run = m.runTmux
	return m
}

func (m *Manager) runTmux(args ...string) (string, error) {
	full := m.tmuxArgs(args...)
	output, err := exec.Command("tmux", full...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tmux %s: %w (%s)", args[0], err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

func (m *Manager) tmuxArgs(args ...string) []string {
	if m.config.SocketPath == "" {
		return args
	}
	return append([]string{"-S", m.config.SocketPath}, args...)
}

// Create starts a new detached tmux session with a generated id.
func (m *Manager) Create(name string) (SessionInfo, error) {
	sessionID := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	tmuxName := SessionPrefix + sessionID
	now := time.Now().UTC()

	_, err := m.run("new-session", "-d", "-s", tmuxName,
		"-x", fmt.Sprintf("%d", m.config.Width), "-y", fmt.Sprintf("%d", m.config.Height))
	if err != nil {
		return SessionInfo{}, fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	m.registry[sessionID] = registryEntry{name: name, createdAt: now}
	m.mu.Unlock()

	log.Info().Str("session_id", sessionID).Str("name", name).Msg("terminal session created")
	return SessionInfo{
		SessionID: sessionID,
		Name:      name,
		TmuxName:  tmuxName,
		State:     "detached",
		CreatedAt: now,
	}, nil
}

// List returns all managed sessions currently alive on the tmux server.
func (m *Manager) List() ([]SessionInfo, error) {
	output, err := m.run("list-sessions", "-F", "#{session_name}:#{session_attached}")
	if err != nil {
		// tmux exits non-zero when the server is not running, which just
		// means there are no sessions.
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var sessions []SessionInfo
	for _, live := range parseSessions(output) {
		entry := m.registry[live.sessionID]
		name := entry.name
		if name == "" {
			name = live.sessionID
		}
		sessions = append(sessions, SessionInfo{
			SessionID: live.sessionID,
			Name:      name,
			TmuxName:  SessionPrefix + live.sessionID,
			State:     live.state,
			CreatedAt: entry.createdAt,
		})
	}
	return sessions, nil
}

// Exists reports whether a managed session is alive.
func (m *Manager) Exists(sessionID string) bool {
	_, err := m.run("has-session", "-t", SessionPrefix+sessionID)
	return err == nil
}

// Kill terminates a managed session.
func (m *Manager) Kill(sessionID string) error {
	if !m.Exists(sessionID) {
		return ErrSessionNotFound
	}
	if _, err := m.run("kill-session", "-t", SessionPrefix+sessionID); err != nil {
		return fmt.Errorf("kill session: %w", err)
	}
	m.mu.Lock()
	delete(m.registry, sessionID)
	m.mu.Unlock()
	log.Info().Str("session_id", sessionID).Msg("terminal session killed")
	return nil
}

// SendKeys types a command into a managed session followed by Enter,
// used to launch a plugin CLI in a fresh session.
func (m *Manager) SendKeys(sessionID, keys string) error {
	if !m.Exists(sessionID) {
		return ErrSessionNotFound
	}
	if _, err := m.run("send-keys", "-t", SessionPrefix+sessionID, keys, "Enter"); err != nil {
		return fmt.Errorf("send keys: %w", err)
	}
	return nil
}

// CleanupExpired kills sessions older than the configured TTL and returns
// their ids. Sessions without a registry entry (created before a restart)
// are left alone since their age is unknown.
func (m *Manager) CleanupExpired() ([]string, error) {
	if m.config.SessionTTL == 0 {
		return nil, nil
	}
	sessions, err := m.List()
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-m.config.SessionTTL)

	var removed []string
	for _, session := range sessions {
		if session.CreatedAt.IsZero() || !session.CreatedAt.Before(cutoff) {
			continue
		}
		if err := m.Kill(session.SessionID); err != nil {
			log.Warn().Err(err).Str("session_id", session.SessionID).Msg("error killing expired session")
			continue
		}
		removed = append(removed, session.SessionID)
	}
	return removed, nil
}

type liveSession struct {
	sessionID string
	state     string
}

// parseSessions parses list-sessions output in the
// "#{session_name}:#{session_attached}" format, keeping only managed
// sessions.
func parseSessions(output string) []liveSession {
	var sessions []liveSession
	for _, line := range strings.Split(output, "\n") {
		name, attached, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || !strings.HasPrefix(name, SessionPrefix) {
			continue
		}
		state := "detached"
		if attached != "0" && attached != "" {
			state = "active"
		}
		sessions = append(sessions, liveSession{
			sessionID: strings.TrimPrefix(name, SessionPrefix),
			state:     state,
		})
	}
	return sessions
}

// CleanupService periodically reclaims expired sessions. Registered with
// the service manager on server start.
type CleanupService struct {
	Manager  *Manager
	Interval time.Duration
}

func (s *CleanupService) Run(ctx context.Context) error {
	interval := s.Interval
	if interval == 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.Manager.CleanupExpired()
			if err != nil {
				log.Warn().Err(err).Msg("error cleaning up expired sessions")
				continue
			}
			if len(removed) > 0 {
				log.Info().Strs("session_ids", removed).Msg("expired terminal sessions reclaimed")
			}
		}
	}
}
