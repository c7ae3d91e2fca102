// Package tunnel manages cloudflared quick tunnels that expose the local
// server (and optional preview ports) on public trycloudflare.com URLs.
package tunnel

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

var urlPattern = regexp.MustCompile(`https://[\w-]+\.trycloudflare\.com`)

// ParseURL extracts the first trycloudflare.com URL from cloudflared
// output. Returns "" when none is present.
func ParseURL(output string) string {
	return urlPattern.FindString(output)
}

// ErrNoURL is returned when cloudflared exits or goes quiet before
// printing its public URL.
var ErrNoURL = errors.New("tunnel: no public URL in cloudflared output")

// DefaultURLTimeout bounds how long to wait for cloudflared to print its
// public URL.
const DefaultURLTimeout = 15 * time.Second

// Preview is a tunneled local port.
type Preview struct {
	Port int    `json:"port"`
	URL  string `json:"url"`
}

// Info is the current tunnel state as served by the API.
type Info struct {
	SessionURL string    `json:"session_url,omitempty"`
	Previews   []Preview `json:"previews"`
}

type process struct {
	cmd *exec.Cmd
	url string
}

// startFunc launches a cloudflared tunnel for the given local port and
// returns the running command plus its stderr stream (cloudflared logs
// the public URL there). Replaceable in tests.
type startFunc func(port int) (*exec.Cmd, io.ReadCloser, error)

// Manager supervises cloudflared subprocesses: one session tunnel for the
// server itself plus any number of preview tunnels keyed by local port.
type Manager struct {
	urlTimeout time.Duration

	mu       sync.Mutex
	session  *process
	previews map[int]*process

	start startFunc
}

func NewManager() *Manager {
	return &Manager{
		urlTimeout: DefaultURLTimeout,
		previews:   map[int]*process{},
		start:      startCloudflared,
	}
}

// Available reports whether the cloudflared binary is on PATH.
func (m *Manager) Available() bool {
	_, err := exec.LookPath("cloudflared")
	return err == nil
}

func startCloudflared(port int) (*exec.Cmd, io.ReadCloser, error) {
	cmd := exec.Command("cloudflared", "tunnel", "--url", "http://localhost:"+strconv.Itoa(port))
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	return cmd, stderr, nil
}

// StartSession starts the main tunnel for the given local port and
// returns its public URL. Idempotent while a session tunnel is running.
func (m *Manager) StartSession(ctx context.Context, port int) (string, error) {
	m.mu.Lock()
	if m.session != nil {
		url := m.session.url
		m.mu.Unlock()
		log.Warn().Msg("session tunnel already running")
		return url, nil
	}
	m.mu.Unlock()

	p, err := m.launch(ctx, port)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.session = p
	m.mu.Unlock()
	log.Info().Str("url", p.url).Msg("session tunnel started")
	return p.url, nil
}

// StopSession terminates the session tunnel if one is running.
func (m *Manager) StopSession() {
	m.mu.Lock()
	p := m.session
	m.session = nil
	m.mu.Unlock()
	if p == nil {
		return
	}
	stopProcess(p.cmd)
	log.Info().Msg("session tunnel stopped")
}

// StartPreview tunnels an extra local port and returns its public URL.
func (m *Manager) StartPreview(ctx context.Context, port int) (string, error) {
	m.mu.Lock()
	if p, ok := m.previews[port]; ok {
		url := p.url
		m.mu.Unlock()
		return url, nil
	}
	m.mu.Unlock()

	p, err := m.launch(ctx, port)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.previews[port] = p
	m.mu.Unlock()
	log.Info().Int("port", port).Str("url", p.url).Msg("preview tunnel started")
	return p.url, nil
}

// StopPreview terminates the preview tunnel for the given port.
func (m *Manager) StopPreview(port int) {
	m.mu.Lock()
	p := m.previews[port]
	delete(m.previews, port)
	m.mu.Unlock()
	if p == nil {
		return
	}
	stopProcess(p.cmd)
	log.Info().Int("port", port).Msg("preview tunnel stopped")
}

// StopAll terminates every running tunnel.
func (m *Manager) StopAll() {
	m.StopSession()
	m.mu.Lock()
	ports := make([]int, 0, len(m.previews))
	for port := range m.previews {
		ports = append(ports, port)
	}
	m.mu.Unlock()
	for _, port := range ports {
		m.StopPreview(port)
	}
}

// Info snapshots the current tunnel URLs.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := Info{Previews: []Preview{}}
	if m.session != nil {
		info.SessionURL = m.session.url
	}
	for port, p := range m.previews {
		info.Previews = append(info.Previews, Preview{Port: port, URL: p.url})
	}
	return info
}

func (m *Manager) launch(ctx context.Context, port int) (*process, error) {
	cmd, stderr, err := m.start(port)
	if err != nil {
		return nil, err
	}
	url, err := m.readURL(ctx, stderr)
	if err != nil {
		stopProcess(cmd)
		return nil, err
	}
	// Keep draining stderr so cloudflared never blocks on a full pipe.
	go func() {
		_, _ = io.Copy(io.Discard, stderr)
	}()
	return &process{cmd: cmd, url: url}, nil
}

// readURL scans cloudflared's stderr until the public URL shows up, the
// stream ends, or the timeout passes.
func (m *Manager) readURL(ctx context.Context, stderr io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.urlTimeout)
	defer cancel()

	found := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if url := ParseURL(scanner.Text()); url != "" {
				found <- url
				return
			}
		}
		close(found)
	}()

	select {
	case url, ok := <-found:
		if !ok || url == "" {
			return "", ErrNoURL
		}
		return url, nil
	case <-ctx.Done():
		return "", ErrNoURL
	}
}

// stopProcess terminates a cloudflared subprocess, escalating to SIGKILL
// when it ignores SIGTERM.
func stopProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}
}
