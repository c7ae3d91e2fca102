package tunnel

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const cloudflaredBanner = `2026-08-31T10:00:00Z INF Thank you for trying Cloudflare Tunnel.
2026-08-31T10:00:01Z INF +--------------------------------------------------------------+
2026-08-31T10:00:01Z INF |  https://quick-example-tunnel-name.trycloudflare.com         |
2026-08-31T10:00:01Z INF +--------------------------------------------------------------+
`

func TestParseURL(t *testing.T) {
	require.Equal(t, "https://quick-example-tunnel-name.trycloudflare.com", ParseURL(cloudflaredBanner))
	require.Equal(t, "", ParseURL("no url here"))
	require.Equal(t, "", ParseURL("https://example.com is not a tunnel"))
}

// fakeStart wires the manager to scripted stderr output instead of a real
// cloudflared subprocess.
func fakeStart(m *Manager, output string, ports *[]int) {
	m.start = func(port int) (*exec.Cmd, io.ReadCloser, error) {
		if ports != nil {
			*ports = append(*ports, port)
		}
		return nil, io.NopCloser(strings.NewReader(output)), nil
	}
}

func TestStartSessionParsesURL(t *testing.T) {
	m := NewManager()
	var ports []int
	fakeStart(m, cloudflaredBanner, &ports)

	url, err := m.StartSession(context.Background(), 8000)
	require.NoError(t, err)
	require.Equal(t, "https://quick-example-tunnel-name.trycloudflare.com", url)
	require.Equal(t, []int{8000}, ports)

	// Second start is a no-op returning the existing URL.
	url2, err := m.StartSession(context.Background(), 8000)
	require.NoError(t, err)
	require.Equal(t, url, url2)
	require.Len(t, ports, 1)
}

func TestStartSessionNoURL(t *testing.T) {
	m := NewManager()
	m.urlTimeout = 100 * time.Millisecond
	fakeStart(m, "2026-08-31T10:00:00Z ERR failed to connect\n", nil)

	_, err := m.StartSession(context.Background(), 8000)
	require.ErrorIs(t, err, ErrNoURL)
	require.Empty(t, m.Info().SessionURL)
}

func TestPreviewTunnels(t *testing.T) {
	m := NewManager()
	fakeStart(m, cloudflaredBanner, nil)

	url, err := m.StartPreview(context.Background(), 3000)
	require.NoError(t, err)
	require.NotEmpty(t, url)

	info := m.Info()
	require.Equal(t, []Preview{{Port: 3000, URL: url}}, info.Previews)

	m.StopPreview(3000)
	require.Empty(t, m.Info().Previews)
}

func TestInfoEmpty(t *testing.T) {
	m := NewManager()
	info := m.Info()
	require.Empty(t, info.SessionURL)
	require.NotNil(t, info.Previews)
	require.Empty(t, info.Previews)
}
