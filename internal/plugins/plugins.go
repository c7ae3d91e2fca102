// Package plugins defines launchable session profiles: named CLI tools a
// terminal session can be started with, such as the plain shell or the
// Claude Code CLI. Plugins describe themselves to clients (display name,
// quick actions, health) and supply the command typed into a fresh
// session.
package plugins

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// QuickAction is a one-tap command a plugin exposes to clients.
type QuickAction struct {
	Label   string `json:"label"`
	Command string `json:"command"`
	Icon    string `json:"icon"`
}

// Health reports whether a plugin's CLI is usable on this host.
type Health struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

// Info is the API representation of a plugin.
type Info struct {
	Name         string        `json:"name"`
	DisplayName  string        `json:"display_name"`
	Command      string        `json:"command"`
	QuickActions []QuickAction `json:"quick_actions"`
	Health       Health        `json:"health"`
}

// Plugin is a session profile.
type Plugin interface {
	// Name is the slug identifier, i.e. "claude-code".
	Name() string
	// DisplayName is the human label.
	DisplayName() string
	// Command typed into a freshly created session, empty for the bare
	// shell.
	Command() string
	QuickActions() []QuickAction
	Health() Health
}

// Describe serializes a plugin for API responses.
func Describe(p Plugin) Info {
	return Info{
		Name:         p.Name(),
		DisplayName:  p.DisplayName(),
		Command:      p.Command(),
		QuickActions: p.QuickActions(),
		Health:       p.Health(),
	}
}

// Manager is the plugin registry. Registration happens at startup, reads
// come from API handlers.
type Manager struct {
	mu      sync.Mutex
	plugins map[string]Plugin
}

func NewManager(plugins ...Plugin) *Manager {
	m := &Manager{plugins: make(map[string]Plugin)}
	for _, p := range plugins {
		m.Register(p)
	}
	return m
}

// Register adds a plugin, replacing any previous one with the same name.
func (m *Manager) Register(p Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins[p.Name()] = p
}

// Get returns a plugin by slug name.
func (m *Manager) Get(name string) (Plugin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plugins[name]
	return p, ok
}

// List returns all registered plugins sorted by name.
func (m *Manager) List() []Plugin {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Describe returns API info for all registered plugins sorted by name.
func (m *Manager) Describe() []Info {
	plugins := m.List()
	infos := make([]Info, 0, len(plugins))
	for _, p := range plugins {
		infos = append(infos, Describe(p))
	}
	return infos
}

// LogHealth logs the availability of every registered plugin, called
// once at server start.
func (m *Manager) LogHealth() {
	for _, p := range m.List() {
		h := p.Health()
		if h.Available {
			log.Info().Str("plugin", p.Name()).Msg("plugin available")
		} else {
			log.Warn().Str("plugin", p.Name()).Str("reason", h.Message).Msg("plugin unavailable")
		}
	}
}
