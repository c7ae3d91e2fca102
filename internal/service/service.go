// Package service runs the server's background loops, such as tmux
// session cleanup, under one shared lifecycle.
package service

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Service is a long-running loop that exits when its context is
// canceled.
type Service interface {
	Run(ctx context.Context) error
}

// Manager starts registered services together and waits for them on
// shutdown. The first service error cancels the rest.
type Manager struct {
	mu       sync.Mutex
	services []Service
	group    *errgroup.Group
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds services to run. Must be called before Run.
func (m *Manager) Register(s ...Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, s...)
}

// Run starts all registered services, each in its own goroutine.
func (m *Manager) Run(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.services) == 0 {
		return
	}
	group, ctx := errgroup.WithContext(ctx)
	for _, s := range m.services {
		group.Go(func() error {
			return s.Run(ctx)
		})
	}
	m.group = group
}

// Wait blocks until every running service has returned.
func (m *Manager) Wait() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.group == nil {
		return nil
	}
	return m.group.Wait()
}
