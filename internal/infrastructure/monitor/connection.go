package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const checkTimeout = 3 * time.Second

// CheckFunc returns nil when the dependency is reachable.
type CheckFunc func(ctx context.Context) error

// BufferSizer reports how many writes are waiting for replay.
type BufferSizer interface {
	Len() (int, error)
}

type dependency struct {
	name     string
	check    CheckFunc
	critical bool
}

// Monitor periodically checks registered dependencies. IsOnline is true while
// every critical dependency answers.
type Monitor struct {
	mu     sync.RWMutex
	deps   []dependency
	buffer BufferSizer
	status Status

	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(buffer BufferSizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		buffer:   buffer,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
		status:   Status{Healthy: true, Dependencies: map[string]DependencyState{}},
	}
}

// Register adds a dependency check. Call before Start.
func (m *Monitor) Register(name string, check CheckFunc, critical bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps = append(m.deps, dependency{name: name, check: check, critical: critical})
}

func (m *Monitor) Start() {
	m.Refresh(context.Background())
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Healthy
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.status
	out.Dependencies = make(map[string]DependencyState, len(m.status.Dependencies))
	for k, v := range m.status.Dependencies {
		out.Dependencies[k] = v
	}
	return out
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once and stores the result.
func (m *Monitor) Refresh(ctx context.Context) {
	m.mu.RLock()
	deps := append([]dependency(nil), m.deps...)
	prevHealthy := m.status.Healthy
	m.mu.RUnlock()

	status := Status{
		Healthy:      true,
		Dependencies: make(map[string]DependencyState, len(deps)),
		LastCheck:    time.Now(),
	}
	for _, p := range deps {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.check(checkCtx)
		cancel()

		state := DependencyState{Up: err == nil, Critical: p.critical}
		if err != nil {
			state.Error = err.Error()
			if p.critical {
				status.Healthy = false
			}
		}
		status.Dependencies[p.name] = state
	}

	if m.buffer != nil {
		size, err := m.buffer.Len()
		if err != nil {
			m.logger.Warn("buffer size check failed", zap.Error(err))
		}
		status.BufferSize = size
	}

	if prevHealthy != status.Healthy {
		m.logger.Warn("dependency health changed", zap.Bool("healthy", status.Healthy))
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}
