package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type probe struct {
	name  string
	check Check
}

// Monitor runs registered probes on a cron schedule and caches the result for
// the health endpoint.
type Monitor struct {
	probes []probe

	status  Status
	mu      sync.RWMutex
	timeout time.Duration
	cron    *cron.Cron
	logger  *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval < time.Second {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		timeout: 3 * time.Second,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
	}
	if m.timeout > interval {
		m.timeout = interval
	}

	schedule := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	_, _ = m.cron.AddFunc(schedule, func() {
		m.Refresh(context.Background())
	})
	return m
}

// Register adds a named probe. Call before Start.
func (m *Monitor) Register(name string, check Check) {
	if check == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes = append(m.probes, probe{name: name, check: check})
}

// Start probes once synchronously and then on every tick.
func (m *Monitor) Start() {
	m.Refresh(context.Background())
	m.cron.Start()
}

// Stop halts the scheduler, waiting for a running probe or ctx.
func (m *Monitor) Stop(ctx context.Context) {
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

func (m *Monitor) IsOnline() bool {
	return m.GetStatus().Healthy()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	services := make(map[string]bool, len(m.status.Services))
	for k, v := range m.status.Services {
		services[k] = v
	}
	return Status{Services: services, LastCheck: m.status.LastCheck}
}

// Names lists the registered probes in sorted order.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.probes))
	for _, p := range m.probes {
		names = append(names, p.name)
	}
	sort.Strings(names)
	return names
}

// Refresh runs every probe now and stores the outcome.
func (m *Monitor) Refresh(ctx context.Context) {
	m.mu.RLock()
	probes := append([]probe(nil), m.probes...)
	m.mu.RUnlock()

	services := make(map[string]bool, len(probes))
	for _, p := range probes {
		services[p.name] = m.run(ctx, p)
	}

	m.mu.Lock()
	m.status = Status{Services: services, LastCheck: time.Now().UTC()}
	m.mu.Unlock()
}

func (m *Monitor) run(ctx context.Context, p probe) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := p.check(probeCtx); err != nil {
		m.logger.Warn("health probe failed", zap.String("service", p.name), zap.Error(err))
		return false
	}
	return true
}
