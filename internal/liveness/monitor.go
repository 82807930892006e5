package liveness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/internal/metrics"
)

const sweepTimeout = time.Minute

// StaleMarker moves online devices silent since before cutoff to offline
type StaleMarker interface {
	MarkStaleOffline(ctx context.Context, cutoff time.Time) (int, error)
}

// Status describes the monitor for operators
type Status struct {
	Running               bool    `json:"running"`
	CheckIntervalSeconds  float64 `json:"check_interval_seconds"`
	OfflineTimeoutMinutes float64 `json:"offline_timeout_minutes"`
}

// Monitor periodically marks devices offline when they stop reporting.
// It never touches devices in maintenance.
type Monitor struct {
	devices  StaleMarker
	interval time.Duration
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger

	now func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewMonitor creates a liveness monitor sweeping every interval for devices silent longer than timeout
func NewMonitor(devices StaleMarker, interval, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Monitor {
	return &Monitor{
		devices:  devices,
		interval: interval,
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs one sweep right away, then one per interval until Stop.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	m.running = true
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stopChan, m.done)

	m.logger.Info("Liveness monitor started",
		zap.Duration("interval", m.interval),
		zap.Duration("offlineTimeout", m.timeout))
}

// Stop ends the loop and waits for it. A sweep in progress completes first.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Info("Liveness monitor stopped")
}

// Status reports whether the loop runs and with which settings
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Running:               m.running,
		CheckIntervalSeconds:  m.interval.Seconds(),
		OfflineTimeoutMinutes: m.timeout.Minutes(),
	}
}

// CheckOnce sweeps synchronously and returns how many devices went offline
func (m *Monitor) CheckOnce(ctx context.Context) (int, error) {
	started := m.now()
	cutoff := started.Add(-m.timeout)

	marked, err := m.devices.MarkStaleOffline(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	m.metrics.SweepCompleted(marked, time.Since(started))
	if marked > 0 {
		m.logger.Info("Devices marked offline",
			zap.Int("count", marked),
			zap.Time("cutoff", cutoff))
	} else {
		m.logger.Debug("Liveness sweep found no stale devices")
	}
	return marked, nil
}

func (m *Monitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sweep()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep errors are logged and the loop keeps going
func (m *Monitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := m.CheckOnce(ctx); err != nil {
		m.logger.Error("Liveness sweep failed", zap.Error(err))
	}
}
