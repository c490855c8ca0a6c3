package throughput

import (
	"sync"
	"time"

	"binancebridge/pkg/metrics"

	"go.uber.org/zap"
)

const DefaultReportEvery = 5000

// Window is the running count since the last report.
type Window struct {
	Count int
	Start time.Time
}

// Report summarises one completed window.
type Report struct {
	Count   int
	Elapsed time.Duration
	Rate    float64 // messages per second, 0 when Elapsed <= 0
}

// Monitor counts observed messages and logs the rate every reportEvery messages.
// It is safe for concurrent use; it never fails and never blocks on I/O.
type Monitor struct {
	mu          sync.Mutex
	window      Window
	reportEvery int
	now         func() time.Time
	metrics     *metrics.Collector
	logger      *zap.Logger
}

func NewMonitor(reportEvery int, m *metrics.Collector, logger *zap.Logger) *Monitor {
	return newMonitor(reportEvery, time.Now, m, logger)
}

func newMonitor(reportEvery int, now func() time.Time, m *metrics.Collector, logger *zap.Logger) *Monitor {
	if reportEvery <= 0 {
		reportEvery = DefaultReportEvery
	}
	return &Monitor{
		window:      Window{Start: now()},
		reportEvery: reportEvery,
		now:         now,
		metrics:     m,
		logger:      logger,
	}
}

// Observe records one message.
func (m *Monitor) Observe() {
	if r, ok := m.observe(); ok {
		m.metrics.SetThroughput(r.Rate)
		m.logger.Info("throughput",
			zap.Int("messages", r.Count),
			zap.Duration("elapsed", r.Elapsed),
			zap.Float64("msg_per_sec", r.Rate))
	}
}

// observe advances the window and returns a report when it completes.
func (m *Monitor) observe() (Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window.Count++
	if m.window.Count < m.reportEvery {
		return Report{}, false
	}

	now := m.now()
	elapsed := now.Sub(m.window.Start)
	r := Report{Count: m.window.Count, Elapsed: elapsed}
	if elapsed > 0 {
		r.Rate = float64(m.window.Count) / elapsed.Seconds()
	}

	m.window = Window{Start: now}
	return r, true
}

// Snapshot returns a copy of the current window.
func (m *Monitor) Snapshot() Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window
}
