package health

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds upstream probe configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Upstream is one external dependency to watch, such as the identity
// directory or the audit webhook receiver.
type Upstream struct {
	Name     string
	Endpoint string
}

const (
	StatusUnknown  = "unknown"
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(upstream string, success bool)

// Monitor runs periodic probes against the configured upstreams and tracks
// their status. A single failed probe does not flip an upstream to
// degraded; it takes FailThreshold consecutive failures, and one success
// to recover.
type Monitor struct {
	upstreams  []Upstream
	httpClient *http.Client
	mu         sync.Mutex
	failCounts map[string]int
	statuses   map[string]string
	cfg        Config
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a Monitor. Upstreams with an empty endpoint are skipped.
func New(upstreams []Upstream, cfg Config, logger *zap.Logger) *Monitor {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	kept := make([]Upstream, 0, len(upstreams))
	statuses := make(map[string]string)
	for _, u := range upstreams {
		if u.Endpoint == "" {
			continue
		}
		kept = append(kept, u)
		statuses[u.Name] = StatusUnknown
	}

	return &Monitor{
		upstreams:  kept,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		failCounts: make(map[string]int),
		statuses:   statuses,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (m *Monitor) SetMetricsRecord(fn MetricsRecordFunc) {
	m.onMetrics = fn
}

// Statuses returns a copy of the current status per upstream.
func (m *Monitor) Statuses() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.statuses))
	for k, v := range m.statuses {
		out[k] = v
	}
	return out
}

// Start runs the probe loop until quit is signalled.
func (m *Monitor) Start(quit <-chan os.Signal) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CheckInterval-time.Second)
			m.CheckAll(ctx)
			cancel()
		case <-quit:
			return
		}
	}
}

// CheckAll probes every upstream concurrently.
func (m *Monitor) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup

	for _, u := range m.upstreams {
		wg.Add(1)
		go func(up Upstream) {
			defer wg.Done()

			success := m.probeEndpoint(ctx, up.Endpoint)

			if m.onMetrics != nil {
				m.onMetrics(up.Name, success)
			}

			m.mu.Lock()
			prevCount := m.failCounts[up.Name]
			if success {
				m.failCounts[up.Name] = 0
				m.statuses[up.Name] = StatusHealthy
			} else {
				m.failCounts[up.Name]++
				if m.failCounts[up.Name] >= m.cfg.FailThreshold {
					m.statuses[up.Name] = StatusDegraded
				}
			}
			count := m.failCounts[up.Name]
			m.mu.Unlock()

			if success && prevCount >= m.cfg.FailThreshold {
				m.logger.Info("health: upstream recovered", zap.String("upstream", up.Name))
			} else if count == m.cfg.FailThreshold {
				m.logger.Warn("health: upstream degraded",
					zap.String("upstream", up.Name),
					zap.String("endpoint", up.Endpoint),
					zap.Int("fail_count", count),
				)
			}
		}(u)
	}

	wg.Wait()
}

// probeEndpoint attempts HEAD then GET, returning true on any 2xx response.
func (m *Monitor) probeEndpoint(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := m.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return true
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err = m.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
