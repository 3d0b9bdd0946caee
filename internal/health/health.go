// Package health reports whether the service and its backing stores are
// reachable.
//
//	checks := health.NewManager(cfg.Version, health.WithTimeout(3*time.Second))
//	checks.Register(health.NewPingChecker("database", repo.Ping))
//	checks.Register(health.NewPingChecker("redis", store.Ping))
//	e.GET("/health", checks.Live)
//	e.GET("/health/ready", checks.Ready)
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the result of probing one dependency.
type Check struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Report is the readiness body. Its status is the worst of its checks.
type Report struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) Check
}

type checkerFunc struct {
	name string
	fn   func(ctx context.Context) Check
}

func (c checkerFunc) Name() string                    { return c.name }
func (c checkerFunc) Check(ctx context.Context) Check { return c.fn(ctx) }

// Manager runs the registered checkers on demand.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	version  string
	timeout  time.Duration
	logger   *zap.Logger
}

type Option func(*Manager)

// WithTimeout bounds a whole readiness run.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger reports failing checks to l.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(version string, opts ...Option) *Manager {
	m := &Manager{version: version, timeout: 5 * time.Second, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	m.checkers = append(m.checkers, c)
	m.mu.Unlock()
}

// RegisterFunc registers fn under name. The name is filled in on the
// returned Check when fn leaves it empty.
func (m *Manager) RegisterFunc(name string, fn func(ctx context.Context) Check) {
	m.Register(checkerFunc{name: name, fn: fn})
}

// Check probes every dependency concurrently. Results keep registration order.
func (m *Manager) Check(ctx context.Context) *Report {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	results := make([]Check, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			res := c.Check(ctx)
			if res.Name == "" {
				res.Name = c.Name()
			}
			if res.Status == "" {
				res.Status = StatusUnhealthy
			}
			res.LatencyMs = time.Since(start).Milliseconds()
			results[i] = res
		}()
	}
	wg.Wait()

	report := &Report{Status: StatusHealthy, Version: m.version, Timestamp: time.Now().UTC(), Checks: results}
	for _, res := range results {
		if res.Status != StatusHealthy {
			m.logger.Warn("health check failing",
				zap.String("check", res.Name),
				zap.String("status", string(res.Status)),
				zap.String("message", res.Message),
			)
		}
		report.Status = worst(report.Status, res.Status)
	}
	return report
}

func worst(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

type liveResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Live answers without touching any dependency.
func (m *Manager) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, liveResponse{Status: "ok", Version: m.version})
}

// Ready answers with the full report, and 503 when a dependency is down.
func (m *Manager) Ready(c echo.Context) error {
	report := m.Check(c.Request().Context())
	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, report)
}

// PingChecker is healthy while ping succeeds.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (p *PingChecker) Name() string { return p.name }

func (p *PingChecker) Check(ctx context.Context) Check {
	if err := p.ping(ctx); err != nil {
		return Check{Name: p.name, Status: StatusUnhealthy, Message: err.Error()}
	}
	return Check{Name: p.name, Status: StatusHealthy, Message: "connected"}
}
