// Package healthcheck aggregates dependency checks into the /health, /live
// and /ready endpoints.
package healthcheck

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status of one dependency or of the whole service
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// checkTimeout bounds a whole round of checks
const checkTimeout = 10 * time.Second

// Millis is a duration reported in whole milliseconds
type Millis time.Duration

func (m Millis) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, time.Duration(m).Milliseconds(), 10), nil
}

// Check is the outcome of one dependency check
type Check struct {
	Name        string      `json:"name"`
	Status      Status      `json:"status"`
	Message     string      `json:"message,omitempty"`
	LastChecked time.Time   `json:"last_checked"`
	Duration    Millis      `json:"duration_ms"`
	Metadata    interface{} `json:"metadata,omitempty"`
}

// Response is the aggregated report. Checks are sorted by name.
type Response struct {
	Status        Status    `json:"status"`
	Version       string    `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	Checks        []Check   `json:"checks"`
	TotalDuration Millis    `json:"total_duration_ms"`
}

type Checker interface {
	Check(ctx context.Context) Check
}

// CheckFunc adapts a function reporting status, message and metadata to a
// Checker. Name and timing are filled in around it.
type CheckFunc func(ctx context.Context) (Status, string, interface{})

func (f CheckFunc) Check(ctx context.Context) Check {
	start := time.Now()
	status, message, metadata := f(ctx)
	return Check{
		Status:      status,
		Message:     message,
		Metadata:    metadata,
		LastChecked: start,
		Duration:    Millis(time.Since(start)),
	}
}

// Ping reports unhealthy when ping fails. stats, if set, supplies metadata
// for a successful ping.
func Ping(ping func(ctx context.Context) error, stats func() interface{}) CheckFunc {
	return func(ctx context.Context) (Status, string, interface{}) {
		if err := ping(ctx); err != nil {
			return StatusUnhealthy, err.Error(), nil
		}
		if stats == nil {
			return StatusHealthy, "", nil
		}
		return StatusHealthy, "", stats()
	}
}

// NewDatabaseChecker pings db and reports its pool. A pool with every
// connection in use is degraded.
func NewDatabaseChecker(db *sql.DB) CheckFunc {
	return func(ctx context.Context) (Status, string, interface{}) {
		if err := db.PingContext(ctx); err != nil {
			return StatusUnhealthy, err.Error(), nil
		}
		stats := db.Stats()
		pool := map[string]interface{}{
			"open":       stats.OpenConnections,
			"in_use":     stats.InUse,
			"idle":       stats.Idle,
			"max_open":   stats.MaxOpenConnections,
			"wait_count": stats.WaitCount,
		}
		if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
			return StatusDegraded, "connection pool exhausted", pool
		}
		return StatusHealthy, "", pool
	}
}

// HealthCheck runs the registered checkers and caches the last report
type HealthCheck struct {
	version  string
	logger   *zap.Logger
	mu       sync.RWMutex
	checkers map[string]Checker
	last     *Response
	cacheTTL time.Duration
}

func New(version string, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		version:  version,
		logger:   logger,
		checkers: make(map[string]Checker),
		cacheTTL: 5 * time.Second,
	}
}

// Register adds checker under name, replacing any earlier one
func (h *HealthCheck) Register(name string, checker Checker) {
	h.mu.Lock()
	h.checkers[name] = checker
	h.mu.Unlock()
}

// SetCacheTTL sets how long a report is reused. Zero disables caching.
func (h *HealthCheck) SetCacheTTL(ttl time.Duration) {
	h.mu.Lock()
	h.cacheTTL = ttl
	h.mu.Unlock()
}

// Check runs every checker concurrently. The service is unhealthy if any
// check is, degraded if any check is degraded, healthy otherwise.
func (h *HealthCheck) Check(ctx context.Context) Response {
	h.mu.RLock()
	if h.last != nil && time.Since(h.last.Timestamp) < h.cacheTTL {
		cached := *h.last
		h.mu.RUnlock()
		return cached
	}
	names := make([]string, 0, len(h.checkers))
	checkers := make([]Checker, 0, len(h.checkers))
	for name, c := range h.checkers {
		names = append(names, name)
		checkers = append(checkers, c)
	}
	h.mu.RUnlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checks := make([]Check, len(checkers))
	var wg sync.WaitGroup
	for i := range checkers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checks[i] = checkers[i].Check(ctx)
			checks[i].Name = names[i]
		}(i)
	}
	wg.Wait()
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	overall := StatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case c.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}

	response := Response{
		Status:        overall,
		Version:       h.version,
		Timestamp:     start,
		Checks:        checks,
		TotalDuration: Millis(time.Since(start)),
	}
	h.mu.Lock()
	h.last = &response
	h.mu.Unlock()
	return response
}

// Handler serves the full report, with 503 when unhealthy
func (h *HealthCheck) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := h.Check(r.Context())
		code := http.StatusOK
		if response.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		h.writeJSON(w, code, response)
	}
}

// LivenessHandler answers as long as the process serves HTTP
func (h *HealthCheck) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	}
}

// ReadinessHandler keeps a degraded instance in rotation and takes an
// unhealthy one out.
func (h *HealthCheck) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := h.Check(r.Context())
		if response.Status == StatusUnhealthy {
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "not_ready",
				"reason": "a required dependency is unhealthy",
				"checks": response.Checks,
			})
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ready",
			"timestamp": response.Timestamp,
		})
	}
}

func (h *HealthCheck) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("Failed to write health response", zap.Error(err))
	}
}
