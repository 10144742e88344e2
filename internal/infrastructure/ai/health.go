// Package ai holds decorators shared by the model providers.
package ai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Pinger is a provider that can report whether its endpoint answers
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// HealthStatus is the result of a provider check
type HealthStatus struct {
	Provider  string        `json:"provider"`
	Healthy   bool          `json:"healthy"`
	Details   string        `json:"details,omitempty"`
	Latency   time.Duration `json:"latency"`
	LastCheck time.Time     `json:"last_check"`
}

// HealthChecker checks the configured model provider
type HealthChecker struct {
	provider Pinger
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHealthChecker creates a new provider health checker
func NewHealthChecker(provider Pinger, timeout time.Duration, logger *zap.Logger) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		provider: provider,
		timeout:  timeout,
		logger:   logger.Named("ai-health"),
	}
}

// CheckHealth pings the provider once
func (h *HealthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{Provider: h.provider.Name(), LastCheck: time.Now()}

	healthCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := h.provider.Ping(healthCtx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Details = fmt.Sprintf("Unhealthy: %v", err)
		h.logger.Warn("Model provider health check failed", zap.String("provider", status.Provider), zap.Error(err))
		return status
	}

	status.Healthy = true
	status.Details = "Healthy"
	return status
}

// Check returns an error when the provider is unreachable
func (h *HealthChecker) Check(ctx context.Context) error {
	if status := h.CheckHealth(ctx); !status.Healthy {
		return fmt.Errorf("%s: %s", status.Provider, status.Details)
	}
	return nil
}
