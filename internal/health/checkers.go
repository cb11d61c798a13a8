// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
)

// PingChecker turns a ping function into a Checker. A failing ping is unhealthy.
type PingChecker struct {
	name string
	ping func(context.Context) error
}

// NewPingChecker wraps ping, typically a credential backend's Ping.
func NewPingChecker(name string, ping func(context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// CapacityChecker reports degraded when live sessions reach the configured cap.
type CapacityChecker struct {
	active func() int
	max    int
}

// NewCapacityChecker creates a checker; max <= 0 means unlimited.
func NewCapacityChecker(active func() int, max int) *CapacityChecker {
	return &CapacityChecker{active: active, max: max}
}

func (c *CapacityChecker) Name() string { return "sessions" }

func (c *CapacityChecker) Check(context.Context) CheckResult {
	n := c.active()
	if c.max > 0 && n >= c.max {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("%d/%d sessions, at capacity", n, c.max),
		}
	}
	if c.max > 0 {
		return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d/%d sessions", n, c.max)}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d sessions", n)}
}

// ShutdownChecker is unhealthy once the process has started draining.
type ShutdownChecker struct {
	draining func() bool
}

// NewShutdownChecker creates a checker backed by draining.
func NewShutdownChecker(draining func() bool) *ShutdownChecker {
	return &ShutdownChecker{draining: draining}
}

func (c *ShutdownChecker) Name() string { return "shutdown" }

func (c *ShutdownChecker) Check(context.Context) CheckResult {
	if c.draining() {
		return CheckResult{Status: StatusUnhealthy, Message: "shutting down"}
	}
	return CheckResult{Status: StatusHealthy}
}
