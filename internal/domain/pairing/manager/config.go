// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"fmt"
	"time"
)

// Config holds the lifecycle timings and limits of the pairing domain.
type Config struct {
	// DefaultCountryCode is prepended on the single retry of a rejected
	// pairing-code request.
	DefaultCountryCode string

	SessionTTL         time.Duration
	CodeRequestDelay   time.Duration // between opening the connection and the first code request
	StabilizationDelay time.Duration // before reading back credential fragments
	CloseDelay         time.Duration // after export, before closing the connection
	CloseGrace         time.Duration // after closing, before deleting storage

	MaxSessions      int     // 0 = unlimited
	CodeRequestRate  float64 // outbound code requests per second, 0 = unlimited
	CodeRequestBurst int

	BrandName string

	// StorageRetention is how old orphaned credential storage must be before
	// the sweep purges it. 0 disables orphan purging.
	StorageRetention time.Duration

	// ReleaseTimeout bounds connection close and storage deletion.
	ReleaseTimeout time.Duration
	// SendTimeout bounds delivery of the export message.
	SendTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultCountryCode: "94",
		SessionTTL:         10 * time.Minute,
		CodeRequestDelay:   time.Second,
		StabilizationDelay: 2 * time.Second,
		CloseDelay:         3 * time.Second,
		CloseGrace:         5 * time.Second,
		CodeRequestBurst:   1,
		BrandName:          "web-pair",
		StorageRetention:   time.Hour,
		ReleaseTimeout:     10 * time.Second,
		SendTimeout:        30 * time.Second,
	}
}

func (c Config) validate() error {
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL)
	}
	for name, d := range map[string]time.Duration{
		"code request delay":  c.CodeRequestDelay,
		"stabilization delay": c.StabilizationDelay,
		"close delay":         c.CloseDelay,
		"close grace":         c.CloseGrace,
		"storage retention":   c.StorageRetention,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max sessions must not be negative, got %d", c.MaxSessions)
	}
	if c.CodeRequestRate < 0 {
		return fmt.Errorf("code request rate must not be negative, got %v", c.CodeRequestRate)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ReleaseTimeout <= 0 {
		c.ReleaseTimeout = 10 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.CodeRequestBurst <= 0 {
		c.CodeRequestBurst = 1
	}
	return c
}
