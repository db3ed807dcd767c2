// Package config assembles the supporter-monitor daemon's runtime
// configuration from CLI flags, translating them into the bounds and
// addresses the rest of the process needs.
package config

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/overlaycast/supporter-monitor/internal/monitor"
)

var (
	ErrIngressAddrRequired = errors.New("config: ingress listen address is required")
	ErrMetricsAddrRequired = errors.New("config: metrics listen address is required")
)

const (
	DefaultIngressAddr = "0.0.0.0:7400"
	DefaultMetricsAddr = "127.0.0.1:2112"
	DefaultLogLevel    = "info"
)

// Config holds everything cmd/supporter-monitor needs to wire up a process:
// the monitor's classification bounds plus the ambient listen addresses,
// stats file, and log level.
type Config struct {
	// IngressAddr is where the peer-facing gRPC service
	// (internal/ingress) listens.
	IngressAddr string

	// MetricsAddr is where the Prometheus /metrics endpoint listens.
	MetricsAddr string

	// StatsFile, if non-empty, receives one tab-separated snapshot line
	// per tick (spec §6). Empty disables the sink.
	StatsFile string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// AssignmentTTL bounds how long the historical assignment counter
	// remembers a peer with no new assignment. Zero means never evict,
	// matching the original's unbounded map.
	AssignmentTTL time.Duration

	// PeerRequiredMsgs, PeerTimeoutBound, IsAliveTimeoutBound,
	// PeerRemovalTime, and TickInterval override monitor.Config's
	// corresponding defaults when non-zero.
	PeerRequiredMsgs    int
	PeerTimeoutBound    time.Duration
	IsAliveTimeoutBound time.Duration
	PeerRemovalTime     time.Duration
	TickInterval        time.Duration

	// SupporterDialInsecure records that the supporter RPC dispatcher dials
	// with plaintext transport credentials. cmd/supporter-monitor does not
	// read it: the dispatcher always dials with insecure credentials, and no
	// TLS option exists.
	SupporterDialInsecure bool

	// MaxConcurrency bounds how many supporters are contacted at once
	// during a single probe or dispatch round.
	MaxConcurrency int
}

// Default returns a Config populated with defaults, ready to have CLI flags
// layered on top.
func Default() *Config {
	return &Config{
		IngressAddr:           DefaultIngressAddr,
		MetricsAddr:           DefaultMetricsAddr,
		LogLevel:              DefaultLogLevel,
		SupporterDialInsecure: true,
		MaxConcurrency:        8,
	}
}

func (c *Config) Validate() error {
	if c.IngressAddr == "" {
		return ErrIngressAddrRequired
	}
	if c.MetricsAddr == "" {
		return ErrMetricsAddrRequired
	}
	return nil
}

// MonitorConfig builds the monitor.Config this Config describes, overriding
// spec defaults wherever the field was explicitly set.
func (c *Config) MonitorConfig(clock clockwork.Clock) *monitor.Config {
	mc := monitor.NewConfig(clock)
	if c.PeerRequiredMsgs > 0 {
		mc.PeerRequiredMsgs = c.PeerRequiredMsgs
	}
	if c.PeerTimeoutBound > 0 {
		mc.PeerTimeoutBound = c.PeerTimeoutBound
	}
	if c.IsAliveTimeoutBound > 0 {
		mc.IsAliveTimeoutBound = c.IsAliveTimeoutBound
	}
	if c.PeerRemovalTime > 0 {
		mc.PeerRemovalTime = c.PeerRemovalTime
	}
	if c.TickInterval > 0 {
		mc.TickInterval = c.TickInterval
	}
	return mc
}
