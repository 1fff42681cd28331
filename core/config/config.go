package config

import "time"

// DSCPMax bounds the Differentiated Services Codepoint value accepted for
// outgoing packets. Valid values must be in range [0, 63].
const DSCPMax = 63

// DefaultTimeout bounds a single request/response exchange.
const DefaultTimeout = 5 * time.Second

// DefaultInterval separates consecutive monitor samples.
const DefaultInterval = 64 * time.Second

// DefaultOffsetAlarm is the clock offset magnitude above which the monitor
// logs a warning.
const DefaultOffsetAlarm = 128 * time.Millisecond

// DefaultMetricsAddr serves the Prometheus endpoint.
const DefaultMetricsAddr = "127.0.0.1:8080"
