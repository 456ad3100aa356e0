// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ServerConfiguration is the configuration for the sprinkler server.
type ServerConfiguration struct {
	// Server holds the HTTP/WebSocket server settings.
	Server ServerSettings `json:"server"`
	// Database holds the relational store coordinates and pool settings.
	Database DatabaseConfiguration `json:"database"`
	// Logging configures log level and format.
	Logging LoggingConfiguration `json:"logging"`
	// Pending configures the correlation table deadlines and the supervisor sweep.
	Pending PendingConfiguration `json:"pending"`
	// Controllers configures controller channel lifecycle handling.
	Controllers ControllerConfiguration `json:"controllers"`
	// Weather configures the geocoding lookup used to resolve garden coordinates.
	Weather WeatherConfiguration `json:"weather"`
	// Mail configures the irrigation notification hook.
	Mail MailConfiguration `json:"mail"`
	// SimulationMode disables outbound side effects that require real hardware.
	SimulationMode bool `json:"simulationMode"`
}

// ServerSettings holds bind addresses and ports.
type ServerSettings struct {
	// BindAddress is the IP address to listen on.
	BindAddress string `json:"bindAddress"`
	// Port is the port for the client and controller WebSocket endpoints.
	Port int `json:"port"`
	// MetricsPort is the port serving /metrics.
	MetricsPort int `json:"metricsPort"`
	// HealthPort is the port serving /healthz.
	HealthPort int `json:"healthPort"`
}

// DatabaseConfiguration holds the connection coordinates and pool limits for the
// relational store.
type DatabaseConfiguration struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	User     string `json:"user"`
	Password string `json:"password"`
	// MaxConnections caps the connection pool size.
	MaxConnections int32 `json:"maxConnections"`
	// MaxIdleTime is how long a connection may sit idle before it is closed.
	MaxIdleTime metav1.Duration `json:"maxIdleTime"`
	// ConnectTimeout bounds the time spent establishing a single connection.
	ConnectTimeout metav1.Duration `json:"connectTimeout"`
}

// LoggingConfiguration configures log level and format.
type LoggingConfiguration struct {
	// Level is one of debug, info, error.
	Level string `json:"level"`
	// Format is one of json, text.
	Format string `json:"format"`
}

// PendingConfiguration configures the per-family correlation deadlines and the
// supervisor sweep interval.
type PendingConfiguration struct {
	// SweepInterval is the interval of the supervisor sweep over all tables.
	SweepInterval metav1.Duration `json:"sweepInterval"`
	// IrrigationTTL is the idle ceiling for irrigation correlations. Progress
	// frames refresh the liveness.
	IrrigationTTL metav1.Duration `json:"irrigationTTL"`
	// MoistureTTL is the deadline for moisture query correlations.
	MoistureTTL metav1.Duration `json:"moistureTTL"`
	// AssignmentTTL is the deadline for hardware assignment correlations.
	AssignmentTTL metav1.Duration `json:"assignmentTTL"`
	// UpdateTTL is the deadline for plant update correlations.
	UpdateTTL metav1.Duration `json:"updateTTL"`
	// DeletionTTL is the deadline for plant deletion correlations.
	DeletionTTL metav1.Duration `json:"deletionTTL"`
}

// ControllerConfiguration configures controller channel lifecycle handling.
type ControllerConfiguration struct {
	// EvictStale enables closing controller channels whose last-seen exceeds
	// StaleThreshold. Disabled by default.
	EvictStale bool `json:"evictStale"`
	// StaleThreshold is the last-seen age beyond which a controller is evicted.
	StaleThreshold metav1.Duration `json:"staleThreshold"`
}

// WeatherConfiguration configures the geocoding lookup.
type WeatherConfiguration struct {
	// APIKey is the key for the weather/geocoding API.
	APIKey string `json:"apiKey"`
	// BaseURL overrides the geocoding endpoint, mainly for tests.
	BaseURL string `json:"baseURL"`
}

// MailConfiguration configures the irrigation notification hook.
type MailConfiguration struct {
	// Enabled toggles notification delivery. When disabled, notifications are
	// logged only.
	Enabled bool `json:"enabled"`
	// From is the sender address.
	From string `json:"from"`
	// SMTPHost and SMTPPort locate the mail relay.
	SMTPHost string `json:"smtpHost"`
	SMTPPort int    `json:"smtpPort"`
}
