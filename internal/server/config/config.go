// Package config handles configuration for the server process, including
// defaults, JSON overlay, environment variables and command-line flags.
package config

import (
	"time"
)

// Config holds runtime settings for the chunksync server.
//
// Fields:
//   - StorageRoot: directory holding the chunk store and client metadata.
//   - EndpointAddr: TCP bind address for the HTTP endpoint.
//   - VerifyChunkReads: recompute digests on every blob read.
//   - EventPollTimeout: how long a long-poll events request may park.
type Config struct {
	StorageRoot      string
	EndpointAddr     string
	VerifyChunkReads bool
	EventPollTimeout time.Duration
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.StorageRoot = "./chunksync-data"
	c.EndpointAddr = ":8080"
	c.VerifyChunkReads = false
	c.EventPollTimeout = 30 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line
// flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
