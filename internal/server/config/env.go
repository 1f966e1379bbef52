package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envConfig mirrors Config for envconfig processing. All variables share
// the CHUNKSYNC prefix, e.g. CHUNKSYNC_STORAGE_ROOT.
type envConfig struct {
	StorageRoot         string `envconfig:"STORAGE_ROOT"`
	EndpointAddr        string `envconfig:"ENDPOINT_ADDR"`
	VerifyChunkReads    *bool  `envconfig:"VERIFY_CHUNK_READS"`
	EventPollTimeoutSec int64  `envconfig:"EVENT_POLL_TIMEOUT_SECONDS"`
}

func parseEnv(config *Config) {
	var c envConfig
	if err := envconfig.Process("chunksync", &c); err != nil {
		panic(err)
	}

	if c.StorageRoot != "" {
		config.StorageRoot = c.StorageRoot
	}
	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.VerifyChunkReads != nil {
		config.VerifyChunkReads = *c.VerifyChunkReads
	}
	if c.EventPollTimeoutSec > 0 {
		config.EventPollTimeout = time.Duration(c.EventPollTimeoutSec) * time.Second
	}
}
