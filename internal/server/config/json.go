package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/chunksync/internal/flagx"
)

// JsonConfig is the DTO for the optional JSON configuration file. Interval
// fields are accepted as whole seconds.
type JsonConfig struct {
	StorageRoot         string `json:"storage_root"`
	EndpointAddr        string `json:"endpoint_addr"`
	VerifyChunkReads    bool   `json:"verify_chunk_reads"`
	EventPollTimeoutSec int64  `json:"event_poll_timeout_seconds"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags, if any. A missing flag means no file is loaded; an
// unreadable or invalid file panics, since the operator explicitly asked
// for it.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.StorageRoot != "" {
		config.StorageRoot = c.StorageRoot
	}
	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	config.VerifyChunkReads = c.VerifyChunkReads
	if c.EventPollTimeoutSec > 0 {
		config.EventPollTimeout = time.Duration(c.EventPollTimeoutSec) * time.Second
	}
}
