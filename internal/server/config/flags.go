package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/chunksync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-r string   storage root directory
//	-v          verify chunk digests on read
//	-p int      event long-poll timeout, seconds
//
// The function filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, so the server's positional arguments and the -c/-config
// flag pass through untouched.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-r", "-v", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.StorageRoot, "r", config.StorageRoot, "storage root directory")
	fs.BoolVar(&config.VerifyChunkReads, "v", config.VerifyChunkReads, "verify chunk digests on read")

	eventPollTimeout := fs.Int("p", int(config.EventPollTimeout.Seconds()), "event poll timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.EventPollTimeout = time.Duration(*eventPollTimeout) * time.Second
}
