package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dmitrijs2005/chunksync/internal/server"
	"github.com/dmitrijs2005/chunksync/internal/server/config"
)

// usage: chunksyncd <storage_root> <tcp_port> [flags]
func main() {
	cfg := config.LoadConfig()

	args := positionalArgs(os.Args[1:])
	if len(args) > 0 {
		cfg.StorageRoot = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil || port <= 0 || port > 65535 {
			fmt.Fprintf(os.Stderr, "invalid port %q\n", args[1])
			fmt.Fprintln(os.Stderr, "usage: chunksyncd <storage_root> <tcp_port>")
			os.Exit(1)
		}
		cfg.EndpointAddr = fmt.Sprintf(":%d", port)
	}
	if len(args) > 2 {
		fmt.Fprintln(os.Stderr, "usage: chunksyncd <storage_root> <tcp_port>")
		os.Exit(1)
	}

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

// positionalArgs strips flags (and their values) from args, leaving the
// positional storage-root and port arguments.
func positionalArgs(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if len(a) > 0 && a[0] == '-' {
			// A flag; skip its value when given as a separate argument.
			if !hasEquals(a) && !isBoolFlag(a) && i+1 < len(args) && (len(args[i+1]) == 0 || args[i+1][0] != '-') {
				i++
			}
			continue
		}
		out = append(out, a)
	}
	return out
}

func hasEquals(s string) bool {
	for _, c := range s {
		if c == '=' {
			return true
		}
	}
	return false
}

func isBoolFlag(s string) bool {
	return s == "-v" || s == "--v"
}
