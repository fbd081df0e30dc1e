// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nowplaying/cmd"
	"nowplaying/pkg/build"
)

// main is the entry point. The program flow is divided into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands (list, analyze, version) if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the capture stream and start the spectrum pipeline
//   - Watch media sessions and fan out frames and snapshots
//   - Run the terminal panel
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	if err := build.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", build.GetBuildInfo().Name, err)
		os.Exit(1)
	}
}
