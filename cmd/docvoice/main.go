// Command docvoice turns documents into speech and recordings into
// time-aligned transcripts.
//
// Usage:
//
//	docvoice [flags] <command> [args]
//
// Commands:
//
//	speak       - Read a document aloud into a WAV file
//	transcribe  - Transcribe the audio track of a recording
//	sweep       - Remove stale job workspaces
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nephrolytics-ai/docvoice/cmd/docvoice/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
