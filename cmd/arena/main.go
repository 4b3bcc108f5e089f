// Package main starts the arena service and handles termination.
//
// The process hosts match orchestration, the tournament engine, and
// the account API behind one HTTP listener.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	arenacmd "github.com/louisbranch/gambit.space/internal/cmd/arena"
)

func main() {
	cfg, err := arenacmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[ARENA] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := arenacmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
