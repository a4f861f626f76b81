// Package main runs a kinetic Monte Carlo mobility simulation.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	kmccmd "github.com/louisbranch/morphkmc/internal/cmd/kmc"
	"github.com/louisbranch/morphkmc/internal/platform/config"
	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
	kmcapp "github.com/louisbranch/morphkmc/internal/services/kmc/app"
)

func main() {
	cfg, err := kmccmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[KMC] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kmccmd.Run(ctx, cfg); err != nil {
		var abort *kmcapp.WorkerAbortError
		if code := apperrors.CodeOf(err); code.IsConfiguration() && !errors.As(err, &abort) {
			config.Exitf("invalid configuration (%s): %v", code, err)
		}
		log.Fatalf("kmc run failed: %v", err)
	}
}
