// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/woodguard/internal/app"
	"github.com/relabs-tech/woodguard/internal/config"
	"github.com/relabs-tech/woodguard/internal/logging"
)

func main() {
	configPath := flag.String("config", "./woodguard_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting woodguard monitor (MPU6050 → FFT → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger := logging.Must(logging.WithLevel(cfg.LogLevel))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunMonitor(ctx, cfg, logger); err != nil && ctx.Err() == nil {
		log.Fatalf("fatal: %v", err)
	}
}
