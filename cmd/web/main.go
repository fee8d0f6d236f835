// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/woodguard/internal/app"
	"github.com/relabs-tech/woodguard/internal/config"
	"github.com/relabs-tech/woodguard/internal/logging"
)

func main() {
	configPath := flag.String("config", "./woodguard_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting woodguard web server (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger := logging.Must(logging.WithLevel(cfg.LogLevel))
	defer logger.Sync()

	if err := app.RunWeb(cfg, logger); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
