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

	log.Println("starting woodguard console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	if err := app.RunConsoleMQTT(cfg, logging.Must(logging.WithLevel(cfg.LogLevel))); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
