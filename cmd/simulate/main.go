package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/relabs-tech/woodguard/internal/app"
	"github.com/relabs-tech/woodguard/internal/config"
	"github.com/relabs-tech/woodguard/internal/logging"
	"github.com/relabs-tech/woodguard/internal/spectral"
)

func main() {
	configPath := flag.String("config", "./woodguard_config.txt", "path to configuration file")
	phases := flag.Int("phases", 0, "override TOTAL_PHASES (0 keeps the configured value)")
	failConn := flag.Int("fail-connections", 0, "number of sensor connection checks that fail")
	failPersist := flag.Int("fail-persist-every", 0, "fail every Nth storage write")
	publish := flag.Bool("publish", false, "publish telemetry to the MQTT broker")
	db := flag.String("db", "", "override DB_PATH")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := *config.Get()
	if *phases > 0 {
		cfg.TotalPhases = *phases
	}
	if *db != "" {
		cfg.DBPath = *db
	}

	logger := logging.Must(logging.WithLevel(cfg.LogLevel))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum, err := app.RunSimulation(ctx, &cfg, app.SimulationOptions{
		Scenario:         app.DefaultScenario(float64(cfg.SampleRateHz), cfg.FFTSize),
		FailConnections:  *failConn,
		PersistFailEvery: *failPersist,
		Publish:          *publish,
	}, logger)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	fmt.Printf("simulated %s\n", sum.Simulated)
	for _, c := range []spectral.Category{spectral.None, spectral.Saw, spectral.Axe, spectral.Chainsaw} {
		fmt.Printf("  %-9s %d\n", c, sum.Detections[c])
	}
	fmt.Printf("  skipped   %d\n", sum.Skipped)
	fmt.Printf("  windows   %d\n", sum.Windows)
	fmt.Printf("  remaining %d (halted=%t)\n", sum.Remaining, sum.Halted)
}
