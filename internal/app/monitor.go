// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/relabs-tech/woodguard/internal/config"
	"github.com/relabs-tech/woodguard/internal/gps"
	"github.com/relabs-tech/woodguard/internal/scheduler"
	"github.com/relabs-tech/woodguard/internal/sensors"
	"github.com/relabs-tech/woodguard/internal/storage"
	"github.com/relabs-tech/woodguard/internal/telemetry"
	"github.com/relabs-tech/woodguard/internal/timing"
)

// RunMonitor drives the MPU-6050 on the configured I2C bus until the cycle
// budget is spent or ctx is cancelled. Reaching the end of the budget is a
// normal stop and returns nil.
func RunMonitor(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	clock := timing.Wall()

	bus, err := sensors.OpenBus(cfg.I2CBus, cfg.I2CClockHz)
	if err != nil {
		return err
	}
	defer bus.Close()
	dev := sensors.NewMPU6050(bus, cfg.MPUI2CAddr)
	log.Info("MPU6050 bus opened",
		zap.String("bus", cfg.I2CBus),
		zap.Int64("clock_hz", cfg.I2CClockHz),
		zap.String("addr", fmt.Sprintf("0x%02X", cfg.MPUI2CAddr)),
	)

	var rail sensors.PowerRail = sensors.NoopRail{}
	if cfg.PowerGPIO != "" {
		if rail, err = sensors.NewGPIORail(cfg.PowerGPIO); err != nil {
			return err
		}
	}

	halter := ledHalter{clock: clock, log: log}
	if cfg.StatusLEDGPIO != "" {
		if halter.led, err = sensors.NewStatusLED(cfg.StatusLEDGPIO); err != nil {
			return err
		}
	}

	store, err := storage.OpenSQLite(cfg.DBPath, clock, log)
	if err != nil {
		return err
	}
	defer store.Close()

	reporters := []telemetry.Reporter{telemetry.NewLogSink(log)}

	// Telemetry uplinks are optional: the device keeps sampling without them.
	client, err := telemetry.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDMonitor, log)
	if err != nil {
		log.Warn("MQTT unavailable, reporting to log only", zap.Error(err))
	} else {
		defer client.Disconnect(250)
		reporters = append(reporters, telemetry.NewMQTTSink(client, cfg.TopicDetection, cfg.TopicPhase, log))
	}

	if cfg.DisplayEnabled {
		if screen, err := telemetry.OpenDisplay(bus); err != nil {
			log.Warn("display unavailable", zap.Error(err))
		} else {
			reporters = append(reporters, telemetry.NewDisplaySink(screen, cfg.TotalPhases, log))
		}
	}

	reporter := telemetry.Multi(reporters...)
	if cfg.GPSSerialPort != "" {
		fix, err := gps.ReadFix(cfg.GPSSerialPort, uint(cfg.GPSBaudRate), 200)
		if err != nil {
			log.Warn("no GPS fix, detections will not be geotagged", zap.Error(err))
		} else {
			log.Info("GPS fix acquired", zap.Float64("lat", fix.Latitude), zap.Float64("lon", fix.Longitude))
			reporter = telemetry.WithLocation(reporter, fix)
		}
	}

	p, err := buildPipeline(cfg, dev, rail, clock, store, reporter, halter, log)
	if err != nil {
		return err
	}

	// A failed first setup is retried by every phase.
	if err := p.Lifecycle.Setup(); err != nil {
		log.Warn("initial sensor setup failed", zap.Error(err))
	}

	err = p.Scheduler.Run(ctx)
	switch {
	case errors.Is(err, scheduler.ErrHalted):
		log.Info("monitor halted", zap.Int("remaining", p.Scheduler.Remaining()))
		return nil
	case err != nil:
		return err
	}
	log.Info("all phases done", zap.Int("remaining", p.Scheduler.Remaining()))
	return nil
}
