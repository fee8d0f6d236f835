// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"

	"github.com/relabs-tech/woodguard/internal/config"
	"github.com/relabs-tech/woodguard/internal/sensors"
)

// registerDumper is implemented by sensors.MPU6050.
type registerDumper interface {
	DumpRegisters() ([]sensors.RegisterValue, error)
}

// printRegisters writes one line per register with hex and binary values.
func printRegisters(w io.Writer, dev registerDumper) error {
	regs, err := dev.DumpRegisters()
	for _, r := range regs {
		fmt.Fprintf(w, "0x%02X %-12s 0x%02X %08b\n", r.Addr, r.Name, r.Value, r.Value)
	}
	return err
}

// RunRegisterDump prints the MPU-6050 configuration registers. The sensor
// rail must already be powered.
func RunRegisterDump(cfg *config.Config, w io.Writer) error {
	bus, err := sensors.OpenBus(cfg.I2CBus, cfg.I2CClockHz)
	if err != nil {
		return err
	}
	defer bus.Close()

	if cfg.PowerGPIO != "" {
		rail, err := sensors.NewGPIORail(cfg.PowerGPIO)
		if err != nil {
			return err
		}
		if err := rail.SetRailState(true); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "MPU6050 @ 0x%02X on %q\n", cfg.MPUI2CAddr, cfg.I2CBus)
	return printRegisters(w, sensors.NewMPU6050(bus, cfg.MPUI2CAddr))
}
