// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// MPU6050 is a register-level driver for the FIFO path of an MPU-6050 on I2C.
type MPU6050 struct {
	dev *i2c.Dev
}

// NewMPU6050 binds a driver to addr on bus. No bus traffic happens until the
// first call.
func NewMPU6050(bus i2c.Bus, addr uint16) *MPU6050 {
	return &MPU6050{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

func (m *MPU6050) readReg(reg byte) (byte, error) {
	var b [1]byte
	if err := m.dev.Tx([]byte{reg}, b[:]); err != nil {
		return 0, fmt.Errorf("mpu6050: read %s: %w", registerName(reg), err)
	}
	return b[0], nil
}

func (m *MPU6050) writeReg(reg, value byte) error {
	if err := m.dev.Tx([]byte{reg, value}, nil); err != nil {
		return fmt.Errorf("mpu6050: write %s: %w", registerName(reg), err)
	}
	return nil
}

// updateReg performs a read-modify-write of the bits selected by mask.
func (m *MPU6050) updateReg(reg, mask, value byte) error {
	cur, err := m.readReg(reg)
	if err != nil {
		return err
	}
	return m.writeReg(reg, (cur&^mask)|(value&mask))
}

func (m *MPU6050) setBit(reg, bit byte, on bool) error {
	var v byte
	if on {
		v = bit
	}
	return m.updateReg(reg, bit, v)
}

func (m *MPU6050) Reset() error {
	return m.writeReg(regPwrMgmt1, bitDeviceReset)
}

func (m *MPU6050) Wake() error {
	return m.updateReg(regPwrMgmt1, bitSleep|maskClockSel, clockPLLXGyro)
}

func (m *MPU6050) TestConnection() bool {
	id, err := m.readReg(regWhoAmI)
	if err != nil {
		return false
	}
	return id&0x7E == whoAmIValue
}

func (m *MPU6050) SetFIFOEnabled(enabled bool) error {
	return m.setBit(regUserCtrl, bitUserFIFOEn, enabled)
}

// ResetFIFO sets the self-clearing FIFO_RESET bit.
func (m *MPU6050) ResetFIFO() error {
	return m.setBit(regUserCtrl, bitUserFIFOReset, true)
}

func (m *MPU6050) SetAccelFIFOEnabled(enabled bool) error {
	return m.setBit(regFIFOEn, bitAccelFIFOEn, enabled)
}

func (m *MPU6050) SetDLPFMode(mode byte) error {
	if mode > 7 {
		return fmt.Errorf("mpu6050: DLPF mode must be 0-7, got %d", mode)
	}
	return m.updateReg(regConfig, maskDLPF, mode)
}

func (m *MPU6050) SetSampleRateDivider(div byte) error {
	return m.writeReg(regSmplrtDiv, div)
}

func (m *MPU6050) SetFullScaleAccelRange(fs byte) error {
	if fs > AccelRange16G {
		return fmt.Errorf("mpu6050: accel range must be 0-3, got %d", fs)
	}
	return m.updateReg(regAccelConfig, maskAccelFS, fs<<shiftAccelFS)
}

func (m *MPU6050) FIFOCount() (int, error) {
	var b [2]byte
	if err := m.dev.Tx([]byte{regFIFOCountH}, b[:]); err != nil {
		return 0, fmt.Errorf("mpu6050: read %s: %w", registerName(regFIFOCountH), err)
	}
	return int(b[0])<<8 | int(b[1]), nil
}

func (m *MPU6050) ReadFIFO(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if err := m.dev.Tx([]byte{regFIFORW}, p); err != nil {
		return fmt.Errorf("mpu6050: read %d FIFO bytes: %w", len(p), err)
	}
	return nil
}

// FIFOOverflow reads INT_STATUS. Reading clears the latched flags.
func (m *MPU6050) FIFOOverflow() (bool, error) {
	st, err := m.readReg(regIntStatus)
	if err != nil {
		return false, err
	}
	return st&bitFIFOOverflow != 0, nil
}

var _ Device = (*MPU6050)(nil)

// RegisterValue is one register snapshot.
type RegisterValue struct {
	Addr  byte   `json:"addr"`
	Name  string `json:"name"`
	Value byte   `json:"value"`
}

// dumpOrder lists the registers that can be read without side effects.
// FIFO_R_W is left out since reading it pops the FIFO.
var dumpOrder = []byte{
	regSmplrtDiv, regConfig, regAccelConfig, regFIFOEn, regIntStatus,
	regUserCtrl, regPwrMgmt1, regFIFOCountH, regWhoAmI,
}

// DumpRegisters reads every configuration register in address order.
// INT_STATUS clears on read, so a dump also clears a latched overflow.
func (m *MPU6050) DumpRegisters() ([]RegisterValue, error) {
	out := make([]RegisterValue, 0, len(dumpOrder))
	for _, reg := range dumpOrder {
		v, err := m.readReg(reg)
		if err != nil {
			return out, err
		}
		out = append(out, RegisterValue{Addr: reg, Name: registerName(reg), Value: v})
	}
	return out, nil
}
