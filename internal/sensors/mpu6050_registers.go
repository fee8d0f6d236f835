// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "fmt"

// MPU-6050 register addresses used by the FIFO acquisition path.
const (
	regSmplrtDiv   = 0x19 // SMPLRT_DIV: Sample Rate = Gyro_Output_Rate / (1 + SMPLRT_DIV)
	regConfig      = 0x1A // CONFIG: DLPF_CFG in bits 2:0
	regAccelConfig = 0x1C // ACCEL_CONFIG: AFS_SEL in bits 4:3
	regFIFOEn      = 0x23 // FIFO_EN: ACCEL_FIFO_EN is bit 3
	regIntStatus   = 0x3A // INT_STATUS: FIFO_OFLOW_INT is bit 4
	regUserCtrl    = 0x6A // USER_CTRL: FIFO_EN bit 6, FIFO_RESET bit 2
	regPwrMgmt1    = 0x6B // PWR_MGMT_1: DEVICE_RESET bit 7, SLEEP bit 6, CLKSEL 2:0
	regFIFOCountH  = 0x72 // FIFO_COUNTH, followed by FIFO_COUNTL
	regFIFORW      = 0x74 // FIFO_R_W
	regWhoAmI      = 0x75 // WHO_AM_I
)

// Bit masks.
const (
	bitAccelFIFOEn   = 1 << 3
	bitFIFOOverflow  = 1 << 4
	bitUserFIFOEn    = 1 << 6
	bitUserFIFOReset = 1 << 2
	bitDeviceReset   = 1 << 7
	bitSleep         = 1 << 6

	maskDLPF      = 0x07
	maskAccelFS   = 0x18
	shiftAccelFS  = 3
	maskClockSel  = 0x07
	clockPLLXGyro = 0x01
)

const (
	// DefaultAddress is the I2C address with AD0 tied low.
	DefaultAddress = 0x68

	// whoAmIValue is the WHO_AM_I response of a genuine MPU-6050.
	whoAmIValue = 0x68

	// FIFOCapacity is the size of the hardware FIFO in bytes.
	FIFOCapacity = 1024
)

// Accelerometer full-scale selections (AFS_SEL).
const (
	AccelRange2G  byte = 0
	AccelRange4G  byte = 1
	AccelRange8G  byte = 2
	AccelRange16G byte = 3
)

var registerNames = map[byte]string{
	regSmplrtDiv:   "SMPLRT_DIV",
	regConfig:      "CONFIG",
	regAccelConfig: "ACCEL_CONFIG",
	regFIFOEn:      "FIFO_EN",
	regIntStatus:   "INT_STATUS",
	regUserCtrl:    "USER_CTRL",
	regPwrMgmt1:    "PWR_MGMT_1",
	regFIFOCountH:  "FIFO_COUNT",
	regFIFORW:      "FIFO_R_W",
	regWhoAmI:      "WHO_AM_I",
}

func registerName(reg byte) string {
	if name, ok := registerNames[reg]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", reg)
}
