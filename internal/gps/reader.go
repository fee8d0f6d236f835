// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// ErrNoFix is returned when no valid RMC sentence was seen.
var ErrNoFix = errors.New("gps: no valid fix")

// ScanFix reads NMEA sentences from r and returns the first valid RMC fix.
// It gives up after maxLines lines or at end of input.
func ScanFix(r io.Reader, maxLines int) (Fix, error) {
	reader := bufio.NewReader(r)
	for n := 0; n < maxLines; n++ {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			// noisy receivers emit partial sentences; skip them
			if sentence, perr := nmea.Parse(line); perr == nil && sentence.DataType() == nmea.TypeRMC {
				if fix := FromRMC(sentence.(nmea.RMC)); fix.Valid() {
					return fix, nil
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Fix{}, fmt.Errorf("gps: read: %w", err)
		}
	}
	return Fix{}, ErrNoFix
}

// ReadFix opens the receiver's serial port and waits for one valid fix.
func ReadFix(portName string, baud uint, maxLines int) (Fix, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        portName,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return Fix{}, fmt.Errorf("gps: open %s: %w", portName, err)
	}
	defer port.Close()

	return ScanFix(port, maxLines)
}
