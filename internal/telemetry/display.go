// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"fmt"
	"image"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/woodguard/internal/spectral"
)

// Screen is the part of an ssd1306.Dev the display sink draws on.
type Screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// OpenDisplay initializes a 128x64 SSD1306 panel on bus.
func OpenDisplay(bus i2c.Bus) (*ssd1306.Dev, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	return dev, nil
}

// DisplaySink shows the latest phase status on a small OLED.
type DisplaySink struct {
	screen Screen
	log    *zap.Logger
	total  int
}

// NewDisplaySink draws the splash screen and returns the sink. total is the
// number of phases per run, shown next to the phase index.
func NewDisplaySink(screen Screen, total int, log *zap.Logger) *DisplaySink {
	s := &DisplaySink{screen: screen, total: total, log: log.Named("display")}
	if err := s.draw([]string{"", "  WoodGuard", " listening..."}); err != nil {
		s.log.Warn("splash failed", zap.Error(err))
	}
	return s
}

func (s *DisplaySink) Report(ev Event) {
	lines := Lines(ev, s.total)
	if lines == nil {
		return
	}
	if err := s.draw(lines); err != nil {
		s.log.Warn("display update failed", zap.Error(err))
	}
}

// Lines returns the text shown for ev, or nil when the screen should keep its
// current content.
func Lines(ev Event, total int) []string {
	switch ev.Kind {
	case KindPhaseStart:
		return []string{
			fmt.Sprintf("Phase %d/%d", ev.Phase, total),
			fmt.Sprintf("Attempt %d", ev.Attempt),
			fmt.Sprintf("Cycles: %d", ev.Remaining),
		}
	case KindDetection:
		if ev.Result == nil {
			return nil
		}
		r := ev.Result
		return []string{
			fmt.Sprintf("Phase %d: %s", ev.Phase, r.Category),
			fmt.Sprintf("S:%6.1f A:%6.1f", r.Peaks[spectral.Saw], r.Peaks[spectral.Axe]),
			fmt.Sprintf("C:%6.1f", r.Peaks[spectral.Chainsaw]),
			fmt.Sprintf("Peak %.1f Hz", r.DominantHz),
			fmt.Sprintf("Cycles: %d", ev.Remaining),
		}
	case KindPhaseSkipped:
		return []string{
			fmt.Sprintf("Phase %d", ev.Phase),
			"SKIPPED",
			fmt.Sprintf("Cycles: %d", ev.Remaining),
		}
	case KindHalted:
		return []string{"", "    HALTED", " cycles spent"}
	default:
		return nil
	}
}

// Render draws up to five lines of text into a blank 128x64 frame.
func Render(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i >= 5 {
			break
		}
		drawer.Dot = fixed.P(0, 12+13*i)
		drawer.DrawBytes([]byte(line))
	}
	return img
}

func (s *DisplaySink) draw(lines []string) error {
	return s.screen.Draw(s.screen.Bounds(), Render(lines), image.Point{})
}
