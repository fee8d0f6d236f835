// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package spectral classifies a sample window by the peak FFT magnitude in
// each activity band.
package spectral

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/woodguard/internal/accel"
)

// DefaultThreshold is the bin magnitude a band peak must exceed.
const DefaultThreshold = 0.3

// Settings fixes the transform and the classification rule.
type Settings struct {
	SampleRateHz float64
	FFTSize      int
	Bands        []Band
	Threshold    float64
	LogSpectrum  bool // log every bin at debug level
}

func DefaultSettings() Settings {
	return Settings{
		SampleRateHz: 1000,
		FFTSize:      1024,
		Bands:        DefaultBands(),
		Threshold:    DefaultThreshold,
	}
}

func (s Settings) validate() error {
	if s.SampleRateHz <= 0 {
		return errors.New("sample rate must be positive")
	}
	if s.FFTSize < 4 || s.FFTSize&(s.FFTSize-1) != 0 {
		return fmt.Errorf("FFT size %d must be a power of two >= 4", s.FFTSize)
	}
	if s.Threshold < 0 {
		return fmt.Errorf("threshold %g must not be negative", s.Threshold)
	}
	return ValidateBands(s.Bands)
}

// Result is the outcome of one classification. It is not retained across
// phases.
type Result struct {
	Category   Category `json:"category"`
	Message    string   `json:"message"`
	Peaks      Peaks    `json:"peaks"`
	DominantHz float64  `json:"dominant_hz"`
	Samples    int      `json:"samples"`
	Threshold  float64  `json:"threshold"`
}

// workspace is the transform scratch memory for one Classify call.
type workspace struct {
	fft   *fourier.FFT
	seq   []float64
	coeff []complex128
	mags  []float64
}

// Classifier runs a fixed-size real FFT over sample windows. Scratch memory is
// pooled and returned on every exit path of Classify.
type Classifier struct {
	cfg Settings
	log *zap.Logger

	pool  sync.Pool
	inUse atomic.Int64
}

// NewClassifier validates cfg and prepares the workspace pool.
func NewClassifier(cfg Settings, log *zap.Logger) (*Classifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("spectral: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Classifier{cfg: cfg, log: log.Named("spectral")}
	n := cfg.FFTSize
	c.pool.New = func() any {
		return &workspace{
			fft:   fourier.NewFFT(n),
			seq:   make([]float64, n),
			coeff: make([]complex128, n/2+1),
			mags:  make([]float64, n/2),
		}
	}
	return c, nil
}

func (c *Classifier) acquire() *workspace {
	c.inUse.Add(1)
	return c.pool.Get().(*workspace)
}

func (c *Classifier) release(w *workspace) {
	c.pool.Put(w)
	c.inUse.Add(-1)
}

// BinHz returns the centre frequency of bin i.
func (c *Classifier) BinHz(i int) float64 {
	return float64(i) * c.cfg.SampleRateHz / float64(c.cfg.FFTSize)
}

// Classify zero-pads buf to the FFT size, folds the magnitude of bins
// 1..N/2-1 into per-band peaks and resolves one category. Samples beyond the
// FFT size are ignored. An empty buffer classifies as None.
func (c *Classifier) Classify(buf *accel.Buffer) Result {
	w := c.acquire()
	defer c.release(w)

	res := Result{
		Category:  None,
		Peaks:     make(Peaks, len(c.cfg.Bands)),
		Samples:   buf.Len(),
		Threshold: c.cfg.Threshold,
	}
	for _, b := range c.cfg.Bands {
		res.Peaks[b.Category] = 0
	}
	if buf.Len() == 0 {
		res.Message = res.Category.Describe()
		c.log.Debug("empty window, nothing to analyze")
		return res
	}

	n := c.cfg.FFTSize
	vals := buf.Values()
	for i := range w.seq {
		if i < len(vals) {
			w.seq[i] = float64(vals[i])
		} else {
			w.seq[i] = 0
		}
	}
	w.coeff = w.fft.Coefficients(w.coeff, w.seq)

	w.mags[0] = 0 // DC is excluded
	for i := 1; i < n/2; i++ {
		hz := c.BinHz(i)
		mag := cmplx.Abs(w.coeff[i])
		w.mags[i] = mag
		if c.cfg.LogSpectrum {
			c.log.Debug("bin", zap.Int("i", i), zap.Float64("hz", hz), zap.Float64("magnitude", mag))
		}
		for _, b := range c.cfg.Bands {
			if b.Contains(hz) {
				if mag > res.Peaks[b.Category] {
					res.Peaks[b.Category] = mag
				}
				break
			}
		}
	}

	if floats.Max(w.mags) > 0 {
		res.DominantHz = c.BinHz(floats.MaxIdx(w.mags))
	}
	res.Category = Resolve(res.Peaks, c.cfg.Threshold)
	res.Message = res.Category.Describe()

	c.log.Debug("window classified",
		zap.Stringer("category", res.Category),
		zap.Int("samples", res.Samples),
		zap.Float64("dominant_hz", res.DominantHz),
		zap.Any("peaks", res.Peaks),
	)
	return res
}
