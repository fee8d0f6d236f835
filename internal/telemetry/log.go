// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink writes events to a zap logger, the device's serial console.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("telemetry")}
}

func (s *LogSink) Report(ev Event) {
	fields := []zap.Field{
		zap.String("kind", string(ev.Kind)),
		zap.Int("remaining", ev.Remaining),
	}
	if ev.Phase > 0 {
		fields = append(fields, zap.Int("phase", ev.Phase))
	}
	if ev.Attempt > 0 {
		fields = append(fields, zap.Int("attempt", ev.Attempt))
	}
	if ev.Err != "" {
		fields = append(fields, zap.String("error", ev.Err))
	}
	if ev.Result != nil {
		fields = append(fields,
			zap.Stringer("category", ev.Result.Category),
			zap.Any("peaks", ev.Result.Peaks),
			zap.Int("samples", ev.Result.Samples),
		)
	}
	if ev.Location != nil {
		fields = append(fields, zap.Float64("lat", ev.Location.Latitude), zap.Float64("lon", ev.Location.Longitude))
	}

	msg := ev.Message
	if msg == "" {
		msg = string(ev.Kind)
	}
	s.log.Log(levelFor(ev.Kind), msg, fields...)
}

func levelFor(k Kind) zapcore.Level {
	switch k {
	case KindInitFailed, KindOverflow, KindPersistFailed:
		return zapcore.WarnLevel
	case KindRemountFailed, KindPhaseSkipped:
		return zapcore.ErrorLevel
	case KindPhaseStart:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
