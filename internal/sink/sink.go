// Package sink persists fills and equity samples produced by the engine.
package sink

import (
	"time"

	"papertrade/internal/logger"
	"papertrade/internal/venue"
)

// EquitySample is one point on the equity curve, taken once per tick.
type EquitySample struct {
	Timestamp  time.Time `json:"ts"`
	Equity     float64   `json:"equity"`
	Cash       float64   `json:"cash"`
	Realized   float64   `json:"realized"`
	Unrealized float64   `json:"unrealized"`
}

// Sink receives every executed fill and per-tick equity sample.
type Sink interface {
	LogTrade(rec venue.FillRecord) error
	LogEquity(sample EquitySample) error
	Close() error
}

// Multi fans records out to several sinks. A failing sink is logged and
// skipped so one bad writer cannot stall the tick loop.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Multi{sinks: out}
}

func (m *Multi) LogTrade(rec venue.FillRecord) error {
	for _, s := range m.sinks {
		if err := s.LogTrade(rec); err != nil {
			logger.Warnf("trade sink write failed: %v", err)
		}
	}
	return nil
}

func (m *Multi) LogEquity(sample EquitySample) error {
	for _, s := range m.sinks {
		if err := s.LogEquity(sample); err != nil {
			logger.Warnf("equity sink write failed: %v", err)
		}
	}
	return nil
}

func (m *Multi) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
