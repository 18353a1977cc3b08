// Package numerator provides document auto-numbering (SAL-2026-00001).
// Counters live in the store behind a Sequencer, so numbers follow the
// surrounding transaction when the sequencer reads it from context.
package numerator

import (
	"context"
	"fmt"
	"time"
)

// Sequencer is the persistent counter store.
// NextValue adds increment to the counter for key (creating it at 0) and
// returns the new value.
type Sequencer interface {
	NextValue(ctx context.Context, key string, increment int64) (int64, error)
}

// Service provides document numbering functionality.
type Service struct {
	seq Sequencer
}

// New creates a numerator over the given sequencer.
func New(seq Sequencer) *Service {
	return &Service{seq: seq}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "SAL", "RCV")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year" or "never"
	ResetPeriod string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// GetNextNumber bumps the stored counter and formats the result.
// Pattern: PREFIX-YEAR-XXXXX (e.g., SAL-2026-00001). Inside a transaction the
// numbers are gapless because an aborted caller rolls the bump back.
func (s *Service) GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error) {
	if s == nil || s.seq == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	num, err := s.seq.NextValue(ctx, s.buildKey(cfg, period), 1)
	if err != nil {
		return "", fmt.Errorf("next number: %w", err)
	}
	return s.formatNumber(cfg, period, num), nil
}

// buildKey creates the sequence key based on config and period.
func (s *Service) buildKey(cfg Config, period time.Time) string {
	if cfg.ResetPeriod == "year" {
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	}
	return cfg.Prefix
}

// formatNumber creates the final number string.
func (s *Service) formatNumber(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// Next generates the next number using default config with prefix.
func (s *Service) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	return s.GetNextNumber(ctx, DefaultConfig(prefix), at)
}
