package auxiliary

import (
	"time"

	"github.com/okian/nbaetl/pkg/logger"
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithEventCount sets how many events the log holds.
func WithEventCount(n int) Option {
	return func(e *Extractor) {
		if n >= 0 {
			e.eventCount = n
		}
	}
}

// WithStats replaces the stat sheet rows.
func WithStats(lines []StatLine) Option {
	return func(e *Extractor) { e.stats = lines }
}

// WithClock sets the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}
