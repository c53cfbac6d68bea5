package scraper

import (
	"time"

	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/pkg/logger"
)

// Option configures a Scraper.
type Option func(*Scraper)

// WithAttempts sets how many times the page is requested.
func WithAttempts(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithBackoffUnit scales the wait between attempts.
func WithBackoffUnit(d time.Duration) Option {
	return func(s *Scraper) {
		if d >= 0 {
			s.backoffUnit = d
		}
	}
}

// WithTableClass selects tables by CSS class.
func WithTableClass(class string) Option {
	return func(s *Scraper) {
		if class != "" {
			s.tableClass = class
		}
	}
}

// WithTimeout bounds a single page request.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.client.SetTimeout(d)
		}
	}
}

func WithSleeper(fn Sleeper) Option {
	return func(s *Scraper) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithOutput writes each extracted table under layout.
func WithOutput(w CSVWriter, layout model.Layout) Option {
	return func(s *Scraper) {
		s.writer = w
		s.layout = layout
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) {
		if l != nil {
			s.logger = l
		}
	}
}
