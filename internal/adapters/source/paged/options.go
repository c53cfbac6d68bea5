package paged

import (
	"time"

	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/pkg/logger"
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(f *Fetcher) {
		if key != "" {
			f.client.SetAuthToken(key)
		}
	}
}

// WithTimeout bounds a single HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.SetTimeout(d)
		}
	}
}

// WithPerPage sets the page size requested from the API.
func WithPerPage(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.perPage = n
		}
	}
}

// WithPacing sets the delay between successful pages.
func WithPacing(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.pacing = d
		}
	}
}

// WithErrorCooldown sets the wait after a failed request.
func WithErrorCooldown(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.errorCooldown = d
		}
	}
}

// WithRateLimitDefault sets the wait after a 429 without Retry-After.
func WithRateLimitDefault(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.rateLimitDefault = d
		}
	}
}

// WithMaxAttempts bounds attempts per page, rate-limit waits included.
// Zero retries forever.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxAttempts = n
		}
	}
}

// WithDeadline bounds one Fetch call in wall time. Zero disables it.
func WithDeadline(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.deadline = d
		}
	}
}

// WithSleeper replaces the sleep used for pacing and backoff.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

// WithOutput persists every fetched resource under layout.
func WithOutput(w JSONWriter, layout model.Layout) Option {
	return func(f *Fetcher) {
		f.writer = w
		f.layout = layout
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}
