package dedupe

type options struct {
	capacity int
}

// Option applies a configuration option to a Tracker.
type Option func(*options)

// WithCapacity pre-sizes the tracker for n keys.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}
