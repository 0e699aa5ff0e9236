package dedupe

// Option applies a configuration option to the deduper.
type Option func(*window)

// WithMaxSize bounds how many ids are remembered. Zero or less keeps every id.
func WithMaxSize(maxSize int) Option {
	return func(d *window) {
		d.maxSize = maxSize
	}
}
