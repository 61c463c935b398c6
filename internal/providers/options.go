package providers

// Option tunes request parameters shared by every Brain adapter.
type Option func(*options)

type options struct {
	temperature float32
	maxTokens   int
}

// WithTemperature sets the sampling temperature. Zero keeps the backend default.
func WithTemperature(t float32) Option {
	return func(o *options) { o.temperature = t }
}

// WithMaxTokens caps the reply length. Zero keeps the backend default.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
