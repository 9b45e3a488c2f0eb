package format

// Option applies a configuration option to the Formatter.
type Option func(*Formatter)

// WithMaxLines caps the number of lines per message.
func WithMaxLines(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.maxLines = n
		}
	}
}

// WithMaxChars caps the size of a message in characters.
func WithMaxChars(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.maxChars = n
		}
	}
}
