package dataset

// Option configures a Writer.
type Option func(*Writer)

// WithPrefix sets the file name prefix placed before the session id.
func WithPrefix(prefix string) Option {
	return func(w *Writer) {
		if prefix != "" {
			w.prefix = prefix
		}
	}
}
