package formdata

// Factory builds a fresh encoder over the same fields. Senders call it again
// for every retry since an encoder can only be read once.
type Factory func() (*Encoder, error)

// Static returns a Factory over fields whose values can be read more than
// once. []byte and string values qualify, files and readers do not.
func Static(fields []Field, opts *Options) Factory {
	return func() (*Encoder, error) {
		return New(fields, opts)
	}
}
