package images

import "fmt"

// ErrorKind classifies why a source image could not be processed.
type ErrorKind string

const (
	// KindUnsupportedFormat means the source bytes are not in any format
	// the pipeline decodes.
	KindUnsupportedFormat ErrorKind = "unsupported_format"

	// KindDecodeFailed means the format was recognized but the data is
	// corrupt.
	KindDecodeFailed ErrorKind = "decode_failed"
)

// Error reports a failed source image. Processing failures degrade the owning
// entry's image to missing; they never fail a build.
type Error struct {
	Kind ErrorKind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("image %s: %s: %v", e.Key, e.Kind, e.Err)
	}
	return fmt.Sprintf("image: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
