package assemble

import "fmt"

// ErrorKind classifies an assembly violation. All assembly violations are
// batch-fatal: the existing output directory is left untouched.
type ErrorKind string

const (
	// KindDuplicateIdentifier means two entry fragments carry the same id.
	KindDuplicateIdentifier ErrorKind = "duplicate_identifier"

	// KindDanglingImageReference means the document references an image
	// that is not present in the staged tree.
	KindDanglingImageReference ErrorKind = "dangling_image_reference"

	// KindMalformedOutput means the assembled document is not well-formed
	// XML.
	KindMalformedOutput ErrorKind = "malformed_output"
)

// Error reports a violated output invariant.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("assemble: %s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("assemble: %s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("assemble: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("assemble: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }
