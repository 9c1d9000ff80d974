package parse

import "fmt"

// ErrorKind classifies why a page could not be turned into a catalog entry.
type ErrorKind string

const (
	// KindMalformedStructure means the page is missing the structural
	// landmarks the parser navigates by, such as the info box table.
	KindMalformedStructure ErrorKind = "malformed_structure"

	// KindMissingRequiredField means the structure was recognizable but a
	// field every entry must carry could not be extracted.
	KindMissingRequiredField ErrorKind = "missing_required_field"
)

// Error is returned when an entry page cannot be parsed. Optional fields that
// are merely absent never produce an Error; only structural damage does.
type Error struct {
	Kind  ErrorKind
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("parse: %s: %s: %v", e.Kind, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("parse: %s: %s", e.Kind, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("parse: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("parse: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func malformed(field string, err error) *Error {
	return &Error{Kind: KindMalformedStructure, Field: field, Err: err}
}

func missingField(field string) *Error {
	return &Error{Kind: KindMissingRequiredField, Field: field}
}
