package billing

import "errors"

var (
	// ErrNoText is returned when a document yields no extractable text.
	ErrNoText = errors.New("billing: no document text")
	// ErrUnrecognizedFormat is returned when no known bill layout matches.
	ErrUnrecognizedFormat = errors.New("billing: unrecognized bill format")
	// ErrFieldParse is returned when a matched layout holds a malformed field.
	ErrFieldParse = errors.New("billing: field parse")
)
