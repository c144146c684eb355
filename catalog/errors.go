package catalog

import "errors"

var (
	// ErrMalformedRow is returned when a source row has fewer than three fields.
	ErrMalformedRow = errors.New("malformed record row")

	// ErrEmptyID is returned when a row's identifier field is empty.
	ErrEmptyID = errors.New("empty record id")
)
