package dataset

import "errors"

var (
	// ErrCorrupt is returned when a container fails structural validation.
	ErrCorrupt = errors.New("corrupt dataset container")

	// ErrUnknownGroup is returned when a container has no group of the requested name.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrRowOutOfRange is returned for a row index outside a group.
	ErrRowOutOfRange = errors.New("row index out of range")

	// ErrIDTooLong is returned when a record id exceeds the layout's id width.
	ErrIDTooLong = errors.New("record id exceeds id width")

	// ErrStagingClosed is returned when a staging area is used after Publish or Discard.
	ErrStagingClosed = errors.New("staging area already published or discarded")
)
