package pubstatic

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for image formats without an encoder.
	ErrUnsupportedFormat = errors.New("pubstatic: unsupported image format")
	// ErrLayoutNotFound is returned when an item names a layout that does not exist.
	ErrLayoutNotFound = errors.New("pubstatic: layout not found")
	// ErrLayoutCycle is returned when layouts reference each other in a loop.
	ErrLayoutCycle = errors.New("pubstatic: layout cycle")
	// ErrPermalinkConflict is returned when two items write the same output path.
	ErrPermalinkConflict = errors.New("pubstatic: output path conflict")
)

// ItemError ties a failure to the item that caused it.
type ItemError struct {
	InputPath string
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.InputPath, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// BuildError collects every item failure of a build.
type BuildError struct {
	Errors []error
}

func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("pubstatic: %d item(s) failed:\n  %s", len(e.Errors), strings.Join(msgs, "\n  "))
}

func (e *BuildError) Unwrap() []error {
	return e.Errors
}
