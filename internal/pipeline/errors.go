package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyResult is returned when no billing rows could be extracted from the
// input. It is a terminal outcome of its own, not a processing failure.
var ErrEmptyResult = errors.New("no billing data found")

// FetchError reports that the raw content for a location could not be read.
type FetchError struct {
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
