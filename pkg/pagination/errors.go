package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrContextChanged is returned by LoadNext when Reset switched the fetcher to a
	// new filter context while the page was in flight. The page is discarded.
	ErrContextChanged = errors.New("pagination: filter context changed during load")

	// ErrLoadInFlight is returned by Drain when another caller holds the in-flight slot.
	ErrLoadInFlight = errors.New("pagination: load already in flight")

	// ErrNoSource is returned when a Fetcher has no PageSource bound.
	ErrNoSource = errors.New("pagination: no page source")
)

// FetchError wraps a failed page request together with the cursor it was issued at.
// The fetcher state is unchanged, so retrying resumes from Cursor.
type FetchError struct {
	Collection string
	Cursor     Cursor
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s page at cursor %d: %v", e.Collection, e.Cursor, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}
