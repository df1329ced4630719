package adapter

import "fmt"

// FetchError reports that one source failed during a fetch cycle.
// It never affects sibling sources.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UnknownSourceError reports a request for a source that is not registered.
type UnknownSourceError struct {
	Name string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown provider: %s", e.Name)
}
