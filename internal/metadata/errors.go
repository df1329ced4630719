package metadata

import "fmt"

// CatalogUnavailableError reports that the external catalog could not be
// fetched or parsed. Enrichment continues without external matches.
type CatalogUnavailableError struct {
	URL string
	Err error
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("metadata catalog %s unavailable: %v", e.URL, e.Err)
}

func (e *CatalogUnavailableError) Unwrap() error { return e.Err }

// ValidationError reports an override payload that is malformed or out of range.
type ValidationError struct {
	Key string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid override for %s: %v", e.Key, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
