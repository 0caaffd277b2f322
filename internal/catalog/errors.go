package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFirstPage means the first page of a paginated crawl could not be
	// fetched, so nothing is known about the remaining pages.
	ErrNoFirstPage = errors.New("first page unavailable")
	// ErrNoPager means the pagination control is missing from a page.
	ErrNoPager = errors.New("pagination control not found")
	// ErrEmptyBody is returned by fetchers that received no content.
	ErrEmptyBody = errors.New("empty response body")
)

// ExtractionError reports markup that no longer matches the expected
// structure. It usually means the site changed.
type ExtractionError struct {
	Field string
	Err   error
}

// NewExtractionError wraps err for field.
func NewExtractionError(field string, err error) *ExtractionError {
	return &ExtractionError{Field: field, Err: err}
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsExtraction reports whether err is (or wraps) an ExtractionError.
func IsExtraction(err error) bool {
	var target *ExtractionError
	return errors.As(err, &target)
}
