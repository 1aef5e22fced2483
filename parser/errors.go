package parser

import (
	"errors"
	"fmt"
)

// ErrExtraction matches every ExtractionError via errors.Is.
var ErrExtraction = errors.New("unexpected page structure")

// ExtractionError reports a mandatory field missing from a fetched page.
// Index is the result node position, or -1 for page-level fields.
type ExtractionError struct {
	Field    string
	Selector string
	Index    int
}

func (e ExtractionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("extraction: result %d missing %s (%s)", e.Index, e.Field, e.Selector)
	}
	return fmt.Sprintf("extraction: page missing %s (%s)", e.Field, e.Selector)
}

func (e ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}
