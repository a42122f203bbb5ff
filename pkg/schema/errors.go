package schema

import (
	"errors"
	"fmt"
	"strings"
)

// CatalogError is a single problem found while loading an operation catalog.
type CatalogError struct {
	Operation string // Operation name, empty when the entry has none
	Field     string // Parameter or attribute that is wrong
	Reason    string
}

func (e *CatalogError) Error() string {
	op := e.Operation
	if op == "" {
		op = "<unnamed>"
	}
	if e.Field == "" {
		return fmt.Sprintf("operation %q: %s", op, e.Reason)
	}
	return fmt.Sprintf("operation %q, field %q: %s", op, e.Field, e.Reason)
}

// AggregateError collects every catalog problem so they can be fixed in one pass.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d catalog errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// CatalogErrors returns all problems if err carries an AggregateError.
// Otherwise returns nil.
func CatalogErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
