package extract

import (
	"fmt"

	"github.com/aretw0/teller/pkg/domain"
)

// ParseError reports a call block that exists but cannot be parsed.
type ParseError struct {
	Text   string // The original response text
	Block  string // The offending block body
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed call block %q: %s", e.Block, e.Reason)
}

func (e *ParseError) Unwrap() error { return domain.ErrParse }
