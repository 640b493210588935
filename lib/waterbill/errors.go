package waterbill

import (
	"errors"
	"fmt"
)

var (
	// user-correctable, surfaced verbatim
	ErrBadPassword = errors.New("incorrect password")
	ErrUnknownUser = errors.New("user not registered")

	// the login page carried no success marker, nothing downstream is
	// valid; transient, the caller may retry the whole session
	ErrProviderUnavailable = errors.New("provider did not present a session marker")

	// no document link contained the account's contract number; the
	// account is still upserted, just without a bill
	ErrNoDocumentLink = errors.New("no document link matched the account")

	// the download succeeded at the transport level but the bytes are
	// not a valid document (usually an HTML error page)
	ErrNotADocument = errors.New("response is not a valid document")

	// the document text carried no recognizable billing period line;
	// periods are never fabricated
	ErrNoPeriodLine = errors.New("no billing period line found in document")
)

// ExtractionError means the expected page structure was not found:
// the provider changed its markup. Page and Want carry enough context
// to diagnose from logs.
type ExtractionError struct {
	Provider Provider
	Page     string
	Want     string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %s: expected %s", e.Provider, e.Page, e.Want)
}

func NewExtractionError(provider Provider, page, want string) *ExtractionError {
	return &ExtractionError{Provider: provider, Page: page, Want: want}
}

// IsSessionFailure reports whether an error invalidates the whole
// session rather than a single account.
func IsSessionFailure(err error) bool {
	return errors.Is(err, ErrBadPassword) ||
		errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, ErrProviderUnavailable)
}
