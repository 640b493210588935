// Package waterbill holds the domain model shared by the provider
// session clients: the records extracted from portal pages, the
// matching that joins them, and the error taxonomy the callers switch
// on.
package waterbill

import "context"

type Provider string

const (
	ProviderSIAPA Provider = "siapa"
	ProviderSADM  Provider = "sadm"
)

// Credential identifies exactly one persistent portal session: one
// cookie jar per (provider, username). The password is opaque here,
// encryption at rest is the storage layer's problem.
type Credential struct {
	Provider Provider
	Username string
	Password string
}

type SessionStatus int

const (
	StatusAuthenticated SessionStatus = iota
	StatusBadPassword
	StatusUnknownUser
	StatusServerError
)

// Err maps a classified login page to the error the caller sees, nil
// for an authenticated session.
func (s SessionStatus) Err() error {
	switch s {
	case StatusAuthenticated:
		return nil
	case StatusBadPassword:
		return ErrBadPassword
	case StatusUnknownUser:
		return ErrUnknownUser
	default:
		return ErrProviderUnavailable
	}
}

// ServiceRecord is one row of a provider's account table. ExternalID is
// the provider's own contract number and the only stable join key the
// pages offer.
type ServiceRecord struct {
	ExternalID string
	Names      string
	Address    string
	CutoffDate string
	RawAmount  string
	RawStatus  string
}

// DocumentLink is one downloadable-document reference scraped from the
// page, not yet associated with an account. PeriodHint is the coarse
// "2006-01" token parsed from the anchor text.
type DocumentLink struct {
	PeriodHint string
	URL        string
}

// BillDocument is the downloaded bill plus the metadata recovered from
// its text. BillingPeriod is a full "2006-01-02" date pinned to the
// first day of the month.
type BillDocument struct {
	Data          []byte
	AccountName   string
	BillingPeriod string
}

// EnrichedService is a ServiceRecord joined with its document, the unit
// handed to persistence.
type EnrichedService struct {
	ServiceRecord
	Amount      float64
	DocumentURL string
	PeriodHint  string
	Document    *BillDocument
	// Jaro-Winkler similarity between the table's display name and the
	// document's account name, 0 when either side is missing.
	NameCorrelation float64
}

// AccountFailure records a per-account failure that did not abort the
// batch.
type AccountFailure struct {
	ExternalID string
	Err        error
}

type Result struct {
	Services []EnrichedService
	Failures []AccountFailure
}

// Capabilities describes what a provider's portal supports; the
// interface stays single and canonical, behavior differences are flags.
type Capabilities struct {
	// the portal requires one extra request per account to read the
	// current amount
	AmountLookup bool
	// the billing period is parsed out of the document itself rather
	// than taken from the link hint
	PeriodFromDocument bool
}

// Client is a per-provider session client. Login must succeed before
// any data operation; ListAccountsWithBills performs its own login.
type Client interface {
	Provider() Provider
	Capabilities() Capabilities
	Login(ctx context.Context) error
	ListAccountsWithBills(ctx context.Context) (Result, error)
}
