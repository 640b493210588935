package waterbill

import (
	"fmt"
	"regexp"
	"time"
)

var periodLineRegex = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4}) al \d{2}\.\d{2}\.\d{4}`)

// DocumentMeta is what a bill's text yields: the canonical account name
// and the billing period the document covers.
type DocumentMeta struct {
	AccountName   string
	BillingPeriod string
}

// ParseDocumentText recovers bill metadata from extracted text lines.
// The first line is the account name; the first line matching the
// `dd.mm.yyyy al dd.mm.yyyy` range gives the period, normalized to the
// first day of the range's starting month. No matching line is a hard
// failure for the account, a period is never synthesized.
func ParseDocumentText(lines []string) (DocumentMeta, error) {
	if len(lines) == 0 {
		return DocumentMeta{}, fmt.Errorf("%w: document text is empty", ErrNoPeriodLine)
	}

	for _, line := range lines {
		groups := periodLineRegex.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		start, err := time.Parse("02.01.2006", groups[1])
		if err != nil {
			return DocumentMeta{}, fmt.Errorf("parse period start %q: %w", groups[1], err)
		}
		period := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DocumentMeta{
			AccountName:   lines[0],
			BillingPeriod: period.Format("2006-01-02"),
		}, nil
	}

	return DocumentMeta{}, ErrNoPeriodLine
}
