package waterbill

import (
	"strings"
	"waterbills-backend/lib/textutil"

	"github.com/antzucaro/matchr"
)

// MatchLink selects the first link whose URL contains the record's
// contract number as a substring; the two scraped sets share no
// structured key so this is the only join available. First match wins,
// matching the portal's own association order. An identifier that is a
// substring of an unrelated link is an accepted risk; callers get an
// explicit "no match" instead of a silent empty link.
func MatchLink(record ServiceRecord, links []DocumentLink) (DocumentLink, bool) {
	if record.ExternalID == "" {
		return DocumentLink{}, false
	}
	for _, link := range links {
		if strings.Contains(link.URL, record.ExternalID) {
			return link, true
		}
	}
	return DocumentLink{}, false
}

// NameCorrelation scores how plausibly a table row and a document
// describe the same account holder. The substring join above can
// mis-associate when contract numbers are not fixed width; a low score
// between the two names is the observable symptom.
func NameCorrelation(tableName, documentName string) float64 {
	if tableName == "" || documentName == "" {
		return 0
	}
	return matchr.JaroWinkler(
		textutil.NormalizeName(tableName),
		textutil.NormalizeName(documentName),
		false,
	)
}
