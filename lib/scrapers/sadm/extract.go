package sadm

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"waterbills-backend/lib/htmlutil"
	"waterbills-backend/lib/textutil"
	"waterbills-backend/lib/waterbill"

	"github.com/PuerkitoBio/goquery"
)

const (
	loginAction = "/eAyd/autenticacione"
	homePage    = "/eAyd/Inicio.jsp"
)

func parseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewBuffer(body))
}

// classifySession inspects the home page after a login attempt. The
// portal has no credential-error message element; a rejected login just
// renders the login form again, so the password input doubling as the
// failure marker is the strongest signal the page offers.
func classifySession(doc *goquery.Document) waterbill.SessionStatus {
	if doc.Find("#tabla_servicios1").Length() > 0 {
		return waterbill.StatusAuthenticated
	}
	if doc.Find("input[name=password]").Length() > 0 {
		return waterbill.StatusBadPassword
	}
	return waterbill.StatusServerError
}

// servicesFromPage parses the contract table. The first row is the
// header and the last row is a totals footer; in between, anything
// that is not exactly seven cells wide is a spacer row. The status
// text lives inside a nested font element, the cell itself also
// contains layout junk.
func servicesFromPage(doc *goquery.Document) ([]waterbill.ServiceRecord, error) {
	table := doc.Find("table#tabla_servicios1")
	if table.Length() == 0 {
		return nil, waterbill.NewExtractionError(
			waterbill.ProviderSADM, homePage, "table#tabla_servicios1")
	}

	rows := table.Find("tr")
	var records []waterbill.ServiceRecord
	rows.Each(func(i int, tr *goquery.Selection) {
		if i == 0 || i == rows.Length()-1 {
			return
		}
		cells := tr.Find("td")
		if cells.Length() != 7 {
			return
		}
		records = append(records, waterbill.ServiceRecord{
			ExternalID: textutil.StripNbsp(cells.Eq(1).Text()),
			Address:    textutil.StripNbsp(cells.Eq(3).Text()),
			CutoffDate: textutil.StripNbsp(cells.Eq(4).Text()),
			RawAmount:  textutil.StripNbsp(cells.Eq(5).Text()),
			RawStatus:  textutil.StripNbsp(cells.Eq(6).Find("font").Text()),
		})
	})
	return records, nil
}

// linksFromPage collects the bill document links scattered across the
// page. Anchors are filtered by the injected URL pattern, labels that
// do not parse as a month/year are skipped, and repeated URLs (the
// page links each document more than once) are deduplicated keeping
// the first occurrence.
func linksFromPage(ctx context.Context, doc *goquery.Document, pattern *regexp.Regexp) []waterbill.DocumentLink {
	seen := map[string]bool{}
	var links []waterbill.DocumentLink
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a")) {
		if !pattern.MatchString(anchor.Href) || seen[anchor.Href] {
			continue
		}
		hint, err := periodHint(anchor.Name)
		if err != nil {
			continue
		}
		seen[anchor.Href] = true
		links = append(links, waterbill.DocumentLink{
			PeriodHint: hint,
			URL:        anchor.Href,
		})
	}
	return links
}

// periodHint turns an anchor label like "Junio 2024 (pdf)" into the
// coarse period token "2024-06".
func periodHint(label string) (string, error) {
	label = strings.TrimSuffix(label, " (pdf)")
	label = strings.TrimSuffix(label, " (xml)")
	parts := strings.Fields(label)
	if len(parts) != 2 {
		return "", fmt.Errorf("unrecognized document label %q", label)
	}
	month, err := waterbill.MonthNumber(parts[0])
	if err != nil {
		return "", err
	}
	return parts[1] + "-" + month, nil
}

// parseAmount reads the table's amount cell, authored like "$1,234.56".
func parseAmount(raw string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	if cleaned == "" {
		return 0, waterbill.NewExtractionError(
			waterbill.ProviderSADM, homePage, "amount in table cell")
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, waterbill.NewExtractionError(
			waterbill.ProviderSADM, homePage, "numeric amount, got "+raw)
	}
	return amount, nil
}
