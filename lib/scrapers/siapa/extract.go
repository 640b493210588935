package siapa

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"waterbills-backend/lib/textutil"
	"waterbills-backend/lib/waterbill"

	"github.com/PuerkitoBio/goquery"
)

const (
	loginPage    = "/RegistroWeb/IngresoSD.aspx"
	servicesPage = "/RegistroWeb/webform2.aspx"
	amountPage   = "/RegistroWeb/PagarVerif.aspx"
)

var (
	badPasswordMarker = textutil.Canonicalize("Contraseña incorrecta")
	unknownUserMarker = textutil.Canonicalize("Usuario no registrado")
)

func parseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewBuffer(body))
}

// classifySession inspects the page returned after a login attempt.
// The portal reports credential problems in a validator element and
// marks a live session with a title label; both sides of every text
// comparison are canonicalized because the pages are not reliably
// normalized UTF-8.
func classifySession(doc *goquery.Document) waterbill.SessionStatus {
	message := doc.Find("#cvMensajes1 > font").First()
	if message.Length() > 0 {
		switch textutil.Canonicalize(message.Text()) {
		case badPasswordMarker:
			return waterbill.StatusBadPassword
		case unknownUserMarker:
			return waterbill.StatusUnknownUser
		}
	}

	if doc.Find("#lblTitulo").Length() == 0 {
		return waterbill.StatusServerError
	}
	return waterbill.StatusAuthenticated
}

// servicesFromPage parses the account table. Row zero is the header;
// rows without the three expected font cells are ad/spacer rows and
// get dropped.
func servicesFromPage(doc *goquery.Document) ([]waterbill.ServiceRecord, error) {
	table := doc.Find("table#dgCuentas")
	if table.Length() == 0 {
		return nil, waterbill.NewExtractionError(
			waterbill.ProviderSIAPA, servicesPage, "table#dgCuentas")
	}

	var records []waterbill.ServiceRecord
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := tr.Find("td > font")
		if cells.Length() < 3 {
			return
		}
		records = append(records, waterbill.ServiceRecord{
			ExternalID: textutil.StripNbsp(cells.Eq(0).Text()),
			Names:      textutil.StripNbsp(cells.Eq(1).Text()),
			Address:    textutil.StripNbsp(cells.Eq(2).Text()),
		})
	})
	return records, nil
}

var amountRegex = regexp.MustCompile(`\$[0-9.,*]+-?`)

// amountFromPage reads the current amount off the per-account
// verification page. A trailing dash means the account holds a credit
// balance and the amount is negative.
func amountFromPage(doc *goquery.Document) (float64, error) {
	details := doc.Find("#datosCta")
	if details.Length() == 0 {
		return 0, waterbill.NewExtractionError(
			waterbill.ProviderSIAPA, amountPage, "#datosCta")
	}

	raw := amountRegex.FindString(details.Text())
	if raw == "" {
		return 0, waterbill.NewExtractionError(
			waterbill.ProviderSIAPA, amountPage, "amount pattern in #datosCta")
	}

	cleaned := strings.NewReplacer("$", "", ",", "", "*", "").Replace(raw)
	negative := strings.HasSuffix(cleaned, "-")
	cleaned = strings.TrimSuffix(cleaned, "-")

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, waterbill.NewExtractionError(
			waterbill.ProviderSIAPA, amountPage, "numeric amount, got "+raw)
	}
	if negative {
		amount = -amount
	}
	return amount, nil
}
