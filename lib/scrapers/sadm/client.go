// Package sadm emulates a browser session against the SADM customer
// portal, a JSP site that renders contracts and their bill document
// links on a single home page.
package sadm

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"
	"waterbills-backend/lib/pdfutil"
	"waterbills-backend/lib/telemetry"
	"waterbills-backend/lib/waterbill"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	cookiejar "github.com/juju/persistent-cookiejar"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/sadm")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// defaultLinkPattern matches the production portal's CFDI document
// endpoint; tests and alternate deployments inject their own.
const defaultLinkPattern = `^https://ayd\.sadm\.gob\.mx/Solicitudes/solicitudcfdi\?idpdf=`

type Client struct {
	baseUrl     *url.URL
	http        *resty.Client
	jar         *cookiejar.Jar
	linkPattern *regexp.Regexp
	username    string
	password    string
}

type ClientOptions struct {
	BaseUrl  string
	Username string
	Password string
	// directory holding the per-credential cookie files
	CookieDir string
	// regexp selecting which anchors on the home page are bill
	// documents; empty means the production portal's endpoint
	DocumentLinkPattern string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	pattern := opts.DocumentLinkPattern
	if pattern == "" {
		pattern = defaultLinkPattern
	}
	linkPattern, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("document link pattern: %w", err)
	}

	jarDir := filepath.Join(opts.CookieDir, string(waterbill.ProviderSADM))
	err = os.MkdirAll(jarDir, 0o755)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(&cookiejar.Options{
		Filename: filepath.Join(jarDir, opts.Username+".cookies"),
	})
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/sadm/http")

	return &Client{
		baseUrl:     baseUrl,
		http:        client,
		jar:         jar,
		linkPattern: linkPattern,
		username:    opts.Username,
		password:    opts.Password,
	}, nil
}

// Http exposes the underlying client for instrumentation hooks.
func (c *Client) Http() *resty.Client { return c.http }

func (c *Client) Provider() waterbill.Provider { return waterbill.ProviderSADM }

func (c *Client) Capabilities() waterbill.Capabilities {
	return waterbill.Capabilities{
		AmountLookup:       false,
		PeriodFromDocument: false,
	}
}

// Login posts the credentials to the authentication action, then loads
// the home page and classifies what the session got.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	_, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"command":  "",
			"email":    c.username,
			"password": c.password,
		}).
		Post(loginAction)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login form")
		return err
	}

	doc, err := c.fetchHome(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch home page")
		return err
	}

	status := classifySession(doc)
	if err := status.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := c.jar.Save(); err != nil {
		slog.WarnContext(ctx, "failed to persist cookie jar", "provider", "sadm", "err", err)
	}
	return nil
}

// ListAccountsWithBills logs in, extracts the contract table and the
// document links off the home page, joins them by contract number,
// then downloads each matched document. Per-account failures are
// collected, not fatal.
func (c *Client) ListAccountsWithBills(ctx context.Context) (waterbill.Result, error) {
	ctx, span := tracer.Start(ctx, "client:ListAccountsWithBills")
	defer span.End()

	if err := c.Login(ctx); err != nil {
		return waterbill.Result{}, err
	}

	doc, err := c.fetchHome(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch home page")
		return waterbill.Result{}, err
	}

	records, err := servicesFromPage(doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract services")
		return waterbill.Result{}, err
	}
	links := linksFromPage(ctx, doc, c.linkPattern)

	var result waterbill.Result
	for _, record := range records {
		enriched := waterbill.EnrichedService{ServiceRecord: record}

		amount, err := parseAmount(record.RawAmount)
		if err != nil {
			span.RecordError(err)
			result.Failures = append(result.Failures, waterbill.AccountFailure{
				ExternalID: record.ExternalID,
				Err:        fmt.Errorf("amount cell: %w", err),
			})
		} else {
			enriched.Amount = amount
		}

		link, ok := waterbill.MatchLink(record, links)
		if !ok {
			result.Failures = append(result.Failures, waterbill.AccountFailure{
				ExternalID: record.ExternalID,
				Err:        waterbill.ErrNoDocumentLink,
			})
			result.Services = append(result.Services, enriched)
			continue
		}
		enriched.DocumentURL = link.URL
		enriched.PeriodHint = link.PeriodHint

		document, err := c.downloadBill(ctx, link.URL)
		if err != nil {
			span.RecordError(err)
			result.Failures = append(result.Failures, waterbill.AccountFailure{
				ExternalID: record.ExternalID,
				Err:        fmt.Errorf("download bill: %w", err),
			})
			result.Services = append(result.Services, enriched)
			continue
		}

		// the documents carry no parseable period line, the anchor
		// label is the only period source
		enriched.Document = &waterbill.BillDocument{
			Data:          document,
			BillingPeriod: link.PeriodHint + "-01",
		}
		result.Services = append(result.Services, enriched)
	}

	if err := c.jar.Save(); err != nil {
		slog.WarnContext(ctx, "failed to persist cookie jar", "provider", "sadm", "err", err)
	}
	return result, nil
}

func (c *Client) fetchHome(ctx context.Context) (*goquery.Document, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(homePage)
	if err != nil {
		return nil, err
	}
	return parseDocument(res.Body())
}

func (c *Client) downloadBill(ctx context.Context, documentUrl string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:downloadBill")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(documentUrl)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !pdfutil.IsPDF(res.Body()) {
		span.SetStatus(codes.Error, waterbill.ErrNotADocument.Error())
		return nil, waterbill.ErrNotADocument
	}
	return res.Body(), nil
}
