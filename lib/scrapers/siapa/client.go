// Package siapa emulates a browser session against the SIAPA
// registration portal, an ASP.NET site that threads opaque view-state
// through every form submission.
package siapa

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"
	"waterbills-backend/lib/htmlutil"
	"waterbills-backend/lib/pdfutil"
	"waterbills-backend/lib/telemetry"
	"waterbills-backend/lib/waterbill"

	"github.com/go-resty/resty/v2"
	cookiejar "github.com/juju/persistent-cookiejar"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/siapa")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// lowNameCorrelation flags a probable mis-association between a table
// row and the document the substring join picked for it.
const lowNameCorrelation = 0.6

type Client struct {
	baseUrl  *url.URL
	http     *resty.Client
	jar      *cookiejar.Jar
	username string
	password string
}

type ClientOptions struct {
	BaseUrl  string
	Username string
	Password string
	// directory holding the per-credential cookie files; the jar for
	// (siapa, username) survives process restarts
	CookieDir string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	jarDir := filepath.Join(opts.CookieDir, string(waterbill.ProviderSIAPA))
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

	telemetry.InstrumentResty(client, "scrapers/siapa/http")

	return &Client{
		baseUrl:  baseUrl,
		http:     client,
		jar:      jar,
		username: opts.Username,
		password: opts.Password,
	}, nil
}

// Http exposes the underlying client for instrumentation hooks.
func (c *Client) Http() *resty.Client { return c.http }

func (c *Client) Provider() waterbill.Provider { return waterbill.ProviderSIAPA }

func (c *Client) Capabilities() waterbill.Capabilities {
	return waterbill.Capabilities{
		AmountLookup:       true,
		PeriodFromDocument: true,
	}
}

// Login performs the portal's login sequence: fetch the login form,
// replay its full input state plus the credentials, then classify the
// response page.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(loginPage)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	doc, err := parseDocument(res.Body())
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page")
		return err
	}

	state := htmlutil.FormValues(doc)
	state["txtUsuario1"] = c.username
	state["txtContra1"] = c.password

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(state).
		Post(loginPage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login form")
		return err
	}
	doc, err = parseDocument(res.Body())
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login response")
		return err
	}

	status := classifySession(doc)
	if err := status.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := c.jar.Save(); err != nil {
		slog.WarnContext(ctx, "failed to persist cookie jar", "provider", "siapa", "err", err)
	}
	return nil
}

// ListAccountsWithBills logs in, walks the account table, reads every
// account's current amount, then downloads and parses each account's
// bill document. Per-account failures are collected, not fatal.
func (c *Client) ListAccountsWithBills(ctx context.Context) (waterbill.Result, error) {
	ctx, span := tracer.Start(ctx, "client:ListAccountsWithBills")
	defer span.End()

	if err := c.Login(ctx); err != nil {
		return waterbill.Result{}, err
	}

	records, err := c.listServices(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list services")
		return waterbill.Result{}, err
	}

	var result waterbill.Result
	for i, record := range records {
		enriched := waterbill.EnrichedService{ServiceRecord: record}

		amount, err := c.getAmount(ctx, record.ExternalID)
		if err != nil {
			span.RecordError(err)
			result.Failures = append(result.Failures, waterbill.AccountFailure{
				ExternalID: record.ExternalID,
				Err:        fmt.Errorf("amount lookup: %w", err),
			})
		} else {
			enriched.Amount = amount
		}

		document, err := c.downloadBill(ctx, i)
		if err != nil {
			span.RecordError(err)
			result.Failures = append(result.Failures, waterbill.AccountFailure{
				ExternalID: record.ExternalID,
				Err:        fmt.Errorf("download bill: %w", err),
			})
			result.Services = append(result.Services, enriched)
			continue
		}

		lines, err := pdfutil.ExtractLines(document)
		if err == nil {
			var meta waterbill.DocumentMeta
			meta, err = waterbill.ParseDocumentText(lines)
			if err == nil {
				enriched.Document = &waterbill.BillDocument{
					Data:          document,
					AccountName:   meta.AccountName,
					BillingPeriod: meta.BillingPeriod,
				}
				enriched.NameCorrelation = waterbill.NameCorrelation(record.Names, meta.AccountName)
				if enriched.NameCorrelation > 0 && enriched.NameCorrelation < lowNameCorrelation {
					slog.WarnContext(ctx, "low name correlation between table row and bill document",
						"account", record.ExternalID,
						"table_name", record.Names,
						"document_name", meta.AccountName,
						"correlation", enriched.NameCorrelation,
					)
				}
			}
		}
		if err != nil {
			span.RecordError(err)
			result.Failures = append(result.Failures, waterbill.AccountFailure{
				ExternalID: record.ExternalID,
				Err:        fmt.Errorf("parse bill document: %w", err),
			})
		}

		result.Services = append(result.Services, enriched)
	}

	if err := c.jar.Save(); err != nil {
		slog.WarnContext(ctx, "failed to persist cookie jar", "provider", "siapa", "err", err)
	}
	return result, nil
}

func (c *Client) listServices(ctx context.Context) ([]waterbill.ServiceRecord, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(servicesPage)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(res.Body())
	if err != nil {
		return nil, err
	}
	return servicesFromPage(doc)
}

func (c *Client) getAmount(ctx context.Context, externalId string) (float64, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("pcta", externalId).
		Get(amountPage)
	if err != nil {
		return 0, err
	}
	doc, err := parseDocument(res.Body())
	if err != nil {
		return 0, err
	}
	return amountFromPage(doc)
}

// downloadBill replays a fresh state snapshot with the coordinates of a
// click on the row's image button. State is refetched per account, the
// server invalidates a snapshot once it has been replayed.
func (c *Client) downloadBill(ctx context.Context, index int) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:downloadBill")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(servicesPage)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(res.Body())
	if err != nil {
		return nil, err
	}

	state := htmlutil.FormValues(doc)
	button := fmt.Sprintf("dgCuentas$ctl0%d$imgb2", index+2)
	state[button+".x"] = fmt.Sprint(clickCoordinate())
	state[button+".y"] = fmt.Sprint(clickCoordinate())

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(state).
		Post(servicesPage)
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

// clickCoordinate jitters within the image button's hit box the way a
// pointer would.
func clickCoordinate() int {
	n, err := random.IntRange(10, 16)
	if err != nil {
		return 12
	}
	return n
}
