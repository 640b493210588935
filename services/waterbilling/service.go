// Package waterbilling ties the provider session clients to storage:
// it authenticates credentials, runs the scrape pipeline, and
// reconciles the results into accounts, bills and stored documents.
package waterbilling

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"waterbills-backend/lib/restyutil"
	"waterbills-backend/lib/scrapers/sadm"
	"waterbills-backend/lib/scrapers/siapa"
	"waterbills-backend/lib/timezone"
	"waterbills-backend/lib/waterbill"
	"waterbills-backend/services/waterbilling/db"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/waterbilling")

type SiapaConfig struct {
	BaseUrl string `json:"base_url"`
}

type SadmConfig struct {
	BaseUrl             string `json:"base_url"`
	DocumentLinkPattern string `json:"document_link_pattern"`
}

type ScraperConfig struct {
	Siapa     SiapaConfig `json:"siapa"`
	Sadm      SadmConfig  `json:"sadm"`
	CookieDir string      `json:"cookie_dir"`
	// when set, every http exchange is dumped under
	// <dir>/<provider>/<username> for markup-drift debugging
	DebugDumpDir string `json:"debug_dump_dir"`
}

type Service struct {
	db         *sql.DB
	qry        *db.Queries
	reconciler Reconciler
	config     ScraperConfig

	// serializes runs per (provider, username); concurrent runs on one
	// credential would fight over the same cookie jar file
	sessionsMu sync.Mutex
	sessions   map[string]*sync.Mutex
}

func NewService(database *sql.DB, docs DocumentStore, config ScraperConfig) *Service {
	return &Service{
		db:         database,
		qry:        db.New(database),
		reconciler: NewReconciler(database, docs),
		config:     config,
		sessions:   map[string]*sync.Mutex{},
	}
}

func (s *Service) sessionLock(credential waterbill.Credential) *sync.Mutex {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	key := string(credential.Provider) + "\x00" + credential.Username
	lock, ok := s.sessions[key]
	if !ok {
		lock = &sync.Mutex{}
		s.sessions[key] = lock
	}
	return lock
}

func (s *Service) newClient(ctx context.Context, credential waterbill.Credential) (waterbill.Client, error) {
	switch credential.Provider {
	case waterbill.ProviderSIAPA:
		client, err := siapa.NewClient(ctx, siapa.ClientOptions{
			BaseUrl:   s.config.Siapa.BaseUrl,
			Username:  credential.Username,
			Password:  credential.Password,
			CookieDir: s.config.CookieDir,
		})
		if err != nil {
			return nil, err
		}
		s.attachDebugOutput(client.Http(), credential)
		return client, nil
	case waterbill.ProviderSADM:
		client, err := sadm.NewClient(ctx, sadm.ClientOptions{
			BaseUrl:             s.config.Sadm.BaseUrl,
			Username:            credential.Username,
			Password:            credential.Password,
			CookieDir:           s.config.CookieDir,
			DocumentLinkPattern: s.config.Sadm.DocumentLinkPattern,
		})
		if err != nil {
			return nil, err
		}
		s.attachDebugOutput(client.Http(), credential)
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", credential.Provider)
	}
}

func (s *Service) attachDebugOutput(client *resty.Client, credential waterbill.Credential) {
	if s.config.DebugDumpDir == "" {
		return
	}
	dir := filepath.Join(s.config.DebugDumpDir,
		string(credential.Provider), credential.Username)
	restyutil.NewFilesystemOutput(dir).Attach(client)
}

// Authenticate verifies a credential against its portal without
// touching storage.
func (s *Service) Authenticate(ctx context.Context, credential waterbill.Credential) error {
	ctx, span := tracer.Start(ctx, "Authenticate")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", string(credential.Provider)),
		attribute.String("username", credential.Username),
	)

	lock := s.sessionLock(credential)
	lock.Lock()
	defer lock.Unlock()

	client, err := s.newClient(ctx, credential)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return client.Login(ctx)
}

// ListAccountsWithBills runs the full pipeline for one credential and
// reconciles everything it found into storage. The scrape result is
// returned as-is, per-account failures included, so callers can
// surface them.
func (s *Service) ListAccountsWithBills(ctx context.Context, credential waterbill.Credential) (waterbill.Result, error) {
	ctx, span := tracer.Start(ctx, "ListAccountsWithBills")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", string(credential.Provider)),
		attribute.String("username", credential.Username),
	)

	lock := s.sessionLock(credential)
	lock.Lock()
	defer lock.Unlock()

	client, err := s.newClient(ctx, credential)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return waterbill.Result{}, err
	}

	result, err := client.ListAccountsWithBills(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return waterbill.Result{}, err
	}

	// the credential proved itself against the portal, remember it
	err = s.qry.UpsertCredential(ctx, db.UpsertCredentialParams{
		Provider:  string(credential.Provider),
		Username:  credential.Username,
		Password:  credential.Password,
		CreatedAt: timezone.Now().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return waterbill.Result{}, err
	}

	for _, service := range result.Services {
		accountId, err := s.reconciler.UpsertAccount(ctx, credential.Provider, service.ServiceRecord)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return waterbill.Result{}, err
		}
		err = s.reconciler.UpsertBill(ctx, credential.Provider, accountId, service)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return waterbill.Result{}, err
		}
	}

	return result, nil
}

// RefreshAll re-runs the pipeline for every stored credential. One
// credential's failure does not stop the others.
func (s *Service) RefreshAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RefreshAll")
	defer span.End()

	credentials, err := s.qry.ListCredentials(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, c := range credentials {
		credential := waterbill.Credential{
			Provider: waterbill.Provider(c.Provider),
			Username: c.Username,
			Password: c.Password,
		}
		_, err := s.ListAccountsWithBills(ctx, credential)
		if err != nil {
			span.RecordError(err)
			slog.ErrorContext(ctx, "failed to refresh credential",
				"provider", c.Provider, "username", c.Username, "err", err)
		}
	}
	return nil
}
