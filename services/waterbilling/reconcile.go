package waterbilling

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"waterbills-backend/lib/timezone"
	"waterbills-backend/lib/waterbill"
	"waterbills-backend/services/waterbilling/db"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Bill lifecycle states. Rediscovery always resets a bill to pending;
// paid and due are advanced by payment processing outside this service.
const (
	BillStatusPending = "pending"
	BillStatusPaid    = "paid"
	BillStatusDue     = "due"
)

// Reconciler folds scrape results into storage. Accounts are keyed by
// (provider, external_id) and bills by (account_id, billing_period);
// both carry unique constraints, so two runs racing on the same key
// resolve by falling back from insert to update.
type Reconciler struct {
	db   *sql.DB
	qry  *db.Queries
	docs DocumentStore
}

func NewReconciler(database *sql.DB, docs DocumentStore) Reconciler {
	return Reconciler{
		db:   database,
		qry:  db.New(database),
		docs: docs,
	}
}

func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// UpsertAccount finds or creates the account row and refreshes its
// scraped fields. Returns the account id.
func (r Reconciler) UpsertAccount(ctx context.Context, provider waterbill.Provider, record waterbill.ServiceRecord) (string, error) {
	ctx, span := tracer.Start(ctx, "reconcile:UpsertAccount")
	defer span.End()
	span.SetAttributes(attribute.String("external_id", record.ExternalID))

	key := db.GetAccountParams{
		Provider:   string(provider),
		ExternalID: record.ExternalID,
	}
	account, err := r.qry.GetAccount(ctx, key)
	if err == nil {
		err = r.qry.UpdateAccount(ctx, db.UpdateAccountParams{
			DisplayName: record.Names,
			Address:     record.Address,
			CutoffDate:  record.CutoffDate,
			ID:          account.ID,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		return account.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	id := uuid.NewString()
	err = r.qry.CreateAccount(ctx, db.CreateAccountParams{
		ID:          id,
		Provider:    string(provider),
		ExternalID:  record.ExternalID,
		DisplayName: record.Names,
		Address:     record.Address,
		CutoffDate:  record.CutoffDate,
	})
	if isConstraintViolation(err) {
		// another run created it between our get and create
		account, err := r.qry.GetAccount(ctx, key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		return account.ID, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return id, nil
}

// UpsertBill finds or creates the bill for (account, period). An
// existing bill keeps its stored document untouched and the fresh
// bytes are discarded; only amount and status are refreshed. A new
// bill stores the document first, then inserts, and a lost insert
// race deletes the just-stored file before falling back to update.
func (r Reconciler) UpsertBill(ctx context.Context, provider waterbill.Provider, accountId string, service waterbill.EnrichedService) error {
	ctx, span := tracer.Start(ctx, "reconcile:UpsertBill")
	defer span.End()

	if service.Document == nil {
		return nil
	}
	period := service.Document.BillingPeriod
	span.SetAttributes(
		attribute.String("account_id", accountId),
		attribute.String("billing_period", period),
	)

	now := timezone.Now().Unix()
	key := db.GetBillParams{
		AccountID:     accountId,
		BillingPeriod: period,
	}

	bill, err := r.qry.GetBill(ctx, key)
	if err == nil {
		err = r.refreshBill(ctx, bill.ID, service.Amount, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	path, err := r.docs.Put(provider, service.ExternalID, service.Document.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err = r.qry.CreateBill(ctx, db.CreateBillParams{
		ID:            uuid.NewString(),
		AccountID:     accountId,
		BillingPeriod: period,
		Amount:        service.Amount,
		Status:        BillStatusPending,
		DocumentPath:  path,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if isConstraintViolation(err) {
		// another run stored this period first; ours is the duplicate
		if err := r.docs.Delete(path); err != nil {
			slog.WarnContext(ctx, "failed to delete duplicate bill document",
				"path", path, "err", err)
		}
		bill, err := r.qry.GetBill(ctx, key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		err = r.refreshBill(ctx, bill.ID, service.Amount, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (r Reconciler) refreshBill(ctx context.Context, billId string, amount float64, now int64) error {
	return r.qry.UpdateBillAmountStatus(ctx, db.UpdateBillAmountStatusParams{
		Amount:    amount,
		Status:    BillStatusPending,
		UpdatedAt: now,
		ID:        billId,
	})
}
