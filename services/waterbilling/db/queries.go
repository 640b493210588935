package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const upsertCredential = `
insert into credentials (provider, username, password, created_at)
values (?, ?, ?, ?)
on conflict (provider, username) do update set password = excluded.password
`

type UpsertCredentialParams struct {
	Provider  string
	Username  string
	Password  string
	CreatedAt int64
}

func (q *Queries) UpsertCredential(ctx context.Context, arg UpsertCredentialParams) error {
	_, err := q.db.ExecContext(ctx, upsertCredential,
		arg.Provider, arg.Username, arg.Password, arg.CreatedAt)
	return err
}

const listCredentials = `
select provider, username, password, created_at from credentials
order by provider, username
`

func (q *Queries) ListCredentials(ctx context.Context) ([]Credential, error) {
	rows, err := q.db.QueryContext(ctx, listCredentials)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Credential
	for rows.Next() {
		var i Credential
		err := rows.Scan(&i.Provider, &i.Username, &i.Password, &i.CreatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getAccount = `
select id, provider, external_id, display_name, address, cutoff_date
from accounts where provider = ? and external_id = ?
`

type GetAccountParams struct {
	Provider   string
	ExternalID string
}

func (q *Queries) GetAccount(ctx context.Context, arg GetAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccount, arg.Provider, arg.ExternalID)
	var i Account
	err := row.Scan(&i.ID, &i.Provider, &i.ExternalID,
		&i.DisplayName, &i.Address, &i.CutoffDate)
	return i, err
}

const createAccount = `
insert into accounts (id, provider, external_id, display_name, address, cutoff_date)
values (?, ?, ?, ?, ?, ?)
`

type CreateAccountParams struct {
	ID          string
	Provider    string
	ExternalID  string
	DisplayName string
	Address     string
	CutoffDate  string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) error {
	_, err := q.db.ExecContext(ctx, createAccount,
		arg.ID, arg.Provider, arg.ExternalID,
		arg.DisplayName, arg.Address, arg.CutoffDate)
	return err
}

const updateAccount = `
update accounts set display_name = ?, address = ?, cutoff_date = ? where id = ?
`

type UpdateAccountParams struct {
	DisplayName string
	Address     string
	CutoffDate  string
	ID          string
}

func (q *Queries) UpdateAccount(ctx context.Context, arg UpdateAccountParams) error {
	_, err := q.db.ExecContext(ctx, updateAccount,
		arg.DisplayName, arg.Address, arg.CutoffDate, arg.ID)
	return err
}

const getBill = `
select id, account_id, billing_period, amount, status, document_path, created_at, updated_at
from bills where account_id = ? and billing_period = ?
`

type GetBillParams struct {
	AccountID     string
	BillingPeriod string
}

func (q *Queries) GetBill(ctx context.Context, arg GetBillParams) (Bill, error) {
	row := q.db.QueryRowContext(ctx, getBill, arg.AccountID, arg.BillingPeriod)
	var i Bill
	err := row.Scan(&i.ID, &i.AccountID, &i.BillingPeriod,
		&i.Amount, &i.Status, &i.DocumentPath, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const createBill = `
insert into bills (id, account_id, billing_period, amount, status, document_path, created_at, updated_at)
values (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateBillParams struct {
	ID            string
	AccountID     string
	BillingPeriod string
	Amount        float64
	Status        string
	DocumentPath  string
	CreatedAt     int64
	UpdatedAt     int64
}

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) error {
	_, err := q.db.ExecContext(ctx, createBill,
		arg.ID, arg.AccountID, arg.BillingPeriod,
		arg.Amount, arg.Status, arg.DocumentPath,
		arg.CreatedAt, arg.UpdatedAt)
	return err
}

const updateBillAmountStatus = `
update bills set amount = ?, status = ?, updated_at = ? where id = ?
`

type UpdateBillAmountStatusParams struct {
	Amount    float64
	Status    string
	UpdatedAt int64
	ID        string
}

func (q *Queries) UpdateBillAmountStatus(ctx context.Context, arg UpdateBillAmountStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateBillAmountStatus,
		arg.Amount, arg.Status, arg.UpdatedAt, arg.ID)
	return err
}

const listBillsForAccount = `
select id, account_id, billing_period, amount, status, document_path, created_at, updated_at
from bills where account_id = ? order by billing_period desc
`

func (q *Queries) ListBillsForAccount(ctx context.Context, accountId string) ([]Bill, error) {
	rows, err := q.db.QueryContext(ctx, listBillsForAccount, accountId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Bill
	for rows.Next() {
		var i Bill
		err := rows.Scan(&i.ID, &i.AccountID, &i.BillingPeriod,
			&i.Amount, &i.Status, &i.DocumentPath, &i.CreatedAt, &i.UpdatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
