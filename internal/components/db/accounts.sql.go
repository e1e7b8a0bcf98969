package db

import (
	"context"
)

const bankAccountColumns = `id, collector, url, user_id, password, created_at`

func scanBankAccount(row interface{ Scan(...any) error }) (BankAccount, error) {
	var i BankAccount
	err := row.Scan(
		&i.ID,
		&i.Collector,
		&i.Url,
		&i.UserID,
		&i.Password,
		&i.CreatedAt,
	)
	return i, err
}

const createBankAccount = `
INSERT INTO bank_accounts (collector, url, user_id, password, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

type CreateBankAccountParams struct {
	Collector string
	Url       string
	UserID    string
	Password  string
	CreatedAt int64
}

func (q *Queries) CreateBankAccount(ctx context.Context, arg CreateBankAccountParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createBankAccount,
		arg.Collector,
		arg.Url,
		arg.UserID,
		arg.Password,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getBankAccount = `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE id = ?`

func (q *Queries) GetBankAccount(ctx context.Context, id int64) (BankAccount, error) {
	i, err := scanBankAccount(q.db.QueryRowContext(ctx, getBankAccount, id))
	return i, notFound(err)
}

// newest accounts come first
const listBankAccounts = `SELECT ` + bankAccountColumns + ` FROM bank_accounts ORDER BY id DESC`

func (q *Queries) ListBankAccounts(ctx context.Context) ([]BankAccount, error) {
	rows, err := q.db.QueryContext(ctx, listBankAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BankAccount
	for rows.Next() {
		i, err := scanBankAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteBankAccount = `DELETE FROM bank_accounts WHERE id = ?`

func (q *Queries) DeleteBankAccount(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, deleteBankAccount, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
