package db

import (
	"context"
	"fmt"
	"strings"
)

const bankStatementColumns = `id, bank_account_id, unique_id, transaction_date, description, type, amount, created_at`

func scanBankStatement(row interface{ Scan(...any) error }) (BankStatement, error) {
	var i BankStatement
	err := row.Scan(
		&i.ID,
		&i.BankAccountID,
		&i.UniqueID,
		&i.TransactionDate,
		&i.Description,
		&i.Type,
		&i.Amount,
		&i.CreatedAt,
	)
	return i, err
}

const findStatementByUniqueID = `SELECT ` + bankStatementColumns + ` FROM bank_statements WHERE unique_id = ?`

func (q *Queries) FindStatementByUniqueID(ctx context.Context, uniqueID string) (BankStatement, error) {
	i, err := scanBankStatement(q.db.QueryRowContext(ctx, findStatementByUniqueID, uniqueID))
	return i, notFound(err)
}

const createStatement = `
INSERT INTO bank_statements (bank_account_id, unique_id, transaction_date, description, type, amount, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`

type CreateStatementParams struct {
	BankAccountID   int64
	UniqueID        string
	TransactionDate string
	Description     string
	Type            string
	Amount          string
	CreatedAt       int64
}

func (q *Queries) CreateStatement(ctx context.Context, arg CreateStatementParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createStatement,
		arg.BankAccountID,
		arg.UniqueID,
		arg.TransactionDate,
		arg.Description,
		arg.Type,
		arg.Amount,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateStatementDate = `UPDATE bank_statements SET transaction_date = ? WHERE id = ?`

func (q *Queries) UpdateStatementDate(ctx context.Context, id int64, transactionDate string) error {
	_, err := q.db.ExecContext(ctx, updateStatementDate, transactionDate, id)
	return err
}

// StatementFilter narrows down SearchStatements and CountStatements, zero values are ignored.
type StatementFilter struct {
	BankAccountID int64
	// FromDate and EndDate are inclusive YYYY-MM-DD bounds.
	FromDate string
	EndDate  string
	Type     string
	Amount   string
}

func (f StatementFilter) where() (string, []any) {
	var where []string
	var args []any

	if f.BankAccountID > 0 {
		where = append(where, "bank_account_id = ?")
		args = append(args, f.BankAccountID)
	}
	if f.FromDate != "" {
		where = append(where, "transaction_date >= ?")
		args = append(args, f.FromDate)
	}
	if f.EndDate != "" {
		where = append(where, "transaction_date <= ?")
		args = append(args, f.EndDate)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Amount != "" {
		where = append(where, "CAST(amount AS REAL) = CAST(? AS REAL)")
		args = append(args, f.Amount)
	}

	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

var sortableStatementColumns = map[string]string{
	"id":               "id",
	"bank_account_id":  "bank_account_id",
	"transaction_date": "transaction_date",
	"description":      "description",
	"type":             "type",
	"amount":           "CAST(amount AS REAL)",
	"created_at":       "created_at",
}

// IsSortableStatementColumn reports whether SearchStatements accepts `column` for OrderBy.
func IsSortableStatementColumn(column string) bool {
	_, ok := sortableStatementColumns[column]
	return ok
}

type SearchStatementsParams struct {
	Filter StatementFilter
	// OrderBy must be a column accepted by IsSortableStatementColumn, defaults to id.
	OrderBy string
	Desc    bool
	Limit   int64
	Offset  int64
}

func (q *Queries) SearchStatements(ctx context.Context, arg SearchStatementsParams) ([]BankStatement, error) {
	orderBy := "id"
	if arg.OrderBy != "" {
		column, ok := sortableStatementColumns[arg.OrderBy]
		if !ok {
			return nil, fmt.Errorf("cannot order statements by '%s'", arg.OrderBy)
		}
		orderBy = column
	}
	direction := "ASC"
	if arg.Desc {
		direction = "DESC"
	}

	where, args := arg.Filter.where()
	query := `SELECT ` + bankStatementColumns + ` FROM bank_statements` + where +
		fmt.Sprintf(" ORDER BY %s %s, id %s", orderBy, direction, direction)
	if arg.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, arg.Limit, arg.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BankStatement
	for rows.Next() {
		i, err := scanBankStatement(rows)
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

func (q *Queries) CountStatements(ctx context.Context, filter StatementFilter) (int64, error) {
	where, args := filter.where()
	row := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bank_statements`+where, args...)
	var count int64
	err := row.Scan(&count)
	return count, err
}
