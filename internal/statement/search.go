package statement

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/db"

	"github.com/gocarina/gocsv"
)

// Transaction is a stored statement row as it is shown to users.
type Transaction struct {
	ID              int64  `csv:"id"`
	BankAccountID   int64  `csv:"bank_account_id"`
	UniqueID        string `csv:"unique_id"`
	TransactionDate string `csv:"transaction_date"`
	Description     string `csv:"description"`
	Type            string `csv:"type"`
	Amount          string `csv:"amount"`
	CreatedAt       string `csv:"created_at"`
}

// SearchParams filters Search, zero values are ignored.
type SearchParams struct {
	BankAccountID int64
	FromDate      string
	EndDate       string
	Type          string
	Amount        string
	// OrderBy defaults to created_at.
	OrderBy string
	// Order is either ASC or DESC (the default).
	Order string
}

func (p SearchParams) filter() (db.StatementFilter, error) {
	filter := db.StatementFilter{
		BankAccountID: p.BankAccountID,
		FromDate:      p.FromDate,
		EndDate:       p.EndDate,
		Type:          strings.ToUpper(p.Type),
		Amount:        p.Amount,
	}
	if filter.Amount != "" && !collector.ValidAmount(filter.Amount) {
		return filter, fmt.Errorf("%w: invalid amount '%s'", collector.ErrConfiguration, filter.Amount)
	}
	for _, date := range []string{filter.FromDate, filter.EndDate} {
		if date == "" {
			continue
		}
		_, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid date '%s'", collector.ErrConfiguration, date)
		}
	}
	return filter, nil
}

// Search returns a page (starting at 1) of stored statements and the total number of
// statements that match params, a limit <= 0 returns everything.
func (s *Statement) Search(ctx context.Context, params SearchParams, page, limit int) ([]Transaction, int64, error) {
	filter, err := params.filter()
	if err != nil {
		return nil, 0, err
	}

	orderBy := params.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	if !db.IsSortableStatementColumn(orderBy) {
		return nil, 0, fmt.Errorf("%w: cannot order by '%s'", collector.ErrConfiguration, orderBy)
	}

	desc := true
	switch strings.ToUpper(params.Order) {
	case "", "DESC":
	case "ASC":
		desc = false
	default:
		return nil, 0, fmt.Errorf("%w: invalid order '%s'", collector.ErrConfiguration, params.Order)
	}

	if page < 1 {
		page = 1
	}
	arg := db.SearchStatementsParams{
		Filter:  filter,
		OrderBy: orderBy,
		Desc:    desc,
	}
	if limit > 0 {
		arg.Limit = int64(limit)
		arg.Offset = int64((page - 1) * limit)
	}

	total, err := s.queries.CountStatements(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.queries.SearchStatements(ctx, arg)
	if err != nil {
		return nil, 0, err
	}

	out := make([]Transaction, len(rows))
	for i, row := range rows {
		out[i] = Transaction{
			ID:              row.ID,
			BankAccountID:   row.BankAccountID,
			UniqueID:        row.UniqueID,
			TransactionDate: row.TransactionDate,
			Description:     row.Description,
			Type:            row.Type,
			Amount:          row.Amount,
			CreatedAt:       time.Unix(row.CreatedAt, 0).In(s.time.Location()).Format(time.RFC3339),
		}
	}
	return out, total, nil
}

// ExportCSV writes statements as csv with a header row.
func ExportCSV(w io.Writer, statements []Transaction) error {
	if statements == nil {
		statements = []Transaction{}
	}
	return gocsv.Marshal(statements, w)
}
