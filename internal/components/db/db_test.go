package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setup(t testing.TB) *sql.DB {
	sqldb, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })
	return sqldb
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	qry := New(setup(t))

	first, err := qry.CreateBankAccount(ctx, CreateBankAccountParams{
		Collector: "bca",
		UserID:    "alice",
		Password:  "encrypted",
		CreatedAt: 10,
	})
	require.NoError(t, err)
	second, err := qry.CreateBankAccount(ctx, CreateBankAccountParams{
		Collector: "mandiri",
		UserID:    "bob",
		Password:  "encrypted",
		CreatedAt: 11,
	})
	require.NoError(t, err)

	accounts, err := qry.ListBankAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, second, accounts[0].ID)
	require.Equal(t, first, accounts[1].ID)
	require.Equal(t, "mandiri", accounts[0].Collector)

	account, err := qry.GetBankAccount(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "alice", account.UserID)

	_, err = qry.GetBankAccount(ctx, 999)
	require.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, qry.DeleteBankAccount(ctx, first))
	require.ErrorIs(t, qry.DeleteBankAccount(ctx, first), ErrRecordNotFound)
}

func TestStatements(t *testing.T) {
	ctx := context.Background()
	qry := New(setup(t))

	accountId, err := qry.CreateBankAccount(ctx, CreateBankAccountParams{
		Collector: "bca",
		UserID:    "alice",
		Password:  "encrypted",
	})
	require.NoError(t, err)

	rows := []CreateStatementParams{
		{BankAccountID: accountId, UniqueID: "a", TransactionDate: "2024-03-01", Description: "SALARY", Type: "CR", Amount: "5000.00"},
		{BankAccountID: accountId, UniqueID: "b", TransactionDate: "2024-03-05", Description: "COFFEE", Type: "DB", Amount: "25.50"},
		{BankAccountID: accountId, UniqueID: "c", TransactionDate: "2024-03-00", Description: "PENDING", Type: "DB", Amount: "100.00"},
	}
	for _, r := range rows {
		_, err := qry.CreateStatement(ctx, r)
		require.NoError(t, err)
	}

	_, err = qry.CreateStatement(ctx, rows[0])
	require.Error(t, err, "unique_id must be unique")

	found, err := qry.FindStatementByUniqueID(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, "2024-03-00", found.TransactionDate)

	require.NoError(t, qry.UpdateStatementDate(ctx, found.ID, "2024-03-07"))
	found, err = qry.FindStatementByUniqueID(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, "2024-03-07", found.TransactionDate)

	_, err = qry.FindStatementByUniqueID(ctx, "missing")
	require.ErrorIs(t, err, ErrRecordNotFound)

	debits, err := qry.SearchStatements(ctx, SearchStatementsParams{
		Filter:  StatementFilter{Type: "DB"},
		OrderBy: "amount",
		Desc:    true,
	})
	require.NoError(t, err)
	require.Len(t, debits, 2)
	require.Equal(t, "c", debits[0].UniqueID)
	require.Equal(t, "b", debits[1].UniqueID)

	byAmount, err := qry.SearchStatements(ctx, SearchStatementsParams{
		Filter: StatementFilter{Amount: "5000"},
	})
	require.NoError(t, err)
	require.Len(t, byAmount, 1)
	require.Equal(t, "a", byAmount[0].UniqueID)

	count, err := qry.CountStatements(ctx, StatementFilter{FromDate: "2024-03-02", EndDate: "2024-03-31"})
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	page, err := qry.SearchStatements(ctx, SearchStatementsParams{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "b", page[0].UniqueID)

	_, err = qry.SearchStatements(ctx, SearchStatementsParams{OrderBy: "amount; DROP TABLE bank_statements"})
	require.Error(t, err)
}

func TestMakeTx(t *testing.T) {
	ctx := context.Background()
	sqldb := setup(t)
	makeTx := NewMakeTx(sqldb)

	tx, discard, _, err := makeTx(ctx)
	require.NoError(t, err)
	_, err = tx.CreateBankAccount(ctx, CreateBankAccountParams{Collector: "bca", UserID: "x", Password: "y"})
	require.NoError(t, err)
	require.NoError(t, discard())

	accounts, err := New(sqldb).ListBankAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)

	tx, _, commit, err := makeTx(ctx)
	require.NoError(t, err)
	_, err = tx.CreateBankAccount(ctx, CreateBankAccountParams{Collector: "bca", UserID: "x", Password: "y"})
	require.NoError(t, err)
	require.NoError(t, commit())

	accounts, err = New(sqldb).ListBankAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}

func TestOpenAndMigrate(t *testing.T) {
	ctx := context.Background()
	sqldb, err := Open(Config{File: filepath.Join(t.TempDir(), "statements.db")})
	require.NoError(t, err)
	defer sqldb.Close()

	require.NoError(t, Migrate(sqldb))
	// running it twice is a no-op
	require.NoError(t, Migrate(sqldb))

	_, err = New(sqldb).CreateBankAccount(ctx, CreateBankAccountParams{Collector: "bca", UserID: "x", Password: "y"})
	require.NoError(t, err)

	_, err = Open(Config{})
	require.Error(t, err)
}
