package statement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/db"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/keychain"
	"bankstatements/internal/statestore"

	"github.com/stretchr/testify/require"
)

type fixedTime struct {
	now time.Time
}

func (t fixedTime) Now() time.Time {
	return t.now
}

func (t fixedTime) Location() *time.Location {
	return time.UTC
}

// fakeCollector plays a scripted bank session and records what it was asked to do.
type fakeCollector struct {
	collector.Settings
	name string

	landingErr    error
	landingStatus int
	loginErr      error
	collectErr    error
	entities      func(params map[string]string) []collector.Entity
	restorable    bool

	calls    []string
	loggedIn bool
}

func (f *fakeCollector) Name() string { return f.name }

func (f *fakeCollector) Landing(context.Context) (int, error) {
	f.calls = append(f.calls, "landing")
	if f.landingErr != nil {
		return 0, f.landingErr
	}
	if f.landingStatus != 0 {
		return f.landingStatus, nil
	}
	return http.StatusOK, nil
}

func (f *fakeCollector) Login(context.Context) (int, error) {
	f.calls = append(f.calls, "login:"+f.Password)
	if f.loginErr != nil {
		return 0, f.loginErr
	}
	f.loggedIn = true
	return http.StatusOK, nil
}

func (f *fakeCollector) Collect(_ context.Context, start, end time.Time) ([]collector.Entity, error) {
	f.calls = append(f.calls, "collect")
	if f.collectErr != nil {
		return nil, f.collectErr
	}
	if f.entities == nil {
		return nil, nil
	}
	return f.entities(f.Params), nil
}

func (f *fakeCollector) Logout(context.Context) (int, error) {
	if !f.loggedIn {
		return 0, nil
	}
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return http.StatusOK, nil
}

func (f *fakeCollector) SaveState(id string) (bool, error) {
	f.calls = append(f.calls, "save:"+id)
	return true, nil
}

func (f *fakeCollector) RestoreState(id string, removeAfter bool) (bool, error) {
	f.calls = append(f.calls, fmt.Sprintf("restore:%s:%v", id, removeAfter))
	return f.restorable, nil
}

// bank builds collectors from a template and keeps every instance it built.
type bank struct {
	template fakeCollector
	built    []*fakeCollector
}

func (b *bank) factory() (collector.Collector, error) {
	c := b.template
	c.calls = nil
	b.built = append(b.built, &c)
	return &c, nil
}

func (b *bank) calls() [][]string {
	var out [][]string
	for _, c := range b.built {
		out = append(out, c.calls)
	}
	return out
}

type staticAccounts []db.BankAccount

func (a staticAccounts) ListBankAccounts(context.Context) ([]db.BankAccount, error) {
	return a, nil
}

type recordingNotifier struct {
	received []*ExtendedProcessError
}

func (n *recordingNotifier) NotifyExtendedProcess(_ context.Context, err *ExtendedProcessError) error {
	n.received = append(n.received, err)
	return nil
}

type fixture struct {
	statement *Statement
	queries   *db.Queries
	keychain  keychain.Keychain
	marker    statestore.FileStore
	tel       *telemetry.Recorder
}

func newFixture(t *testing.T, accounts AccountSource, registry collector.Registry) fixture {
	sqldb, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	k, err := keychain.New("test secret")
	require.NoError(t, err)

	queries := db.New(sqldb)
	if accounts == nil {
		accounts = queries
	}
	dir := t.TempDir()
	marker := statestore.NewFileStore(dir)
	tel := &telemetry.Recorder{}

	s := NewStatement(
		queries,
		db.NewMakeTx(sqldb),
		accounts,
		registry,
		k,
		marker,
		dir,
		fixedTime{now: time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC)},
		tel,
	)
	return fixture{statement: s, queries: queries, keychain: k, marker: marker, tel: tel}
}

func (f fixture) encrypt(t *testing.T, password string) string {
	ciphertext, err := f.keychain.Encrypt(password)
	require.NoError(t, err)
	return ciphertext
}

func entity(params map[string]string, date, description, amount string) collector.Entity {
	return collector.Entity{
		AccountID:   params["account_id"],
		UniqueID:    collector.Identifier(params, description, "DB", amount),
		Date:        date,
		Description: description,
		Type:        collector.Debit,
		Amount:      amount,
	}
}

var (
	march      = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	endOfMarch = time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
)

func TestCollectSkipsLoginFailure(t *testing.T) {
	ctx := context.Background()

	good := &bank{template: fakeCollector{
		name: "good",
		entities: func(params map[string]string) []collector.Entity {
			return []collector.Entity{
				entity(params, "2024-03-05", "TRANSFER|TO JOHN", "1000.00"),
				entity(params, "2024-03-00", "BIAYA ADM", "15.00"),
			}
		},
	}}
	locked := &bank{template: fakeCollector{
		name:     "locked",
		loginErr: fmt.Errorf("%w: already logged in", collector.ErrLoginFailure),
		entities: func(params map[string]string) []collector.Entity {
			return []collector.Entity{entity(params, "2024-03-06", "SHOULD NOT BE STORED", "1.00")}
		},
	}}
	f := newFixture(t, nil, collector.Registry{"good": good.factory, "locked": locked.factory})

	first, err := f.queries.CreateBankAccount(ctx, db.CreateBankAccountParams{
		Collector: "good", Url: "https://good.example", UserID: "alice", Password: f.encrypt(t, "pw-good"),
	})
	require.NoError(t, err)
	second, err := f.queries.CreateBankAccount(ctx, db.CreateBankAccountParams{
		Collector: "locked", Url: "https://locked.example", UserID: "bob", Password: f.encrypt(t, "pw-locked"),
	})
	require.NoError(t, err)

	summary, err := f.statement.Collect(ctx, march, endOfMarch)
	require.NoError(t, err)
	require.Equal(t, Summary{Accounts: 1, Skipped: 1, Created: 2}, summary)

	// accounts are visited newest first
	require.Equal(t, [][]string{{"landing", "login:pw-locked"}}, locked.calls())
	require.Equal(t, [][]string{{"landing", "login:pw-good", "collect", "logout"}}, good.calls())

	require.Equal(t, "https://good.example", good.built[0].BaseUri)
	require.Equal(t, f.statement.TempStoragePath(), good.built[0].TempStoragePath)
	require.Equal(t, fmt.Sprint(first), good.built[0].Params["account_id"])

	count, err := f.queries.CountStatements(ctx, db.StatementFilter{BankAccountID: second})
	require.NoError(t, err)
	require.Zero(t, count)
	count, err = f.queries.CountStatements(ctx, db.StatementFilter{BankAccountID: first})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()

	pending := true
	b := &bank{template: fakeCollector{
		name: "bank",
		entities: func(params map[string]string) []collector.Entity {
			fee := entity(params, "2024-03-00", "BIAYA ADM", "15.00")
			if !pending {
				fee.Date = "2024-03-31"
				fee.Description = "BIAYA ADMINISTRASI"
			}
			return []collector.Entity{
				entity(params, "2024-03-05", "TRANSFER|TO JOHN", "1000.00"),
				fee,
			}
		},
	}}
	f := newFixture(t, nil, collector.Registry{"bank": b.factory})
	_, err := f.queries.CreateBankAccount(ctx, db.CreateBankAccountParams{
		Collector: "bank", Url: "https://bank.example", UserID: "alice", Password: f.encrypt(t, "pw"),
	})
	require.NoError(t, err)

	summary, err := f.statement.Collect(ctx, march, endOfMarch)
	require.NoError(t, err)
	require.Equal(t, Summary{Accounts: 1, Created: 2}, summary)

	summary, err = f.statement.Collect(ctx, march, endOfMarch)
	require.NoError(t, err)
	require.Equal(t, Summary{Accounts: 1}, summary)

	pending = false
	summary, err = f.statement.Collect(ctx, march, endOfMarch)
	require.NoError(t, err)
	require.Equal(t, Summary{Accounts: 1, Updated: 1}, summary)

	statements, total, err := f.statement.Search(ctx, SearchParams{OrderBy: "transaction_date", Order: "asc"}, 1, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, statements, 2)
	require.Equal(t, "2024-03-05", statements[0].TransactionDate)

	fee := statements[1]
	require.Equal(t, "2024-03-31", fee.TransactionDate)
	require.Equal(t, "BIAYA ADM", fee.Description)
	require.Equal(t, "15.00", fee.Amount)
	require.Equal(t, "DB", fee.Type)
}

func TestCollectSuspends(t *testing.T) {
	ctx := context.Background()

	b := &bank{template: fakeCollector{
		name:       "otp",
		landingErr: fmt.Errorf("%w: one time password required", collector.ErrExtendedProcess),
	}}
	accounts := staticAccounts{
		{ID: 9, Collector: "otp", Url: "https://otp.example", UserID: "carol"},
		{ID: 3, Collector: "otp", Url: "https://otp.example", UserID: "dave"},
	}
	f := newFixture(t, accounts, collector.Registry{"otp": b.factory})
	for i := range accounts {
		accounts[i].Password = f.encrypt(t, "pw")
	}
	notifier := &recordingNotifier{}
	f.statement.SetNotifier(notifier)

	_, err := f.statement.Collect(ctx, march, endOfMarch)
	require.ErrorIs(t, err, collector.ErrExtendedProcess)
	require.Equal(t, collector.KindExtendedProcess, collector.KindOf(err))

	var suspended *ExtendedProcessError
	require.True(t, errors.As(err, &suspended))
	require.Equal(t, "otp", suspended.Collector)
	require.EqualValues(t, 9, suspended.AccountID)

	// the run stops at the first suspended account
	require.Equal(t, [][]string{{"landing", "save:otp"}}, b.calls())

	resume, ok, err := f.marker.ResumePoint()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 9, resume)

	require.Len(t, notifier.received, 1)
	require.Same(t, suspended, notifier.received[0])
}

func TestContinueCollect(t *testing.T) {
	ctx := context.Background()

	b := &bank{template: fakeCollector{
		name:       "otp",
		restorable: true,
		entities: func(params map[string]string) []collector.Entity {
			return []collector.Entity{entity(params, "2024-03-05", "TRANSFER", "10.00")}
		},
	}}
	accounts := staticAccounts{
		{ID: 9, Collector: "otp", UserID: "carol"},
		{ID: 7, Collector: "otp", UserID: "dave"},
		{ID: 3, Collector: "otp", UserID: "erin"},
	}
	f := newFixture(t, accounts, collector.Registry{"otp": b.factory})
	for i := range accounts {
		accounts[i].Password = f.encrypt(t, "stored")
	}
	require.NoError(t, f.marker.SaveResumePoint(7))

	summary, err := f.statement.ContinueCollect(ctx, march, endOfMarch, map[string]string{"otp": "fresh"})
	require.NoError(t, err)
	require.Equal(t, Summary{Accounts: 2, Skipped: 1, Created: 2}, summary)

	require.Equal(t, [][]string{
		{"restore:otp:true", "login:fresh", "collect", "logout"},
		{"landing", "login:stored", "collect", "logout"},
	}, b.calls())

	_, ok, err := f.marker.ResumePoint()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestContinueCollectWithoutPassword(t *testing.T) {
	ctx := context.Background()

	b := &bank{template: fakeCollector{name: "otp", restorable: true}}
	accounts := staticAccounts{{ID: 7, Collector: "otp", UserID: "dave"}}
	f := newFixture(t, accounts, collector.Registry{"otp": b.factory})
	accounts[0].Password = f.encrypt(t, "stored")
	require.NoError(t, f.marker.SaveResumePoint(7))

	summary, err := f.statement.ContinueCollect(ctx, march, endOfMarch, nil)
	require.NoError(t, err)
	require.Equal(t, Summary{Skipped: 1}, summary)
	require.Equal(t, [][]string{nil}, b.calls())
}

func TestContinueCollectFallsBackToLanding(t *testing.T) {
	ctx := context.Background()

	b := &bank{template: fakeCollector{name: "otp"}}
	accounts := staticAccounts{{ID: 7, Collector: "otp", UserID: "dave"}}
	f := newFixture(t, accounts, collector.Registry{"otp": b.factory})
	accounts[0].Password = f.encrypt(t, "stored")
	require.NoError(t, f.marker.SaveResumePoint(7))

	_, err := f.statement.ContinueCollect(ctx, march, endOfMarch, map[string]string{"otp": "fresh"})
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"restore:otp:true", "landing", "login:fresh", "collect", "logout"},
	}, b.calls())
	require.True(t, f.tel.Has("warning", report_collect_restore))
}

func TestContinueCollectWithoutResumePoint(t *testing.T) {
	f := newFixture(t, staticAccounts{{ID: 1}}, collector.Registry{})
	_, err := f.statement.ContinueCollect(context.Background(), march, endOfMarch, nil)
	require.ErrorIs(t, err, ErrNoResumePoint)
	require.ErrorIs(t, err, collector.ErrConfiguration)
}

func TestCollectAccountsWithoutCollector(t *testing.T) {
	f := newFixture(t, staticAccounts{{ID: 1, Collector: ""}}, collector.Registry{})
	summary, err := f.statement.Collect(context.Background(), march, endOfMarch)
	require.NoError(t, err)
	require.Equal(t, Summary{Skipped: 1}, summary)
}

func TestCollectNoAccounts(t *testing.T) {
	f := newFixture(t, staticAccounts{}, collector.Registry{})
	_, err := f.statement.Collect(context.Background(), march, endOfMarch)
	require.ErrorIs(t, err, ErrNoAccounts)
}

func TestCollectUnregisteredCollector(t *testing.T) {
	b := &bank{template: fakeCollector{name: "known"}}
	accounts := staticAccounts{
		{ID: 2, Collector: "unknown"},
		{ID: 1, Collector: "known"},
	}
	f := newFixture(t, accounts, collector.Registry{"known": b.factory})
	for i := range accounts {
		accounts[i].Password = f.encrypt(t, "pw")
	}

	_, err := f.statement.Collect(context.Background(), march, endOfMarch)
	require.ErrorIs(t, err, collector.ErrConfiguration)
	require.Empty(t, b.built)
}

func TestCollectLandingProblemsSkip(t *testing.T) {
	failing := &bank{template: fakeCollector{name: "down", landingErr: errors.New("connection refused")}}
	maintenance := &bank{template: fakeCollector{name: "busy", landingStatus: http.StatusAccepted}}
	accounts := staticAccounts{
		{ID: 2, Collector: "down"},
		{ID: 1, Collector: "busy"},
	}
	f := newFixture(t, accounts, collector.Registry{"down": failing.factory, "busy": maintenance.factory})
	for i := range accounts {
		accounts[i].Password = f.encrypt(t, "pw")
	}

	summary, err := f.statement.Collect(context.Background(), march, endOfMarch)
	require.NoError(t, err)
	require.Equal(t, Summary{Skipped: 2}, summary)
	require.Equal(t, [][]string{{"landing"}}, failing.calls())
	require.Equal(t, [][]string{{"landing"}}, maintenance.calls())
}

func TestCollectFailureLogsOutAndAborts(t *testing.T) {
	broken := &bank{template: fakeCollector{
		name:       "broken",
		collectErr: collector.ParsingError("required table not found at index #%d", 4),
	}}
	after := &bank{template: fakeCollector{name: "after"}}
	accounts := staticAccounts{
		{ID: 2, Collector: "broken"},
		{ID: 1, Collector: "after"},
	}
	f := newFixture(t, accounts, collector.Registry{"broken": broken.factory, "after": after.factory})
	for i := range accounts {
		accounts[i].Password = f.encrypt(t, "pw")
	}

	_, err := f.statement.Collect(context.Background(), march, endOfMarch)
	require.ErrorIs(t, err, collector.ErrParsing)
	require.Equal(t, [][]string{{"landing", "login:pw", "collect", "logout"}}, broken.calls())
	require.Empty(t, after.built)
}

func TestSearchAndExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, collector.Registry{})

	for i, row := range []db.CreateStatementParams{
		{BankAccountID: 1, UniqueID: "a", TransactionDate: "2024-03-01", Description: "ONE", Type: "DB", Amount: "10.00"},
		{BankAccountID: 1, UniqueID: "b", TransactionDate: "2024-03-02", Description: "TWO", Type: "CR", Amount: "20.00"},
		{BankAccountID: 2, UniqueID: "c", TransactionDate: "2024-03-03", Description: "THREE, WITH COMMA", Type: "DB", Amount: "30.50"},
		{BankAccountID: 2, UniqueID: "d", TransactionDate: "2024-04-01", Description: "FOUR", Type: "DB", Amount: "10"},
	} {
		row.CreatedAt = int64(1700000000 + i)
		_, err := f.queries.CreateStatement(ctx, row)
		require.NoError(t, err)
	}

	statements, total, err := f.statement.Search(ctx, SearchParams{Type: "db"}, 1, 2)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, statements, 2)
	// newest first by default
	require.Equal(t, "d", statements[0].UniqueID)
	require.Equal(t, "c", statements[1].UniqueID)

	statements, _, err = f.statement.Search(ctx, SearchParams{Type: "db"}, 2, 2)
	require.NoError(t, err)
	require.Len(t, statements, 1)
	require.Equal(t, "a", statements[0].UniqueID)

	statements, total, err = f.statement.Search(ctx, SearchParams{Amount: "10"}, 1, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, statements, 2)

	statements, _, err = f.statement.Search(ctx, SearchParams{FromDate: "2024-03-02", EndDate: "2024-03-31", BankAccountID: 2}, 1, 0)
	require.NoError(t, err)
	require.Len(t, statements, 1)
	require.Equal(t, "c", statements[0].UniqueID)

	_, _, err = f.statement.Search(ctx, SearchParams{OrderBy: "password"}, 1, 0)
	require.ErrorIs(t, err, collector.ErrConfiguration)
	_, _, err = f.statement.Search(ctx, SearchParams{Order: "sideways"}, 1, 0)
	require.ErrorIs(t, err, collector.ErrConfiguration)
	_, _, err = f.statement.Search(ctx, SearchParams{Amount: "ten"}, 1, 0)
	require.ErrorIs(t, err, collector.ErrConfiguration)
	_, _, err = f.statement.Search(ctx, SearchParams{FromDate: "03/01/2024"}, 1, 0)
	require.ErrorIs(t, err, collector.ErrConfiguration)

	var out bytes.Buffer
	require.NoError(t, ExportCSV(&out, statements))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, "id,bank_account_id,unique_id,transaction_date,description,type,amount,created_at", lines[0])
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], `"THREE, WITH COMMA"`)
	require.Contains(t, lines[1], "2023-11-14T22:13:22Z")
}

func TestRegisterAccount(t *testing.T) {
	ctx := context.Background()
	b := &bank{template: fakeCollector{name: "bca"}}
	f := newFixture(t, nil, collector.Registry{"bca": b.factory})

	id, err := f.statement.RegisterAccount(ctx, f.keychain, Account{
		Collector: "bca", Url: "https://ibank.example", UserID: "alice", Password: "s3cret",
	})
	require.NoError(t, err)

	stored, err := f.queries.GetBankAccount(ctx, id)
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", stored.Password)
	plaintext, err := f.keychain.Decrypt(stored.Password)
	require.NoError(t, err)
	require.Equal(t, "s3cret", plaintext)
	require.Equal(t, time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC).Unix(), stored.CreatedAt)

	_, err = f.statement.RegisterAccount(ctx, f.keychain, Account{
		Collector: "unknown", Url: "https://ibank.example", UserID: "alice", Password: "s3cret",
	})
	require.ErrorIs(t, err, collector.ErrConfiguration)
	_, err = f.statement.RegisterAccount(ctx, f.keychain, Account{
		Collector: "bca", Url: "ibank", UserID: "alice", Password: "s3cret",
	})
	require.ErrorIs(t, err, collector.ErrConfiguration)

	accounts, err := f.statement.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	require.NoError(t, f.statement.RemoveAccount(ctx, id))
	require.ErrorIs(t, f.statement.RemoveAccount(ctx, id), db.ErrRecordNotFound)
}
