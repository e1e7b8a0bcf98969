// Package statement runs the registered collectors over every bank account and keeps
// the collected transactions in the database.
package statement

import (
	"context"
	"fmt"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/assert"
	"bankstatements/internal/components/chrono"
	"bankstatements/internal/components/db"
	"bankstatements/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const library_name = "bankstatements.statement"

var tracer = otel.Tracer(library_name)

func SetTracerProvider(provider trace.TracerProvider) {
	tracer = provider.Tracer(library_name)
}

const (
	report_collect_skip     = "collect.skip"
	report_collect_logout   = "collect.logout"
	report_collect_notify   = "collect.notify"
	report_collect_restore  = "collect.restore-state"
	report_collect_summary  = "collect.summary"
	report_collect_continue = "collect.continue"
)

var (
	ErrNoAccounts    = fmt.Errorf("%w: no bank accounts registered", collector.ErrConfiguration)
	ErrNoResumePoint = fmt.Errorf("%w: there is no suspended collection to continue", collector.ErrConfiguration)
)

// ExtendedProcessError is returned when a bank asks for a step that has to be done
// outside of the collector, the run can be picked up again with ContinueCollect.
type ExtendedProcessError struct {
	Collector string
	AccountID int64
	Err       error
}

func (e *ExtendedProcessError) Error() string {
	return fmt.Sprintf(
		"collector [%s] requires an extended process for account %d: %v",
		e.Collector, e.AccountID, e.Err,
	)
}

func (e *ExtendedProcessError) Unwrap() error {
	return e.Err
}

func (e *ExtendedProcessError) Is(target error) bool {
	return target == collector.ErrExtendedProcess
}

// AccountSource lists the bank accounts to collect from, in the order they should be visited.
type AccountSource interface {
	ListBankAccounts(ctx context.Context) ([]db.BankAccount, error)
}

// Decrypter turns a stored password back into plaintext.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// ResumeMarker remembers the single account a suspended run stopped at.
type ResumeMarker interface {
	SaveResumePoint(accountID int64) error
	ResumePoint() (int64, bool, error)
	ClearResumePoint() error
}

// Notifier is told whenever a run is suspended.
type Notifier interface {
	NotifyExtendedProcess(ctx context.Context, err *ExtendedProcessError) error
}

// Summary is what a single Collect or ContinueCollect did.
type Summary struct {
	// Accounts is the number of accounts that were collected from.
	Accounts int
	Skipped  int
	Created  int
	Updated  int
}

type Statement struct {
	queries         *db.Queries
	makeTx          db.MakeTx
	accounts        AccountSource
	registry        collector.Registry
	keychain        Decrypter
	marker          ResumeMarker
	tempStoragePath string
	time            chrono.TimeAPI
	tel             telemetry.API
	notifier        Notifier
}

func NewStatement(
	queries *db.Queries,
	makeTx db.MakeTx,
	accounts AccountSource,
	registry collector.Registry,
	keychain Decrypter,
	marker ResumeMarker,
	tempStoragePath string,
	time chrono.TimeAPI,
	tel telemetry.API,
) *Statement {
	assert.NotNil(queries)
	assert.NotNil(makeTx)
	assert.NotNil(accounts)
	assert.NotNil(registry)
	assert.NotNil(keychain)
	assert.NotNil(marker)
	assert.NotNil(time)
	assert.NotNil(tel)

	return &Statement{
		queries:         queries,
		makeTx:          makeTx,
		accounts:        accounts,
		registry:        registry,
		keychain:        keychain,
		marker:          marker,
		tempStoragePath: tempStoragePath,
		time:            time,
		tel:             telemetry.NewScopedAPI("statement", tel),
	}
}

// SetNotifier sets who is told about suspended runs, nil disables notifications.
func (s *Statement) SetNotifier(notifier Notifier) {
	s.notifier = notifier
}

func (s *Statement) TempStoragePath() string {
	return s.tempStoragePath
}
