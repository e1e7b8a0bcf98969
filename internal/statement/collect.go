package statement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/db"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// run is the state shared by every account of a single Collect or ContinueCollect.
type run struct {
	start time.Time
	end   time.Time

	// resuming is set for ContinueCollect, resumeID is the account the previous run stopped at
	resuming  bool
	resumeID  int64
	passwords map[string]string

	summary Summary
}

// Collect runs landing, login, collect and logout for every bank account.
//
// A bank asking for an extended process stops the run with an *ExtendedProcessError after
// the state of the collector was saved, use ContinueCollect to pick it up again.
func (s *Statement) Collect(ctx context.Context, start, end time.Time) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Collect")
	defer span.End()

	r := &run{start: start, end: end}
	err := s.each(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return r.summary, err
	}
	s.reportSummary(r.summary)
	return r.summary, nil
}

// ContinueCollect continues a run that was suspended by an extended process.
//
// Accounts that come before the suspended one were already collected and are skipped,
// the suspended account restores its saved session and logs in with the password given
// in passwords under its collector name. The resume point is removed once the run completes.
func (s *Statement) ContinueCollect(ctx context.Context, start, end time.Time, passwords map[string]string) (Summary, error) {
	ctx, span := tracer.Start(ctx, "ContinueCollect")
	defer span.End()

	resumeID, ok, err := s.marker.ResumePoint()
	if err != nil {
		return Summary{}, err
	}
	if !ok {
		return Summary{}, ErrNoResumePoint
	}
	span.SetAttributes(attribute.Int64("resume_account_id", resumeID))

	r := &run{
		start:     start,
		end:       end,
		resuming:  true,
		resumeID:  resumeID,
		passwords: passwords,
	}
	err = s.each(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return r.summary, err
	}

	err = s.marker.ClearResumePoint()
	if err != nil {
		return r.summary, err
	}
	s.reportSummary(r.summary)
	return r.summary, nil
}

func (s *Statement) reportSummary(summary Summary) {
	s.tel.ReportDebug(
		report_collect_summary,
		"accounts", summary.Accounts,
		"skipped", summary.Skipped,
		"created", summary.Created,
		"updated", summary.Updated,
	)
}

func (s *Statement) each(ctx context.Context, r *run) error {
	accounts, err := s.accounts.ListBankAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return ErrNoAccounts
	}

	for _, account := range accounts {
		if r.resuming && account.ID > r.resumeID {
			s.skip(r, account, "already collected before the suspension")
			continue
		}
		err := s.collectAccount(ctx, r, account)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Statement) skip(r *run, account db.BankAccount, reason string, params ...any) {
	r.summary.Skipped++
	s.tel.ReportDebug(
		report_collect_skip,
		append([]any{"account", account.ID, "collector", account.Collector, "reason", reason}, params...)...,
	)
}

func (s *Statement) logout(ctx context.Context, c collector.Collector, account db.BankAccount) {
	_, err := c.Logout(ctx)
	if err != nil {
		s.tel.ReportWarning(report_collect_logout, err, "account", account.ID)
	}
}

func (s *Statement) collectAccount(ctx context.Context, r *run, account db.BankAccount) error {
	if account.Collector == "" {
		s.skip(r, account, "no collector")
		return nil
	}

	ctx, span := tracer.Start(ctx, "collectAccount")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("account_id", account.ID),
		attribute.String("collector", account.Collector),
	)

	c, err := s.registry.New(account.Collector)
	if err != nil {
		return err
	}
	password, err := s.keychain.Decrypt(account.Password)
	if err != nil {
		return fmt.Errorf("decrypt password of account %d: %w", account.ID, err)
	}

	c.SetTempStoragePath(s.tempStoragePath)
	c.SetBaseUri(account.Url)
	c.SetCredential(account.UserID, password)
	c.SetAdditionalEntityParams(map[string]string{
		"account_id": fmt.Sprint(account.ID),
	})

	restored := false
	if r.resuming && account.ID == r.resumeID {
		fresh := r.passwords[account.Collector]
		if fresh == "" {
			s.skip(r, account, "no password given for the suspended account")
			return nil
		}
		c.SetCredential(account.UserID, fresh)

		restored, err = c.RestoreState(account.Collector, true)
		if err != nil {
			return err
		}
		if !restored {
			s.tel.ReportWarning(
				report_collect_restore,
				fmt.Errorf("no saved state for collector [%s], landing again", account.Collector),
				"account", account.ID,
			)
		} else {
			s.tel.ReportDebug(report_collect_continue, "account", account.ID)
		}
	}

	if !restored {
		status, err := c.Landing(ctx)
		if errors.Is(err, collector.ErrExtendedProcess) {
			return s.suspend(ctx, c, account, err)
		}
		if err != nil {
			s.skip(r, account, "landing failed", "err", err)
			return nil
		}
		if status != http.StatusOK {
			s.skip(r, account, "landing failed", "status", status)
			return nil
		}
	}

	status, err := c.Login(ctx)
	if errors.Is(err, collector.ErrLoginFailure) {
		s.skip(r, account, "login failed", "err", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("login to account %d: %w", account.ID, err)
	}
	if status != http.StatusOK {
		s.skip(r, account, "login failed", "status", status)
		return nil
	}

	entities, err := c.Collect(ctx, r.start, r.end)
	if err != nil {
		s.logout(ctx, c, account)
		return fmt.Errorf("collect from account %d: %w", account.ID, err)
	}

	created, updated, err := s.upsert(ctx, account.ID, entities)
	if err != nil {
		s.logout(ctx, c, account)
		return fmt.Errorf("save statements of account %d: %w", account.ID, err)
	}
	r.summary.Created += created
	r.summary.Updated += updated
	r.summary.Accounts++

	s.logout(ctx, c, account)
	return nil
}

func (s *Statement) suspend(ctx context.Context, c collector.Collector, account db.BankAccount, cause error) error {
	_, err := c.SaveState(account.Collector)
	if err != nil {
		return fmt.Errorf("save state of collector [%s]: %w", account.Collector, err)
	}
	err = s.marker.SaveResumePoint(account.ID)
	if err != nil {
		return fmt.Errorf("save resume point: %w", err)
	}

	suspended := &ExtendedProcessError{
		Collector: account.Collector,
		AccountID: account.ID,
		Err:       cause,
	}
	if s.notifier != nil {
		err = s.notifier.NotifyExtendedProcess(ctx, suspended)
		if err != nil {
			s.tel.ReportWarning(report_collect_notify, err)
		}
	}
	return suspended
}

// upsert stores new entities and moves the date of known ones, a pending transaction
// keeps its unique id once it settles.
func (s *Statement) upsert(ctx context.Context, accountID int64, entities []collector.Entity) (created, updated int, err error) {
	if len(entities) == 0 {
		return 0, 0, nil
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer discard()

	now := s.time.Now().Unix()
	for _, e := range entities {
		existing, err := tx.FindStatementByUniqueID(ctx, e.UniqueID)
		if errors.Is(err, db.ErrRecordNotFound) {
			_, err = tx.CreateStatement(ctx, db.CreateStatementParams{
				BankAccountID:   accountID,
				UniqueID:        e.UniqueID,
				TransactionDate: e.Date,
				Description:     e.Description,
				Type:            string(e.Type),
				Amount:          e.Amount,
				CreatedAt:       now,
			})
			if err != nil {
				return 0, 0, err
			}
			created++
			continue
		}
		if err != nil {
			return 0, 0, err
		}

		if existing.TransactionDate != e.Date {
			err = tx.UpdateStatementDate(ctx, existing.ID, e.Date)
			if err != nil {
				return 0, 0, err
			}
			updated++
		}
	}

	err = commit()
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}
