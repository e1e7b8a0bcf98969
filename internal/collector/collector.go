// Package collector defines what a bank statement collector can do and the pieces shared
// between the bank specific implementations.
package collector

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"bankstatements/internal/statestore"
)

type TransactionType string

const (
	Credit TransactionType = "CR"
	Debit  TransactionType = "DB"
)

// Entity is a single normalized statement line.
type Entity struct {
	AccountID string
	// UniqueID is a content hash, see Identifier.
	UniqueID string
	// Date is YYYY-MM-DD, the day may be 00 for pending transactions.
	Date        string
	Description string
	Type        TransactionType
	// Amount is a plain decimal string (ex. 1000.00).
	Amount string
}

// Collector drives a stateful web session against a bank to retrieve statements.
//
// The expected life-cycle is Landing -> Login -> Collect (any number of times) -> Logout.
// A Collector is not safe for concurrent use.
type Collector interface {
	Name() string

	SetTempStoragePath(path string)
	SetBaseUri(uri string)
	SetCredential(userID, password string)
	SetAdditionalEntityParams(params map[string]string)

	Landing(ctx context.Context) (int, error)
	Login(ctx context.Context) (int, error)
	Collect(ctx context.Context, start, end time.Time) ([]Entity, error)
	// Logout returns 0 and no error if there was no session to log out of.
	Logout(ctx context.Context) (int, error)

	SaveState(id string) (bool, error)
	RestoreState(id string, removeAfter bool) (bool, error)
}

// Factory creates a fresh Collector.
type Factory func() (Collector, error)

// Registry maps collector names (as stored on bank accounts) to factories.
type Registry map[string]Factory

func (r Registry) New(name string) (Collector, error) {
	factory, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: collector '%s' is not available", ErrConfiguration, name)
	}
	return factory()
}

func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Settings holds the configuration every collector accepts, bank implementations embed it.
type Settings struct {
	TempStoragePath string
	BaseUri         string
	UserID          string
	Password        string
	Params          map[string]string
}

func (s *Settings) SetTempStoragePath(path string) {
	s.TempStoragePath = path
}

func (s *Settings) SetBaseUri(uri string) {
	s.BaseUri = strings.TrimRight(uri, "/")
}

func (s *Settings) SetCredential(userID, password string) {
	s.UserID = userID
	s.Password = password
}

func (s *Settings) SetAdditionalEntityParams(params map[string]string) {
	s.Params = maps.Clone(params)
}

// AccountID is the account_id additional entity param.
func (s *Settings) AccountID() string {
	return s.Params["account_id"]
}

func (s *Settings) Store() statestore.FileStore {
	return statestore.NewFileStore(s.TempStoragePath)
}

// CheckCredential fails if either part of the credential is missing.
func (s *Settings) CheckCredential() error {
	if s.UserID == "" {
		return configurationError("no user id defined")
	}
	if s.Password == "" {
		return configurationError("no user password defined")
	}
	return nil
}

func (s *Settings) CheckBaseUri() error {
	if s.BaseUri == "" {
		return configurationError("no base uri defined")
	}
	return nil
}
