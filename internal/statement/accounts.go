package statement

import (
	"context"
	"fmt"
	"net/url"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/db"
)

// Encrypter is the counterpart of Decrypter used when an account is registered.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Account is a bank account to register.
type Account struct {
	Collector string
	Url       string
	UserID    string
	Password  string
}

// RegisterAccount validates and stores account with its password encrypted.
func (s *Statement) RegisterAccount(ctx context.Context, keychain Encrypter, account Account) (int64, error) {
	if _, ok := s.registry[account.Collector]; !ok {
		return 0, fmt.Errorf(
			"%w: collector [%s] is not available, choose one of %v",
			collector.ErrConfiguration, account.Collector, s.registry.Names(),
		)
	}
	parsed, err := url.Parse(account.Url)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return 0, fmt.Errorf("%w: invalid bank url '%s'", collector.ErrConfiguration, account.Url)
	}
	if account.UserID == "" || account.Password == "" {
		return 0, fmt.Errorf("%w: no credential defined", collector.ErrConfiguration)
	}

	password, err := keychain.Encrypt(account.Password)
	if err != nil {
		return 0, err
	}
	return s.queries.CreateBankAccount(ctx, db.CreateBankAccountParams{
		Collector: account.Collector,
		Url:       account.Url,
		UserID:    account.UserID,
		Password:  password,
		CreatedAt: s.time.Now().Unix(),
	})
}

// Accounts lists the registered accounts in the order Collect visits them, passwords are left encrypted.
func (s *Statement) Accounts(ctx context.Context) ([]db.BankAccount, error) {
	return s.accounts.ListBankAccounts(ctx)
}

func (s *Statement) RemoveAccount(ctx context.Context, id int64) error {
	return s.queries.DeleteBankAccount(ctx, id)
}
