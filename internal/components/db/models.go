package db

type BankAccount struct {
	ID        int64
	Collector string
	Url       string
	UserID    string
	// Password is stored encrypted, see the keychain package.
	Password  string
	CreatedAt int64
}

type BankStatement struct {
	ID              int64
	BankAccountID   int64
	UniqueID        string
	TransactionDate string
	Description     string
	Type            string
	Amount          string
	CreatedAt       int64
}
