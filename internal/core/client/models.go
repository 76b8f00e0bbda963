package client

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the direction of a transaction.
type Kind string

// Set of transaction kinds.
const (
	KindCredit Kind = "c"
	KindDebit  Kind = "d"
)

func (k Kind) valid() bool {
	return k == KindCredit || k == KindDebit
}

type Client struct {
	ID      int
	Limit   int
	Balance int
}

type NewTransaction struct {
	Value       int
	Kind        Kind
	Description string
}

type Transaction struct {
	ID          uuid.UUID
	ClientID    int
	Value       int
	Kind        Kind
	Description string
	Date        time.Time
}

// Statement is a snapshot of a client's ledger.
type Statement struct {
	Balance          int
	Limit            int
	Date             time.Time
	LastTransactions []Transaction
}
