// Package client provides the business logic of the clients' ledger: applying
// transactions to a client's balance and producing statements.
package client

import (
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rschio/ledger/internal/web"
	"go.opentelemetry.io/otel/attribute"
)

// StatementSize is the maximum number of transactions in a statement.
const StatementSize = 10

// MaxValue is the largest amount a single transaction can carry. It is the
// largest integer a JSON number holds exactly.
const MaxValue = 1<<53 - 1

const maxDescriptionLen = 10

// Store is used to persist client's data.
type Store interface {
	// ExecUnderTx executes the fn function under a read-write transaction. If
	// fn returns an error the transaction is rolled back and the error is
	// returned.
	ExecUnderTx(ctx context.Context, fn func(tx Store) error) error

	// ExecUnderSnapshot executes the fn function under a read-only
	// transaction where every query sees the same snapshot of the data.
	ExecUnderSnapshot(ctx context.Context, fn func(tx Store) error) error

	QueryByID(ctx context.Context, clientID int) (Client, error)

	// QueryByIDForUpdate returns the client and holds a lock on it until the
	// transaction ends. It must be called under ExecUnderTx.
	QueryByIDForUpdate(ctx context.Context, clientID int) (Client, error)

	QueryAll(ctx context.Context) ([]Client, error)
	AddTransaction(ctx context.Context, t Transaction) error
	UpdateBalance(ctx context.Context, clientID int, balance int) error
	QueryTransactions(ctx context.Context, clientID int, pageNumber int, rowsPerPage int) ([]Transaction, error)
}

// Core deals with client's business logic.
type Core struct {
	store Store
	now   func() time.Time
}

// NewCore constructs a Core that persists data in store.
func NewCore(store Store) *Core {
	return &Core{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// AddTransaction applies nt to the client's balance and records it. It
// returns the client with the new balance. A debit that would take the
// balance below the credit limit fails with a *LimitExceededError and
// changes nothing.
func (c *Core) AddTransaction(ctx context.Context, clientID int, nt NewTransaction) (Client, error) {
	ctx, span := web.AddSpan(ctx, "core.client.AddTransaction",
		attribute.Int("client_id", clientID),
		attribute.String("kind", string(nt.Kind)),
	)
	defer span.End()

	if err := nt.validate(); err != nil {
		return Client{}, err
	}
	if !isValidID(clientID) {
		return Client{}, ErrNotFound
	}

	var updated Client
	fn := func(tx Store) error {
		client, err := tx.QueryByIDForUpdate(ctx, clientID)
		if err != nil {
			return err
		}

		var newBalance int
		switch nt.Kind {
		case KindDebit:
			if exceedsLimit(client, nt.Value) {
				return &LimitExceededError{
					Value:   nt.Value,
					Balance: client.Balance,
					Limit:   client.Limit,
				}
			}
			newBalance = client.Balance - nt.Value
		default:
			if client.Balance > math.MaxInt-nt.Value {
				return ErrBalanceOverflow
			}
			newBalance = client.Balance + nt.Value
		}

		// The row is locked, so dates taken here follow the commit order
		// of the client's transactions.
		t := Transaction{
			ID:          uuid.New(),
			ClientID:    clientID,
			Value:       nt.Value,
			Kind:        nt.Kind,
			Description: nt.Description,
			Date:        c.now().Truncate(time.Microsecond),
		}
		if err := tx.AddTransaction(ctx, t); err != nil {
			return fmt.Errorf("failed to add transaction: %w", err)
		}
		if err := tx.UpdateBalance(ctx, clientID, newBalance); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		client.Balance = newBalance
		updated = client
		return nil
	}

	if err := c.store.ExecUnderTx(ctx, fn); err != nil {
		return Client{}, err
	}

	return updated, nil
}

// Statement returns the client's balance, limit and last transactions,
// newest first, as they were at a single point in time.
func (c *Core) Statement(ctx context.Context, clientID int) (Statement, error) {
	ctx, span := web.AddSpan(ctx, "core.client.Statement", attribute.Int("client_id", clientID))
	defer span.End()

	if !isValidID(clientID) {
		return Statement{}, ErrNotFound
	}

	var st Statement
	fn := func(tx Store) error {
		client, err := tx.QueryByID(ctx, clientID)
		if err != nil {
			return err
		}

		ts, err := tx.QueryTransactions(ctx, clientID, 1, StatementSize)
		if err != nil {
			return fmt.Errorf("failed to query transactions: %w", err)
		}

		st = Statement{
			Balance:          client.Balance,
			Limit:            client.Limit,
			Date:             c.now(),
			LastTransactions: ts,
		}
		return nil
	}

	if err := c.store.ExecUnderSnapshot(ctx, fn); err != nil {
		return Statement{}, err
	}

	return st, nil
}

// QueryByID returns the client with the given id.
func (c *Core) QueryByID(ctx context.Context, clientID int) (Client, error) {
	if !isValidID(clientID) {
		return Client{}, ErrNotFound
	}
	return c.store.QueryByID(ctx, clientID)
}

// QueryAll returns every client ordered by id.
func (c *Core) QueryAll(ctx context.Context) ([]Client, error) {
	return c.store.QueryAll(ctx)
}

func (nt NewTransaction) validate() error {
	switch {
	case nt.Value <= 0:
		return &FieldError{Field: "value", Reason: "must be a positive integer"}
	case nt.Value > MaxValue:
		return &FieldError{Field: "value", Reason: fmt.Sprintf("must be at most %d", MaxValue)}
	case !nt.Kind.valid():
		return &FieldError{Field: "kind", Reason: `must be "c" or "d"`}
	case nt.Description == "":
		return &FieldError{Field: "description", Reason: "must not be empty"}
	case utf8.RuneCountInString(nt.Description) > maxDescriptionLen:
		return &FieldError{Field: "description", Reason: fmt.Sprintf("must have at most %d characters", maxDescriptionLen)}
	}

	return nil
}

// exceedsLimit reports whether debiting value takes the balance below the
// credit limit. The balance never sits below -Limit, so the available credit
// is never negative and only overflows when it is larger than any value.
func exceedsLimit(c Client, value int) bool {
	if c.Limit > 0 && c.Balance > math.MaxInt-c.Limit {
		return false
	}
	return value > c.Balance+c.Limit
}

func isValidID(id int) bool {
	return id > 0
}
