package clientdb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/rschio/ledger/internal/core/client"
	db "github.com/rschio/ledger/internal/data/dbsql/pgx"
	"github.com/rschio/ledger/internal/data/dbtest"
)

func TestQueryByID(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations(), dbtest.WithSeed())
	t.Cleanup(teardown)

	store := NewStore(log, database)

	c, err := store.QueryByID(ctx, 1)
	if err != nil {
		t.Fatalf("failed to query client by id[%d]: %v", 1, err)
	}

	if c.ID != 1 {
		t.Errorf("wrong id, got %d want %v", c.ID, 1)
	}
	if c.Limit != 100000 {
		t.Errorf("wrong limit, got %d want %v", c.Limit, 100000)
	}
	if c.Balance != 0 {
		t.Errorf("wrong balance, got %d want %v", c.Balance, 0)
	}

	if _, err := store.QueryByID(ctx, 6); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("got err %v, want %v", err, client.ErrNotFound)
	}
}

func TestQueryAll(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations(), dbtest.WithSeed())
	t.Cleanup(teardown)

	store := NewStore(log, database)

	cs, err := store.QueryAll(ctx)
	if err != nil {
		t.Fatalf("failed to query clients: %v", err)
	}

	want := []client.Client{
		{ID: 1, Limit: 100000},
		{ID: 2, Limit: 80000},
		{ID: 3, Limit: 1000000},
		{ID: 4, Limit: 10000000},
		{ID: 5, Limit: 500000},
	}
	if diff := cmp.Diff(want, cs); diff != "" {
		t.Fatalf("got different clients (-want +got):\n%s", diff)
	}
}

func TestQueryTransactions(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations(), dbtest.WithSeed())
	t.Cleanup(teardown)

	store := NewStore(log, database)

	clientID := 3
	start := time.Now().UTC().Truncate(time.Microsecond)
	for i := range 25 {
		tr := genTransaction(clientID)
		tr.Value = i + 1
		tr.Date = start.Add(time.Duration(i) * time.Millisecond)
		if err := store.AddTransaction(ctx, tr); err != nil {
			t.Fatalf("failed to add transaction: %v", err)
		}
	}

	ts, err := store.QueryTransactions(ctx, clientID, 1, 10)
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if len(ts) != 10 {
		t.Fatalf("got %d transactions, want %d", len(ts), 10)
	}
	for i, tr := range ts {
		if want := 25 - i; tr.Value != want {
			t.Errorf("transaction[%d]: wrong value got %d want %d", i, tr.Value, want)
		}
		if tr.Kind != client.KindDebit {
			t.Errorf("transaction[%d]: wrong kind got %q want %q", i, tr.Kind, client.KindDebit)
		}
	}

	ts, err = store.QueryTransactions(ctx, clientID, 3, 10)
	if err != nil {
		t.Fatalf("failed to query 3rd page: %v", err)
	}
	if len(ts) != 5 {
		t.Fatalf("got %d transactions on last page, want %d", len(ts), 5)
	}

	clientID = 1
	ts, err = store.QueryTransactions(ctx, clientID, 1, 10)
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if len(ts) != 0 {
		t.Errorf("got %d should return 0 transactions", len(ts))
	}
}

func TestAddTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations(), dbtest.WithSeed())
	t.Cleanup(teardown)

	store := NewStore(log, database)

	want := genTransaction(2)
	if err := store.AddTransaction(ctx, want); err != nil {
		t.Fatalf("failed to add transaction: %v", err)
	}

	ts, err := store.QueryTransactions(ctx, 2, 1, 10)
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if diff := cmp.Diff([]client.Transaction{want}, ts); diff != "" {
		t.Fatalf("got different transactions (-want +got):\n%s", diff)
	}
}

func TestExecUnderTxRollback(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations(), dbtest.WithSeed())
	t.Cleanup(teardown)

	store := NewStore(log, database)
	errAbort := errors.New("abort")

	clientID := 4
	err := store.ExecUnderTx(ctx, func(tx client.Store) error {
		if _, err := tx.QueryByIDForUpdate(ctx, clientID); err != nil {
			return err
		}
		if err := tx.AddTransaction(ctx, genTransaction(clientID)); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, clientID, -750); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("got err %v, want %v", err, errAbort)
	}

	c, err := store.QueryByID(ctx, clientID)
	if err != nil {
		t.Fatalf("failed to query client: %v", err)
	}
	if c.Balance != 0 {
		t.Errorf("balance changed after rollback: got %d want %d", c.Balance, 0)
	}

	ts, err := store.QueryTransactions(ctx, clientID, 1, 10)
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if len(ts) != 0 {
		t.Errorf("got %d transactions after rollback, want 0", len(ts))
	}
}

func TestUpdateBalanceNotFound(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations(), dbtest.WithSeed())
	t.Cleanup(teardown)

	store := NewStore(log, database)

	if err := store.UpdateBalance(ctx, 42, 10); !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("got err %v, want %v", err, client.ErrNotFound)
	}
}

func TestQueryByIDForUpdateBlocks(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations(), dbtest.WithSeed())
	t.Cleanup(teardown)

	store := NewStore(log, database)

	clientID := 5
	locked := make(chan struct{})
	release := make(chan struct{})
	holderErr := make(chan error, 1)
	go func() {
		holderErr <- store.ExecUnderTx(ctx, func(tx client.Store) error {
			if _, err := tx.QueryByIDForUpdate(ctx, clientID); err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			return tx.UpdateBalance(ctx, clientID, 100)
		})
	}()

	<-locked

	waiterErr := make(chan error, 1)
	var seen client.Client
	go func() {
		waiterErr <- store.ExecUnderTx(ctx, func(tx client.Store) error {
			c, err := tx.QueryByIDForUpdate(ctx, clientID)
			seen = c
			return err
		})
	}()

	select {
	case err := <-waiterErr:
		t.Fatalf("second locker did not wait for the first: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	if err := <-holderErr; err != nil {
		t.Fatalf("holder: %v", err)
	}
	if err := <-waiterErr; err != nil {
		t.Fatalf("waiter: %v", err)
	}

	if seen.Balance != 100 {
		t.Fatalf("waiter read balance %d, want the committed %d", seen.Balance, 100)
	}
}

func genTransaction(clientID int) client.Transaction {
	return client.Transaction{
		ID:          uuid.New(),
		ClientID:    clientID,
		Value:       750,
		Kind:        client.KindDebit,
		Description: "desc",
		Date:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestToCoreErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", db.ErrDBNotFound, client.ErrNotFound},
		{"transient", fmt.Errorf("%w: serialization failure", db.ErrDBTransient), client.ErrTransient},
		{"other", errAny, errAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toCoreErr(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

var errAny = errors.New("any")
