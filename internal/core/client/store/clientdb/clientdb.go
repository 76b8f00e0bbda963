// Package clientdb contains the Postgres implementation of the client store.
package clientdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/rschio/ledger/internal/core/client"
	db "github.com/rschio/ledger/internal/data/dbsql/pgx"
)

var _ client.Store = (*Store)(nil)

// Store manages the set of APIs for client database access.
type Store struct {
	log *slog.Logger
	db  db.DB
}

// NewStore constructs the api for data access.
func NewStore(log *slog.Logger, database db.DB) *Store {
	return &Store{
		log: log,
		db:  database,
	}
}

// ExecUnderTx runs fn in a read committed transaction. Concurrent writers of
// the same client are serialized by QueryByIDForUpdate, not by the isolation
// level.
func (s *Store) ExecUnderTx(ctx context.Context, fn func(txStore client.Store) error) error {
	opts := pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	}
	return s.execUnderTx(ctx, opts, fn)
}

// ExecUnderSnapshot runs fn in a read only repeatable read transaction, so
// every query inside fn reads from the same snapshot.
func (s *Store) ExecUnderSnapshot(ctx context.Context, fn func(txStore client.Store) error) error {
	opts := pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}
	return s.execUnderTx(ctx, opts, fn)
}

func (s *Store) execUnderTx(ctx context.Context, opts pgx.TxOptions, fn func(txStore client.Store) error) error {
	tx, err := db.BeginTx(ctx, s.db, opts)
	if err != nil {
		return toCoreErr(fmt.Errorf("begin: %w", err))
	}
	defer db.Rollback(ctx, s.log, tx)

	if err := fn(NewStore(s.log, tx)); err != nil {
		return err
	}

	if err := db.Commit(ctx, tx); err != nil {
		return toCoreErr(err)
	}

	return nil
}

// QueryByID gets the specified client from the database.
func (s *Store) QueryByID(ctx context.Context, clientID int) (client.Client, error) {
	data := struct {
		ID int `db:"id"`
	}{
		ID: clientID,
	}

	const q = `
	SELECT
		id, credit_limit, balance
	FROM
		clients
	WHERE
		id = @id`

	c, err := db.NamedQueryStruct[dbClient](ctx, s.log, s.db, q, data)
	if err != nil {
		return client.Client{}, toCoreErr(err)
	}

	return toClient(c), nil
}

// QueryByIDForUpdate gets the specified client and locks its row until the
// end of the current transaction.
func (s *Store) QueryByIDForUpdate(ctx context.Context, clientID int) (client.Client, error) {
	data := struct {
		ID int `db:"id"`
	}{
		ID: clientID,
	}

	const q = `
	SELECT
		id, credit_limit, balance
	FROM
		clients
	WHERE
		id = @id
	FOR UPDATE`

	c, err := db.NamedQueryStruct[dbClient](ctx, s.log, s.db, q, data)
	if err != nil {
		return client.Client{}, toCoreErr(err)
	}

	return toClient(c), nil
}

// QueryAll gets every client ordered by id.
func (s *Store) QueryAll(ctx context.Context) ([]client.Client, error) {
	const q = `
	SELECT
		id, credit_limit, balance
	FROM
		clients
	ORDER BY
		id`

	cs, err := db.NamedQuerySlice[dbClient](ctx, s.log, s.db, q, struct{}{})
	if err != nil {
		return nil, toCoreErr(err)
	}

	return toClients(cs), nil
}

// AddTransaction inserts a new transaction into the database.
func (s *Store) AddTransaction(ctx context.Context, t client.Transaction) error {
	const q = `
	INSERT INTO transactions
		(id, client_id, amount, kind, description, occurred_at)
	VALUES
		(@id, @client_id, @amount, @kind, @description, @occurred_at)`

	if err := db.NamedExec(ctx, s.log, s.db, q, toDBTransaction(t)); err != nil {
		return toCoreErr(err)
	}

	return nil
}

// UpdateBalance sets the balance of the client.
func (s *Store) UpdateBalance(ctx context.Context, clientID int, balance int) error {
	data := struct {
		ID      int `db:"id"`
		Balance int `db:"balance"`
	}{
		ID:      clientID,
		Balance: balance,
	}

	const q = `
	UPDATE
		clients
	SET
		balance = @balance
	WHERE
		id = @id`

	if err := db.NamedExec(ctx, s.log, s.db, q, data); err != nil {
		return toCoreErr(err)
	}

	return nil
}

// QueryTransactions gets a page of the client's transactions, newest first.
func (s *Store) QueryTransactions(ctx context.Context, clientID int, pageNumber int, rowsPerPage int) ([]client.Transaction, error) {
	data := struct {
		ClientID    int `db:"client_id"`
		Offset      int `db:"offset"`
		RowsPerPage int `db:"rows_per_page"`
	}{
		ClientID:    clientID,
		Offset:      (pageNumber - 1) * rowsPerPage,
		RowsPerPage: rowsPerPage,
	}

	const q = `
	SELECT
		id, client_id, amount, kind, description, occurred_at
	FROM
		transactions
	WHERE
		client_id = @client_id
	ORDER BY
		occurred_at DESC, id DESC
	OFFSET @offset ROWS FETCH NEXT @rows_per_page ROWS ONLY`

	ts, err := db.NamedQuerySlice[dbTransaction](ctx, s.log, s.db, q, data)
	if err != nil {
		return nil, toCoreErr(err)
	}

	return toTransactions(ts), nil
}

func toCoreErr(err error) error {
	switch {
	case errors.Is(err, db.ErrDBNotFound):
		return client.ErrNotFound
	case errors.Is(err, db.ErrDBTransient):
		return fmt.Errorf("%w: %w", client.ErrTransient, err)
	}
	return err
}
