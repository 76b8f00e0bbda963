package clientdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/rschio/ledger/internal/core/client"
)

type dbClient struct {
	ID      int `db:"id"`
	Limit   int `db:"credit_limit"`
	Balance int `db:"balance"`
}

func toClient(c dbClient) client.Client {
	return client.Client(c)
}

func toClients(cs []dbClient) []client.Client {
	slice := make([]client.Client, len(cs))
	for i, c := range cs {
		slice[i] = toClient(c)
	}
	return slice
}

type dbTransaction struct {
	ID          uuid.UUID `db:"id"`
	ClientID    int       `db:"client_id"`
	Value       int       `db:"amount"`
	Kind        string    `db:"kind"`
	Description string    `db:"description"`
	Date        time.Time `db:"occurred_at"`
}

func toDBTransaction(t client.Transaction) dbTransaction {
	return dbTransaction{
		ID:          t.ID,
		ClientID:    t.ClientID,
		Value:       t.Value,
		Kind:        string(t.Kind),
		Description: t.Description,
		Date:        t.Date,
	}
}

func toTransactions(ts []dbTransaction) []client.Transaction {
	slice := make([]client.Transaction, len(ts))
	for i, t := range ts {
		slice[i] = toTransaction(t)
	}
	return slice
}

func toTransaction(t dbTransaction) client.Transaction {
	return client.Transaction{
		ID:          t.ID,
		ClientID:    t.ClientID,
		Value:       t.Value,
		Kind:        client.Kind(t.Kind),
		Description: t.Description,
		Date:        t.Date.UTC(),
	}
}
