package handlers

import (
	"time"

	"github.com/rschio/ledger/internal/core/client"
)

type TransactionsReq struct {
	Value       int    `json:"valor"`
	Type        string `json:"tipo"`
	Description string `json:"descricao"`
}

func toNewTransaction(req TransactionsReq) client.NewTransaction {
	return client.NewTransaction{
		Value:       req.Value,
		Kind:        client.Kind(req.Type),
		Description: req.Description,
	}
}

type TransactionsResp struct {
	Limit   int `json:"limite"`
	Balance int `json:"saldo"`
}

type Balance struct {
	Total int       `json:"total"`
	Limit int       `json:"limite"`
	Date  time.Time `json:"data_extrato"`
}

type StatementResp struct {
	Balance          Balance       `json:"saldo"`
	LastTransactions []Transaction `json:"ultimas_transacoes"`
}

type Transaction struct {
	Value       int       `json:"valor"`
	Type        string    `json:"tipo"`
	Description string    `json:"descricao"`
	Date        time.Time `json:"realizada_em"`
}

type ClientResp struct {
	ID      int `json:"id"`
	Limit   int `json:"limite"`
	Balance int `json:"saldo"`
}

// ErrorResp is the body of every failed request.
type ErrorResp struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type LimitExceededDetails struct {
	Overage   int `json:"valorExcedente"`
	Balance   int `json:"saldo"`
	Limit     int `json:"limite"`
	Remaining int `json:"limiteRestante"`
}

type FieldDetails struct {
	Field  string `json:"campo"`
	Reason string `json:"motivo"`
}

// wireFields maps the core field names to the request field names.
var wireFields = map[string]string{
	"value":       "valor",
	"kind":        "tipo",
	"description": "descricao",
}

func toStatementResp(st client.Statement) StatementResp {
	return StatementResp{
		Balance: Balance{
			Total: st.Balance,
			Limit: st.Limit,
			Date:  st.Date,
		},
		LastTransactions: toTransactions(st.LastTransactions),
	}
}

func toTransactions(ts []client.Transaction) []Transaction {
	slice := make([]Transaction, len(ts))
	for i, t := range ts {
		slice[i] = toTransaction(t)
	}
	return slice
}

func toTransaction(t client.Transaction) Transaction {
	return Transaction{
		Value:       t.Value,
		Type:        string(t.Kind),
		Description: t.Description,
		Date:        t.Date,
	}
}

func toClientsResp(cs []client.Client) []ClientResp {
	slice := make([]ClientResp, len(cs))
	for i, c := range cs {
		slice[i] = ClientResp(c)
	}
	return slice
}
