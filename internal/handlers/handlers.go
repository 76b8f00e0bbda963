// Package handlers exposes the ledger over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/rschio/ledger/internal/core/client"
	"github.com/rschio/ledger/internal/web"
	"go.opentelemetry.io/otel/trace"
)

func APIMux(s *Server, tracer trace.Tracer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /clientes/{id}/transacoes", middlewareWeb(s.log, tracer, s.Transactions))
	mux.Handle("GET /clientes/{id}/extrato", middlewareWeb(s.log, tracer, s.Statement))
	mux.Handle("GET /clientes", middlewareWeb(s.log, tracer, s.Clients))
	mux.HandleFunc("GET /liveness", s.Liveness)
	mux.HandleFunc("GET /readiness", s.Readiness)

	return mux
}

type Server struct {
	log    *slog.Logger
	client *client.Core
	ready  func(ctx context.Context) error
}

// NewServer constructs the HTTP handlers. ready reports whether the
// dependencies of the service can be reached.
func NewServer(log *slog.Logger, c *client.Core, ready func(ctx context.Context) error) *Server {
	return &Server{log: log, client: c, ready: ready}
}

func (s *Server) Transactions(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s,
		func(ctx context.Context, id int, req TransactionsReq) (TransactionsResp, error) {
			c, err := s.client.AddTransaction(ctx, id, toNewTransaction(req))
			if err != nil {
				return TransactionsResp{}, err
			}

			return TransactionsResp{
				Limit:   c.Limit,
				Balance: c.Balance,
			}, nil
		},
	)
}

func (s *Server) Statement(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s,
		func(ctx context.Context, id int, req struct{}) (StatementResp, error) {
			st, err := s.client.Statement(ctx, id)
			if err != nil {
				return StatementResp{}, err
			}

			return toStatementResp(st), nil
		},
	)
}

func (s *Server) Clients(w http.ResponseWriter, r *http.Request) {
	cs, err := s.client.QueryAll(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.respond(w, r, http.StatusOK, toClientsResp(cs))
}

func (s *Server) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := s.ready(ctx); err != nil {
		s.log.ErrorContext(ctx, "readiness failure", "ERROR", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func getID(r *http.Request) (int, error) {
	sID := r.PathValue("id")
	return strconv.Atoi(sID)
}

func serveJSON[Req any, Resp any](
	w http.ResponseWriter,
	r *http.Request,
	s *Server,
	fn func(ctx context.Context, id int, req Req) (Resp, error),
) {
	ctx := r.Context()

	var req Req
	if r.Method != http.MethodGet {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			s.log.InfoContext(ctx, "request must be a json", "content_type", r.Header.Get("Content-Type"))
			s.respondErr(w, r, errNotJSON)
			return
		}

		err = json.NewDecoder(r.Body).Decode(&req)
		r.Body.Close()
		if err != nil {
			s.log.InfoContext(ctx, "decoding json", "ERROR", err)
			s.respondErr(w, r, errBadJSON)
			return
		}
	}

	id, err := getID(r)
	if err != nil {
		s.log.InfoContext(ctx, "getID", "ERROR", err)
		s.respondErr(w, r, client.ErrNotFound)
		return
	}

	resp, err := fn(ctx, id, req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.respond(w, r, http.StatusOK, resp)
}

var (
	errNotJSON = &client.FieldError{Field: "Content-Type", Reason: "request must be a json"}
	errBadJSON = &client.FieldError{Field: "body", Reason: "malformed json"}
)

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var (
		lerr *client.LimitExceededError
		ferr *client.FieldError
	)
	switch {
	case errors.Is(err, client.ErrNotFound):
		s.log.InfoContext(ctx, "request rejected", "ERROR", err)
		s.respond(w, r, http.StatusNotFound, ErrorResp{
			Status:  http.StatusNotFound,
			Code:    "client_not_found",
			Message: "Client not found",
		})

	// Limit rejections are 422, the status load test clients expect.
	case errors.As(err, &lerr):
		s.log.InfoContext(ctx, "request rejected", "ERROR", err)
		s.respond(w, r, http.StatusUnprocessableEntity, ErrorResp{
			Status:  http.StatusUnprocessableEntity,
			Code:    "limit_exceeded",
			Message: lerr.Error(),
			Details: LimitExceededDetails{
				Overage:   lerr.Overage(),
				Balance:   lerr.Balance,
				Limit:     lerr.Limit,
				Remaining: lerr.Remaining(),
			},
		})

	case errors.Is(err, client.ErrTransactionDenied):
		s.log.InfoContext(ctx, "request rejected", "ERROR", err)
		s.respond(w, r, http.StatusUnprocessableEntity, ErrorResp{
			Status:  http.StatusUnprocessableEntity,
			Code:    "transaction_denied",
			Message: err.Error(),
		})

	case errors.As(err, &ferr):
		s.log.InfoContext(ctx, "request rejected", "ERROR", err)
		field := ferr.Field
		if wf, ok := wireFields[field]; ok {
			field = wf
		}
		s.respond(w, r, http.StatusUnprocessableEntity, ErrorResp{
			Status:  http.StatusUnprocessableEntity,
			Code:    "invalid_parameters",
			Message: "Invalid parameters",
			Details: []FieldDetails{{Field: field, Reason: ferr.Reason}},
		})

	case errors.Is(err, client.ErrTransient):
		s.log.WarnContext(ctx, "transient failure", "ERROR", err)
		w.Header().Set("Retry-After", "1")
		s.respond(w, r, http.StatusServiceUnavailable, ErrorResp{
			Status:  http.StatusServiceUnavailable,
			Code:    "transient_failure",
			Message: "Try again",
		})

	default:
		s.log.ErrorContext(ctx, "internal error", "ERROR", err)
		s.respond(w, r, http.StatusInternalServerError, ErrorResp{
			Status:  http.StatusInternalServerError,
			Code:    "internal_error",
			Message: "Internal server error",
		})
	}
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	ctx := r.Context()

	bs, err := json.Marshal(data)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to encode response", "ERROR", err)
		web.SetStatusCode(ctx, http.StatusInternalServerError)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	web.SetStatusCode(ctx, statusCode)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(bs)
}
