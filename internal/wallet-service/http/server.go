package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/shared/httpjson"
	"github.com/radieske/match-bet-platform/internal/wallet"
	"github.com/radieske/match-bet-platform/internal/wallet-service/dto"
	"github.com/radieske/match-bet-platform/pkg/models"
)

// Wallet define as operações de carteira usadas pelo handler HTTP
type Wallet interface {
	Deposit(ctx context.Context, userID string, amount decimal.Decimal, externalRef string) (wallet.Result, error)
	Withdraw(ctx context.Context, userID string, amount decimal.Decimal, externalRef string) (wallet.Result, error)
	Summary(ctx context.Context, userID string) (wallet.Summary, error)
	History(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

var invalid = []error{wallet.ErrInvalidAmount}

// Server expõe endpoints HTTP para operações de carteira
type Server struct {
	log *zap.Logger
	svc Wallet
}

func NewServer(log *zap.Logger, svc Wallet) *Server { return &Server{log: log, svc: svc} }

// Router retorna as rotas da API de wallet
func (s *Server) Router(mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(mw...)

	r.Route("/v1/wallets/{userId}", func(r chi.Router) {
		r.Get("/", s.summary)
		r.Get("/transactions", s.transactions) // ?limit=
		r.Post("/deposit", s.deposit)
		r.Post("/withdraw", s.withdraw)
	})
	return r
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpjson.Status(err, invalid...) >= http.StatusInternalServerError {
		s.log.Error(op, zap.String("requestId", middleware.GetReqID(r.Context())), zap.Error(err))
	}
	httpjson.Error(w, err, invalid...)
}

// summary retorna saldo e totais do ledger
func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.fail(w, r, "wallet summary", err)
		return
	}
	httpjson.Write(w, http.StatusOK, sum)
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpjson.BadRequest(w, "invalid query param limit")
			return
		}
		limit = n
	}
	userID := chi.URLParam(r, "userId")
	txs, err := s.svc.History(r.Context(), userID, limit)
	if err != nil {
		s.fail(w, r, "wallet history", err)
		return
	}
	httpjson.Write(w, http.StatusOK, dto.TransactionsResponse{UserID: userID, Transactions: txs, Count: len(txs)})
}

// deposit adiciona saldo; retry com o mesmo externalRef devolve 200 com o depósito original
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, "deposit", s.svc.Deposit)
}

// withdraw debita saldo; sem saldo suficiente responde 402
func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, "withdraw", s.svc.Withdraw)
}

type movement func(ctx context.Context, userID string, amount decimal.Decimal, externalRef string) (wallet.Result, error)

func (s *Server) move(w http.ResponseWriter, r *http.Request, op string, fn movement) {
	var req dto.MovementRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	res, err := fn(r.Context(), chi.URLParam(r, "userId"), req.AmountUSD, req.ExternalRef)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	httpjson.Write(w, status, res)
}
