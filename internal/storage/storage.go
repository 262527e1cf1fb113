// Package storage declara o contrato transacional compartilhado pelos repositórios
// (postgres para produção e memory para testes).
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/pkg/models"
)

// TxRunner executa fn dentro de uma única transação.
// Se fn devolver erro nada é persistido.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx agrupa as escritas que precisam ser atômicas. Métodos Lock* relêem a linha
// com bloqueio exclusivo até o fim da transação.
type Tx interface {
	// matches
	MatchBetween(ctx context.Context, userA, userB string) (models.Match, error)
	InsertMatch(ctx context.Context, m models.Match) error
	PromoteMatch(ctx context.Context, matchID string, at time.Time) error
	LockMatch(ctx context.Context, matchID string) (models.Match, error)
	LinkMarket(ctx context.Context, matchID, marketID string) error
	IncrementMatchesCount(ctx context.Context, userID string) error

	// bets e mercados
	LockBet(ctx context.Context, betID string) (models.Bet, error)
	// BetOutcome lê o outcome gravado sem travar a linha
	BetOutcome(ctx context.Context, betID string) (models.BetOutcome, error)
	SetBetOutcome(ctx context.Context, betID string, outcome models.BetOutcome) error
	SetBetOdds(ctx context.Context, betID string, odds float64) error
	LockMarket(ctx context.Context, marketID string) (models.BetsMarket, error)
	InsertMarket(ctx context.Context, m models.BetsMarket, bets []models.Bet) error
	SetMarketStatus(ctx context.Context, marketID string, status models.MarketStatus, at time.Time) error

	// placements
	ActivePlacements(ctx context.Context, betID string) ([]models.BetPlacement, error)
	InsertPlacement(ctx context.Context, p models.BetPlacement) error
	SetPlacementStatus(ctx context.Context, placementID string, status models.PlacementStatus) error
	InsertParlay(ctx context.Context, p models.Parlay) error
	// ActiveParlaysByBet trava, em ordem de id, os parlays ativos com uma perna em betID
	ActiveParlaysByBet(ctx context.Context, betID string) ([]models.Parlay, error)
	SetParlayStatus(ctx context.Context, parlayID string, status models.ParlayStatus) error
	IncrementBetsPlaced(ctx context.Context, userID string) error
	IncrementBetsWon(ctx context.Context, userID string) error

	// carteira
	LockWallet(ctx context.Context, userID string) (decimal.Decimal, error)
	TransactionByRef(ctx context.Context, userID string, txType models.TransactionType, ref string) (models.Transaction, error)
	// PostLedger grava a transação e aplica t.SignedAmount() no saldo; devolve o novo saldo
	PostLedger(ctx context.Context, t models.Transaction) (decimal.Decimal, error)
}
