// Package wallet movimenta saldo fora das apostas: depósitos, saques e extrato.
// Toda escrita passa pelo ledger na mesma transação do saldo.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/storage"
	"github.com/radieske/match-bet-platform/pkg/models"
)

var ErrInvalidAmount = errors.New("wallet: amount must be positive")

type Store interface {
	storage.TxRunner
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Transactions(ctx context.Context, userID string) ([]models.Transaction, error)
}

type Service struct {
	log   *zap.Logger
	store Store

	Now func() time.Time
}

func New(log *zap.Logger, store Store) *Service {
	return &Service{log: log, store: store, Now: time.Now}
}

// Result é a transação gravada (ou a já existente, em retry idempotente) e o saldo depois dela
type Result struct {
	Transaction models.Transaction `json:"transaction"`
	BalanceUSD  decimal.Decimal    `json:"balanceUSD"`
	Replayed    bool               `json:"replayed,omitempty"`
}

// Deposit credita a carteira. Com externalRef, repetir a chamada devolve o depósito original.
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal, externalRef string) (Result, error) {
	return s.post(ctx, userID, models.TxDeposit, amount, externalRef)
}

// Withdraw debita a carteira; saldo insuficiente devolve ErrInsufficientBalance
func (s *Service) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, externalRef string) (Result, error) {
	return s.post(ctx, userID, models.TxWithdrawal, amount, externalRef)
}

func (s *Service) post(ctx context.Context, userID string, txType models.TransactionType, amount decimal.Decimal, externalRef string) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	var res Result
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		balance, err := tx.LockWallet(ctx, userID)
		if err != nil {
			return err
		}

		if externalRef != "" {
			prev, err := tx.TransactionByRef(ctx, userID, txType, externalRef)
			switch {
			case err == nil:
				res = Result{Transaction: prev, BalanceUSD: balance, Replayed: true}
				return nil
			case !errors.Is(err, models.ErrNotFound):
				return err
			}
		}

		if txType == models.TxWithdrawal && balance.LessThan(amount) {
			return fmt.Errorf("balance %s < %s: %w", balance.StringFixed(2), amount.StringFixed(2), models.ErrInsufficientBalance)
		}

		t := models.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        txType,
			AmountUSD:   amount,
			Status:      models.TxCompleted,
			ExternalRef: externalRef,
			Timestamp:   s.Now(),
		}
		newBalance, err := tx.PostLedger(ctx, t)
		if err != nil {
			return err
		}
		res = Result{Transaction: t, BalanceUSD: newBalance}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s %s: %w", txType, userID, err)
	}

	if !res.Replayed {
		s.log.Info("wallet movement",
			zap.String("userId", userID),
			zap.String("type", string(txType)),
			zap.String("amount", amount.StringFixed(2)),
			zap.String("balance", res.BalanceUSD.StringFixed(2)),
		)
	}
	return res, nil
}

type Summary struct {
	BalanceUSD          decimal.Decimal `json:"balanceUSD"`
	TotalDepositsUSD    decimal.Decimal `json:"totalDepositsUSD"`
	TotalWithdrawalsUSD decimal.Decimal `json:"totalWithdrawalsUSD"`
	TotalStakedUSD      decimal.Decimal `json:"totalStakedUSD"`
	TotalPayoutsUSD     decimal.Decimal `json:"totalPayoutsUSD"`
	LifetimePnLUSD      decimal.Decimal `json:"lifetimePnlUSD"` // payouts - stakes
	Transactions        int             `json:"transactions"`
}

// Summary agrega o ledger concluído do usuário
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("summary %s: %w", userID, err)
	}
	txs, err := s.store.Transactions(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("summary %s: %w", userID, err)
	}

	sum := Summary{BalanceUSD: balance, Transactions: len(txs)}
	for _, t := range txs {
		if t.Status != models.TxCompleted {
			continue
		}
		switch t.Type {
		case models.TxDeposit:
			sum.TotalDepositsUSD = sum.TotalDepositsUSD.Add(t.AmountUSD)
		case models.TxWithdrawal:
			sum.TotalWithdrawalsUSD = sum.TotalWithdrawalsUSD.Add(t.AmountUSD)
		case models.TxBetStake:
			sum.TotalStakedUSD = sum.TotalStakedUSD.Add(t.AmountUSD)
		case models.TxBetPayout:
			sum.TotalPayoutsUSD = sum.TotalPayoutsUSD.Add(t.AmountUSD)
		case models.TxBetRefund:
			// stake devolvido não conta como apostado
			sum.TotalStakedUSD = sum.TotalStakedUSD.Sub(t.AmountUSD)
		}
	}
	sum.LifetimePnLUSD = sum.TotalPayoutsUSD.Sub(sum.TotalStakedUSD)
	return sum, nil
}

// History devolve o ledger do mais recente para o mais antigo
func (s *Service) History(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	txs, err := s.store.Transactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", userID, err)
	}
	slices.SortStableFunc(txs, func(a, b models.Transaction) int { return b.Timestamp.Compare(a.Timestamp) })
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}
