package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxDeposit       TransactionType = "deposit"
	TxWithdrawal    TransactionType = "withdrawal"
	TxBetStake      TransactionType = "betStake"
	TxBetPayout     TransactionType = "betPayout"
	TxBetRefund     TransactionType = "betRefund" // devolve o stake de um parlay anulado
	TxTokenPurchase TransactionType = "tokenPurchase"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
)

// Transaction é uma linha append-only do ledger. AmountUSD é sempre positivo;
// o sinal do efeito no saldo vem do tipo (ver SignedAmount).
type Transaction struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Type        TransactionType   `json:"type"`
	AmountUSD   decimal.Decimal   `json:"amountUSD"`
	Status      TransactionStatus `json:"status"`
	ExternalRef string            `json:"externalRef,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// SignedAmount devolve o efeito da transação no saldo da carteira
func (t Transaction) SignedAmount() decimal.Decimal {
	switch t.Type {
	case TxWithdrawal, TxBetStake:
		return t.AmountUSD.Neg()
	case TxTokenPurchase:
		return decimal.Zero
	default:
		return t.AmountUSD
	}
}
