package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/pkg/models"
)

// MovementRequest serve para depósito e saque
type MovementRequest struct {
	AmountUSD   decimal.Decimal `json:"amountUSD"`
	ExternalRef string          `json:"externalRef,omitempty"` // opcional p/ idempotência
}

type TransactionsResponse struct {
	UserID       string               `json:"userId"`
	Transactions []models.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
}
