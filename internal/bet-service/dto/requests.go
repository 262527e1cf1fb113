package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/pkg/models"
)

type PlaceBetRequest struct {
	UserID    string           `json:"userId"`
	StakeUSD  decimal.Decimal  `json:"stakeUSD"`
	Selection models.Selection `json:"selection,omitempty"` // "yes" | "no"; vazio = "yes"
}

type SettleBetRequest struct {
	Outcome models.BetOutcome `json:"outcome"` // "win" | "lose"
}

// SettleMarketRequest: bets sem outcome informado são resolvidas como lose
type SettleMarketRequest struct {
	Outcomes map[string]models.BetOutcome `json:"outcomes"`
}

type CreateMarketRequest struct {
	MatchID string `json:"matchId"`
}

type UpdateOddsRequest struct {
	Odds float64 `json:"odds"`
}

// ParlayRequest: as odds das pernas são ignoradas e relidas das bets gravadas
type ParlayRequest struct {
	UserID   string             `json:"userId"`
	Legs     []models.ParlayLeg `json:"legs"`
	StakeUSD decimal.Decimal    `json:"stakeUSD"`
	Mode     models.ParlayMode  `json:"mode"`
}
