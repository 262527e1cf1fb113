package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/internal/odds"
	"github.com/radieske/match-bet-platform/pkg/models"
)

// BetOdds é o preço personalizado de uma bet
type BetOdds struct {
	BetID       string  `json:"betId"`
	BetType     string  `json:"betType"`
	Description string  `json:"description"`
	BaseOdds    float64 `json:"baseOdds"`
	odds.Result
}

type MarketOdds struct {
	MarketID string              `json:"marketId"`
	MatchID  string              `json:"matchId"`
	Status   models.MarketStatus `json:"status"`
	Bets     []BetOdds           `json:"bets"`
}

// PreviewRequest precifica um tipo de bet que ainda não existe no mercado
type PreviewRequest struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
	BetType string `json:"betType"`
}

type QuoteRequest struct {
	Legs     []models.ParlayLeg `json:"legs"`
	StakeUSD decimal.Decimal    `json:"stakeUSD"`
	Mode     models.ParlayMode  `json:"mode"`
}
