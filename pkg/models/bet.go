package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinOdds é o menor preço aceito para qualquer aposta
const MinOdds = 1.05

type BetOutcome string

const (
	OutcomePending BetOutcome = "pending"
	OutcomeWin     BetOutcome = "win"
	OutcomeLose    BetOutcome = "lose"
)

// Valid indica se o outcome é um resultado final (win|lose)
func (o BetOutcome) Valid() bool { return o == OutcomeWin || o == OutcomeLose }

type PlacementStatus string

const (
	PlacementActive PlacementStatus = "active"
	PlacementWon    PlacementStatus = "won"
	PlacementLost   PlacementStatus = "lost"
)

type MarketStatus string

const (
	MarketOpen    MarketStatus = "open"
	MarketClosed  MarketStatus = "closed"
	MarketSettled MarketStatus = "settled"
)

// Bet é uma proposição dentro de um mercado. Outcome só anda pending -> win|lose.
type Bet struct {
	ID             string     `json:"id"`
	MarketID       string     `json:"marketId"`
	BetType        string     `json:"betType"`
	Description    string     `json:"description"`
	Odds           float64    `json:"odds"`
	OverUnderValue *float64   `json:"overUnderValue,omitempty"`
	Outcome        BetOutcome `json:"outcome"`
	Custom         bool       `json:"custom"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// BetPlacement é a aposta de um usuário. PotentialPayoutUSD fica travado no preço do momento.
type BetPlacement struct {
	ID                 string          `json:"id"`
	BetID              string          `json:"betId"`
	UserID             string          `json:"userId"`
	Selection          Selection       `json:"selection"`
	StakeUSD           decimal.Decimal `json:"stakeUSD"`
	OddsAtPlacement    float64         `json:"oddsAtPlacement"`
	PotentialPayoutUSD decimal.Decimal `json:"potentialPayoutUSD"`
	Status             PlacementStatus `json:"status"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// PlacementRecord é uma linha do histórico de apostas com o tipo da aposta resolvido
type PlacementRecord struct {
	BetPlacement
	BetType     string `json:"betType"`
	Description string `json:"description"`
}

// BetsMarket agrupa as apostas de um match
type BetsMarket struct {
	ID           string       `json:"id"`
	MatchID      string       `json:"matchId"`
	Status       MarketStatus `json:"status"`
	StandardBets []string     `json:"standardBets"`
	CustomBets   []string     `json:"customBets"`
	Likes        int          `json:"likes"`
	CreatedAt    time.Time    `json:"createdAt"`
	ClosedAt     *time.Time   `json:"closedAt,omitempty"`
	SettledAt    *time.Time   `json:"settledAt,omitempty"`
}

// StakeDistribution agrega o volume das apostas ativas de uma bet
type StakeDistribution struct {
	TotalVolume decimal.Decimal
	YesStakes   decimal.Decimal
	NoStakes    decimal.Decimal
	BetCount    int
}
