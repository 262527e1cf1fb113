package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Selection string

const (
	SelectionYes   Selection = "yes"
	SelectionNo    Selection = "no"
	SelectionOver  Selection = "over"
	SelectionUnder Selection = "under"
)

// Hits indica se a seleção acerta o resultado: yes/over ganham com win, no/under com lose
func (s Selection) Hits(o BetOutcome) bool {
	switch s {
	case SelectionYes, SelectionOver:
		return o == OutcomeWin
	case SelectionNo, SelectionUnder:
		return o == OutcomeLose
	}
	return false
}

type ParlayMode string

const (
	ParlayPower ParlayMode = "power"
	ParlayFlex  ParlayMode = "flex"
)

type ParlayStatus string

const (
	ParlayActive ParlayStatus = "active"
	ParlayWon    ParlayStatus = "won"
	ParlayLost   ParlayStatus = "lost"
	ParlayVoid   ParlayStatus = "void"
)

type ParlayLeg struct {
	BetID       string    `json:"betId"`
	Selection   Selection `json:"selection"`
	Line        *float64  `json:"line,omitempty"`
	Odds        float64   `json:"odds"`
	Description string    `json:"description,omitempty"`
}

type Parlay struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"userId"`
	Legs               []ParlayLeg     `json:"legs"`
	StakeUSD           decimal.Decimal `json:"stakeUSD"`
	PotentialPayoutUSD decimal.Decimal `json:"potentialPayoutUSD"`
	Mode               ParlayMode      `json:"mode"`
	Multiplier         float64         `json:"multiplier"`
	Status             ParlayStatus    `json:"status"`
	CreatedAt          time.Time       `json:"createdAt"`
}
