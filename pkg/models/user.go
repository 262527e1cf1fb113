package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location é a posição declarada pelo usuário (graus decimais)
type Location struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	City string  `json:"city,omitempty"`
}

// AgeRange é a faixa de idade preferida, inclusiva nas duas pontas
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains indica se a idade está dentro da faixa
func (r AgeRange) Contains(age int) bool { return age >= r.Min && age <= r.Max }

type Preferences struct {
	AgeRange  *AgeRange `json:"ageRange,omitempty"`
	Distance  float64   `json:"distance"` // milhas
	Interests []string  `json:"interests"`
}

type History struct {
	MatchesCount int `json:"matchesCount"`
	DatesCount   int `json:"datesCount"`
	BetsPlaced   int `json:"betsPlaced"`
	BetsWon      int `json:"betsWon"`
}

type Privacy struct {
	HideFromBetting    bool `json:"hideFromBetting"`
	ConsentBetAnalysis bool `json:"consentBetAnalysis"`
}

// UserProfile é o snapshot do usuário lido pelo engine.
// Age == 0 significa idade não informada; Location == nil significa sem localização.
type UserProfile struct {
	ID               string          `json:"id"`
	Username         string          `json:"username"`
	Age              int             `json:"age,omitempty"`
	Gender           string          `json:"gender,omitempty"`
	Location         *Location       `json:"location,omitempty"`
	Preferences      Preferences     `json:"preferences"`
	Bio              string          `json:"bio"`
	Photos           []string        `json:"photos"`
	History          History         `json:"history"`
	Privacy          Privacy         `json:"privacy"`
	WalletBalanceUSD decimal.Decimal `json:"walletBalanceUSD"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}
