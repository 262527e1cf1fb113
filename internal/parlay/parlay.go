package parlay

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/pkg/models"
)

var (
	ErrTooFewLegs = errors.New("parlay: at least 2 legs required")
	ErrInvalidLeg = errors.New("parlay: invalid leg")
)

// MinLegs é o menor parlay aceito
const MinLegs = 2

// Pisos de multiplicador por quantidade de pernas.
// Fora de 2..5 não existe piso e vale o multiplicador combinado.
var tierFloors = map[models.ParlayMode]map[int]float64{
	models.ParlayPower: {2: 3.0, 3: 5.0, 4: 10.0, 5: 20.0},
	models.ParlayFlex:  {2: 2.0, 3: 2.25, 4: 5.0, 5: 10.0},
}

var selectionFactors = map[models.Selection]float64{
	models.SelectionYes:   1.0,
	models.SelectionOver:  1.0,
	models.SelectionNo:    1.1,
	models.SelectionUnder: 1.15,
}

type Result struct {
	LegMultipliers     []float64       `json:"legMultipliers"`
	CombinedMultiplier float64         `json:"combinedMultiplier"`
	TierFloor          float64         `json:"tierFloor,omitempty"` // 0 quando não há piso
	Multiplier         float64         `json:"multiplier"`
	PotentialPayoutUSD decimal.Decimal `json:"potentialPayoutUSD"`
}

// SelectionFactor devolve o fator da seleção ou false se desconhecida
func SelectionFactor(s models.Selection) (float64, bool) {
	f, ok := selectionFactors[s]
	return f, ok
}

// TierFloor devolve o piso do modo para a quantidade de pernas
func TierFloor(mode models.ParlayMode, legs int) (float64, bool) {
	f, ok := tierFloors[mode][legs]
	return f, ok
}

// Compute calcula multiplicador e payout de um parlay. O piso da tabela só eleva,
// nunca limita o multiplicador combinado.
func Compute(legs []models.ParlayLeg, stakeUSD decimal.Decimal, mode models.ParlayMode) (Result, error) {
	if len(legs) < MinLegs {
		return Result{}, fmt.Errorf("%w: got %d", ErrTooFewLegs, len(legs))
	}
	if _, ok := tierFloors[mode]; !ok {
		return Result{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidLeg, mode)
	}

	res := Result{LegMultipliers: make([]float64, 0, len(legs)), CombinedMultiplier: 1}
	for i, leg := range legs {
		f, ok := SelectionFactor(leg.Selection)
		if !ok {
			return Result{}, fmt.Errorf("%w: leg %d selection %q", ErrInvalidLeg, i, leg.Selection)
		}
		if leg.Odds < models.MinOdds {
			return Result{}, fmt.Errorf("%w: leg %d odds %.2f", ErrInvalidLeg, i, leg.Odds)
		}
		m := leg.Odds * f
		res.LegMultipliers = append(res.LegMultipliers, m)
		res.CombinedMultiplier *= m
	}

	res.Multiplier = res.CombinedMultiplier
	if floor, ok := TierFloor(mode, len(legs)); ok {
		res.TierFloor = floor
		if floor > res.Multiplier {
			res.Multiplier = floor
		}
	}

	res.PotentialPayoutUSD = stakeUSD.Mul(decimal.NewFromFloat(res.Multiplier)).Round(2)
	return res, nil
}
