package parlay

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/pkg/models"
)

func legs(sel models.Selection, odds ...float64) []models.ParlayLeg {
	out := make([]models.ParlayLeg, 0, len(odds))
	for _, o := range odds {
		out = append(out, models.ParlayLeg{BetID: "b", Selection: sel, Odds: o})
	}
	return out
}

func TestCompute(t *testing.T) {
	cases := []struct {
		name         string
		legs         []models.ParlayLeg
		stake        string
		mode         models.ParlayMode
		wantCombined float64
		wantMult     float64
		wantPayout   string
	}{
		{"power 3x2 above floor", legs(models.SelectionYes, 2, 2, 2), "10", models.ParlayPower, 8, 8, "80"},
		{"power 2 legs floor dominates", legs(models.SelectionYes, 1.2, 1.3), "10", models.ParlayPower, 1.56, 3, "30"},
		{"flex 3 legs floor", legs(models.SelectionYes, 1.1, 1.1, 1.1), "4", models.ParlayFlex, 1.331, 2.25, "9"},
		{"no selection factor", legs(models.SelectionNo, 2, 2), "1", models.ParlayFlex, 4.84, 4.84, "4.84"},
		{"six legs no floor", legs(models.SelectionYes, 1.1, 1.1, 1.1, 1.1, 1.1, 1.1), "100", models.ParlayPower, 1.771561, 1.771561, "177.16"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Compute(tc.legs, decimal.RequireFromString(tc.stake), tc.mode)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(res.CombinedMultiplier-tc.wantCombined) > 1e-9 {
				t.Fatalf("combined = %v, want %v", res.CombinedMultiplier, tc.wantCombined)
			}
			if math.Abs(res.Multiplier-tc.wantMult) > 1e-9 {
				t.Fatalf("multiplier = %v, want %v", res.Multiplier, tc.wantMult)
			}
			if !res.PotentialPayoutUSD.Equal(decimal.RequireFromString(tc.wantPayout)) {
				t.Fatalf("payout = %s, want %s", res.PotentialPayoutUSD, tc.wantPayout)
			}
		})
	}
}

func TestComputeMixedSelections(t *testing.T) {
	in := []models.ParlayLeg{
		{Selection: models.SelectionYes, Odds: 2},
		{Selection: models.SelectionUnder, Odds: 2},
		{Selection: models.SelectionOver, Odds: 1.5},
	}
	res, err := Compute(in, decimal.NewFromInt(1), models.ParlayFlex)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 2.3, 1.5}
	for i, m := range res.LegMultipliers {
		if math.Abs(m-want[i]) > 1e-9 {
			t.Fatalf("leg %d multiplier = %v, want %v", i, m, want[i])
		}
	}
	if res.TierFloor != 2.25 {
		t.Fatalf("tier floor = %v", res.TierFloor)
	}
}

func TestComputeErrors(t *testing.T) {
	one := decimal.NewFromInt(1)

	if _, err := Compute(legs(models.SelectionYes, 2), one, models.ParlayPower); !errors.Is(err, ErrTooFewLegs) {
		t.Fatalf("single leg: got %v", err)
	}
	if _, err := Compute(legs("maybe", 2, 2), one, models.ParlayPower); !errors.Is(err, ErrInvalidLeg) {
		t.Fatalf("bad selection: got %v", err)
	}
	if _, err := Compute(legs(models.SelectionYes, 2, 2), one, "turbo"); !errors.Is(err, ErrInvalidLeg) {
		t.Fatalf("bad mode: got %v", err)
	}
	if _, err := Compute(legs(models.SelectionYes, 2, 0.5), one, models.ParlayPower); !errors.Is(err, ErrInvalidLeg) {
		t.Fatalf("bad odds: got %v", err)
	}
}
