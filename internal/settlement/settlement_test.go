package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/parlay"
	"github.com/radieske/match-bet-platform/internal/shared/lock"
	"github.com/radieske/match-bet-platform/internal/storage"
	"github.com/radieske/match-bet-platform/internal/storage/memory"
	"github.com/radieske/match-bet-platform/pkg/contracts/events"
	"github.com/radieske/match-bet-platform/pkg/models"
)

var ctx = context.Background()

type recordingPublisher struct {
	mu      sync.Mutex
	placed  []events.BetPlaced
	settled []events.BetSettled
	markets []events.MarketSettled
	err     error
}

func (p *recordingPublisher) PublishBetPlaced(_ context.Context, ev events.BetPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, ev)
	return p.err
}

func (p *recordingPublisher) PublishBetSettled(_ context.Context, ev events.BetSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, ev)
	return p.err
}

func (p *recordingPublisher) PublishMarketSettled(_ context.Context, ev events.MarketSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markets = append(p.markets, ev)
	return p.err
}

func usd(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func fixture(t *testing.T) (*memory.Store, *Service, *recordingPublisher) {
	t.Helper()
	st := memory.New()
	st.PutUser(models.UserProfile{ID: "u1"})
	st.PutUser(models.UserProfile{ID: "u2"})
	st.Fund("u1", usd("100"))
	st.Fund("u2", usd("100"))
	st.PutMarket(models.BetsMarket{ID: "mk", MatchID: "m1", Status: models.MarketOpen},
		models.Bet{ID: "b1", MarketID: "mk", BetType: "date_happens", Description: "Will they go on a date?", Odds: 1.9, Outcome: models.OutcomePending},
		models.Bet{ID: "b2", MarketID: "mk", BetType: "no_show", Odds: 2.2, Outcome: models.OutcomePending, CreatedAt: time.Unix(1, 0)},
	)

	pub := &recordingPublisher{}
	svc := New(zap.NewNop(), st, lock.NewLocal(), pub)
	return st, svc, pub
}

func balance(t *testing.T, st *memory.Store, userID string) decimal.Decimal {
	t.Helper()
	b, err := st.Balance(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestPlaceBetLocksPrice(t *testing.T) {
	st, svc, pub := fixture(t)

	p, err := svc.PlaceBet(ctx, "b1", "u1", usd("10"), "")
	if err != nil {
		t.Fatal(err)
	}
	if !p.PotentialPayoutUSD.Equal(usd("19")) || p.OddsAtPlacement != 1.9 || p.Selection != models.SelectionYes {
		t.Fatalf("placement = %+v", p)
	}
	if got := balance(t, st, "u1"); !got.Equal(usd("90")) {
		t.Fatalf("balance after stake = %s", got)
	}

	// re-precificação posterior não altera o payout travado
	if err := st.WithinTx(ctx, func(tx storage.Tx) error { return tx.SetBetOdds(ctx, "b1", 5.0) }); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SettleBet(ctx, "b1", models.OutcomeWin); err != nil {
		t.Fatal(err)
	}
	if got := balance(t, st, "u1"); !got.Equal(usd("109")) {
		t.Fatalf("balance after payout = %s", got)
	}

	u, _ := st.GetUser(ctx, "u1")
	if u.History.BetsPlaced != 1 || u.History.BetsWon != 1 {
		t.Fatalf("history = %+v", u.History)
	}
	if len(pub.placed) != 1 || pub.placed[0].PotentialPayoutUSD != "19.00" || pub.placed[0].MarketID != "mk" {
		t.Fatalf("bet_placed events = %+v", pub.placed)
	}
}

func TestPlaceBetRejections(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*memory.Store)
		betID string
		stake string
		want  error
	}{
		{"zero stake", nil, "b1", "0", ErrInvalidStake},
		{"negative stake", nil, "b1", "-5", ErrInvalidStake},
		{"insufficient balance", nil, "b1", "100.01", models.ErrInsufficientBalance},
		{"unknown bet", nil, "nope", "10", models.ErrNotFound},
		{"closed market", func(st *memory.Store) {
			st.PutMarket(models.BetsMarket{ID: "mk", Status: models.MarketClosed})
		}, "b1", "10", models.ErrInvalidState},
		{"resolved bet", func(st *memory.Store) {
			st.PutMarket(models.BetsMarket{ID: "mk", Status: models.MarketOpen},
				models.Bet{ID: "b1", MarketID: "mk", Odds: 1.9, Outcome: models.OutcomeLose})
		}, "b1", "10", models.ErrInvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, svc, pub := fixture(t)
			if tc.setup != nil {
				tc.setup(st)
			}
			before, _ := st.Transactions(ctx, "u1")

			_, err := svc.PlaceBet(ctx, tc.betID, "u1", usd(tc.stake), models.SelectionYes)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if got := balance(t, st, "u1"); !got.Equal(usd("100")) {
				t.Fatalf("balance changed to %s", got)
			}
			after, _ := st.Transactions(ctx, "u1")
			if len(after) != len(before) {
				t.Fatalf("ledger grew from %d to %d", len(before), len(after))
			}
			if ps, _ := st.Placements(ctx, "b1"); len(ps) != 0 {
				t.Fatalf("placements = %+v", ps)
			}
			if len(pub.placed) != 0 {
				t.Fatal("no event on failure")
			}
		})
	}
}

func TestSettleBetIsIdempotent(t *testing.T) {
	st, svc, pub := fixture(t)
	if _, err := svc.PlaceBet(ctx, "b1", "u1", usd("10"), models.SelectionYes); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		bet, err := svc.SettleBet(ctx, "b1", models.OutcomeWin)
		if err != nil {
			t.Fatal(err)
		}
		if bet.Outcome != models.OutcomeWin {
			t.Fatalf("outcome = %s", bet.Outcome)
		}
	}
	// tentativa com outcome diferente também é no-op
	bet, err := svc.SettleBet(ctx, "b1", models.OutcomeLose)
	if err != nil || bet.Outcome != models.OutcomeWin {
		t.Fatalf("bet = %+v err = %v", bet, err)
	}

	if got := balance(t, st, "u1"); !got.Equal(usd("109")) {
		t.Fatalf("balance = %s, want single payout", got)
	}
	txs, _ := st.Transactions(ctx, "u1")
	payouts := 0
	for _, tr := range txs {
		if tr.Type == models.TxBetPayout {
			payouts++
		}
	}
	if payouts != 1 {
		t.Fatalf("payout ledger entries = %d", payouts)
	}
	if len(pub.settled) != 1 || pub.settled[0].PaidOutUSD != "19.00" {
		t.Fatalf("bet_settled events = %+v", pub.settled)
	}
}

func TestSettleBetLoseHasNoLedgerEffect(t *testing.T) {
	st, svc, _ := fixture(t)
	if _, err := svc.PlaceBet(ctx, "b1", "u1", usd("10"), models.SelectionYes); err != nil {
		t.Fatal(err)
	}
	before, _ := st.Transactions(ctx, "u1")

	if _, err := svc.SettleBet(ctx, "b1", models.OutcomeLose); err != nil {
		t.Fatal(err)
	}
	after, _ := st.Transactions(ctx, "u1")
	if len(after) != len(before) {
		t.Fatal("lose must not write the ledger")
	}
	ps, _ := st.Placements(ctx, "b1")
	if len(ps) != 1 || ps[0].Status != models.PlacementLost {
		t.Fatalf("placements = %+v", ps)
	}
	if got := balance(t, st, "u1"); !got.Equal(usd("90")) {
		t.Fatalf("balance = %s", got)
	}
}

func TestSettleBetValidation(t *testing.T) {
	_, svc, _ := fixture(t)
	if _, err := svc.SettleBet(ctx, "b1", models.OutcomePending); !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("pending outcome: %v", err)
	}
	if _, err := svc.SettleBet(ctx, "b1", "draw"); !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("unknown outcome: %v", err)
	}
	if _, err := svc.SettleBet(ctx, "missing", models.OutcomeWin); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing bet: %v", err)
	}
}

func TestConcurrentSettlementPaysOnce(t *testing.T) {
	st, svc, _ := fixture(t)
	if _, err := svc.PlaceBet(ctx, "b1", "u1", usd("10"), models.SelectionYes); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBet(ctx, "b1", "u2", usd("20"), models.SelectionYes); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.SettleBet(ctx, "b1", models.OutcomeWin); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := balance(t, st, "u1"); !got.Equal(usd("109")) {
		t.Fatalf("u1 balance = %s", got)
	}
	if got := balance(t, st, "u2"); !got.Equal(usd("118")) {
		t.Fatalf("u2 balance = %s", got)
	}
}

func TestSettleMarketDefaultsToLose(t *testing.T) {
	st, svc, pub := fixture(t)
	if _, err := svc.PlaceBet(ctx, "b1", "u1", usd("10"), models.SelectionYes); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBet(ctx, "b2", "u1", usd("10"), models.SelectionYes); err != nil {
		t.Fatal(err)
	}

	if err := svc.SettleMarket(ctx, "mk", map[string]models.BetOutcome{"b1": models.OutcomeWin}); err != nil {
		t.Fatal(err)
	}

	b2, _ := st.GetBet(ctx, "b2")
	if b2.Outcome != models.OutcomeLose {
		t.Fatalf("b2 outcome = %s", b2.Outcome)
	}
	m, _ := st.GetMarket(ctx, "mk")
	if m.Status != models.MarketSettled || m.SettledAt == nil {
		t.Fatalf("market = %+v", m)
	}
	// 100 - 20 de stake + 19 de payout
	if got := balance(t, st, "u1"); !got.Equal(usd("99")) {
		t.Fatalf("balance = %s", got)
	}
	if len(pub.markets) != 1 || pub.markets[0].Outcomes["b2"] != "lose" || pub.markets[0].MatchID != "m1" {
		t.Fatalf("market_settled events = %+v", pub.markets)
	}

	// reexecução é no-op
	if err := svc.SettleMarket(ctx, "mk", map[string]models.BetOutcome{"b2": models.OutcomeWin}); err != nil {
		t.Fatal(err)
	}
	if got := balance(t, st, "u1"); !got.Equal(usd("99")) {
		t.Fatalf("balance after rerun = %s", got)
	}
	if len(pub.markets) != 1 {
		t.Fatal("rerun should not publish again")
	}
}

func TestSettleMarketResumesAfterPartialFailure(t *testing.T) {
	st, svc, _ := fixture(t)
	if _, err := svc.PlaceBet(ctx, "b1", "u1", usd("10"), models.SelectionYes); err != nil {
		t.Fatal(err)
	}
	// b1 já foi resolvida numa execução anterior que parou antes do mercado
	if _, err := svc.SettleBet(ctx, "b1", models.OutcomeWin); err != nil {
		t.Fatal(err)
	}

	if err := svc.SettleMarket(ctx, "mk", map[string]models.BetOutcome{"b1": models.OutcomeWin}); err != nil {
		t.Fatal(err)
	}
	if got := balance(t, st, "u1"); !got.Equal(usd("109")) {
		t.Fatalf("balance = %s", got)
	}
}

func TestSettleMarketValidatesBeforeWriting(t *testing.T) {
	st, svc, _ := fixture(t)
	err := svc.SettleMarket(ctx, "mk", map[string]models.BetOutcome{"b1": models.OutcomeWin, "b2": "maybe"})
	if !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("err = %v", err)
	}
	b1, _ := st.GetBet(ctx, "b1")
	if b1.Outcome != models.OutcomePending {
		t.Fatal("no bet should be touched")
	}
	if err := svc.SettleMarket(ctx, "ghost", nil); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("unknown market: %v", err)
	}
}

func TestPublishFailureIsBestEffort(t *testing.T) {
	_, svc, pub := fixture(t)
	pub.err = errors.New("broker down")
	var failed []string
	svc.OnPublishError = func(topic string) { failed = append(failed, topic) }

	if _, err := svc.PlaceBet(ctx, "b1", "u1", usd("10"), models.SelectionYes); err != nil {
		t.Fatalf("placement must succeed: %v", err)
	}
	if len(failed) != 1 || failed[0] != "bet_placed" {
		t.Fatalf("failed topics = %v", failed)
	}
}

func TestPlaceParlay(t *testing.T) {
	st, svc, pub := fixture(t)
	legs := []models.ParlayLeg{
		{BetID: "b1", Selection: models.SelectionYes, Odds: 50},
		{BetID: "b2", Selection: models.SelectionNo},
	}

	p, res, err := svc.PlaceParlay(ctx, "u1", legs, usd("10"), models.ParlayPower)
	if err != nil {
		t.Fatal(err)
	}
	// 1.9 × (2.2 × 1.1) = 4.598, acima do piso 3
	if !p.PotentialPayoutUSD.Equal(usd("45.98")) || p.Status != models.ParlayActive {
		t.Fatalf("parlay = %+v", p)
	}
	if p.Legs[0].Odds != 1.9 || p.Legs[0].Description != "Will they go on a date?" {
		t.Fatalf("leg odds must come from the stored bet: %+v", p.Legs[0])
	}
	if res.TierFloor != 3 {
		t.Fatalf("result = %+v", res)
	}
	if got := balance(t, st, "u1"); !got.Equal(usd("90")) {
		t.Fatalf("balance = %s", got)
	}
	if ps, _ := st.Parlays(ctx, "u1"); len(ps) != 1 {
		t.Fatalf("parlays = %+v", ps)
	}
	if len(pub.placed) != 1 || pub.placed[0].ParlayID != p.ID {
		t.Fatalf("events = %+v", pub.placed)
	}
}

func TestPlaceParlayRejections(t *testing.T) {
	cases := []struct {
		name  string
		legs  []models.ParlayLeg
		stake string
		mode  models.ParlayMode
		setup func(*memory.Store)
		want  error
	}{
		{"one leg", []models.ParlayLeg{{BetID: "b1", Selection: models.SelectionYes}}, "10", models.ParlayPower, nil, parlay.ErrTooFewLegs},
		{"repeated bet", []models.ParlayLeg{{BetID: "b1", Selection: models.SelectionYes}, {BetID: "b1", Selection: models.SelectionNo}}, "10", models.ParlayPower, nil, parlay.ErrInvalidLeg},
		{"bad selection", []models.ParlayLeg{{BetID: "b1", Selection: "maybe"}, {BetID: "b2", Selection: models.SelectionNo}}, "10", models.ParlayFlex, nil, parlay.ErrInvalidLeg},
		{"bad mode", []models.ParlayLeg{{BetID: "b1", Selection: models.SelectionYes}, {BetID: "b2", Selection: models.SelectionNo}}, "10", "turbo", nil, parlay.ErrInvalidLeg},
		{"no stake", []models.ParlayLeg{{BetID: "b1", Selection: models.SelectionYes}, {BetID: "b2", Selection: models.SelectionNo}}, "0", models.ParlayPower, nil, ErrInvalidStake},
		{"broke", []models.ParlayLeg{{BetID: "b1", Selection: models.SelectionYes}, {BetID: "b2", Selection: models.SelectionNo}}, "500", models.ParlayPower, nil, models.ErrInsufficientBalance},
		{"settled leg", []models.ParlayLeg{{BetID: "b1", Selection: models.SelectionYes}, {BetID: "b3", Selection: models.SelectionNo}}, "10", models.ParlayPower, func(st *memory.Store) {
			st.PutMarket(models.BetsMarket{ID: "mk2", Status: models.MarketOpen},
				models.Bet{ID: "b3", MarketID: "mk2", Odds: 2, Outcome: models.OutcomeWin})
		}, models.ErrInvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, svc, _ := fixture(t)
			if tc.setup != nil {
				tc.setup(st)
			}
			_, _, err := svc.PlaceParlay(ctx, "u1", tc.legs, usd(tc.stake), tc.mode)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if got := balance(t, st, "u1"); !got.Equal(usd("100")) {
				t.Fatalf("balance changed to %s", got)
			}
		})
	}
}

func TestSettleBetPaysBySelection(t *testing.T) {
	tests := []struct {
		outcome models.BetOutcome
		yes     string // saldo final de quem foi de yes
		no      string
	}{
		{models.OutcomeWin, "109", "90"},
		{models.OutcomeLose, "90", "109"},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			st, svc, _ := fixture(t)
			if _, err := svc.PlaceBet(ctx, "b1", "u1", usd("10"), models.SelectionYes); err != nil {
				t.Fatal(err)
			}
			if _, err := svc.PlaceBet(ctx, "b1", "u2", usd("10"), models.SelectionNo); err != nil {
				t.Fatal(err)
			}
			if _, err := svc.SettleBet(ctx, "b1", tt.outcome); err != nil {
				t.Fatal(err)
			}
			if got := balance(t, st, "u1"); !got.Equal(usd(tt.yes)) {
				t.Errorf("yes balance = %s, want %s", got, tt.yes)
			}
			if got := balance(t, st, "u2"); !got.Equal(usd(tt.no)) {
				t.Errorf("no balance = %s, want %s", got, tt.no)
			}
		})
	}
}

func TestPlaceBetRejectsUnknownSelection(t *testing.T) {
	st, svc, _ := fixture(t)
	for _, sel := range []models.Selection{"banana", models.SelectionOver, models.SelectionUnder} {
		if _, err := svc.PlaceBet(ctx, "b1", "u1", usd("10"), sel); !errors.Is(err, ErrInvalidSelection) {
			t.Fatalf("%s: err = %v", sel, err)
		}
	}
	if got := balance(t, st, "u1"); !got.Equal(usd("100")) {
		t.Fatalf("balance changed to %s", got)
	}
	if ps, _ := st.Placements(ctx, "b1"); len(ps) != 0 {
		t.Fatalf("placements = %+v", ps)
	}
}

func parlayOf(t *testing.T, st *memory.Store, userID string) models.Parlay {
	t.Helper()
	ps, err := st.Parlays(ctx, userID)
	if err != nil || len(ps) != 1 {
		t.Fatalf("parlays = %+v err = %v", ps, err)
	}
	return ps[0]
}

func ledgerCount(t *testing.T, st *memory.Store, userID string, txType models.TransactionType) int {
	t.Helper()
	txs, _ := st.Transactions(ctx, userID)
	n := 0
	for _, tr := range txs {
		if tr.Type == txType {
			n++
		}
	}
	return n
}

func TestParlaySettlesWithItsLegs(t *testing.T) {
	legs := []models.ParlayLeg{
		{BetID: "b1", Selection: models.SelectionYes},
		{BetID: "b2", Selection: models.SelectionNo},
	}

	t.Run("won", func(t *testing.T) {
		st, svc, pub := fixture(t)
		p, _, err := svc.PlaceParlay(ctx, "u1", legs, usd("10"), models.ParlayPower)
		if err != nil {
			t.Fatal(err)
		}

		if _, err := svc.SettleBet(ctx, "b1", models.OutcomeWin); err != nil {
			t.Fatal(err)
		}
		if got := parlayOf(t, st, "u1"); got.Status != models.ParlayActive {
			t.Fatalf("one leg pending, status = %s", got.Status)
		}

		if _, err := svc.SettleBet(ctx, "b2", models.OutcomeLose); err != nil {
			t.Fatal(err)
		}
		if got := parlayOf(t, st, "u1"); got.Status != models.ParlayWon {
			t.Fatalf("status = %s", got.Status)
		}
		if got := balance(t, st, "u1"); !got.Equal(usd("90").Add(p.PotentialPayoutUSD)) {
			t.Fatalf("balance = %s", got)
		}
		last := pub.settled[len(pub.settled)-1]
		if last.Parlays != 1 || last.PaidOutUSD != p.PotentialPayoutUSD.StringFixed(2) {
			t.Fatalf("bet_settled = %+v", last)
		}

		// reexecução não paga de novo
		if _, err := svc.SettleBet(ctx, "b2", models.OutcomeLose); err != nil {
			t.Fatal(err)
		}
		if n := ledgerCount(t, st, "u1", models.TxBetPayout); n != 1 {
			t.Fatalf("payout entries = %d", n)
		}
		if u, _ := st.GetUser(ctx, "u1"); u.History.BetsWon != 1 {
			t.Fatalf("history = %+v", u.History)
		}
	})

	t.Run("lost", func(t *testing.T) {
		st, svc, _ := fixture(t)
		if _, _, err := svc.PlaceParlay(ctx, "u1", legs, usd("10"), models.ParlayPower); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.SettleBet(ctx, "b1", models.OutcomeLose); err != nil {
			t.Fatal(err)
		}
		if got := parlayOf(t, st, "u1"); got.Status != models.ParlayLost {
			t.Fatalf("status = %s", got.Status)
		}
		if _, err := svc.SettleBet(ctx, "b2", models.OutcomeLose); err != nil {
			t.Fatal(err)
		}
		if got := balance(t, st, "u1"); !got.Equal(usd("90")) {
			t.Fatalf("balance = %s", got)
		}
		if n := ledgerCount(t, st, "u1", models.TxBetPayout); n != 0 {
			t.Fatalf("payout entries = %d", n)
		}
	})

	t.Run("void", func(t *testing.T) {
		st, svc, _ := fixture(t)
		err := st.WithinTx(ctx, func(tx storage.Tx) error {
			return tx.InsertParlay(ctx, models.Parlay{
				ID:     "px",
				UserID: "u1",
				Legs: []models.ParlayLeg{
					{BetID: "b1", Selection: models.SelectionYes, Odds: 1.9},
					{BetID: "gone", Selection: models.SelectionYes, Odds: 2},
				},
				StakeUSD:           usd("10"),
				PotentialPayoutUSD: usd("38"),
				Mode:               models.ParlayPower,
				Status:             models.ParlayActive,
			})
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.SettleBet(ctx, "b1", models.OutcomeWin); err != nil {
			t.Fatal(err)
		}
		if got := parlayOf(t, st, "u1"); got.Status != models.ParlayVoid {
			t.Fatalf("status = %s", got.Status)
		}
		if got := balance(t, st, "u1"); !got.Equal(usd("110")) {
			t.Fatalf("stake must be refunded, balance = %s", got)
		}
		if n := ledgerCount(t, st, "u1", models.TxBetRefund); n != 1 {
			t.Fatalf("refund entries = %d", n)
		}
	})

	t.Run("market settlement", func(t *testing.T) {
		st, svc, _ := fixture(t)
		p, _, err := svc.PlaceParlay(ctx, "u1", legs, usd("10"), models.ParlayFlex)
		if err != nil {
			t.Fatal(err)
		}
		outcomes := map[string]models.BetOutcome{"b1": models.OutcomeWin, "b2": models.OutcomeLose}
		if err := svc.SettleMarket(ctx, "mk", outcomes); err != nil {
			t.Fatal(err)
		}
		if got := parlayOf(t, st, "u1"); got.Status != models.ParlayWon {
			t.Fatalf("status = %s", got.Status)
		}
		if got := balance(t, st, "u1"); !got.Equal(usd("90").Add(p.PotentialPayoutUSD)) {
			t.Fatalf("balance = %s", got)
		}
	})
}

func TestConcurrentParlaysWithReversedLegs(t *testing.T) {
	st, svc, _ := fixture(t)
	forward := []models.ParlayLeg{{BetID: "b1", Selection: models.SelectionYes}, {BetID: "b2", Selection: models.SelectionYes}}
	reversed := []models.ParlayLeg{{BetID: "b2", Selection: models.SelectionYes}, {BetID: "b1", Selection: models.SelectionYes}}

	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for user, legs := range map[string][]models.ParlayLeg{"u1": forward, "u2": reversed} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, _, err := svc.PlaceParlay(tctx, user, legs, usd("1"), models.ParlayPower); err != nil {
					t.Error(err)
				}
			}()
		}
	}
	wg.Wait()

	for _, u := range []string{"u1", "u2"} {
		if got := balance(t, st, u); !got.Equal(usd("90")) {
			t.Errorf("%s balance = %s", u, got)
		}
	}
}
