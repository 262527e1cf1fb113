package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/pkg/models"
)

// memTx opera sobre a cópia de estado aberta por WithinTx (o mutex já está tomado)
type memTx struct {
	st    *state
	store *Store
}

func (t *memTx) MatchBetween(_ context.Context, a, b string) (models.Match, error) {
	return matchBetween(t.st, a, b)
}

func (t *memTx) InsertMatch(_ context.Context, m models.Match) error {
	if _, err := matchBetween(t.st, m.UserA, m.UserB); err == nil {
		return fmt.Errorf("match %s/%s: %w", m.UserA, m.UserB, models.ErrConflict)
	}
	if m.ID == "" {
		m.ID = t.store.nextID("match")
	}
	t.st.matches[m.ID] = m
	return nil
}

func (t *memTx) PromoteMatch(_ context.Context, matchID string, at time.Time) error {
	m, ok := t.st.matches[matchID]
	if !ok {
		return fmt.Errorf("match %s: %w", matchID, models.ErrNotFound)
	}
	if m.Status != models.MatchPending {
		return fmt.Errorf("match %s is %s: %w", matchID, m.Status, models.ErrInvalidState)
	}
	m.Status = models.MatchMatched
	m.MatchedAt = &at
	t.st.matches[matchID] = m
	return nil
}

func (t *memTx) LockMatch(_ context.Context, matchID string) (models.Match, error) {
	m, ok := t.st.matches[matchID]
	if !ok {
		return models.Match{}, fmt.Errorf("match %s: %w", matchID, models.ErrNotFound)
	}
	return m, nil
}

func (t *memTx) LinkMarket(_ context.Context, matchID, marketID string) error {
	m, ok := t.st.matches[matchID]
	if !ok {
		return fmt.Errorf("match %s: %w", matchID, models.ErrNotFound)
	}
	m.BetsMarketID = marketID
	t.st.matches[matchID] = m
	return nil
}

func (t *memTx) updateUser(userID string, fn func(*models.UserProfile)) error {
	u, ok := t.st.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	fn(&u)
	t.st.users[userID] = u
	return nil
}

func (t *memTx) IncrementMatchesCount(_ context.Context, userID string) error {
	return t.updateUser(userID, func(u *models.UserProfile) { u.History.MatchesCount++ })
}

func (t *memTx) IncrementBetsPlaced(_ context.Context, userID string) error {
	return t.updateUser(userID, func(u *models.UserProfile) { u.History.BetsPlaced++ })
}

func (t *memTx) IncrementBetsWon(_ context.Context, userID string) error {
	return t.updateUser(userID, func(u *models.UserProfile) { u.History.BetsWon++ })
}

func (t *memTx) LockBet(_ context.Context, betID string) (models.Bet, error) {
	b, ok := t.st.bets[betID]
	if !ok {
		return models.Bet{}, fmt.Errorf("bet %s: %w", betID, models.ErrNotFound)
	}
	return b, nil
}

func (t *memTx) BetOutcome(_ context.Context, betID string) (models.BetOutcome, error) {
	b, ok := t.st.bets[betID]
	if !ok {
		return "", fmt.Errorf("bet %s: %w", betID, models.ErrNotFound)
	}
	return b.Outcome, nil
}

func (t *memTx) SetBetOutcome(_ context.Context, betID string, outcome models.BetOutcome) error {
	b, ok := t.st.bets[betID]
	if !ok {
		return fmt.Errorf("bet %s: %w", betID, models.ErrNotFound)
	}
	if b.Outcome != models.OutcomePending {
		return fmt.Errorf("bet %s already %s: %w", betID, b.Outcome, models.ErrInvalidState)
	}
	b.Outcome = outcome
	t.st.bets[betID] = b
	return nil
}

func (t *memTx) SetBetOdds(_ context.Context, betID string, odds float64) error {
	b, ok := t.st.bets[betID]
	if !ok {
		return fmt.Errorf("bet %s: %w", betID, models.ErrNotFound)
	}
	b.Odds = odds
	t.st.bets[betID] = b
	return nil
}

func (t *memTx) LockMarket(_ context.Context, marketID string) (models.BetsMarket, error) {
	m, ok := t.st.markets[marketID]
	if !ok {
		return models.BetsMarket{}, fmt.Errorf("market %s: %w", marketID, models.ErrNotFound)
	}
	return m, nil
}

func (t *memTx) InsertMarket(_ context.Context, m models.BetsMarket, bets []models.Bet) error {
	if _, exists := t.st.markets[m.ID]; exists {
		return fmt.Errorf("market %s: %w", m.ID, models.ErrConflict)
	}
	t.st.markets[m.ID] = m
	for _, b := range bets {
		t.st.bets[b.ID] = b
	}
	return nil
}

func (t *memTx) SetMarketStatus(_ context.Context, marketID string, status models.MarketStatus, at time.Time) error {
	m, ok := t.st.markets[marketID]
	if !ok {
		return fmt.Errorf("market %s: %w", marketID, models.ErrNotFound)
	}
	m.Status = status
	switch status {
	case models.MarketClosed:
		m.ClosedAt = &at
	case models.MarketSettled:
		m.SettledAt = &at
	}
	t.st.markets[marketID] = m
	return nil
}

func (t *memTx) ActivePlacements(_ context.Context, betID string) ([]models.BetPlacement, error) {
	var out []models.BetPlacement
	for _, p := range t.st.placements {
		if p.BetID == betID && p.Status == models.PlacementActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memTx) InsertPlacement(_ context.Context, p models.BetPlacement) error {
	t.st.placements[p.ID] = p
	return nil
}

func (t *memTx) SetPlacementStatus(_ context.Context, placementID string, status models.PlacementStatus) error {
	p, ok := t.st.placements[placementID]
	if !ok {
		return fmt.Errorf("placement %s: %w", placementID, models.ErrNotFound)
	}
	if p.Status != models.PlacementActive {
		return fmt.Errorf("placement %s already %s: %w", placementID, p.Status, models.ErrInvalidState)
	}
	p.Status = status
	t.st.placements[placementID] = p
	return nil
}

func (t *memTx) InsertParlay(_ context.Context, p models.Parlay) error {
	t.st.parlays[p.ID] = p
	return nil
}

func (t *memTx) ActiveParlaysByBet(_ context.Context, betID string) ([]models.Parlay, error) {
	var out []models.Parlay
	for _, p := range t.st.parlays {
		if p.Status != models.ParlayActive {
			continue
		}
		for _, l := range p.Legs {
			if l.BetID == betID {
				out = append(out, p)
				break
			}
		}
	}
	slices.SortFunc(out, func(a, b models.Parlay) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *memTx) SetParlayStatus(_ context.Context, parlayID string, status models.ParlayStatus) error {
	p, ok := t.st.parlays[parlayID]
	if !ok {
		return fmt.Errorf("parlay %s: %w", parlayID, models.ErrNotFound)
	}
	if p.Status != models.ParlayActive {
		return fmt.Errorf("parlay %s already %s: %w", parlayID, p.Status, models.ErrInvalidState)
	}
	p.Status = status
	t.st.parlays[parlayID] = p
	return nil
}

func (t *memTx) LockWallet(_ context.Context, userID string) (decimal.Decimal, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return decimal.Zero, fmt.Errorf("wallet %s: %w", userID, models.ErrNotFound)
	}
	return u.WalletBalanceUSD, nil
}

func (t *memTx) TransactionByRef(_ context.Context, userID string, txType models.TransactionType, ref string) (models.Transaction, error) {
	for _, tr := range t.st.ledger {
		if tr.UserID == userID && tr.Type == txType && tr.ExternalRef == ref {
			return tr, nil
		}
	}
	return models.Transaction{}, fmt.Errorf("transaction %s: %w", ref, models.ErrNotFound)
}

func (t *memTx) PostLedger(_ context.Context, tr models.Transaction) (decimal.Decimal, error) {
	u, ok := t.st.users[tr.UserID]
	if !ok {
		return decimal.Zero, fmt.Errorf("wallet %s: %w", tr.UserID, models.ErrNotFound)
	}
	if tr.ID == "" {
		tr.ID = t.store.nextID("tx")
	}
	if tr.Status == models.TxCompleted {
		u.WalletBalanceUSD = u.WalletBalanceUSD.Add(tr.SignedAmount())
		t.st.users[tr.UserID] = u
	}
	t.st.ledger = append(t.st.ledger, tr)
	return u.WalletBalanceUSD, nil
}
