// Package memory implementa os repositórios em memória com a mesma semântica
// transacional do postgres. Usado nos testes dos engines.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/internal/storage"
	"github.com/radieske/match-bet-platform/pkg/models"
)

type state struct {
	users      map[string]models.UserProfile
	matches    map[string]models.Match
	messages   []models.Message
	bets       map[string]models.Bet
	markets    map[string]models.BetsMarket
	placements map[string]models.BetPlacement
	parlays    map[string]models.Parlay
	ledger     []models.Transaction
}

func (s *state) clone() *state {
	return &state{
		users:      maps.Clone(s.users),
		matches:    maps.Clone(s.matches),
		messages:   slices.Clone(s.messages),
		bets:       maps.Clone(s.bets),
		markets:    maps.Clone(s.markets),
		placements: maps.Clone(s.placements),
		parlays:    maps.Clone(s.parlays),
		ledger:     slices.Clone(s.ledger),
	}
}

// Store guarda tudo atrás de um único mutex; WithinTx trabalha numa cópia
// e só publica a cópia se fn terminar sem erro.
type Store struct {
	mu sync.RWMutex
	st *state

	seq int
}

func New() *Store {
	return &Store{st: &state{
		users:      map[string]models.UserProfile{},
		matches:    map[string]models.Match{},
		bets:       map[string]models.Bet{},
		markets:    map[string]models.BetsMarket{},
		placements: map[string]models.BetPlacement{},
		parlays:    map[string]models.Parlay{},
	}}
}

var (
	_ storage.TxRunner = (*Store)(nil)
	_ storage.Tx       = (*memTx)(nil)
)

func (s *Store) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memTx{st: work, store: s}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// ---- seed ----

func (s *Store) PutUser(u models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

func (s *Store) PutMatch(m models.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.matches[m.ID] = m
}

func (s *Store) PutMessage(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.messages = append(s.st.messages, m)
}

func (s *Store) PutMarket(m models.BetsMarket, bets ...models.Bet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.markets[m.ID] = m
	for _, b := range bets {
		s.st.bets[b.ID] = b
	}
}

func (s *Store) PutPlacement(p models.BetPlacement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.placements[p.ID] = p
}

// Fund credita saldo via um depósito no ledger, mantendo saldo e ledger consistentes
func (s *Store) Fund(userID string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.st.users[userID]
	u.ID = userID
	u.WalletBalanceUSD = u.WalletBalanceUSD.Add(amount)
	s.st.users[userID] = u
	s.st.ledger = append(s.st.ledger, models.Transaction{
		ID: s.nextID("tx"), UserID: userID, Type: models.TxDeposit,
		AmountUSD: amount, Status: models.TxCompleted, Timestamp: time.Now(),
	})
}

// ---- leituras ----

func (s *Store) GetUser(_ context.Context, id string) (models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.st.users[id]
	if !ok {
		return models.UserProfile{}, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	return u, nil
}

func (s *Store) FindCandidates(_ context.Context, q models.CandidateQuery) ([]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := make(map[string]struct{}, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	var out []models.UserProfile
	for _, u := range s.st.users {
		if _, skip := excluded[u.ID]; skip {
			continue
		}
		if u.Privacy.HideFromBetting || u.Age == 0 || len(u.Photos) == 0 || u.Bio == "" {
			continue
		}
		if q.AgeRange != nil && !q.AgeRange.Contains(u.Age) {
			continue
		}
		if q.Box != nil && (u.Location == nil || !q.Box.Contains(*u.Location)) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) GetMatch(_ context.Context, id string) (models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.st.matches[id]
	if !ok {
		return models.Match{}, fmt.Errorf("match %s: %w", id, models.ErrNotFound)
	}
	return m, nil
}

func (s *Store) MatchBetween(_ context.Context, a, b string) (models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matchBetween(s.st, a, b)
}

// ActiveMatches devolve os matches "matched" do usuário, mais recentes primeiro
func (s *Store) ActiveMatches(_ context.Context, userID string) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Match
	for _, m := range s.st.matches {
		if m.Status == models.MatchMatched && m.Involves(userID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return matchedAt(out[i]).After(matchedAt(out[j])) })
	return out, nil
}

func matchedAt(m models.Match) time.Time {
	if m.MatchedAt != nil {
		return *m.MatchedAt
	}
	return m.CreatedAt
}

// UpsertUser preserva saldo, contadores e createdAt do registro existente
func (s *Store) UpsertUser(_ context.Context, u models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if prev, ok := s.st.users[u.ID]; ok {
		u.WalletBalanceUSD = prev.WalletBalanceUSD
		u.History = prev.History
		u.CreatedAt = prev.CreatedAt
	} else {
		u.WalletBalanceUSD = decimal.Zero
		u.History = models.History{}
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.st.users[u.ID] = u
	return nil
}

func (s *Store) InsertMessage(_ context.Context, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.matches[m.MatchID]; !ok {
		return fmt.Errorf("match %s: %w", m.MatchID, models.ErrNotFound)
	}
	s.st.messages = append(s.st.messages, m)
	return nil
}

func (s *Store) SetDateScheduled(_ context.Context, matchID string, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.matches[matchID]
	if !ok {
		return fmt.Errorf("match %s: %w", matchID, models.ErrNotFound)
	}
	m.DateScheduled = at
	s.st.matches[matchID] = m
	return nil
}

func (s *Store) RecentMessagesBySender(_ context.Context, userID string, since time.Time, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newest(s.st.messages, func(m models.Message) bool {
		return m.SenderID == userID && !m.CreatedAt.Before(since)
	}, limit), nil
}

func (s *Store) MatchMessages(_ context.Context, matchID string, since time.Time, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newest(s.st.messages, func(m models.Message) bool {
		return m.MatchID == matchID && !m.CreatedAt.Before(since)
	}, limit), nil
}

func newest(all []models.Message, keep func(models.Message) bool, limit int) []models.Message {
	var out []models.Message
	for _, m := range all {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) SimilarMatches(_ context.Context, q models.SimilarMatchQuery) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	within := func(age, target int) bool { return age >= target-q.Tolerance && age <= target+q.Tolerance }

	var out []models.Match
	for _, m := range s.st.matches {
		if m.CreatedAt.Before(q.Since) {
			continue
		}
		ua, okA := s.st.users[m.UserA]
		ub, okB := s.st.users[m.UserB]
		if !okA || !okB || !within(ua.Age, q.AgeA) || !within(ub.Age, q.AgeB) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) BettingHistory(_ context.Context, userID string, limit int) ([]models.PlacementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PlacementRecord
	for _, p := range s.st.placements {
		if p.UserID != userID {
			continue
		}
		b := s.st.bets[p.BetID]
		out = append(out, models.PlacementRecord{BetPlacement: p, BetType: b.BetType, Description: b.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) StakeDistribution(_ context.Context, betID string) (models.StakeDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var d models.StakeDistribution
	for _, p := range s.st.placements {
		if p.BetID != betID || p.Status != models.PlacementActive {
			continue
		}
		d.BetCount++
		d.TotalVolume = d.TotalVolume.Add(p.StakeUSD)
		switch p.Selection {
		case models.SelectionYes:
			d.YesStakes = d.YesStakes.Add(p.StakeUSD)
		case models.SelectionNo:
			d.NoStakes = d.NoStakes.Add(p.StakeUSD)
		}
	}
	return d, nil
}

func (s *Store) GetBet(_ context.Context, id string) (models.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.st.bets[id]
	if !ok {
		return models.Bet{}, fmt.Errorf("bet %s: %w", id, models.ErrNotFound)
	}
	return b, nil
}

func (s *Store) GetMarket(_ context.Context, id string) (models.BetsMarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.st.markets[id]
	if !ok {
		return models.BetsMarket{}, fmt.Errorf("market %s: %w", id, models.ErrNotFound)
	}
	return m, nil
}

func (s *Store) ListBetsByMarket(_ context.Context, marketID string) ([]models.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bet
	for _, b := range s.st.bets {
		if b.MarketID == marketID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ExpiredOpenMarkets lista mercados abertos cujo encontro agendado é anterior a before
func (s *Store) ExpiredOpenMarkets(_ context.Context, before time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, mk := range s.st.markets {
		if mk.Status != models.MarketOpen {
			continue
		}
		m, ok := s.st.matches[mk.MatchID]
		if ok && m.DateScheduled != nil && m.DateScheduled.Before(before) {
			ids = append(ids, mk.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Placements(_ context.Context, betID string) ([]models.BetPlacement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.BetPlacement
	for _, p := range s.st.placements {
		if p.BetID == betID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Balance(_ context.Context, userID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.st.users[userID]
	if !ok {
		return decimal.Zero, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return u.WalletBalanceUSD, nil
}

func (s *Store) Transactions(_ context.Context, userID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for _, t := range s.st.ledger {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) Parlays(_ context.Context, userID string) ([]models.Parlay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Parlay
	for _, p := range s.st.parlays {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchBetween(st *state, a, b string) (models.Match, error) {
	for _, m := range st.matches {
		if (m.UserA == a && m.UserB == b) || (m.UserA == b && m.UserB == a) {
			return m, nil
		}
	}
	return models.Match{}, fmt.Errorf("match %s/%s: %w", a, b, models.ErrNotFound)
}
