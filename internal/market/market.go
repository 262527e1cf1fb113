// Package market abre, fecha e re-precifica os mercados de apostas de cada match.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/storage"
	"github.com/radieske/match-bet-platform/pkg/models"
)

var (
	ErrMarketExists = fmt.Errorf("%w: match already has a market", models.ErrInvalidState)
	ErrInvalidOdds  = fmt.Errorf("market: odds must be at least %.2f", models.MinOdds)
)

const messageWindow = 50

type standardBet struct {
	betType     string
	description string
	odds        float64
}

// bets criadas em todo mercado novo
var standardBets = []standardBet{
	{"date_happens", "Did the date happen? (Yes)", 1.9},
	{"no_show", "No-show (Yes)", 2.2},
	{"first_kiss", "First kiss (Yes)", 2.0},
	{"first_message_delay_over", "First message delay over 6 hours", 1.8},
}

type Store interface {
	storage.TxRunner
	GetMarket(ctx context.Context, id string) (models.BetsMarket, error)
	ListBetsByMarket(ctx context.Context, marketID string) ([]models.Bet, error)
	MatchMessages(ctx context.Context, matchID string, since time.Time, limit int) ([]models.Message, error)
	ExpiredOpenMarkets(ctx context.Context, before time.Time) ([]string, error)
}

// OddsInvalidator descarta odds personalizadas em cache de uma bet re-precificada
type OddsInvalidator interface {
	InvalidateBet(ctx context.Context, betID string) error
}

type Service struct {
	log   *zap.Logger
	store Store
	inval OddsInvalidator

	Now          func() time.Time
	Grace        time.Duration // tempo após o encontro agendado até o fechamento automático
	GenerateBets bool
	OnCreated    func()
	OnClosed     func()
}

// New monta o serviço; inval pode ser nil
func New(log *zap.Logger, store Store, inval OddsInvalidator) *Service {
	return &Service{log: log, store: store, inval: inval, Now: time.Now, Grace: 24 * time.Hour, GenerateBets: true}
}

// View é o mercado com as bets carregadas
type View struct {
	models.BetsMarket
	Bets []models.Bet `json:"bets"`
}

func (s *Service) Get(ctx context.Context, marketID string) (View, error) {
	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return View{}, err
	}
	bets, err := s.store.ListBetsByMarket(ctx, marketID)
	if err != nil {
		return View{}, err
	}
	return View{BetsMarket: m, Bets: bets}, nil
}

// CreateMarket abre o mercado de um match mutual com as bets padrão e as custom
// geradas da conversa. Match com mercado já vinculado devolve ErrMarketExists.
func (s *Service) CreateMarket(ctx context.Context, matchID string) (View, error) {
	var custom []GeneratedBet
	if s.GenerateBets {
		msgs, err := s.store.MatchMessages(ctx, matchID, time.Time{}, messageWindow)
		if err != nil {
			// sem mensagens o mercado abre só com as bets padrão
			s.log.Warn("bet generator skipped", zap.String("matchId", matchID), zap.Error(err))
		} else {
			custom = GenerateCustomBets(msgs)
		}
	}

	now := s.Now()
	mk := models.BetsMarket{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		Status:    models.MarketOpen,
		CreatedAt: now,
	}
	bets := make([]models.Bet, 0, len(standardBets)+len(custom))
	for i, sb := range standardBets {
		b := newBet(mk.ID, sb.betType, sb.description, sb.odds, now.Add(time.Duration(i)))
		mk.StandardBets = append(mk.StandardBets, b.ID)
		bets = append(bets, b)
	}
	for i, g := range custom {
		b := newBet(mk.ID, g.BetType, g.Description, g.Odds, now.Add(time.Duration(len(standardBets)+i)))
		b.Custom = true
		mk.CustomBets = append(mk.CustomBets, b.ID)
		bets = append(bets, b)
	}

	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		match, err := tx.LockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchMatched {
			return fmt.Errorf("match %s is %s: %w", matchID, match.Status, models.ErrInvalidState)
		}
		if match.BetsMarketID != "" {
			return fmt.Errorf("match %s -> %s: %w", matchID, match.BetsMarketID, ErrMarketExists)
		}
		if err := tx.InsertMarket(ctx, mk, bets); err != nil {
			return err
		}
		return tx.LinkMarket(ctx, matchID, mk.ID)
	})
	if err != nil {
		return View{}, fmt.Errorf("create market: %w", err)
	}

	s.log.Info("market created",
		zap.String("marketId", mk.ID),
		zap.String("matchId", matchID),
		zap.Int("customBets", len(mk.CustomBets)),
	)
	if s.OnCreated != nil {
		s.OnCreated()
	}
	return View{BetsMarket: mk, Bets: bets}, nil
}

func newBet(marketID, betType, description string, odds float64, at time.Time) models.Bet {
	return models.Bet{
		ID:          uuid.NewString(),
		MarketID:    marketID,
		BetType:     betType,
		Description: description,
		Odds:        odds,
		Outcome:     models.OutcomePending,
		CreatedAt:   at,
	}
}

// CloseMarket move open -> closed. Mercado já fechado é no-op; settled é ErrInvalidState.
func (s *Service) CloseMarket(ctx context.Context, marketID string) (models.BetsMarket, error) {
	var (
		mk      models.BetsMarket
		changed bool
	)
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		mk, err = tx.LockMarket(ctx, marketID)
		if err != nil {
			return err
		}
		switch mk.Status {
		case models.MarketClosed:
			return nil
		case models.MarketSettled:
			return fmt.Errorf("market %s is settled: %w", marketID, models.ErrInvalidState)
		}
		now := s.Now()
		if err := tx.SetMarketStatus(ctx, marketID, models.MarketClosed, now); err != nil {
			return err
		}
		mk.Status = models.MarketClosed
		mk.ClosedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return models.BetsMarket{}, fmt.Errorf("close market %s: %w", marketID, err)
	}
	if changed {
		s.log.Info("market closed", zap.String("marketId", marketID))
		if s.OnClosed != nil {
			s.OnClosed()
		}
	}
	return mk, nil
}

// UpdateOdds re-precifica uma bet pendente. Placements existentes mantêm o preço travado.
func (s *Service) UpdateOdds(ctx context.Context, betID string, odds float64) (models.Bet, error) {
	if odds < models.MinOdds {
		return models.Bet{}, fmt.Errorf("%w: got %.2f", ErrInvalidOdds, odds)
	}

	var bet models.Bet
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		bet, err = tx.LockBet(ctx, betID)
		if err != nil {
			return err
		}
		if bet.Outcome != models.OutcomePending {
			return fmt.Errorf("bet %s is %s: %w", betID, bet.Outcome, models.ErrInvalidState)
		}
		if err := tx.SetBetOdds(ctx, betID, odds); err != nil {
			return err
		}
		bet.Odds = odds
		return nil
	})
	if err != nil {
		return models.Bet{}, fmt.Errorf("update odds %s: %w", betID, err)
	}

	if s.inval != nil {
		if err := s.inval.InvalidateBet(ctx, betID); err != nil {
			s.log.Warn("odds cache invalidation failed", zap.String("betId", betID), zap.Error(err))
		}
	}
	s.log.Info("bet repriced", zap.String("betId", betID), zap.Float64("odds", odds))
	return bet, nil
}

// CloseExpiredMarkets fecha mercados abertos cujo encontro passou há mais de Grace.
// Continua após falhas individuais e devolve quantos fechou.
func (s *Service) CloseExpiredMarkets(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.store.ExpiredOpenMarkets(ctx, now.Add(-s.Grace))
	if err != nil {
		return 0, fmt.Errorf("list expired markets: %w", err)
	}

	var (
		closed int
		errs   []error
	)
	for _, id := range ids {
		if _, err := s.CloseMarket(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		closed++
	}
	return closed, errors.Join(errs...)
}
