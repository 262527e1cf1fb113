// Package settlement move dinheiro: coloca apostas, resolve bets e mercados.
// Fail-closed: qualquer erro aborta a transação inteira.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/shared/lock"
	"github.com/radieske/match-bet-platform/internal/storage"
	"github.com/radieske/match-bet-platform/pkg/contracts/events"
	"github.com/radieske/match-bet-platform/pkg/contracts/topics"
	"github.com/radieske/match-bet-platform/pkg/models"
)

var (
	ErrInvalidOutcome   = errors.New("settlement: outcome must be win or lose")
	ErrInvalidStake     = errors.New("settlement: stake must be positive")
	ErrInvalidSelection = errors.New("settlement: selection must be yes or no")
)

const publishTimeout = 2 * time.Second

type Store interface {
	storage.TxRunner
	ListBetsByMarket(ctx context.Context, marketID string) ([]models.Bet, error)
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, ev events.BetPlaced) error
	PublishBetSettled(ctx context.Context, ev events.BetSettled) error
	PublishMarketSettled(ctx context.Context, ev events.MarketSettled) error
}

// Service serializa placement e settlement por bet (locker) e grava tudo
// dentro de uma transação que relê as linhas com lock.
type Service struct {
	log    *zap.Logger
	store  Store
	locker lock.Locker
	pub    Publisher

	Now            func() time.Time
	OnPlaced       func(stake decimal.Decimal)
	OnSettled      func(outcome models.BetOutcome, paidOut decimal.Decimal)
	OnPublishError func(topic string)
}

// New monta o serviço; pub pode ser nil
func New(log *zap.Logger, store Store, locker lock.Locker, pub Publisher) *Service {
	return &Service{log: log, store: store, locker: locker, pub: pub, Now: time.Now}
}

func betKey(id string) string    { return "bet:" + id }
func marketKey(id string) string { return "market:" + id }

// PlaceBet trava o preço atual da bet e debita o stake. Selection vazia vale "yes";
// "yes" ganha quando a bet resolve win e "no" quando resolve lose.
func (s *Service) PlaceBet(ctx context.Context, betID, userID string, stakeUSD decimal.Decimal, sel models.Selection) (models.BetPlacement, error) {
	if !stakeUSD.IsPositive() {
		return models.BetPlacement{}, fmt.Errorf("%w: %s", ErrInvalidStake, stakeUSD)
	}
	switch sel {
	case "":
		sel = models.SelectionYes
	case models.SelectionYes, models.SelectionNo:
	default:
		return models.BetPlacement{}, fmt.Errorf("%w: %q", ErrInvalidSelection, sel)
	}

	release, err := s.locker.Acquire(ctx, betKey(betID))
	if err != nil {
		return models.BetPlacement{}, fmt.Errorf("place bet %s: %w", betID, err)
	}
	defer release()

	var (
		placement models.BetPlacement
		marketID  string
	)
	err = s.store.WithinTx(ctx, func(tx storage.Tx) error {
		bet, err := tx.LockBet(ctx, betID)
		if err != nil {
			return err
		}
		if bet.Outcome != models.OutcomePending {
			return fmt.Errorf("bet %s is %s: %w", betID, bet.Outcome, models.ErrInvalidState)
		}
		market, err := tx.LockMarket(ctx, bet.MarketID)
		if err != nil {
			return err
		}
		if market.Status != models.MarketOpen {
			return fmt.Errorf("market %s is %s: %w", market.ID, market.Status, models.ErrInvalidState)
		}
		marketID = market.ID

		now := s.Now()
		placement = models.BetPlacement{
			ID:                 uuid.NewString(),
			BetID:              betID,
			UserID:             userID,
			Selection:          sel,
			StakeUSD:           stakeUSD,
			OddsAtPlacement:    bet.Odds,
			PotentialPayoutUSD: stakeUSD.Mul(decimal.NewFromFloat(bet.Odds)).Round(2),
			Status:             models.PlacementActive,
			CreatedAt:          now,
		}

		if err := debit(ctx, tx, userID, stakeUSD, placement.ID, now); err != nil {
			return err
		}
		if err := tx.InsertPlacement(ctx, placement); err != nil {
			return err
		}
		return tx.IncrementBetsPlaced(ctx, userID)
	})
	if err != nil {
		return models.BetPlacement{}, fmt.Errorf("place bet %s: %w", betID, err)
	}

	s.log.Info("bet placed",
		zap.String("placementId", placement.ID),
		zap.String("betId", betID),
		zap.String("userId", userID),
		zap.String("stake", stakeUSD.StringFixed(2)),
		zap.Float64("odds", placement.OddsAtPlacement),
	)
	if s.OnPlaced != nil {
		s.OnPlaced(stakeUSD)
	}
	s.publish(topics.BetPlaced, func(ctx context.Context) error {
		return s.pub.PublishBetPlaced(ctx, events.BetPlaced{
			PlacementID:        placement.ID,
			BetID:              betID,
			MarketID:           marketID,
			UserID:             userID,
			Selection:          string(sel),
			StakeUSD:           stakeUSD.StringFixed(2),
			Odds:               placement.OddsAtPlacement,
			PotentialPayoutUSD: placement.PotentialPayoutUSD.StringFixed(2),
			TsUnixMs:           placement.CreatedAt.UnixMilli(),
		})
	})
	return placement, nil
}

// debit confere saldo com a carteira travada e grava o betStake no ledger
func debit(ctx context.Context, tx storage.Tx, userID string, amount decimal.Decimal, ref string, at time.Time) error {
	balance, err := tx.LockWallet(ctx, userID)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("balance %s < stake %s: %w", balance.StringFixed(2), amount.StringFixed(2), models.ErrInsufficientBalance)
	}
	_, err = tx.PostLedger(ctx, models.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        models.TxBetStake,
		AmountUSD:   amount,
		Status:      models.TxCompleted,
		ExternalRef: ref,
		Timestamp:   at,
	})
	return err
}

// SettleBet resolve a bet, paga os placements cuja seleção acertou e reavalia os
// parlays que têm perna nela. Bet já resolvida é no-op e devolve o estado
// gravado, sem novo pagamento.
func (s *Service) SettleBet(ctx context.Context, betID string, outcome models.BetOutcome) (models.Bet, error) {
	if !outcome.Valid() {
		return models.Bet{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	release, err := s.locker.Acquire(ctx, betKey(betID))
	if err != nil {
		return models.Bet{}, fmt.Errorf("settle bet %s: %w", betID, err)
	}
	defer release()

	var (
		bet     models.Bet
		already bool
		settled int
		parlays parlayTally
		paidOut decimal.Decimal
	)
	err = s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		bet, err = tx.LockBet(ctx, betID)
		if err != nil {
			return err
		}
		if bet.Outcome != models.OutcomePending {
			already = true
			return nil
		}
		if err := tx.SetBetOutcome(ctx, betID, outcome); err != nil {
			return err
		}
		bet.Outcome = outcome

		placements, err := tx.ActivePlacements(ctx, betID)
		if err != nil {
			return err
		}
		now := s.Now()
		for _, p := range placements {
			if !p.Selection.Hits(outcome) {
				if err := tx.SetPlacementStatus(ctx, p.ID, models.PlacementLost); err != nil {
					return err
				}
				settled++
				continue
			}
			if err := tx.SetPlacementStatus(ctx, p.ID, models.PlacementWon); err != nil {
				return err
			}
			if err := credit(ctx, tx, p.UserID, models.TxBetPayout, p.PotentialPayoutUSD, p.ID, now); err != nil {
				return err
			}
			if err := tx.IncrementBetsWon(ctx, p.UserID); err != nil {
				return err
			}
			paidOut = paidOut.Add(p.PotentialPayoutUSD)
			settled++
		}

		parlays, err = s.settleParlays(ctx, tx, betID, outcome, now)
		return err
	})
	if err != nil {
		return models.Bet{}, fmt.Errorf("settle bet %s: %w", betID, err)
	}

	if already {
		if bet.Outcome != outcome {
			s.log.Warn("bet already settled with a different outcome",
				zap.String("betId", betID),
				zap.String("stored", string(bet.Outcome)),
				zap.String("requested", string(outcome)),
			)
		}
		return bet, nil
	}

	s.log.Info("bet settled",
		zap.String("betId", betID),
		zap.String("outcome", string(outcome)),
		zap.Int("placements", settled),
		zap.Int("parlays", parlays.resolved),
		zap.String("paidOut", paidOut.StringFixed(2)),
		zap.String("parlayPaidOut", parlays.paidOut.StringFixed(2)),
	)
	paidOut = paidOut.Add(parlays.paidOut)
	if s.OnSettled != nil {
		s.OnSettled(outcome, paidOut)
	}
	s.publish(topics.BetSettled, func(ctx context.Context) error {
		return s.pub.PublishBetSettled(ctx, events.BetSettled{
			BetID:      betID,
			MarketID:   bet.MarketID,
			Outcome:    string(outcome),
			Placements: settled,
			Parlays:    parlays.resolved,
			PaidOutUSD: paidOut.StringFixed(2),
			TsUnixMs:   s.Now().UnixMilli(),
		})
	})
	return bet, nil
}

// SettleMarket resolve todas as bets do mercado (sem outcome informado = lose)
// e marca o mercado como settled. Pode ser reexecutado após falha parcial:
// bets já resolvidas não pagam de novo.
func (s *Service) SettleMarket(ctx context.Context, marketID string, outcomes map[string]models.BetOutcome) error {
	for betID, o := range outcomes {
		if !o.Valid() {
			return fmt.Errorf("settle market %s: bet %s: %w: %q", marketID, betID, ErrInvalidOutcome, o)
		}
	}

	release, err := s.locker.Acquire(ctx, marketKey(marketID))
	if err != nil {
		return fmt.Errorf("settle market %s: %w", marketID, err)
	}
	defer release()

	var market models.BetsMarket
	err = s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		market, err = tx.LockMarket(ctx, marketID)
		return err
	})
	if err != nil {
		return fmt.Errorf("settle market %s: %w", marketID, err)
	}
	if market.Status == models.MarketSettled {
		s.log.Info("market already settled", zap.String("marketId", marketID))
		return nil
	}

	bets, err := s.store.ListBetsByMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("settle market %s: %w", marketID, err)
	}

	resolved := make(map[string]string, len(bets))
	for _, b := range bets {
		outcome, ok := outcomes[b.ID]
		if !ok {
			outcome = models.OutcomeLose
		}
		settled, err := s.SettleBet(ctx, b.ID, outcome)
		if err != nil {
			return fmt.Errorf("settle market %s: %w", marketID, err)
		}
		resolved[b.ID] = string(settled.Outcome)
	}

	now := s.Now()
	err = s.store.WithinTx(ctx, func(tx storage.Tx) error {
		m, err := tx.LockMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if m.Status == models.MarketSettled {
			return nil
		}
		return tx.SetMarketStatus(ctx, marketID, models.MarketSettled, now)
	})
	if err != nil {
		return fmt.Errorf("settle market %s: %w", marketID, err)
	}

	s.log.Info("market settled", zap.String("marketId", marketID), zap.Int("bets", len(bets)))
	s.publish(topics.MarketSettled, func(ctx context.Context) error {
		return s.pub.PublishMarketSettled(ctx, events.MarketSettled{
			MarketID: marketID,
			MatchID:  market.MatchID,
			Outcomes: resolved,
			TsUnixMs: now.UnixMilli(),
		})
	})
	return nil
}

// publicação depois do commit; falha só é logada e contada
func (s *Service) publish(topic string, fn func(ctx context.Context) error) {
	if s.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.log.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
		if s.OnPublishError != nil {
			s.OnPublishError(topic)
		}
	}
}
