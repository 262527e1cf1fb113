package settlement

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/parlay"
	"github.com/radieske/match-bet-platform/internal/storage"
	"github.com/radieske/match-bet-platform/pkg/contracts/events"
	"github.com/radieske/match-bet-platform/pkg/contracts/topics"
	"github.com/radieske/match-bet-platform/pkg/models"
)

// PlaceParlay resolve as odds de cada perna a partir das bets gravadas, calcula o
// multiplicador e debita o stake. As odds enviadas pelo cliente são ignoradas.
func (s *Service) PlaceParlay(ctx context.Context, userID string, legs []models.ParlayLeg, stakeUSD decimal.Decimal, mode models.ParlayMode) (models.Parlay, parlay.Result, error) {
	if !stakeUSD.IsPositive() {
		return models.Parlay{}, parlay.Result{}, fmt.Errorf("%w: %s", ErrInvalidStake, stakeUSD)
	}
	if len(legs) < parlay.MinLegs {
		return models.Parlay{}, parlay.Result{}, fmt.Errorf("%w: got %d", parlay.ErrTooFewLegs, len(legs))
	}

	seen := make(map[string]bool, len(legs))
	ids := make([]string, 0, len(legs))
	for _, l := range legs {
		if seen[l.BetID] {
			return models.Parlay{}, parlay.Result{}, fmt.Errorf("%w: bet %s repeated", parlay.ErrInvalidLeg, l.BetID)
		}
		seen[l.BetID] = true
		ids = append(ids, l.BetID)
	}
	// ordem fixa de lock: dois parlays com as mesmas pernas invertidas não se travam
	slices.Sort(ids)

	for _, id := range ids {
		release, err := s.locker.Acquire(ctx, betKey(id))
		if err != nil {
			return models.Parlay{}, parlay.Result{}, fmt.Errorf("place parlay: bet %s: %w", id, err)
		}
		defer release()
	}

	var (
		p   models.Parlay
		res parlay.Result
	)
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		bets := make(map[string]models.Bet, len(ids))
		var marketIDs []string
		for _, id := range ids {
			bet, err := tx.LockBet(ctx, id)
			if err != nil {
				return err
			}
			if bet.Outcome != models.OutcomePending {
				return fmt.Errorf("bet %s is %s: %w", bet.ID, bet.Outcome, models.ErrInvalidState)
			}
			bets[id] = bet
			if !slices.Contains(marketIDs, bet.MarketID) {
				marketIDs = append(marketIDs, bet.MarketID)
			}
		}
		slices.Sort(marketIDs)
		for _, id := range marketIDs {
			market, err := tx.LockMarket(ctx, id)
			if err != nil {
				return err
			}
			if market.Status != models.MarketOpen {
				return fmt.Errorf("market %s is %s: %w", market.ID, market.Status, models.ErrInvalidState)
			}
		}

		// pernas mantêm a ordem enviada pelo cliente
		priced := make([]models.ParlayLeg, len(legs))
		for i, l := range legs {
			bet := bets[l.BetID]
			l.Odds = bet.Odds
			if l.Description == "" {
				l.Description = bet.Description
			}
			priced[i] = l
		}

		var err error
		res, err = parlay.Compute(priced, stakeUSD, mode)
		if err != nil {
			return err
		}

		now := s.Now()
		p = models.Parlay{
			ID:                 uuid.NewString(),
			UserID:             userID,
			Legs:               priced,
			StakeUSD:           stakeUSD,
			PotentialPayoutUSD: res.PotentialPayoutUSD,
			Mode:               mode,
			Multiplier:         res.Multiplier,
			Status:             models.ParlayActive,
			CreatedAt:          now,
		}
		if err := debit(ctx, tx, userID, stakeUSD, p.ID, now); err != nil {
			return err
		}
		if err := tx.InsertParlay(ctx, p); err != nil {
			return err
		}
		return tx.IncrementBetsPlaced(ctx, userID)
	})
	if err != nil {
		return models.Parlay{}, parlay.Result{}, fmt.Errorf("place parlay: %w", err)
	}

	s.log.Info("parlay placed",
		zap.String("parlayId", p.ID),
		zap.String("userId", userID),
		zap.Int("legs", len(p.Legs)),
		zap.Float64("multiplier", p.Multiplier),
	)
	if s.OnPlaced != nil {
		s.OnPlaced(stakeUSD)
	}
	s.publish(topics.BetPlaced, func(ctx context.Context) error {
		return s.pub.PublishBetPlaced(ctx, events.BetPlaced{
			PlacementID:        p.ID,
			ParlayID:           p.ID,
			UserID:             userID,
			StakeUSD:           stakeUSD.StringFixed(2),
			Odds:               p.Multiplier,
			PotentialPayoutUSD: p.PotentialPayoutUSD.StringFixed(2),
			TsUnixMs:           p.CreatedAt.UnixMilli(),
		})
	})
	return p, res, nil
}

type parlayTally struct {
	resolved int
	paidOut  decimal.Decimal
}

// settleParlays roda dentro da transação do SettleBet. Os parlays ativos com
// perna em betID ficam travados, então duas pernas resolvidas ao mesmo tempo
// avaliam o mesmo parlay uma de cada vez e a segunda enxerga a primeira.
func (s *Service) settleParlays(ctx context.Context, tx storage.Tx, betID string, outcome models.BetOutcome, now time.Time) (parlayTally, error) {
	var tally parlayTally
	ps, err := tx.ActiveParlaysByBet(ctx, betID)
	if err != nil {
		return tally, err
	}
	for _, p := range ps {
		status, err := parlayStatus(ctx, tx, p, betID, outcome)
		if err != nil {
			return tally, fmt.Errorf("parlay %s: %w", p.ID, err)
		}
		if status == models.ParlayActive {
			continue
		}
		if err := tx.SetParlayStatus(ctx, p.ID, status); err != nil {
			return tally, err
		}

		switch status {
		case models.ParlayWon:
			if err := credit(ctx, tx, p.UserID, models.TxBetPayout, p.PotentialPayoutUSD, p.ID, now); err != nil {
				return tally, err
			}
			if err := tx.IncrementBetsWon(ctx, p.UserID); err != nil {
				return tally, err
			}
			tally.paidOut = tally.paidOut.Add(p.PotentialPayoutUSD)
		case models.ParlayVoid:
			if err := credit(ctx, tx, p.UserID, models.TxBetRefund, p.StakeUSD, p.ID, now); err != nil {
				return tally, err
			}
		}
		tally.resolved++
		s.log.Info("parlay settled",
			zap.String("parlayId", p.ID),
			zap.String("userId", p.UserID),
			zap.String("status", string(status)),
		)
	}
	return tally, nil
}

// parlayStatus: lost se alguma perna errou, void se alguma perna aponta para uma
// bet que não existe mais, active enquanto houver perna pendente, won se todas acertaram
func parlayStatus(ctx context.Context, tx storage.Tx, p models.Parlay, betID string, outcome models.BetOutcome) (models.ParlayStatus, error) {
	var pending, missing bool
	for _, l := range p.Legs {
		o := outcome
		if l.BetID != betID {
			var err error
			o, err = tx.BetOutcome(ctx, l.BetID)
			if errors.Is(err, models.ErrNotFound) {
				missing = true
				continue
			}
			if err != nil {
				return "", err
			}
		}
		if o == models.OutcomePending {
			pending = true
			continue
		}
		if !l.Selection.Hits(o) {
			return models.ParlayLost, nil
		}
	}
	switch {
	case missing:
		return models.ParlayVoid, nil
	case pending:
		return models.ParlayActive, nil
	}
	return models.ParlayWon, nil
}

func credit(ctx context.Context, tx storage.Tx, userID string, txType models.TransactionType, amount decimal.Decimal, ref string, at time.Time) error {
	_, err := tx.PostLedger(ctx, models.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        txType,
		AmountUSD:   amount,
		Status:      models.TxCompleted,
		ExternalRef: ref,
		Timestamp:   at,
	})
	return err
}
