package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/storage"
	"github.com/radieske/match-bet-platform/pkg/contracts/events"
	"github.com/radieske/match-bet-platform/pkg/contracts/topics"
	"github.com/radieske/match-bet-platform/pkg/models"
)

type Action string

const (
	ActionLike Action = "like"
	ActionPass Action = "pass"
)

var (
	ErrSelfSwipe     = errors.New("discovery: cannot swipe on yourself")
	ErrInvalidAction = errors.New("discovery: invalid swipe action")
)

type SwipeResult struct {
	Matched  bool          `json:"matched"`
	Conflict bool          `json:"conflict,omitempty"`
	Match    *models.Match `json:"match,omitempty"`
	Message  string        `json:"message"`
}

// HandleSwipe aplica like/pass. Um pending_match do alvo para o swiper é promovido
// a matched; qualquer outro registro existente entre os dois é conflito (no-op).
// Pass não é persistido.
func (s *Service) HandleSwipe(ctx context.Context, swiperID, targetID string, action Action) (SwipeResult, error) {
	if swiperID == targetID {
		return SwipeResult{}, ErrSelfSwipe
	}
	if action != ActionLike && action != ActionPass {
		return SwipeResult{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	for _, id := range []string{swiperID, targetID} {
		if _, err := s.store.GetUser(ctx, id); err != nil {
			return SwipeResult{}, fmt.Errorf("swipe: %w", err)
		}
	}

	var res SwipeResult
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		existing, err := tx.MatchBetween(ctx, swiperID, targetID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			res, err = s.firstSwipe(ctx, tx, swiperID, targetID, action)
			return err
		case err != nil:
			return err
		}

		reverseLike := existing.Status == models.MatchPending &&
			existing.UserA == targetID && existing.UserB == swiperID
		if action != ActionLike || !reverseLike {
			res = SwipeResult{Conflict: true, Match: &existing, Message: "Already matched or interacted"}
			return nil
		}

		now := s.Now()
		if err := tx.PromoteMatch(ctx, existing.ID, now); err != nil {
			return err
		}
		for _, id := range []string{swiperID, targetID} {
			if err := tx.IncrementMatchesCount(ctx, id); err != nil {
				return err
			}
		}
		existing.Status = models.MatchMatched
		existing.MatchedAt = &now
		res = SwipeResult{Matched: true, Match: &existing, Message: "It's a match!"}
		return nil
	})
	if err != nil {
		return SwipeResult{}, fmt.Errorf("swipe %s->%s: %w", swiperID, targetID, err)
	}

	if res.Matched {
		s.log.Info("mutual match", zap.String("matchId", res.Match.ID))
		if s.OnMatch != nil {
			s.OnMatch()
		}
		s.publishMatchCreated(ctx, *res.Match)
	}
	return res, nil
}

func (s *Service) firstSwipe(ctx context.Context, tx storage.Tx, swiperID, targetID string, action Action) (SwipeResult, error) {
	if action == ActionPass {
		s.log.Debug("pass not persisted", zap.String("swiperId", swiperID), zap.String("targetId", targetID))
		return SwipeResult{Message: "Pass recorded"}, nil
	}

	m := models.Match{
		ID:        uuid.NewString(),
		UserA:     swiperID,
		UserB:     targetID,
		Status:    models.MatchPending,
		CreatedAt: s.Now(),
	}
	if err := tx.InsertMatch(ctx, m); err != nil {
		return SwipeResult{}, err
	}
	return SwipeResult{Match: &m, Message: "Like sent"}, nil
}

// publicação depois do commit; falha só é logada
func (s *Service) publishMatchCreated(ctx context.Context, m models.Match) {
	if s.pub == nil {
		return
	}
	ev := events.MatchCreated{MatchID: m.ID, UserA: m.UserA, UserB: m.UserB}
	if m.MatchedAt != nil {
		ev.MatchedAt = *m.MatchedAt
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.pub.PublishMatchCreated(pctx, ev); err != nil {
		s.log.Warn("publish match_created failed", zap.String("matchId", m.ID), zap.Error(err))
		if s.OnPublishError != nil {
			s.OnPublishError(topics.MatchCreated)
		}
	}
}
