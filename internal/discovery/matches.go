package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/pkg/models"
)

type MatchCounterpart struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Age      int      `json:"age"`
	Photos   []string `json:"photos"`
	Bio      string   `json:"bio"`
}

type ActiveMatch struct {
	MatchID   string           `json:"matchId"`
	User      MatchCounterpart `json:"user"`
	MatchedAt *time.Time       `json:"matchedAt,omitempty"`
	HasMarket bool             `json:"hasMarket"`
}

// GetActiveMatches lista os matches "matched" do usuário, mais recentes primeiro
func (s *Service) GetActiveMatches(ctx context.Context, userID string) ([]ActiveMatch, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("active matches: %w", err)
	}
	matches, err := s.store.ActiveMatches(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("active matches: %w", err)
	}

	out := make([]ActiveMatch, 0, len(matches))
	for _, m := range matches {
		otherID := m.Counterpart(userID)
		other, err := s.store.GetUser(ctx, otherID)
		if errors.Is(err, models.ErrNotFound) {
			// conta removida: o match continua listado sem perfil
			s.log.Warn("match counterpart missing", zap.String("matchId", m.ID), zap.String("userId", otherID))
			other = models.UserProfile{ID: otherID}
		} else if err != nil {
			return nil, fmt.Errorf("active matches: %w", err)
		}

		out = append(out, ActiveMatch{
			MatchID: m.ID,
			User: MatchCounterpart{
				ID:       other.ID,
				Username: other.Username,
				Age:      other.Age,
				Photos:   nonNil(other.Photos),
				Bio:      other.Bio,
			},
			MatchedAt: m.MatchedAt,
			HasMarket: m.BetsMarketID != "",
		})
	}
	return out, nil
}
