package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/pkg/models"
)

const (
	minAge          = 18
	maxAge          = 120
	maxBioRunes     = 1000
	maxPhotos       = 10
	maxMessageRunes = 2000
)

var (
	ErrInvalidProfile = errors.New("discovery: invalid profile")
	ErrInvalidMessage = errors.New("discovery: message must have 1-2000 characters")
)

// SaveProfile grava os campos editáveis do perfil. Saldo e contadores
// ficam de fora: só mudam dentro das transações de aposta e match.
func (s *Service) SaveProfile(ctx context.Context, u models.UserProfile) (models.UserProfile, error) {
	if err := validateProfile(u); err != nil {
		return models.UserProfile{}, err
	}
	if err := s.store.UpsertUser(ctx, u); err != nil {
		return models.UserProfile{}, fmt.Errorf("save profile %s: %w", u.ID, err)
	}
	return s.store.GetUser(ctx, u.ID)
}

func validateProfile(u models.UserProfile) error {
	switch {
	case u.ID == "":
		return fmt.Errorf("%w: id required", ErrInvalidProfile)
	case u.Age != 0 && (u.Age < minAge || u.Age > maxAge):
		return fmt.Errorf("%w: age %d outside %d-%d", ErrInvalidProfile, u.Age, minAge, maxAge)
	case utf8.RuneCountInString(u.Bio) > maxBioRunes:
		return fmt.Errorf("%w: bio longer than %d", ErrInvalidProfile, maxBioRunes)
	case len(u.Photos) > maxPhotos:
		return fmt.Errorf("%w: more than %d photos", ErrInvalidProfile, maxPhotos)
	case u.Preferences.Distance < 0:
		return fmt.Errorf("%w: negative distance", ErrInvalidProfile)
	}
	if r := u.Preferences.AgeRange; r != nil && r.Min > r.Max {
		return fmt.Errorf("%w: age range %d-%d", ErrInvalidProfile, r.Min, r.Max)
	}
	return nil
}

// participantMatch carrega o match e confere que userID faz parte dele
func (s *Service) participantMatch(ctx context.Context, matchID, userID string) (models.Match, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	if !m.Involves(userID) {
		return models.Match{}, fmt.Errorf("user %s not in match %s: %w", userID, matchID, models.ErrForbidden)
	}
	return m, nil
}

// SendMessage grava uma mensagem do chat de um match mútuo. As mensagens
// alimentam o score comportamental, o gerador de bets e o ajuste em tempo real das odds.
func (s *Service) SendMessage(ctx context.Context, matchID, senderID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n == 0 || n > maxMessageRunes {
		return models.Message{}, ErrInvalidMessage
	}
	m, err := s.participantMatch(ctx, matchID, senderID)
	if err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}
	if m.Status != models.MatchMatched {
		return models.Message{}, fmt.Errorf("match %s is %s: %w", matchID, m.Status, models.ErrInvalidState)
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: s.Now(),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// ScheduleDate marca (ou limpa, com nil) a data do encontro. O fechamento
// automático do mercado conta a partir dela.
func (s *Service) ScheduleDate(ctx context.Context, matchID, userID string, at *time.Time) (models.Match, error) {
	m, err := s.participantMatch(ctx, matchID, userID)
	if err != nil {
		return models.Match{}, fmt.Errorf("schedule date: %w", err)
	}
	if m.Status != models.MatchMatched {
		return models.Match{}, fmt.Errorf("match %s is %s: %w", matchID, m.Status, models.ErrInvalidState)
	}
	if err := s.store.SetDateScheduled(ctx, matchID, at); err != nil {
		return models.Match{}, fmt.Errorf("schedule date: %w", err)
	}
	m.DateScheduled = at

	var when string
	if at != nil {
		when = at.Format(time.RFC3339)
	}
	s.log.Info("date scheduled", zap.String("matchId", matchID), zap.String("at", when))
	return m, nil
}
