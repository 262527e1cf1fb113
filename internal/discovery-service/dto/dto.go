package dto

import (
	"time"

	"github.com/radieske/match-bet-platform/internal/discovery"
	"github.com/radieske/match-bet-platform/pkg/models"
)

type SwipeRequest struct {
	SwiperID string `json:"swiperId"`
	TargetID string `json:"targetId"`
	Action   string `json:"action"` // "like" | "pass"
}

type MessageRequest struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
}

type ScheduleDateRequest struct {
	UserID string     `json:"userId"`
	Date   *time.Time `json:"date"` // null limpa a data
}

// ProfileRequest traz só os campos editáveis pelo usuário
type ProfileRequest struct {
	Username    string             `json:"username"`
	Age         int                `json:"age,omitempty"`
	Gender      string             `json:"gender,omitempty"`
	Location    *models.Location   `json:"location,omitempty"`
	Preferences models.Preferences `json:"preferences"`
	Bio         string             `json:"bio"`
	Photos      []string           `json:"photos"`
	Privacy     models.Privacy     `json:"privacy"`
}

func (p ProfileRequest) ToProfile(id string) models.UserProfile {
	return models.UserProfile{
		ID:          id,
		Username:    p.Username,
		Age:         p.Age,
		Gender:      p.Gender,
		Location:    p.Location,
		Preferences: p.Preferences,
		Bio:         p.Bio,
		Photos:      p.Photos,
		Privacy:     p.Privacy,
	}
}

type FeedResponse struct {
	Candidates []discovery.RankedCandidate `json:"candidates"`
	Count      int                         `json:"count"`
}

type MatchesResponse struct {
	Matches []discovery.ActiveMatch `json:"matches"`
	Count   int                     `json:"count"`
}
