package models

import "time"

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending_match"
	MatchMatched   MatchStatus = "matched"
	MatchUnmatched MatchStatus = "unmatched"
	MatchBlocked   MatchStatus = "blocked"
)

// MatchOutcomeSuccessful marca um match que evoluiu (usado no histórico de sucesso)
const MatchOutcomeSuccessful = "successful"

// Match liga dois usuários. UserA é sempre quem deu o primeiro like.
type Match struct {
	ID            string      `json:"id"`
	UserA         string      `json:"userA"`
	UserB         string      `json:"userB"`
	Status        MatchStatus `json:"status"`
	BetsMarketID  string      `json:"betsMarketId,omitempty"`
	DateScheduled *time.Time  `json:"dateScheduled,omitempty"`
	MatchedAt     *time.Time  `json:"matchedAt,omitempty"`
	Outcome       string      `json:"outcome,omitempty"`
	DatesCount    int         `json:"datesCount"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Involves indica se o usuário faz parte do match
func (m Match) Involves(userID string) bool { return m.UserA == userID || m.UserB == userID }

// Counterpart devolve o outro participante do match
func (m Match) Counterpart(userID string) string {
	if m.UserA == userID {
		return m.UserB
	}
	return m.UserA
}

// Message é uma mensagem de chat trocada dentro de um match
type Message struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"matchId"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
