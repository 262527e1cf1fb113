package events

import "time"

// Evento emitido pelo discovery-service quando um like vira match mútuo.
// Consumido pelo market-worker para abrir o mercado de apostas.
type MatchCreated struct {
	MatchID   string    `json:"match_id"`
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	MatchedAt time.Time `json:"matched_at"`
	TsUnixMs  int64     `json:"ts_unix_ms"`
}
