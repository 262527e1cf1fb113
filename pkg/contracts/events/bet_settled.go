package events

// Evento publicado uma vez por bet resolvida
type BetSettled struct {
	BetID      string `json:"bet_id"`
	MarketID   string `json:"market_id"`
	Outcome    string `json:"outcome"` // "win" | "lose"
	Placements int    `json:"placements"`
	Parlays    int    `json:"parlays"` // parlays que saíram de active por causa desta bet
	PaidOutUSD string `json:"paid_out_usd"`
	TsUnixMs   int64  `json:"ts_unix_ms"`
}

// Evento publicado quando o mercado inteiro chega em "settled"
type MarketSettled struct {
	MarketID string            `json:"market_id"`
	MatchID  string            `json:"match_id"`
	Outcomes map[string]string `json:"outcomes"` // betId -> outcome
	TsUnixMs int64             `json:"ts_unix_ms"`
}
