package events

// Evento emitido pelo bet-service após o stake ser debitado (placement ou parlay)
type BetPlaced struct {
	PlacementID        string  `json:"placement_id"`
	BetID              string  `json:"bet_id,omitempty"` // vazio para parlay
	ParlayID           string  `json:"parlay_id,omitempty"`
	MarketID           string  `json:"market_id,omitempty"`
	UserID             string  `json:"user_id"`
	Selection          string  `json:"selection,omitempty"`
	StakeUSD           string  `json:"stake_usd"`
	Odds               float64 `json:"odds"`
	PotentialPayoutUSD string  `json:"potential_payout_usd"`
	TsUnixMs           int64   `json:"ts_unix_ms"`
}
