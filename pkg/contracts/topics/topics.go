package topics

const (
	// Matches
	MatchCreated = "match_created"

	// Bets
	BetPlaced  = "bet_placed"
	BetSettled = "bet_settled"

	// Markets
	MarketSettled = "market_settled"

	// DLQs
	MatchCreatedDLQ = "match_created_dlq"
)
