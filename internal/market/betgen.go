package market

import (
	"math"
	"strings"

	"github.com/radieske/match-bet-platform/pkg/models"
)

// GeneratedBet é uma proposta de bet custom derivada da conversa do match
type GeneratedBet struct {
	BetType     string   `json:"betType"`
	Description string   `json:"description"`
	Probability float64  `json:"probability"`
	Odds        float64  `json:"odds"`
	Confidence  float64  `json:"confidence"`
	Signals     []string `json:"signals"`
}

var (
	planKeywords  = []string{"coffee", "meet", "see you", "at "}
	drinkKeywords = []string{"bar", "drink"}
)

// GenerateCustomBets procura sinais simples por palavra-chave nas mensagens
func GenerateCustomBets(msgs []models.Message) []GeneratedBet {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(strings.ToLower(m.Text))
		sb.WriteByte(' ')
	}
	text := sb.String()
	hasPlan := containsAny(text, planKeywords)
	hasBar := containsAny(text, drinkKeywords)

	date := GeneratedBet{
		BetType:     "date_happens",
		Description: "Will the first date take place within 7 days?",
		Probability: 0.5,
		Confidence:  0.6,
		Signals:     []string{"baseline"},
	}
	if hasPlan {
		date.Probability, date.Confidence, date.Signals = 0.7, 0.8, []string{"explicit_plan"}
	}

	drinks := GeneratedBet{
		BetType:     "drinks_over_2",
		Description: "Will they have 2 or more drinks?",
		Probability: 0.25,
		Confidence:  0.6,
		Signals:     []string{"baseline"},
	}
	if hasBar {
		drinks.Probability, drinks.Signals = 0.35, []string{"mention_of_bar"}
	}

	out := []GeneratedBet{date, drinks}
	for i := range out {
		out[i].Odds = generatedOdds(out[i].Probability)
	}
	return out
}

// odds = round2(0.95/p), nunca abaixo do mínimo
func generatedOdds(p float64) float64 {
	return math.Max(models.MinOdds, math.Round(0.95/p*100)/100)
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
