package odds

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/internal/compatibility"
	"github.com/radieske/match-bet-platform/pkg/models"
)

// Tipos de bet com fórmula própria
const (
	FirstDate          = "first_date"
	SecondDate         = "second_date"
	Relationship30Days = "relationship_30_days"
	FirstKiss          = "first_kiss"
	DrinksOver2        = "drinks_over_2"
	MessageResponse6h  = "message_response_6_hours"
)

// apostas sobre o desfecho do relacionamento
var relationshipTypes = map[string]bool{
	FirstDate:          true,
	SecondDate:         true,
	Relationship30Days: true,
	FirstKiss:          true,
}

const minSkillSamples = 5

// BaseProbability converte compatibilidade em probabilidade conforme o tipo da bet
func BaseProbability(betType string, c compatibility.Result) float64 {
	s := c.OverallScore
	profile, behavioral := s, s
	if !c.Fallback {
		profile = c.Breakdown.ProfileSimilarity
		behavioral = c.Breakdown.BehavioralCompatibility
	}

	switch betType {
	case FirstDate:
		return math.Min(0.95, 0.30+0.60*s)
	case SecondDate:
		return math.Min(0.85, 0.15+0.70*s)
	case Relationship30Days:
		return math.Min(0.75, 0.05+0.70*s)
	case FirstKiss:
		return math.Min(0.80, 0.20+0.60*profile)
	case DrinksOver2:
		return math.Min(0.70, 0.25+0.45*behavioral)
	case MessageResponse6h:
		return math.Min(0.90, 0.40+0.50*behavioral)
	default:
		return math.Min(0.80, 0.30+0.50*s)
	}
}

// BettingSkill = 0.6 winRate + 0.4 (roi+1) sobre placements resolvidos.
// Neutro (0.5) com menos de 5 registros ou nenhum resolvido.
func BettingSkill(history []models.PlacementRecord) float64 {
	if len(history) < minSkillSamples {
		return 0.5
	}

	var (
		settled, wins      int
		profit, totalStake decimal.Decimal
	)
	for _, h := range history {
		switch h.Status {
		case models.PlacementWon:
			wins++
			profit = profit.Add(h.PotentialPayoutUSD.Sub(h.StakeUSD))
		case models.PlacementLost:
			profit = profit.Sub(h.StakeUSD)
		default:
			continue
		}
		settled++
		totalStake = totalStake.Add(h.StakeUSD)
	}
	if settled == 0 {
		return 0.5
	}

	winRate := float64(wins) / float64(settled)
	// roi = lucro / (stake médio × n) = lucro / stake total
	roi := 0.0
	if totalStake.IsPositive() {
		roi = profit.Div(totalStake).InexactFloat64()
	}
	return clamp(winRate*0.6+(roi+1)*0.4, 0, 1)
}

// Engagement combina idade da conta, matches e apostas feitas
func Engagement(u models.UserProfile, now time.Time) float64 {
	days := 0.0
	if !u.CreatedAt.IsZero() {
		days = math.Max(0, now.Sub(u.CreatedAt).Hours()/24)
	}
	return math.Min(days/30, 1)*0.3 +
		math.Min(float64(u.History.MatchesCount)/20, 1)*0.3 +
		math.Min(float64(u.History.BetsPlaced)/50, 1)*0.4
}

// MarketPreference é a fração do histórico neste tipo de bet; 0.5 sem histórico
func MarketPreference(history []models.PlacementRecord, betType string) float64 {
	if len(history) == 0 {
		return 0.5
	}
	return float64(len(filterTypes(history, func(t string) bool { return t == betType }))) / float64(len(history))
}

// ChemistrySkill é o BettingSkill restrito às bets de relacionamento
func ChemistrySkill(history []models.PlacementRecord) float64 {
	return BettingSkill(filterTypes(history, func(t string) bool { return relationshipTypes[t] }))
}

func filterTypes(history []models.PlacementRecord, keep func(string) bool) []models.PlacementRecord {
	var out []models.PlacementRecord
	for _, h := range history {
		if keep(h.BetType) {
			out = append(out, h)
		}
	}
	return out
}

// PersonalizationMultiplier compõe os ajustes do perfil do apostador, preso em [0.90, 1.10]
func PersonalizationMultiplier(history []models.PlacementRecord, betType string, engagement float64) float64 {
	m := 1.0

	skill := BettingSkill(filterTypes(history, func(t string) bool { return t == betType }))
	switch {
	case skill > 0.65:
		m *= 0.96
	case skill < 0.35:
		m *= 1.03
	}
	if engagement > 0.8 {
		m *= 1.01
	}
	if MarketPreference(history, betType) > 0.7 {
		m *= 1.01
	}
	switch chem := ChemistrySkill(history); {
	case chem > 0.7:
		m *= 0.98
	case chem < 0.3:
		m *= 1.02
	}
	return clamp(m, MinPersonalization, MaxPersonalization)
}

// MarketFactorsOf aplica o desequilíbrio yes/no; volume é só informativo
func MarketFactorsOf(d models.StakeDistribution) MarketFactors {
	f := MarketFactors{
		ImbalanceAdjustment: 1,
		VolumeAdjustment:    1,
		TotalVolume:         d.TotalVolume.InexactFloat64(),
		BetCount:            d.BetCount,
	}
	if d.BetCount == 0 {
		return f
	}

	total := d.YesStakes.Add(d.NoStakes)
	if total.IsPositive() {
		yesRatio := d.YesStakes.Div(total).InexactFloat64()
		if imbalance := math.Abs(yesRatio - 0.5); imbalance > 0.3 {
			f.ImbalanceAdjustment = 1 + (imbalance-0.3)*0.2
		}
	}
	f.VolumeAdjustment = math.Min(1.05, 1+f.TotalVolume/10000*0.05)
	return f
}

// RealTimeOf calcula os boosts de frequência de mensagens e proximidade do encontro
func RealTimeOf(betType string, messages24h int, dateScheduled *time.Time, now time.Time) RealTimeAdjustments {
	adj := RealTimeAdjustments{RecentActivity: 1, TimeDecay: 1, SocialSignals: 1}

	if messages24h > 0 && (betType == FirstDate || betType == MessageResponse6h) {
		perHour := float64(messages24h) / 24
		adj.RecentActivity = math.Min(1.2, 1+perHour*0.1)
	}

	if strings.Contains(betType, "date") && dateScheduled != nil {
		h := dateScheduled.Sub(now).Hours()
		if h > 0 && h < dateProximityHours {
			adj.TimeDecay = math.Min(1.1, 1+(dateProximityHours-h)/dateProximityHours*0.1)
		}
	}
	return adj
}

// Adjust combina a probabilidade base com mercado e tempo real, presa em [0.05, 0.95]
func Adjust(base float64, m MarketFactors, rt RealTimeAdjustments) float64 {
	p := base * m.ImbalanceAdjustment * rt.RecentActivity * rt.TimeDecay * rt.SocialSignals
	return clamp(p, MinProbability, MaxProbability)
}

// ProbabilityToOdds aplica a margem da casa e arredonda em 2 casas (mínimo 1.05)
func ProbabilityToOdds(p float64) float64 {
	raw := 1 / (p * (1 + HouseEdge))
	return math.Max(models.MinOdds, math.Round(raw*100)/100)
}

// FairnessScore mede o desvio do preço em relação às odds justas da probabilidade base
func FairnessScore(price, base float64) float64 {
	fair := 1 / base
	return math.Max(0, 1-2*math.Abs(price-fair)/fair)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
