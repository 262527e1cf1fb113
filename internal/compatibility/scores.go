package compatibility

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/radieske/match-bet-platform/pkg/models"
)

// raio da Terra em milhas
const earthRadiusMiles = 3959.0

const (
	topActiveHours      = 8
	maxResponseGap      = 24 * time.Hour
	sessionBreak        = 30 * time.Minute
	defaultResponseMins = 60.0
	defaultSessionMins  = 30.0
)

// Haversine devolve a distância em milhas entre dois pontos
func Haversine(a, b models.Location) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Jaccard é |A∩B| / |A∪B|; conjuntos vazios valem 0
func Jaccard[T comparable](a, b []T) float64 {
	setA := toSet(a)
	setB := toSet(b)

	inter := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet[T comparable](xs []T) map[T]struct{} {
	s := make(map[T]struct{}, len(xs))
	for _, x := range xs {
		s[x] = struct{}{}
	}
	return s
}

// BioWords devolve os tokens em minúsculas com mais de 2 caracteres
func BioWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, w := range fields {
		if utf8.RuneCountInString(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func TextSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return Jaccard(BioWords(a), BioWords(b))
}

// ProfileSimilarity combina idade (0.3), interesses (0.4) e bio (0.3)
func ProfileSimilarity(a, b models.UserProfile) float64 {
	ageScore := 0.0
	if a.Age > 0 && b.Age > 0 {
		diff := math.Abs(float64(a.Age - b.Age))
		ageScore = math.Max(0, 1-diff/15)
	}
	interests := Jaccard(a.Preferences.Interests, b.Preferences.Interests)
	bio := TextSimilarity(a.Bio, b.Bio)
	return ageScore*0.3 + interests*0.4 + bio*0.3
}

// MutualAgeFit: 1.0 se cada um cabe na faixa do outro, 0.5 se só um, 0 caso contrário.
// ok=false quando algum dos dois não tem faixa de idade.
func MutualAgeFit(a, b models.UserProfile) (score float64, ok bool) {
	ra, rb := a.Preferences.AgeRange, b.Preferences.AgeRange
	if ra == nil || rb == nil {
		return 0, false
	}
	aWantsB := ra.Contains(b.Age)
	bWantsA := rb.Contains(a.Age)
	switch {
	case aWantsB && bWantsA:
		return 1, true
	case aWantsB || bWantsA:
		return 0.5, true
	default:
		return 0, true
	}
}

// PreferenceAlignment é a média das checagens disponíveis (idade e distância), 0.5 sem nenhuma
func PreferenceAlignment(a, b models.UserProfile) float64 {
	score, factors := 0.0, 0.0

	if fit, ok := MutualAgeFit(a, b); ok {
		score += fit
		factors++
	}

	pa, pb := a.Preferences.Distance, b.Preferences.Distance
	if pa > 0 && pb > 0 && a.Location != nil && b.Location != nil {
		d := Haversine(*a.Location, *b.Location)
		limit := math.Min(pa, pb)
		if d <= limit {
			score += math.Max(0, 1-d/limit)
		}
		factors++
	}

	if factors == 0 {
		return 0.5
	}
	return score / factors
}

// Geographic é uma função degrau da distância; 0.5 sem localização
func Geographic(a, b *models.Location) float64 {
	if a == nil || b == nil {
		return 0.5
	}
	return GeographicForDistance(Haversine(*a, *b))
}

func GeographicForDistance(d float64) float64 {
	switch {
	case d <= 5:
		return 1.0
	case d <= 15:
		return 0.8
	case d <= 30:
		return 0.6
	case d <= 50:
		return 0.4
	default:
		return math.Max(0.1, 1-d/100)
	}
}

// ActivityPattern resume as mensagens recentes de um usuário
type ActivityPattern struct {
	ActiveHours        []int
	AvgResponseMinutes float64
	AvgSessionMinutes  float64
	MessageCount       int
}

// ActivityPatternOf devolve nil quando não há mensagens
func ActivityPatternOf(msgs []models.Message) *ActivityPattern {
	if len(msgs) == 0 {
		return nil
	}

	sorted := make([]models.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })

	return &ActivityPattern{
		ActiveHours:        activeHours(sorted),
		AvgResponseMinutes: avgResponseMinutes(sorted),
		AvgSessionMinutes:  avgSessionMinutes(sorted),
		MessageCount:       len(sorted),
	}
}

func activeHours(msgs []models.Message) []int {
	var counts [24]int
	for _, m := range msgs {
		counts[m.CreatedAt.UTC().Hour()]++
	}

	hours := make([]int, 0, 24)
	for h, c := range counts {
		if c > 0 {
			hours = append(hours, h)
		}
	}
	// empate mantém a hora menor primeiro
	sort.SliceStable(hours, func(i, j int) bool { return counts[hours[i]] > counts[hours[j]] })
	if len(hours) > topActiveHours {
		hours = hours[:topActiveHours]
	}
	return hours
}

// msgs em ordem decrescente de criação
func avgResponseMinutes(msgs []models.Message) float64 {
	var total time.Duration
	n := 0
	for i := 1; i < len(msgs); i++ {
		gap := msgs[i-1].CreatedAt.Sub(msgs[i].CreatedAt)
		if gap > 0 && gap < maxResponseGap {
			total += gap
			n++
		}
	}
	if n == 0 {
		return defaultResponseMins
	}
	return total.Minutes() / float64(n)
}

func avgSessionMinutes(msgs []models.Message) float64 {
	var lengths []float64
	start := 0
	flush := func(end int) {
		if end-start > 1 {
			// sessão vai de msgs[end-1] (mais antiga) até msgs[start] (mais nova)
			lengths = append(lengths, msgs[start].CreatedAt.Sub(msgs[end-1].CreatedAt).Minutes())
		}
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i-1].CreatedAt.Sub(msgs[i].CreatedAt) >= sessionBreak {
			flush(i)
			start = i
		}
	}
	flush(len(msgs))

	if len(lengths) == 0 {
		return defaultSessionMins
	}
	sum := 0.0
	for _, l := range lengths {
		sum += l
	}
	return sum / float64(len(lengths))
}

// Behavioral: sobreposição de horários 0.4, resposta 0.3, sessão 0.3; 0.5 sem atividade
func Behavioral(a, b *ActivityPattern) float64 {
	if a == nil || b == nil {
		return 0.5
	}
	return HourOverlap(a.ActiveHours, b.ActiveHours)*0.4 +
		ratio(a.AvgResponseMinutes, b.AvgResponseMinutes)*0.3 +
		ratio(a.AvgSessionMinutes, b.AvgSessionMinutes)*0.3
}

// HourOverlap divide a interseção pelo menor dos dois conjuntos
func HourOverlap(a, b []int) float64 {
	setA, setB := toSet(a), toSet(b)
	smaller := min(len(setA), len(setB))
	if smaller == 0 {
		return 0
	}
	inter := 0
	for h := range setA {
		if _, ok := setB[h]; ok {
			inter++
		}
	}
	return float64(inter) / float64(smaller)
}

// ratio é min/max; 0.5 quando algum valor falta
func ratio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0.5
	}
	return math.Min(a, b) / math.Max(a, b)
}

// Historical mistura a taxa de sucesso com 0.5 pelo tamanho da amostra
func Historical(matches []models.Match) float64 {
	if len(matches) == 0 {
		return 0.5
	}
	ok := 0
	for _, m := range matches {
		if m.Outcome == models.MatchOutcomeSuccessful || m.DatesCount > 0 {
			ok++
		}
	}
	rate := float64(ok) / float64(len(matches))
	w := math.Min(float64(len(matches))/fullSampleSize, 1)
	return rate*w + 0.5*(1-w)
}

// ProfileCompleteness segue a rubrica de 100 pontos, normalizada para [0,1]
func ProfileCompleteness(u models.UserProfile) float64 {
	pts := 0
	if u.Age > 0 {
		pts += 10
	}
	if u.Gender != "" {
		pts += 10
	}
	if u.Location != nil {
		pts += 15
	}
	if utf8.RuneCountInString(u.Bio) > 20 {
		pts += 20
	}
	if len(u.Photos) >= 2 {
		pts += 25
	}
	if len(u.Preferences.Interests) >= 3 {
		pts += 15
	}
	if u.Preferences.AgeRange != nil {
		pts += 5
	}
	return float64(pts) / 100
}

// Confidence: completude 0.4, idade da conta 0.3, matches 0.3; sempre em [0.1, 1]
func Confidence(a, b models.UserProfile, now time.Time) float64 {
	completeness := (ProfileCompleteness(a) + ProfileCompleteness(b)) / 2
	accountDays := (accountAgeDays(a, now) + accountAgeDays(b, now)) / 2
	activity := float64(a.History.MatchesCount+b.History.MatchesCount) / 2

	c := completeness*0.4 +
		math.Min(accountDays/30, 1)*0.3 +
		math.Min(activity/10, 1)*0.3
	return clamp(c, 0.1, 1.0)
}

func accountAgeDays(u models.UserProfile, now time.Time) float64 {
	if u.CreatedAt.IsZero() {
		return 0
	}
	return math.Max(0, now.Sub(u.CreatedAt).Hours()/24)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
