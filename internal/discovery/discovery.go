package discovery

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/compatibility"
	"github.com/radieske/match-bet-platform/internal/storage"
	"github.com/radieske/match-bet-platform/pkg/contracts/events"
	"github.com/radieske/match-bet-platform/pkg/models"
)

const (
	DefaultLimit       = 20
	DefaultMaxDistance = 50.0 // milhas
	candidateFactor    = 3
	unknownDistance    = 999

	milesPerLatDegree = 69.0
	milesPerLngDegree = 54.6
)

// Store reúne as leituras e a transação usadas pela descoberta e pelo swipe
type Store interface {
	storage.TxRunner
	GetUser(ctx context.Context, id string) (models.UserProfile, error)
	FindCandidates(ctx context.Context, q models.CandidateQuery) ([]models.UserProfile, error)
	ActiveMatches(ctx context.Context, userID string) ([]models.Match, error)
	GetMatch(ctx context.Context, id string) (models.Match, error)
	UpsertUser(ctx context.Context, u models.UserProfile) error
	InsertMessage(ctx context.Context, m models.Message) error
	SetDateScheduled(ctx context.Context, matchID string, at *time.Time) error
}

type Compatibility interface {
	CalculateCompatibility(ctx context.Context, a, b models.UserProfile) compatibility.Result
}

// RNG é a fonte do jitter de ranking; injetada para testes determinísticos
type RNG interface {
	Float64() float64
}

type Publisher interface {
	PublishMatchCreated(ctx context.Context, e events.MatchCreated) error
}

type Service struct {
	log    *zap.Logger
	store  Store
	compat Compatibility
	rng    RNG
	pub    Publisher

	Now            func() time.Time
	OnMatch        func()       // métricas
	OnPublishError func(string) // métricas por tópico
}

// New monta o serviço. pub pode ser nil (eventos desligados).
func New(log *zap.Logger, store Store, compat Compatibility, rng RNG, pub Publisher) *Service {
	return &Service{log: log, store: store, compat: compat, rng: rng, pub: pub, Now: time.Now}
}

// lockedRand protege um *rand.Rand compartilhado entre requests
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRand(seed uint64) RNG {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

type FeedOptions struct {
	Limit       int
	MaxDistance float64
	AgeRange    *models.AgeRange
	SkipUserIDs []string
}

type CandidateLocation struct {
	City     string `json:"city"`
	Distance int    `json:"distance"` // milhas, 999 quando desconhecida
}

type CandidateCompatibility struct {
	Score      int `json:"score"`      // percentual
	Confidence int `json:"confidence"` // percentual
}

type RankedCandidate struct {
	ID             string                 `json:"id"`
	Username       string                 `json:"username"`
	Age            int                    `json:"age"`
	Photos         []string               `json:"photos"`
	Bio            string                 `json:"bio"`
	Interests      []string               `json:"interests"`
	Location       CandidateLocation      `json:"location"`
	Compatibility  CandidateCompatibility `json:"compatibility"`
	DiscoveryScore float64                `json:"discoveryScore"`
}

// GetDiscoveryFeed ranqueia candidatos para userID. Usuário inexistente é erro;
// falhas de compatibilidade de um candidato só neutralizam o score dele.
func (s *Service) GetDiscoveryFeed(ctx context.Context, userID string, opts FeedOptions) ([]RankedCandidate, error) {
	me, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("discovery feed: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	q := models.CandidateQuery{
		ExcludeIDs: append(append([]string{}, opts.SkipUserIDs...), userID),
		AgeRange:   opts.AgeRange,
		Limit:      limit * candidateFactor,
	}
	if q.AgeRange == nil {
		q.AgeRange = me.Preferences.AgeRange
	}
	if me.Location != nil {
		box := BoundingBox(*me.Location, maxDistance(opts, me))
		q.Box = &box
	}

	candidates, err := s.store.FindCandidates(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("discovery candidates: %w", err)
	}

	now := s.Now()
	ranked := make([]RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		compat := s.compat.CalculateCompatibility(ctx, me, c)
		ranked = append(ranked, RankedCandidate{
			ID:        c.ID,
			Username:  c.Username,
			Age:       c.Age,
			Photos:    nonNil(c.Photos),
			Bio:       c.Bio,
			Interests: nonNil(c.Preferences.Interests),
			Location: CandidateLocation{
				City:     cityOrUnknown(c.Location),
				Distance: int(math.Round(distance(me.Location, c.Location))),
			},
			Compatibility: CandidateCompatibility{
				Score:      int(math.Round(compat.OverallScore * 100)),
				Confidence: int(math.Round(compat.Confidence * 100)),
			},
			DiscoveryScore: DiscoveryScore(me, c, compat.OverallScore, s.rng.Float64(), now),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].DiscoveryScore > ranked[j].DiscoveryScore })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	s.log.Debug("discovery feed built",
		zap.String("userId", userID),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(ranked)),
	)
	return ranked, nil
}

// opção explícita -> preferência do usuário -> 50 milhas
func maxDistance(opts FeedOptions, me models.UserProfile) float64 {
	if opts.MaxDistance > 0 {
		return opts.MaxDistance
	}
	if me.Preferences.Distance > 0 {
		return me.Preferences.Distance
	}
	return DefaultMaxDistance
}

// BoundingBox aproxima um raio em milhas para graus (lat ± d/69, lng ± d/54.6)
func BoundingBox(center models.Location, miles float64) models.BoundingBox {
	dLat := miles / milesPerLatDegree
	dLng := miles / milesPerLngDegree
	return models.BoundingBox{
		MinLat: center.Lat - dLat, MaxLat: center.Lat + dLat,
		MinLng: center.Lng - dLng, MaxLng: center.Lng + dLng,
	}
}

// DiscoveryScore = 0.6 compat + 0.2 interesse mútuo + 0.1 qualidade + 0.05 atividade + 0.05 jitter
func DiscoveryScore(me, c models.UserProfile, compatScore, jitter float64, now time.Time) float64 {
	score := compatScore*0.6 +
		MutualInterest(me, c)*0.2 +
		ProfileQuality(c)*0.1 +
		ActivityScore(c.UpdatedAt, now)*0.05 +
		jitter*0.05
	return math.Max(0, math.Min(1, score))
}

// MutualInterest é a média do encaixe de idade e do Jaccard de interesses; 0.5 sem dados
func MutualInterest(a, b models.UserProfile) float64 {
	score, factors := 0.0, 0.0
	if fit, ok := compatibility.MutualAgeFit(a, b); ok {
		score += fit
		factors++
	}
	if len(a.Preferences.Interests) > 0 || len(b.Preferences.Interests) > 0 {
		score += compatibility.Jaccard(a.Preferences.Interests, b.Preferences.Interests)
		factors++
	}
	if factors == 0 {
		return 0.5
	}
	return score / factors
}

func ProfileQuality(u models.UserProfile) float64 {
	score := math.Min(float64(len(u.Photos))/4, 1) * 0.4

	switch n := utf8.RuneCountInString(u.Bio); {
	case n > 50:
		score += 0.3
	case n > 20:
		score += 0.15
	}
	if u.Age > 0 {
		score += 0.1
	}
	if u.Location != nil && u.Location.City != "" {
		score += 0.1
	}
	if len(u.Preferences.Interests) >= 3 {
		score += 0.1
	}
	return score
}

// ActivityScore é um degrau pela recência de updatedAt
func ActivityScore(updatedAt, now time.Time) float64 {
	days := now.Sub(updatedAt).Hours() / 24
	switch {
	case days <= 1:
		return 1.0
	case days <= 7:
		return 0.8
	case days <= 30:
		return 0.6
	default:
		return 0.3
	}
}

func distance(a, b *models.Location) float64 {
	if a == nil || b == nil {
		return unknownDistance
	}
	return compatibility.Haversine(*a, *b)
}

func cityOrUnknown(l *models.Location) string {
	if l == nil || l.City == "" {
		return "Unknown"
	}
	return l.City
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
