package odds

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/compatibility"
	"github.com/radieske/match-bet-platform/pkg/models"
)

const (
	HouseEdge = 0.05

	MinProbability = 0.05
	MaxProbability = 0.95

	MinPersonalization = 0.90
	MaxPersonalization = 1.10

	defaultOdds        = 2.0
	historyLimit       = 50
	recentMessageSpan  = 24 * time.Hour
	dateProximityHours = 168.0
)

var ErrMatchUsers = errors.New("odds: match users not found")

// Store fornece as leituras usadas no preço personalizado
type Store interface {
	GetUser(ctx context.Context, id string) (models.UserProfile, error)
	BettingHistory(ctx context.Context, userID string, limit int) ([]models.PlacementRecord, error)
	StakeDistribution(ctx context.Context, betID string) (models.StakeDistribution, error)
	MatchMessages(ctx context.Context, matchID string, since time.Time, limit int) ([]models.Message, error)
}

type Compatibility interface {
	CalculateCompatibility(ctx context.Context, a, b models.UserProfile) compatibility.Result
}

// Cache guarda o resultado por (bet, apostador). Opcional.
type Cache interface {
	GetOdds(ctx context.Context, betID, userID string, dst *Result) (bool, error)
	SetOdds(ctx context.Context, betID, userID string, r Result) error
}

type MarketFactors struct {
	ImbalanceAdjustment float64 `json:"imbalanceAdjustment"`
	VolumeAdjustment    float64 `json:"volumeAdjustment"`
	TotalVolume         float64 `json:"totalVolume"`
	BetCount            int     `json:"betCount"`
}

type RealTimeAdjustments struct {
	RecentActivity float64 `json:"recentActivity"`
	TimeDecay      float64 `json:"timeDecay"`
	SocialSignals  float64 `json:"socialSignals"`
}

type Factors struct {
	Compatibility   float64             `json:"compatibility"`
	Personalization float64             `json:"personalization"`
	Market          MarketFactors       `json:"market"`
	RealTime        RealTimeAdjustments `json:"realTime"`
}

type Result struct {
	PersonalizedOdds    float64  `json:"personalizedOdds"`
	BaseProbability     float64  `json:"baseProbability"`
	AdjustedProbability float64  `json:"adjustedProbability"`
	Factors             *Factors `json:"factors,omitempty"`
	FairnessScore       float64  `json:"fairnessScore"`
	Confidence          float64  `json:"confidence"`
	Explanation         string   `json:"explanation"`
	Fallback            bool     `json:"fallback,omitempty"`
}

// Engine precifica uma bet para um apostador específico. Fail-open: qualquer erro
// vira o preço de fallback.
type Engine struct {
	log    *zap.Logger
	store  Store
	compat Compatibility
	cache  Cache

	Now        func() time.Time
	OnFallback func(stage string) // métricas por estágio
}

// New monta o engine; cache pode ser nil
func New(log *zap.Logger, store Store, compat Compatibility, cache Cache) *Engine {
	return &Engine{log: log, store: store, compat: compat, cache: cache, Now: time.Now}
}

func (e *Engine) CalculatePersonalizedOdds(ctx context.Context, bet models.Bet, match models.Match, bettor models.UserProfile) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = e.fallback(bet, fmt.Errorf("odds panic: %v", r))
		}
	}()

	if e.cache != nil && bet.ID != "" && bettor.ID != "" {
		var cached Result
		ok, err := e.cache.GetOdds(ctx, bet.ID, bettor.ID, &cached)
		if err != nil {
			e.log.Warn("odds cache get failed", zap.Error(err))
		} else if ok {
			return cached
		}
	}

	res, err := e.calculate(ctx, bet, match, bettor)
	if err != nil {
		return e.fallback(bet, err)
	}

	if e.cache != nil && bet.ID != "" && bettor.ID != "" {
		if err := e.cache.SetOdds(ctx, bet.ID, bettor.ID, res); err != nil {
			e.log.Warn("odds cache set failed", zap.Error(err))
		}
	}
	return res
}

func (e *Engine) calculate(ctx context.Context, bet models.Bet, match models.Match, bettor models.UserProfile) (Result, error) {
	userA, errA := e.store.GetUser(ctx, match.UserA)
	userB, errB := e.store.GetUser(ctx, match.UserB)
	if errA != nil || errB != nil {
		return Result{}, errors.Join(ErrMatchUsers, errA, errB)
	}

	now := e.Now()
	compat := e.compat.CalculateCompatibility(ctx, userA, userB)
	base := BaseProbability(bet.BetType, compat)
	personalization := e.personalization(ctx, bettor, bet.BetType, now)
	market := e.marketFactors(ctx, bet.ID)
	realTime := e.realTime(ctx, match, bet.BetType, now)

	adjusted := Adjust(base, market, realTime)
	price := ProbabilityToOdds(adjusted)

	return Result{
		PersonalizedOdds:    price,
		BaseProbability:     base,
		AdjustedProbability: adjusted,
		Factors: &Factors{
			Compatibility:   compat.OverallScore,
			Personalization: personalization,
			Market:          market,
			RealTime:        realTime,
		},
		FairnessScore: FairnessScore(price, base),
		Confidence:    compat.Confidence,
		Explanation:   Explanation(compat.OverallScore, personalization),
	}, nil
}

func (e *Engine) fallback(bet models.Bet, err error) Result {
	e.log.Warn("odds fallback", zap.String("betId", bet.ID), zap.Error(err))
	e.countFallback("overall")

	price := bet.Odds
	if price <= 0 {
		price = defaultOdds
	}
	return Result{
		PersonalizedOdds:    price,
		BaseProbability:     0.5,
		AdjustedProbability: 0.5,
		FairnessScore:       1.0,
		Confidence:          0.1,
		Explanation:         "Using default odds due to insufficient data",
		Fallback:            true,
	}
}

func (e *Engine) countFallback(stage string) {
	if e.OnFallback != nil {
		e.OnFallback(stage)
	}
}

func (e *Engine) personalization(ctx context.Context, bettor models.UserProfile, betType string, now time.Time) float64 {
	history, err := e.store.BettingHistory(ctx, bettor.ID, historyLimit)
	if err != nil {
		e.log.Warn("betting history read failed", zap.String("userId", bettor.ID), zap.Error(err))
		e.countFallback("personalization")
		return 1.0
	}
	return PersonalizationMultiplier(history, betType, Engagement(bettor, now))
}

func (e *Engine) marketFactors(ctx context.Context, betID string) MarketFactors {
	d, err := e.store.StakeDistribution(ctx, betID)
	if err != nil {
		e.log.Warn("stake distribution read failed", zap.String("betId", betID), zap.Error(err))
		e.countFallback("market")
		return MarketFactors{ImbalanceAdjustment: 1, VolumeAdjustment: 1}
	}
	return MarketFactorsOf(d)
}

func (e *Engine) realTime(ctx context.Context, match models.Match, betType string, now time.Time) RealTimeAdjustments {
	msgs, err := e.store.MatchMessages(ctx, match.ID, now.Add(-recentMessageSpan), 0)
	if err != nil {
		e.log.Warn("recent messages read failed", zap.String("matchId", match.ID), zap.Error(err))
		e.countFallback("realtime")
		return RealTimeAdjustments{RecentActivity: 1, TimeDecay: 1, SocialSignals: 1}
	}
	return RealTimeOf(betType, len(msgs), match.DateScheduled, now)
}

// Explanation resume o preço em texto
func Explanation(compatScore, personalization float64) string {
	s := fmt.Sprintf("Based on %.0f%% compatibility score", compatScore*100)
	pct := math.Round((personalization-1)*1000) / 10
	if math.Abs(pct) > 0.5 {
		direction := "adjusted"
		if pct > 0 {
			direction = "improved"
		}
		s += fmt.Sprintf(", odds %s by %s%% based on your betting profile",
			direction, strconv.FormatFloat(math.Abs(pct), 'f', -1, 64))
	}
	return s
}
