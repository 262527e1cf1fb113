package compatibility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/pkg/models"
)

// Pesos do score final
const (
	weightProfile    = 0.25
	weightPreference = 0.20
	weightGeographic = 0.10
	weightBehavioral = 0.30
	weightHistorical = 0.15
)

// Janelas de análise
const (
	activityWindow     = 30 * 24 * time.Hour
	historyWindow      = 90 * 24 * time.Hour
	maxMessages        = 100
	maxSimilar         = 100
	ageTolerance       = 5
	fullSampleSize     = 20.0
	fallbackScore      = 0.5
	fallbackConfidence = 0.1
)

var ErrMissingUser = errors.New("compatibility: user id required")

// ActivitySource fornece as leituras de mensagens e matches usadas no score
type ActivitySource interface {
	RecentMessagesBySender(ctx context.Context, userID string, since time.Time, limit int) ([]models.Message, error)
	SimilarMatches(ctx context.Context, q models.SimilarMatchQuery) ([]models.Match, error)
}

type Breakdown struct {
	ProfileSimilarity       float64 `json:"profileSimilarity"`
	PreferenceAlignment     float64 `json:"preferenceAlignment"`
	GeographicCompatibility float64 `json:"geographicCompatibility"`
	BehavioralCompatibility float64 `json:"behavioralCompatibility"`
	HistoricalSuccess       float64 `json:"historicalSuccess"`
}

type Result struct {
	OverallScore float64   `json:"overallScore"`
	Breakdown    Breakdown `json:"breakdown"`
	Confidence   float64   `json:"confidence"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Fallback     bool      `json:"fallback,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Engine calcula a compatibilidade entre dois perfis.
// Nunca devolve erro: qualquer falha vira o resultado neutro (fail-open).
type Engine struct {
	log *zap.Logger
	src ActivitySource

	Now        func() time.Time
	OnFallback func(stage string) // métricas por estágio
}

func New(log *zap.Logger, src ActivitySource) *Engine {
	return &Engine{log: log, src: src, Now: time.Now}
}

// CalculateCompatibility devolve score, breakdown e confiança para o par (a, b)
func (e *Engine) CalculateCompatibility(ctx context.Context, a, b models.UserProfile) (res Result) {
	now := e.Now()

	defer func() {
		if r := recover(); r != nil {
			res = e.fallback(now, fmt.Errorf("compatibility panic: %v", r))
		}
	}()

	if a.ID == "" || b.ID == "" {
		return e.fallback(now, ErrMissingUser)
	}

	bd := Breakdown{
		ProfileSimilarity:       ProfileSimilarity(a, b),
		PreferenceAlignment:     PreferenceAlignment(a, b),
		GeographicCompatibility: Geographic(a.Location, b.Location),
		BehavioralCompatibility: e.behavioral(ctx, a.ID, b.ID, now),
		HistoricalSuccess:       e.historical(ctx, a, b, now),
	}

	overall := bd.ProfileSimilarity*weightProfile +
		bd.PreferenceAlignment*weightPreference +
		bd.GeographicCompatibility*weightGeographic +
		bd.BehavioralCompatibility*weightBehavioral +
		bd.HistoricalSuccess*weightHistorical

	return Result{
		OverallScore: clamp(overall, 0, 1),
		Breakdown:    bd,
		Confidence:   Confidence(a, b, now),
		UpdatedAt:    now,
	}
}

func (e *Engine) fallback(now time.Time, err error) Result {
	e.log.Warn("compatibility fallback", zap.Error(err))
	e.countFallback("overall")
	return Result{
		OverallScore: fallbackScore,
		Confidence:   fallbackConfidence,
		UpdatedAt:    now,
		Fallback:     true,
		Error:        err.Error(),
	}
}

func (e *Engine) countFallback(stage string) {
	if e.OnFallback != nil {
		e.OnFallback(stage)
	}
}

// behavioral compara os padrões de mensagens dos últimos 30 dias
func (e *Engine) behavioral(ctx context.Context, userA, userB string, now time.Time) float64 {
	since := now.Add(-activityWindow)

	msgsA, err := e.src.RecentMessagesBySender(ctx, userA, since, maxMessages)
	if err != nil {
		e.log.Warn("behavioral activity read failed", zap.String("userId", userA), zap.Error(err))
		e.countFallback("behavioral")
		return fallbackScore
	}
	msgsB, err := e.src.RecentMessagesBySender(ctx, userB, since, maxMessages)
	if err != nil {
		e.log.Warn("behavioral activity read failed", zap.String("userId", userB), zap.Error(err))
		e.countFallback("behavioral")
		return fallbackScore
	}

	return Behavioral(ActivityPatternOf(msgsA), ActivityPatternOf(msgsB))
}

// historical usa a taxa de sucesso de matches recentes com idades parecidas
func (e *Engine) historical(ctx context.Context, a, b models.UserProfile, now time.Time) float64 {
	matches, err := e.src.SimilarMatches(ctx, models.SimilarMatchQuery{
		AgeA:      a.Age,
		AgeB:      b.Age,
		Tolerance: ageTolerance,
		Since:     now.Add(-historyWindow),
		Limit:     maxSimilar,
	})
	if err != nil {
		e.log.Warn("historical read failed", zap.Error(err))
		e.countFallback("historical")
		return fallbackScore
	}
	return Historical(matches)
}
