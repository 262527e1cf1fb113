package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/compatibility"
	"github.com/radieske/match-bet-platform/internal/odds"
	"github.com/radieske/match-bet-platform/internal/parlay"
	"github.com/radieske/match-bet-platform/internal/shared/httpjson"
	"github.com/radieske/match-bet-platform/pkg/models"
)

// ReadRepo são as leituras que o odds-service faz no banco
type ReadRepo interface {
	GetUser(ctx context.Context, id string) (models.UserProfile, error)
	GetMatch(ctx context.Context, id string) (models.Match, error)
	GetBet(ctx context.Context, id string) (models.Bet, error)
	GetMarket(ctx context.Context, id string) (models.BetsMarket, error)
	ListBetsByMarket(ctx context.Context, marketID string) ([]models.Bet, error)
}

type Pricer interface {
	CalculatePersonalizedOdds(ctx context.Context, bet models.Bet, match models.Match, bettor models.UserProfile) odds.Result
}

type Compatibility interface {
	CalculateCompatibility(ctx context.Context, a, b models.UserProfile) compatibility.Result
}

var invalid = []error{parlay.ErrTooFewLegs, parlay.ErrInvalidLeg}

// API expõe compatibilidade, odds personalizadas e cotação de parlay.
// Só leitura: nada aqui move dinheiro.
type API struct {
	Log      *zap.Logger
	ReadRepo ReadRepo
	Odds     Pricer
	Compat   Compatibility
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router(mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(mw...)

	// odds são sempre do ponto de vista de ?userId=
	r.Get("/v1/compatibility", a.getCompatibility)
	r.Get("/v1/bets/{id}/odds", a.getBetOdds)
	r.Get("/v1/markets/{id}/odds", a.getMarketOdds)
	r.Post("/v1/odds/preview", a.previewOdds)
	r.Post("/v1/parlays/quote", a.quoteParlay)
	return r
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpjson.Status(err, invalid...) >= http.StatusInternalServerError {
		a.Log.Error(op, zap.String("requestId", middleware.GetReqID(r.Context())), zap.Error(err))
	}
	httpjson.Error(w, err, invalid...)
}
