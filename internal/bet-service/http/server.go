package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/bet-service/dto"
	"github.com/radieske/match-bet-platform/internal/market"
	"github.com/radieske/match-bet-platform/internal/parlay"
	"github.com/radieske/match-bet-platform/internal/settlement"
	"github.com/radieske/match-bet-platform/internal/shared/httpjson"
	"github.com/radieske/match-bet-platform/pkg/models"
)

type Settlement interface {
	PlaceBet(ctx context.Context, betID, userID string, stakeUSD decimal.Decimal, sel models.Selection) (models.BetPlacement, error)
	SettleBet(ctx context.Context, betID string, outcome models.BetOutcome) (models.Bet, error)
	SettleMarket(ctx context.Context, marketID string, outcomes map[string]models.BetOutcome) error
	PlaceParlay(ctx context.Context, userID string, legs []models.ParlayLeg, stakeUSD decimal.Decimal, mode models.ParlayMode) (models.Parlay, parlay.Result, error)
}

type Markets interface {
	Get(ctx context.Context, marketID string) (market.View, error)
	CreateMarket(ctx context.Context, matchID string) (market.View, error)
	CloseMarket(ctx context.Context, marketID string) (models.BetsMarket, error)
	UpdateOdds(ctx context.Context, betID string, odds float64) (models.Bet, error)
}

// Reader são as leituras diretas do repositório
type Reader interface {
	GetBet(ctx context.Context, id string) (models.Bet, error)
	Placements(ctx context.Context, betID string) ([]models.BetPlacement, error)
	BettingHistory(ctx context.Context, userID string, limit int) ([]models.PlacementRecord, error)
	Parlays(ctx context.Context, userID string) ([]models.Parlay, error)
}

var invalid = []error{
	settlement.ErrInvalidStake,
	settlement.ErrInvalidOutcome,
	settlement.ErrInvalidSelection,
	parlay.ErrTooFewLegs,
	parlay.ErrInvalidLeg,
	market.ErrInvalidOdds,
}

const defaultHistoryLimit = 50

type Server struct {
	log     *zap.Logger
	settle  Settlement
	markets Markets
	read    Reader
}

func NewServer(log *zap.Logger, s Settlement, m Markets, r Reader) *Server {
	return &Server{log: log, settle: s, markets: m, read: r}
}

func (s *Server) Router(mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(mw...)

	r.Route("/v1/bets/{id}", func(r chi.Router) {
		r.Get("/", s.getBet)
		r.Get("/placements", s.betPlacements)
		r.Post("/place", s.placeBet)
		r.Post("/settle", s.settleBet)
		r.Post("/odds", s.updateOdds)
	})
	r.Route("/v1/markets", func(r chi.Router) {
		r.Post("/", s.createMarket)
		r.Get("/{id}", s.getMarket)
		r.Post("/{id}/close", s.closeMarket)
		r.Post("/{id}/settle", s.settleMarket)
	})
	r.Post("/v1/parlays", s.placeParlay)
	r.Get("/v1/users/{id}/placements", s.userPlacements) // ?limit=
	r.Get("/v1/users/{id}/parlays", s.userParlays)
	return r
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpjson.Status(err, invalid...) >= http.StatusInternalServerError {
		s.log.Error(op, zap.String("requestId", middleware.GetReqID(r.Context())), zap.Error(err))
	}
	httpjson.Error(w, err, invalid...)
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.read.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "get bet", err)
		return
	}
	httpjson.Write(w, http.StatusOK, bet)
}

func (s *Server) betPlacements(w http.ResponseWriter, r *http.Request) {
	ps, err := s.read.Placements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "bet placements", err)
		return
	}
	httpjson.Write(w, http.StatusOK, dto.PlacementsResponse{Placements: ps, Count: len(ps)})
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	if req.UserID == "" {
		httpjson.BadRequest(w, "userId required")
		return
	}
	p, err := s.settle.PlaceBet(r.Context(), chi.URLParam(r, "id"), req.UserID, req.StakeUSD, req.Selection)
	if err != nil {
		s.fail(w, r, "place bet", err)
		return
	}
	httpjson.Write(w, http.StatusCreated, p)
}

func (s *Server) settleBet(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleBetRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	bet, err := s.settle.SettleBet(r.Context(), chi.URLParam(r, "id"), req.Outcome)
	if err != nil {
		s.fail(w, r, "settle bet", err)
		return
	}
	httpjson.Write(w, http.StatusOK, bet)
}

func (s *Server) updateOdds(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateOddsRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	bet, err := s.markets.UpdateOdds(r.Context(), chi.URLParam(r, "id"), req.Odds)
	if err != nil {
		s.fail(w, r, "update odds", err)
		return
	}
	httpjson.Write(w, http.StatusOK, bet)
}

func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMarketRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	if req.MatchID == "" {
		httpjson.BadRequest(w, "matchId required")
		return
	}
	v, err := s.markets.CreateMarket(r.Context(), req.MatchID)
	if err != nil {
		s.fail(w, r, "create market", err)
		return
	}
	httpjson.Write(w, http.StatusCreated, v)
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	v, err := s.markets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "get market", err)
		return
	}
	httpjson.Write(w, http.StatusOK, v)
}

func (s *Server) closeMarket(w http.ResponseWriter, r *http.Request) {
	m, err := s.markets.CloseMarket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "close market", err)
		return
	}
	httpjson.Write(w, http.StatusOK, m)
}

func (s *Server) settleMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleMarketRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.settle.SettleMarket(r.Context(), id, req.Outcomes); err != nil {
		s.fail(w, r, "settle market", err)
		return
	}
	httpjson.Write(w, http.StatusOK, dto.SettleMarketResponse{MarketID: id, Status: string(models.MarketSettled)})
}

func (s *Server) placeParlay(w http.ResponseWriter, r *http.Request) {
	var req dto.ParlayRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	if req.UserID == "" {
		httpjson.BadRequest(w, "userId required")
		return
	}
	p, quote, err := s.settle.PlaceParlay(r.Context(), req.UserID, req.Legs, req.StakeUSD, req.Mode)
	if err != nil {
		s.fail(w, r, "place parlay", err)
		return
	}
	httpjson.Write(w, http.StatusCreated, dto.ParlayResponse{Parlay: p, Quote: quote})
}

func (s *Server) userPlacements(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpjson.BadRequest(w, "invalid query param limit")
			return
		}
		limit = n
	}
	recs, err := s.read.BettingHistory(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.fail(w, r, "user placements", err)
		return
	}
	httpjson.Write(w, http.StatusOK, dto.HistoryResponse{Placements: recs, Count: len(recs)})
}

func (s *Server) userParlays(w http.ResponseWriter, r *http.Request) {
	ps, err := s.read.Parlays(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "user parlays", err)
		return
	}
	httpjson.Write(w, http.StatusOK, dto.ParlaysResponse{Parlays: ps, Count: len(ps)})
}
