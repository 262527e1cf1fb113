package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/match-bet-platform/internal/odds-service/dto"
	"github.com/radieske/match-bet-platform/internal/parlay"
	"github.com/radieske/match-bet-platform/internal/shared/httpjson"
	"github.com/radieske/match-bet-platform/pkg/models"
)

// getCompatibility devolve o score do par ?userA=&userB=
func (a *API) getCompatibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	idA, idB := q.Get("userA"), q.Get("userB")
	if idA == "" || idB == "" || idA == idB {
		httpjson.BadRequest(w, "userA and userB must be two different users")
		return
	}
	userA, err := a.ReadRepo.GetUser(r.Context(), idA)
	if err != nil {
		a.fail(w, r, "compatibility", err)
		return
	}
	userB, err := a.ReadRepo.GetUser(r.Context(), idB)
	if err != nil {
		a.fail(w, r, "compatibility", err)
		return
	}
	httpjson.Write(w, http.StatusOK, a.Compat.CalculateCompatibility(r.Context(), userA, userB))
}

// getBetOdds precifica uma bet para o apostador
func (a *API) getBetOdds(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		httpjson.BadRequest(w, "userId required")
		return
	}
	ctx := r.Context()

	bet, err := a.ReadRepo.GetBet(ctx, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, "bet odds", err)
		return
	}
	mk, err := a.ReadRepo.GetMarket(ctx, bet.MarketID)
	if err != nil {
		a.fail(w, r, "bet odds", err)
		return
	}
	match, err := a.ReadRepo.GetMatch(ctx, mk.MatchID)
	if err != nil {
		a.fail(w, r, "bet odds", err)
		return
	}
	bettor, err := a.ReadRepo.GetUser(ctx, userID)
	if err != nil {
		a.fail(w, r, "bet odds", err)
		return
	}

	httpjson.Write(w, http.StatusOK, dto.BetOdds{
		BetID:       bet.ID,
		BetType:     bet.BetType,
		Description: bet.Description,
		BaseOdds:    bet.Odds,
		Result:      a.Odds.CalculatePersonalizedOdds(ctx, bet, match, bettor),
	})
}

// getMarketOdds precifica todas as bets do mercado para o apostador
func (a *API) getMarketOdds(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		httpjson.BadRequest(w, "userId required")
		return
	}
	ctx := r.Context()

	mk, err := a.ReadRepo.GetMarket(ctx, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, "market odds", err)
		return
	}
	match, err := a.ReadRepo.GetMatch(ctx, mk.MatchID)
	if err != nil {
		a.fail(w, r, "market odds", err)
		return
	}
	bettor, err := a.ReadRepo.GetUser(ctx, userID)
	if err != nil {
		a.fail(w, r, "market odds", err)
		return
	}
	bets, err := a.ReadRepo.ListBetsByMarket(ctx, mk.ID)
	if err != nil {
		a.fail(w, r, "market odds", err)
		return
	}

	out := dto.MarketOdds{MarketID: mk.ID, MatchID: mk.MatchID, Status: mk.Status, Bets: make([]dto.BetOdds, 0, len(bets))}
	for _, b := range bets {
		out.Bets = append(out.Bets, dto.BetOdds{
			BetID:       b.ID,
			BetType:     b.BetType,
			Description: b.Description,
			BaseOdds:    b.Odds,
			Result:      a.Odds.CalculatePersonalizedOdds(ctx, b, match, bettor),
		})
	}
	httpjson.Write(w, http.StatusOK, out)
}

// previewOdds precifica um betType avulso sobre um match. A bet não tem id,
// então o resultado não passa pelo cache.
func (a *API) previewOdds(w http.ResponseWriter, r *http.Request) {
	var req dto.PreviewRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	if req.MatchID == "" || req.UserID == "" || req.BetType == "" {
		httpjson.BadRequest(w, "matchId, userId and betType required")
		return
	}
	ctx := r.Context()

	match, err := a.ReadRepo.GetMatch(ctx, req.MatchID)
	if err != nil {
		a.fail(w, r, "odds preview", err)
		return
	}
	bettor, err := a.ReadRepo.GetUser(ctx, req.UserID)
	if err != nil {
		a.fail(w, r, "odds preview", err)
		return
	}

	bet := models.Bet{MarketID: match.BetsMarketID, BetType: req.BetType, Outcome: models.OutcomePending}
	httpjson.Write(w, http.StatusOK, dto.BetOdds{
		BetType: req.BetType,
		Result:  a.Odds.CalculatePersonalizedOdds(ctx, bet, match, bettor),
	})
}

// quoteParlay calcula o multiplicador sem debitar nada. As odds de cada perna
// vêm das bets gravadas, como no placement.
func (a *API) quoteParlay(w http.ResponseWriter, r *http.Request) {
	var req dto.QuoteRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	if !req.StakeUSD.IsPositive() {
		httpjson.BadRequest(w, "stakeUSD must be positive")
		return
	}

	seen := make(map[string]bool, len(req.Legs))
	legs := make([]models.ParlayLeg, len(req.Legs))
	for i, l := range req.Legs {
		if seen[l.BetID] {
			a.fail(w, r, "parlay quote", fmt.Errorf("%w: bet %s repeated", parlay.ErrInvalidLeg, l.BetID))
			return
		}
		seen[l.BetID] = true

		bet, err := a.ReadRepo.GetBet(r.Context(), l.BetID)
		if err != nil {
			a.fail(w, r, "parlay quote", err)
			return
		}
		if bet.Outcome != models.OutcomePending {
			a.fail(w, r, "parlay quote", fmt.Errorf("bet %s is %s: %w", bet.ID, bet.Outcome, models.ErrInvalidState))
			return
		}
		l.Odds = bet.Odds
		if l.Description == "" {
			l.Description = bet.Description
		}
		legs[i] = l
	}

	res, err := parlay.Compute(legs, req.StakeUSD, req.Mode)
	if err != nil {
		a.fail(w, r, "parlay quote", err)
		return
	}
	httpjson.Write(w, http.StatusOK, res)
}
