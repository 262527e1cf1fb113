package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/compatibility"
	"github.com/radieske/match-bet-platform/internal/odds"
	"github.com/radieske/match-bet-platform/internal/odds-service/cache"
	"github.com/radieske/match-bet-platform/internal/odds-service/dto"
	"github.com/radieske/match-bet-platform/internal/parlay"
	"github.com/radieske/match-bet-platform/internal/storage/memory"
	"github.com/radieske/match-bet-platform/pkg/models"
)

func user(id string, age int) models.UserProfile {
	return models.UserProfile{
		ID:        id,
		Username:  id,
		Age:       age,
		Bio:       "coffee and hiking",
		Photos:    []string{id + ".jpg"},
		Location:  &models.Location{Lat: 40.7, Lng: -74, City: "NYC"},
		CreatedAt: time.Now().Add(-72 * time.Hour),
	}
}

func newTestAPI(t *testing.T) (*miniredis.Miniredis, http.Handler) {
	t.Helper()
	st := memory.New()
	for _, u := range []models.UserProfile{user("alice", 28), user("bob", 30), user("carol", 35)} {
		st.PutUser(u)
	}
	at := time.Now().Add(-time.Hour)
	st.PutMatch(models.Match{ID: "m1", UserA: "alice", UserB: "bob", Status: models.MatchMatched, MatchedAt: &at, BetsMarketID: "mk"})
	st.PutMarket(models.BetsMarket{ID: "mk", MatchID: "m1", Status: models.MarketOpen},
		models.Bet{ID: "b1", MarketID: "mk", BetType: "date_happens", Description: "Will they go on a date?", Odds: 1.9, Outcome: models.OutcomePending},
		models.Bet{ID: "b2", MarketID: "mk", BetType: "no_show", Odds: 4, Outcome: models.OutcomePending, CreatedAt: time.Unix(1, 0)},
		models.Bet{ID: "b3", MarketID: "mk", BetType: "second_date", Odds: 2.5, Outcome: models.OutcomeWin, CreatedAt: time.Unix(2, 0)},
	)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zap.NewNop()
	compat := compatibility.New(log, st)
	api := &API{
		Log:      log,
		ReadRepo: st,
		Odds:     odds.New(log, st, compat, cache.New(rdb, time.Minute)),
		Compat:   compat,
	}
	return mr, api.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCompatibility(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/v1/compatibility?userA=alice&userB=bob", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body)
	}
	var res compatibility.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.OverallScore <= 0 || res.OverallScore > 1 {
		t.Fatalf("score = %v", res.OverallScore)
	}

	for path, want := range map[string]int{
		"/v1/compatibility?userA=alice":             http.StatusBadRequest,
		"/v1/compatibility?userA=alice&userB=alice": http.StatusBadRequest,
		"/v1/compatibility?userA=alice&userB=ghost": http.StatusNotFound,
	} {
		if rec := do(t, h, http.MethodGet, path, ""); rec.Code != want {
			t.Errorf("%s: %d, want %d", path, rec.Code, want)
		}
	}
}

func TestBetOddsIsCached(t *testing.T) {
	mr, h := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/v1/bets/b1/odds?userId=carol", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body)
	}
	var got dto.BetOdds
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.BetID != "b1" || got.PersonalizedOdds < models.MinOdds || got.Factors == nil {
		t.Fatalf("odds = %+v", got)
	}
	if !mr.Exists("odds:bet:b1:user:carol") {
		t.Fatal("result must be cached")
	}

	if rec := do(t, h, http.MethodGet, "/v1/bets/b1/odds", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/v1/bets/nope/odds?userId=carol", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown bet: %d", rec.Code)
	}
}

func TestMarketOddsAndPreview(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/v1/markets/mk/odds?userId=carol", "")
	var mo dto.MarketOdds
	if err := json.NewDecoder(rec.Body).Decode(&mo); err != nil || len(mo.Bets) != 3 {
		t.Fatalf("market odds = %+v err = %v", mo, err)
	}

	rec = do(t, h, http.MethodPost, "/v1/odds/preview", `{"matchId":"m1","userId":"carol","betType":"kiss_first_date"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", rec.Code, rec.Body)
	}
	var pv dto.BetOdds
	if err := json.NewDecoder(rec.Body).Decode(&pv); err != nil || pv.BetType != "kiss_first_date" || pv.PersonalizedOdds < models.MinOdds {
		t.Fatalf("preview = %+v err = %v", pv, err)
	}
	if rec := do(t, h, http.MethodPost, "/v1/odds/preview", `{"matchId":"m1"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("incomplete preview: %d", rec.Code)
	}
}

func TestParlayQuote(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/v1/parlays/quote", `{"stakeUSD":"10","mode":"flex","legs":[{"betId":"b1","selection":"yes","odds":50},{"betId":"b2","selection":"yes"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("quote: %d %s", rec.Code, rec.Body)
	}
	var res parlay.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.LegMultipliers[0] != 1.9 || res.LegMultipliers[1] != 4 {
		t.Fatalf("legs must use stored odds: %+v", res)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"one leg", `{"stakeUSD":"10","mode":"flex","legs":[{"betId":"b1","selection":"yes"}]}`, http.StatusBadRequest},
		{"repeated", `{"stakeUSD":"10","mode":"flex","legs":[{"betId":"b1","selection":"yes"},{"betId":"b1","selection":"no"}]}`, http.StatusBadRequest},
		{"settled leg", `{"stakeUSD":"10","mode":"flex","legs":[{"betId":"b1","selection":"yes"},{"betId":"b3","selection":"yes"}]}`, http.StatusConflict},
		{"no stake", `{"mode":"flex","legs":[]}`, http.StatusBadRequest},
		{"bad mode", `{"stakeUSD":"10","mode":"turbo","legs":[{"betId":"b1","selection":"yes"},{"betId":"b2","selection":"yes"}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/v1/parlays/quote", tt.body); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
