package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/compatibility"
	"github.com/radieske/match-bet-platform/internal/discovery"
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
		UpdatedAt: time.Now(),
	}
}

func newTestServer(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	st := memory.New()
	for _, u := range []models.UserProfile{user("alice", 28), user("bob", 30), user("carol", 26)} {
		st.PutUser(u)
	}
	log := zap.NewNop()
	svc := discovery.New(log, st, compatibility.New(log, st), discovery.NewRand(1), nil)
	return st, NewServer(log, svc, st).Router()
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

func TestFeed(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/v1/users/alice/feed?limit=5&skip=carol", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		Candidates []discovery.RankedCandidate `json:"candidates"`
		Count      int                         `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Candidates[0].ID != "bob" {
		t.Fatalf("feed = %+v", resp)
	}

	if rec := do(t, h, http.MethodGet, "/v1/users/ghost/feed", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user: %d", rec.Code)
	}
	for _, q := range []string{"limit=x", "maxDistance=-3", "ageMin=40&ageMax=30"} {
		if rec := do(t, h, http.MethodGet, "/v1/users/alice/feed?"+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: %d", q, rec.Code)
		}
	}
}

func TestSwipeFlow(t *testing.T) {
	st, h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/v1/swipes", `{"swiperId":"alice","targetId":"bob","action":"like"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first like: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodPost, "/v1/swipes", `{"swiperId":"bob","targetId":"alice","action":"like"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("mutual like: %d %s", rec.Code, rec.Body)
	}
	var res discovery.SwipeResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil || !res.Matched {
		t.Fatalf("result = %+v err = %v", res, err)
	}

	rec = do(t, h, http.MethodGet, "/v1/users/alice/matches", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Fatalf("matches: %d %s", rec.Code, rec.Body)
	}

	matchID := res.Match.ID
	rec = do(t, h, http.MethodPost, "/v1/matches/"+matchID+"/messages", `{"senderId":"alice","text":"coffee at 7?"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("message: %d %s", rec.Code, rec.Body)
	}
	msgs, _ := st.MatchMessages(context.Background(), matchID, time.Now().Add(-time.Hour), 10)
	if len(msgs) != 1 {
		t.Fatalf("messages = %+v", msgs)
	}

	rec = do(t, h, http.MethodPost, "/v1/matches/"+matchID+"/schedule-date", `{"userId":"carol","date":"2026-12-01T20:00:00Z"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider schedule: %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/v1/matches/"+matchID+"/schedule-date", `{"userId":"bob","date":"2026-12-01T20:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule: %d %s", rec.Code, rec.Body)
	}
}

func TestSwipeRejections(t *testing.T) {
	_, h := newTestServer(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown field", `{"swiperId":"alice","targetId":"bob","action":"like","x":1}`, http.StatusBadRequest},
		{"missing target", `{"swiperId":"alice","action":"like"}`, http.StatusBadRequest},
		{"self", `{"swiperId":"alice","targetId":"alice","action":"like"}`, http.StatusBadRequest},
		{"bad action", `{"swiperId":"alice","targetId":"bob","action":"superlike"}`, http.StatusBadRequest},
		{"unknown user", `{"swiperId":"alice","targetId":"ghost","action":"like"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/v1/swipes", tt.body); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestProfileRoundTrip(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodPut, "/v1/users/dave", `{"username":"dave","age":33,"bio":"runner","photos":["d.jpg"],"preferences":{"distance":25,"interests":["running"]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodGet, "/v1/users/dave", "")
	var u models.UserProfile
	if err := json.NewDecoder(rec.Body).Decode(&u); err != nil || u.Age != 33 || u.Preferences.Distance != 25 {
		t.Fatalf("profile = %+v err = %v", u, err)
	}

	if rec := do(t, h, http.MethodPut, "/v1/users/kid", `{"username":"kid","age":15}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("underage: %d", rec.Code)
	}
}
