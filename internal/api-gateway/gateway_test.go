package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func echo(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.URL.Path)
	}))
}

func TestRoutesStripPrefix(t *testing.T) {
	disc, odds, wal, bets := echo("discovery"), echo("odds"), echo("wallet"), echo("bets")
	for _, s := range []*httptest.Server{disc, odds, wal, bets} {
		defer s.Close()
	}

	h, err := New(zap.NewNop(), Upstreams{Discovery: disc.URL, Odds: odds.URL, Wallet: wal.URL, Bets: bets.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	gw := httptest.NewServer(h)
	defer gw.Close()

	tests := []struct{ path, want string }{
		{"/api/discovery/v1/users/u1/feed", "discovery /v1/users/u1/feed"},
		{"/api/odds/v1/bets/b1/odds", "odds /v1/bets/b1/odds"},
		{"/api/wallet/v1/wallets/u1", "wallet /v1/wallets/u1"},
		{"/api/bets/v1/markets/mk", "bets /v1/markets/mk"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(gw.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			if string(b) != tt.want {
				t.Fatalf("body = %q, want %q", b, tt.want)
			}
		})
	}

	resp, err := http.Get(gw.URL + "/api/unknown/x")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown prefix: %d", resp.StatusCode)
	}
}

func TestUpstreamDownAndCORS(t *testing.T) {
	dead := echo("odds")
	dead.Close()

	h, err := New(zap.NewNop(), Upstreams{Discovery: dead.URL, Odds: dead.URL, Wallet: dead.URL, Bets: dead.URL}, Origins("http://app.local, "))
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/odds/v1/compatibility", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("dead upstream: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/bets/v1/parlays", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.local" {
		t.Fatalf("allow origin = %q (status %d)", got, rec.Code)
	}
}
