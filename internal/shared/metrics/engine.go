package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/pkg/models"
)

// Engine reúne os coletores ligados nos callbacks On* dos serviços
type Engine struct {
	Fallbacks      *prometheus.CounterVec // engine, stage
	Matches        prometheus.Counter
	PublishErrors  *prometheus.CounterVec // topic
	Placements     prometheus.Counter
	StakedUSD      prometheus.Counter
	Settled        *prometheus.CounterVec // outcome
	PaidOutUSD     prometheus.Counter
	MarketsCreated prometheus.Counter
	MarketsClosed  prometheus.Counter
	Consumed       prometheus.Counter
	ConsumeErrors  *prometheus.CounterVec // stage
	HTTPRequests   *prometheus.CounterVec // route, method, code
	HTTPDuration   *prometheus.HistogramVec
}

// NewEngine cria e registra os coletores em reg
func NewEngine(reg prometheus.Registerer) *Engine {
	e := &Engine{
		Fallbacks:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_fallbacks_total", Help: "resultados de fallback por engine e estágio"}, []string{"engine", "stage"}),
		Matches:        prometheus.NewCounter(prometheus.CounterOpts{Name: "discovery_matches_total", Help: "likes que viraram match mútuo"}),
		PublishErrors:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "events_publish_errors_total", Help: "falhas de publicação por tópico"}, []string{"topic"}),
		Placements:     prometheus.NewCounter(prometheus.CounterOpts{Name: "bets_placed_total", Help: "apostas aceitas"}),
		StakedUSD:      prometheus.NewCounter(prometheus.CounterOpts{Name: "bets_staked_usd_total", Help: "volume apostado em USD"}),
		Settled:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_settled_total", Help: "bets resolvidas por outcome"}, []string{"outcome"}),
		PaidOutUSD:     prometheus.NewCounter(prometheus.CounterOpts{Name: "bets_paid_out_usd_total", Help: "payouts creditados em USD"}),
		MarketsCreated: prometheus.NewCounter(prometheus.CounterOpts{Name: "markets_created_total", Help: "mercados abertos"}),
		MarketsClosed:  prometheus.NewCounter(prometheus.CounterOpts{Name: "markets_closed_total", Help: "mercados fechados"}),
		Consumed:       prometheus.NewCounter(prometheus.CounterOpts{Name: "consumer_messages_total", Help: "mensagens consumidas"}),
		ConsumeErrors:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "consumer_errors_total", Help: "erros por estágio"}, []string{"stage"}),
		HTTPRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "http_requests_total", Help: "requests por rota"}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "latência por rota",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		e.Fallbacks, e.Matches, e.PublishErrors, e.Placements, e.StakedUSD, e.Settled,
		e.PaidOutUSD, e.MarketsCreated, e.MarketsClosed, e.Consumed, e.ConsumeErrors,
		e.HTTPRequests, e.HTTPDuration,
	)
	return e
}

// FallbackFor devolve o callback OnFallback de um engine
func (e *Engine) FallbackFor(engine string) func(stage string) {
	return func(stage string) { e.Fallbacks.WithLabelValues(engine, stage).Inc() }
}

func (e *Engine) PublishError(topic string) { e.PublishErrors.WithLabelValues(topic).Inc() }

func (e *Engine) Placed(stake decimal.Decimal) {
	e.Placements.Inc()
	e.StakedUSD.Add(stake.InexactFloat64())
}

func (e *Engine) SettledBet(outcome models.BetOutcome, paidOut decimal.Decimal) {
	e.Settled.WithLabelValues(string(outcome)).Inc()
	e.PaidOutUSD.Add(paidOut.InexactFloat64())
}

func (e *Engine) ConsumeError(stage string) { e.ConsumeErrors.WithLabelValues(stage).Inc() }

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware mede requests pelo pattern do chi (ex.: /v1/bets/{id}) para não explodir cardinalidade
func (e *Engine) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		e.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
		e.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
