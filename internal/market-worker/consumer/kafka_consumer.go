package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/market"
	"github.com/radieske/match-bet-platform/internal/shared/kafka"
	"github.com/radieske/match-bet-platform/pkg/contracts/events"
	"github.com/radieske/match-bet-platform/pkg/models"
)

const defaultRetries = 3

type Markets interface {
	CreateMarket(ctx context.Context, matchID string) (market.View, error)
}

// DeadLetter é o que vai para a DLQ quando o match não vira mercado
type DeadLetter struct {
	Event    events.MatchCreated `json:"event"`
	Error    string              `json:"error"`
	Attempts int                 `json:"attempts"`
	TsUnixMs int64               `json:"ts_unix_ms"`
}

// Processor consome match_created e abre o mercado de apostas do match.
// Erro transitório tenta de novo com backoff; erro definitivo vai direto para a DLQ.
type Processor struct {
	Log      *zap.Logger
	Reader   kafka.MessageReader
	Markets  Markets
	DLQ      kafka.MessageWriter // nil desliga a DLQ
	DLQTopic string

	Retries int                             // default 3
	Backoff func(attempt int) time.Duration // default 300ms*(attempt+1)

	OnConsumed func()       // métricas (counter++)
	OnCreated  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo; só retorna quando ctx é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.countError("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem. Mensagem ilegível é descartada.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	if p.OnConsumed != nil {
		p.OnConsumed()
	}

	var ev events.MatchCreated
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.MatchID == "" {
		p.Log.Warn("invalid message", zap.ByteString("key", m.Key), zap.Error(err))
		p.countError("decode")
		return
	}

	attempts, err := p.create(ctx, ev.MatchID)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		// shutdown no meio do retry: a mensagem volta no próximo consumo
		return
	}

	p.Log.Error("market creation failed",
		zap.String("matchId", ev.MatchID),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	p.countError("create")
	p.deadLetter(ctx, ev, err, attempts)
}

// create tenta abrir o mercado; mercado já existente conta como sucesso
func (p *Processor) create(ctx context.Context, matchID string) (int, error) {
	retries := p.Retries
	if retries <= 0 {
		retries = defaultRetries
	}

	var err error
	attempt := 0
	for {
		attempt++
		var v market.View
		v, err = p.Markets.CreateMarket(ctx, matchID)
		switch {
		case err == nil:
			p.Log.Info("market created", zap.String("matchId", matchID), zap.String("marketId", v.ID), zap.Int("bets", len(v.Bets)))
			if p.OnCreated != nil {
				p.OnCreated()
			}
			return attempt, nil
		case errors.Is(err, market.ErrMarketExists):
			p.Log.Info("market already exists", zap.String("matchId", matchID))
			return attempt, nil
		case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInvalidState):
			return attempt, err
		}
		if attempt > retries {
			return attempt, err
		}

		p.Log.Warn("market creation retry", zap.String("matchId", matchID), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(p.backoff(attempt - 1)):
		}
	}
}

func (p *Processor) backoff(i int) time.Duration {
	if p.Backoff != nil {
		return p.Backoff(i)
	}
	return time.Duration(300*(i+1)) * time.Millisecond
}

func (p *Processor) deadLetter(ctx context.Context, ev events.MatchCreated, cause error, attempts int) {
	if p.DLQ == nil {
		return
	}
	dl := DeadLetter{Event: ev, Error: cause.Error(), Attempts: attempts, TsUnixMs: time.Now().UnixMilli()}
	if err := kafka.WriteJSON(ctx, p.DLQ, p.DLQTopic, ev.MatchID, dl); err != nil {
		p.Log.Error("dlq write failed", zap.String("matchId", ev.MatchID), zap.Error(err))
		p.countError("dlq")
	}
}

func (p *Processor) countError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
