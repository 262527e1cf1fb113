package producer

import (
	"context"
	"time"

	"github.com/radieske/match-bet-platform/internal/shared/kafka"
	"github.com/radieske/match-bet-platform/pkg/contracts/events"
)

// Topics define o destino de cada evento do bet-service
type Topics struct {
	BetPlaced     string
	BetSettled    string
	MarketSettled string
}

// KafkaPublisher publica os eventos de dinheiro. Key = betId (ou parlayId)
// para manter a ordem por bet; market_settled usa marketId.
type KafkaPublisher struct {
	Writer kafka.MessageWriter
	Topics Topics
}

func NewKafkaPublisher(w kafka.MessageWriter, t Topics) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topics: t}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	key := e.BetID
	if key == "" {
		key = e.ParlayID
	}
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.BetPlaced, key, e)
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.BetSettled, e.BetID, e)
}

func (p *KafkaPublisher) PublishMarketSettled(ctx context.Context, e events.MarketSettled) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.MarketSettled, e.MarketID, e)
}
