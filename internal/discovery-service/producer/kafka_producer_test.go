package producer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/match-bet-platform/pkg/contracts/events"
)

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestPublishMatchCreated(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w, "match_created")

	if err := p.PublishMatchCreated(context.Background(), events.MatchCreated{MatchID: "m1", UserA: "u1", UserB: "u2"}); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || w.msgs[0].Topic != "match_created" || string(w.msgs[0].Key) != "m1" {
		t.Fatalf("msgs = %+v", w.msgs)
	}
	var got events.MatchCreated
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.UserA != "u1" || got.UserB != "u2" || got.TsUnixMs == 0 {
		t.Fatalf("event = %+v", got)
	}
}
