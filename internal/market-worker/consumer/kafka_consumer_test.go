package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/market"
	"github.com/radieske/match-bet-platform/pkg/contracts/events"
	"github.com/radieske/match-bet-platform/pkg/models"
)

type fakeMarkets struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string][]error // erros devolvidos em sequência por match
}

func (f *fakeMarkets) CreateMarket(_ context.Context, matchID string) (market.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	n := f.calls[matchID]
	f.calls[matchID]++
	if errs := f.errs[matchID]; n < len(errs) && errs[n] != nil {
		return market.View{}, errs[n]
	}
	return market.View{BetsMarket: models.BetsMarket{ID: "mk-" + matchID, MatchID: matchID}}, nil
}

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

// sliceReader entrega as mensagens e cancela o contexto quando acabam
type sliceReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func matchMsg(t *testing.T, id string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(events.MatchCreated{MatchID: id, UserA: "a", UserB: "b"})
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Key: []byte(id), Value: b}
}

func newProcessor(m Markets, dlq *captureWriter) (*Processor, map[string]int) {
	counts := map[string]int{}
	p := &Processor{
		Log:       zap.NewNop(),
		Markets:   m,
		DLQ:       dlq,
		DLQTopic:  "match_created_dlq",
		Backoff:   func(int) time.Duration { return 0 },
		OnCreated: func() { counts["created"]++ },
		OnError:   func(stage string) { counts[stage]++ },
	}
	return p, counts
}

func TestHandle(t *testing.T) {
	transient := errors.New("connection reset")
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantDLQ   bool
		created   bool
	}{
		{"ok", nil, 1, false, true},
		{"already exists", []error{fmt.Errorf("wrap: %w", market.ErrMarketExists)}, 1, false, false},
		{"transient then ok", []error{transient, transient}, 3, false, true},
		{"transient exhausted", []error{transient, transient, transient, transient}, 4, true, false},
		{"unknown match", []error{fmt.Errorf("match m: %w", models.ErrNotFound)}, 1, true, false},
		{"not mutual", []error{fmt.Errorf("pending: %w", models.ErrInvalidState)}, 1, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := &fakeMarkets{errs: map[string][]error{"m1": tt.errs}}
			dlq := &captureWriter{}
			p, counts := newProcessor(fm, dlq)

			p.Handle(context.Background(), matchMsg(t, "m1"))

			if fm.calls["m1"] != tt.wantCalls {
				t.Errorf("calls = %d, want %d", fm.calls["m1"], tt.wantCalls)
			}
			if got := len(dlq.msgs) == 1; got != tt.wantDLQ {
				t.Fatalf("dlq = %+v", dlq.msgs)
			}
			if (counts["created"] == 1) != tt.created {
				t.Errorf("created counter = %d", counts["created"])
			}
			if tt.wantDLQ {
				var dl DeadLetter
				if err := json.Unmarshal(dlq.msgs[0].Value, &dl); err != nil {
					t.Fatal(err)
				}
				if dl.Event.MatchID != "m1" || dl.Attempts != tt.wantCalls || dl.Error == "" {
					t.Fatalf("dead letter = %+v", dl)
				}
				if dlq.msgs[0].Topic != "match_created_dlq" || string(dlq.msgs[0].Key) != "m1" {
					t.Fatalf("dlq routing = %s/%s", dlq.msgs[0].Topic, dlq.msgs[0].Key)
				}
			}
		})
	}
}

func TestRunSkipsBadMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fm := &fakeMarkets{}
	p, counts := newProcessor(fm, &captureWriter{})
	consumed := 0
	p.OnConsumed = func() { consumed++ }
	p.Reader = &sliceReader{
		msgs:   []kafka.Message{matchMsg(t, "m1"), {Value: []byte("not json")}, {Value: []byte(`{}`)}, matchMsg(t, "m2")},
		cancel: cancel,
	}

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run = %v", err)
	}
	if consumed != 4 || counts["decode"] != 2 || counts["created"] != 2 {
		t.Fatalf("consumed = %d counts = %v", consumed, counts)
	}
	if fm.calls["m1"] != 1 || fm.calls["m2"] != 1 {
		t.Fatalf("calls = %v", fm.calls)
	}
}
