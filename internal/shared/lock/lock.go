package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock: not acquired")

// Locker garante exclusão mútua por chave (ex.: "bet:<id>").
// A função devolvida libera o lock e é segura para chamar mais de uma vez.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local é um mutex por chave dentro do processo
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local { return &Local{locks: map[string]*entry{}} }

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(key, e)
		})
	}, nil
}

func (l *Local) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// só apaga a chave se o token ainda for nosso
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis usa SET NX PX para exclusão entre instâncias
type Redis struct {
	R     *redis.Client
	TTL   time.Duration // expiração de segurança caso o dono morra
	Retry time.Duration // intervalo entre tentativas
}

func NewRedis(r *redis.Client, ttl time.Duration) *Redis {
	return &Redis{R: r, TTL: ttl, Retry: 25 * time.Millisecond}
}

func keyLock(key string) string { return "lock:" + key }

func (l *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	k := keyLock(key)

	for {
		ok, err := l.R.SetNX(ctx, k, token, l.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-time.After(l.Retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// contexto próprio: a liberação precisa rodar mesmo com ctx do request cancelado
			rctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			_ = releaseScript.Run(rctx, l.R, []string{k}, token).Err()
		})
	}, nil
}
