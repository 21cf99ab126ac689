// Package idempotency guards mutating endpoints against duplicate
// submissions. Clients opt in by sending an Idempotency-Key header; a redis
// SETNX records the key for a TTL window and repeats are rejected.
package idempotency

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/storefront/pkg/httpjson"
	"github.com/redis/go-redis/v9"
)

const Header = "Idempotency-Key"

// Marker records whether a key has been seen before. Implemented by Store for
// production and by in-memory fakes in tests.
type Marker interface {
	Seen(ctx context.Context, key string) (bool, error)
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Seen marks key and reports whether it was already marked. SETNX makes the
// mark-and-check a single atomic step, so two concurrent duplicates cannot
// both pass.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, "idem:"+key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Middleware rejects requests whose Idempotency-Key was already used.
// Requests without the header pass through untouched, and a marker outage
// fails open rather than blocking orders.
func Middleware(log *slog.Logger, m Marker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(Header)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			seen, err := m.Seen(r.Context(), key)
			if err != nil {
				log.Error("idempotency check failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if seen {
				log.Info("duplicate request rejected", "idempotency_key", key)
				httpjson.Error(w, http.StatusConflict, "duplicate request")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
