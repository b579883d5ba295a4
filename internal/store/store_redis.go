package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/Cheese-Xiangqi/internal/domain"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultTTL = 24 * time.Hour

// Store keeps match snapshots in Redis as JSON, with an index sorted by last
// update for listing.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Open connects to REDIS_URL style addresses and pings the server.
func Open(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for snapshot store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStore(rdb, ttl), nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func keyMatch(id string) string { return "xq:match:" + strings.TrimSpace(id) }

func keyIndex() string { return "xq:matches" }

// Save writes the snapshot and refreshes its TTL. An empty ID is assigned.
func (s *Store) Save(ctx context.Context, snap *domain.MatchSnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if strings.TrimSpace(snap.ID) == "" {
		snap.ID = uuid.NewString()
	}
	if _, err := uuid.Parse(snap.ID); err != nil {
		return fmt.Errorf("invalid match id %q: %w", snap.ID, err)
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyMatch(snap.ID), raw, s.ttl)
	pipe.ZAdd(ctx, keyIndex(), redis.Z{Score: float64(snap.UpdatedAt.UnixMilli()), Member: snap.ID})
	pipe.Expire(ctx, keyIndex(), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return nil
}

// Load returns nil, nil when the snapshot does not exist or has expired.
func (s *Store) Load(ctx context.Context, id string) (*domain.MatchSnapshot, error) {
	raw, err := s.rdb.Get(ctx, keyMatch(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.MatchSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keyMatch(id))
	pipe.ZRem(ctx, keyIndex(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns up to limit snapshots, most recently updated first. Index
// entries whose snapshot has expired are pruned.
func (s *Store) List(ctx context.Context, limit int) ([]*domain.MatchSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.rdb.ZRevRange(ctx, keyIndex(), 0, int64(limit)*2).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.MatchSnapshot, 0, limit)
	var stale []any
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		snap, err := s.Load(ctx, id)
		if err != nil {
			obslog.L().Warn("store_load_failed", zap.String("match_id", id), zap.Error(err))
			continue
		}
		if snap == nil {
			stale = append(stale, id)
			continue
		}
		out = append(out, snap)
	}
	if len(stale) > 0 {
		if err := s.rdb.ZRem(ctx, keyIndex(), stale...).Err(); err != nil {
			obslog.L().Warn("store_prune_failed", zap.Error(err))
		}
	}
	return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}
