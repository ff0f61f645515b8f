package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kapu/chessmeet/internal/session"
)

const finalTTL = 24 * time.Hour

// RedisStore keeps recently finished sessions around for a day so clients can
// fetch the last few results after a restart. Best-effort only.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// SaveFinal writes the record under its session id and indexes it for both
// participants.
func (s *RedisStore) SaveFinal(ctx context.Context, rec session.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, finalKey(rec.ID), raw, finalTTL).Err(); err != nil {
		return err
	}
	for _, name := range []string{rec.White, rec.Black} {
		key := idxKey(name)
		if err := s.rdb.SAdd(ctx, key, rec.ID).Err(); err != nil {
			return err
		}
		_ = s.rdb.Expire(ctx, key, finalTTL).Err()
	}
	return nil
}

// RecentFor returns the identity's finished sessions, newest first.
func (s *RedisStore) RecentFor(ctx context.Context, name string) ([]session.Record, error) {
	ids, err := s.rdb.SMembers(ctx, idxKey(name)).Result()
	if err != nil {
		return nil, err
	}
	var out []session.Record
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, finalKey(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec session.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].EndedAt.After(out[i].EndedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func finalKey(id string) string { return "game:final:" + strings.TrimSpace(id) }
func idxKey(name string) string { return "game:index:" + strings.TrimSpace(name) }

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
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
