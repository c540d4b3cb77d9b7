package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix         = "session:"
	activeSessionsKey = "active_sessions"
	maxTxRetries      = 3
)

// RedisStore keeps call sessions in Redis so any instance can serve any call.
// Each call is one key holding the JSON-encoded turn list; writes run under
// WATCH so a retried request cannot interleave with the original.
type RedisStore struct {
	client     *redis.Client
	maxHistory int
	ttl        time.Duration
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisStore wraps a connected client. ttl of 0 keeps sessions until cleared.
func NewRedisStore(client *redis.Client, maxHistory int, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, maxHistory: maxHistory, ttl: ttl}
}

func sessionKey(callID string) string {
	return keyPrefix + callID
}

func (s *RedisStore) Get(ctx context.Context, callID string) ([]Turn, bool, error) {
	key := sessionKey(callID)

	created, err := s.client.SetNX(ctx, key, "[]", s.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("create session %s: %w", callID, err)
	}
	if created {
		if err := s.client.SAdd(ctx, activeSessionsKey, callID).Err(); err != nil {
			return nil, false, fmt.Errorf("track session %s: %w", callID, err)
		}
		return []Turn{}, true, nil
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return []Turn{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read session %s: %w", callID, err)
	}

	turns, err := decodeTurns(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", callID, err)
	}
	return turns, false, nil
}

func (s *RedisStore) Append(ctx context.Context, callID string, turns ...Turn) error {
	return s.update(ctx, callID, func(current []Turn) []Turn {
		return append(current, turns...)
	})
}

func (s *RedisStore) Replace(ctx context.Context, callID string, turns []Turn) error {
	return s.update(ctx, callID, func([]Turn) []Turn {
		return cloneTurns(turns)
	})
}

// update runs a read-modify-write under WATCH, retrying when another writer
// touched the key first.
func (s *RedisStore) update(ctx context.Context, callID string, fn func([]Turn) []Turn) error {
	key := sessionKey(callID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		current := []Turn{}
		if len(raw) > 0 {
			if current, err = decodeTurns(raw); err != nil {
				return err
			}
		}

		encoded, err := sonic.Marshal(Trim(fn(current), s.maxHistory))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			pipe.SAdd(ctx, activeSessionsKey, callID)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("write session %s: %w", callID, err)
	}
	return ErrConflict
}

func (s *RedisStore) Clear(ctx context.Context, callID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(callID))
		pipe.SRem(ctx, activeSessionsKey, callID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear session %s: %w", callID, err)
	}
	return nil
}

// Count reports the tracked session set. Keys that expired through the TTL are
// pruned from the set lazily by PruneExpired.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, activeSessionsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

// PruneExpired drops ids from the active set whose session key is gone.
func (s *RedisStore) PruneExpired(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, activeSessionsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	removed := 0
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, sessionKey(id)).Result()
		if err != nil {
			return removed, fmt.Errorf("check session %s: %w", id, err)
		}
		if exists == 0 {
			s.client.SRem(ctx, activeSessionsKey, id)
			removed++
		}
	}
	return removed, nil
}

// StartCleanupRoutine prunes the active set once a minute. It returns at
// once when sessions never expire.
func (s *RedisStore) StartCleanupRoutine(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PruneExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("⚠️ Session prune failed")
				continue
			}
			if n > 0 {
				log.Info().Int("removed", n).Msg("🧹 Pruned expired call sessions")
			}
		}
	}
}

func decodeTurns(raw []byte) ([]Turn, error) {
	var turns []Turn
	if err := sonic.Unmarshal(raw, &turns); err != nil {
		return nil, err
	}
	return cloneTurns(turns), nil
}
