package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	kredis "github.com/dayuer/kaapav-go/internal/redis"
)

const (
	defaultRedisTTL = 30 * 24 * time.Hour
	maxTxAttempts   = 5
)

// RedisStore keeps one JSON document per user and a sorted-set index for
// listing. Updates use WATCH/MULTI so concurrent writers on other processes
// cannot lose each other's changes.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	language string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration, language string) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{client: client, ttl: ttl, language: language}
}

// LoadOrCreate implements Store.
func (s *RedisStore) LoadOrCreate(ctx context.Context, userID string) (Session, error) {
	return s.update(ctx, userID, nil)
}

// Patch implements Store.
func (s *RedisStore) Patch(ctx context.Context, userID string, p Patch) (Session, error) {
	return s.update(ctx, userID, &p)
}

// Get implements Store. Refreshes the TTL on read.
func (s *RedisStore) Get(ctx context.Context, userID string) (Session, error) {
	key := kredis.SessionKey(userID)
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "redis get")
	}
	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return Session{}, errors.Wrap(err, "decoding session")
	}
	_ = s.client.Expire(ctx, key, s.ttl).Err()
	return sess, nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, limit int) ([]Session, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, kredis.KeySessionIndex, 0, stop).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis zrevrange")
	}
	if len(ids) == 0 {
		return []Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = kredis.SessionKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis mget")
	}

	out := make([]Session, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // expired between ZREVRANGE and MGET
		}
		var sess Session
		if json.Unmarshal([]byte(raw), &sess) == nil {
			out = append(out, sess)
		}
	}
	return out, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// update loads (or creates) the session, applies p when non-nil, and writes
// it back inside one optimistic transaction.
func (s *RedisStore) update(ctx context.Context, userID string, p *Patch) (Session, error) {
	key := kredis.SessionKey(userID)
	var result Session

	txf := func(tx *redis.Tx) error {
		now := time.Now()
		created := false

		val, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			result = New(userID, s.language, now)
			created = true
		case err != nil:
			return err
		default:
			result = Session{}
			if err := json.Unmarshal([]byte(val), &result); err != nil {
				return errors.Wrap(err, "decoding session")
			}
		}

		if p == nil && !created {
			return nil
		}
		if p != nil {
			p.Apply(&result, now)
		}

		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.ZAdd(ctx, kredis.KeySessionIndex, redis.Z{
				Score:  float64(result.UpdatedAt.UnixMilli()),
				Member: userID,
			})
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if err != redis.TxFailedErr {
			return Session{}, errors.Wrapf(err, "updating session %s", userID)
		}
	}
	return Session{}, errors.Errorf("session %s: update conflict after %d attempts", userID, maxTxAttempts)
}
