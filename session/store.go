package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const recordVersionV1 = 1

var (
	// ErrNotFound indicates no record exists for the id.
	ErrNotFound = errors.New("session record not found")
	// ErrUnavailable indicates the backend is unreachable.
	ErrUnavailable = errors.New("session backend unavailable")
)

type record struct {
	Version int             `json:"v"`
	SavedAt int64           `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

// Store defines a public type used by goRecover APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	ttl           time.Duration
	jitterEnabled bool
	jitterRange   time.Duration
}

// NewStore describes the newstore operation and its observable behavior.
//
// NewStore may return an error when input validation, dependency calls, or security checks fail.
// NewStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration, jitterEnabled bool, jitterRange time.Duration) *Store {
	if prefix == "" {
		prefix = "recover:bean:"
	}
	return &Store{
		redis:         redisClient,
		prefix:        prefix,
		ttl:           ttl,
		jitterEnabled: jitterEnabled,
		jitterRange:   jitterRange,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Save stores payload under id with the configured TTL. Jitter spreads
// expirations so a burst of sessions does not expire in one sweep.
func (s *Store) Save(ctx context.Context, id string, payload []byte) error {
	if s == nil {
		return ErrUnavailable
	}
	if id == "" {
		return errors.New("session id required")
	}

	rec := record{
		Version: recordVersionV1,
		SavedAt: time.Now().Unix(),
		Data:    json.RawMessage(payload),
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(id), encoded, s.effectiveTTL()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Load returns the payload stored under id, or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) ([]byte, error) {
	if s == nil {
		return nil, ErrUnavailable
	}

	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Version != recordVersionV1 {
		return nil, errors.New("invalid session record version")
	}
	return rec.Data, nil
}

// Delete removes the record for id. Deleting a missing record is not an
// error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil {
		return ErrUnavailable
	}
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Touch extends the TTL of an existing record without rewriting it.
func (s *Store) Touch(ctx context.Context, id string) error {
	if s == nil {
		return ErrUnavailable
	}
	ok, err := s.redis.Expire(ctx, s.key(id), s.effectiveTTL()).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Store) effectiveTTL() time.Duration {
	ttl := s.ttl
	if !s.jitterEnabled || s.jitterRange <= 0 {
		return ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(s.jitterRange)))
	if err != nil {
		return ttl
	}
	return ttl + time.Duration(n.Int64())
}
