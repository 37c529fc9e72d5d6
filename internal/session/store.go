// Package session owns the opaque session token to user identity binding.
//
// Resolution is a pure read. Extending the rolling expiry is the separate,
// explicit Touch step so callers decide when it happens.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrUnauthenticated = errors.New("unauthenticated")

const keyPrefix = "sess:"

// Identity is the stable user id bound to a session.
type Identity string

func (i Identity) String() string { return string(i) }

type record struct {
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
	Touch(ctx context.Context, token string) error
}

type Store interface {
	Resolver
	Create(ctx context.Context, userID string) (string, error)
	Destroy(ctx context.Context, token string) error
}

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisStore{rdb: rdb, ttl: ttl}
}

func key(token string) string { return keyPrefix + token }

func (s *redisStore) Create(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("session: empty user id")
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	b, err := json.Marshal(record{UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, key(token), b, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("session: store: %w", err)
	}
	return token, nil
}

func (s *redisStore) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	raw, err := s.rdb.Get(ctx, key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("session: lookup: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.UserID == "" {
		return "", ErrUnauthenticated
	}
	return Identity(rec.UserID), nil
}

func (s *redisStore) Touch(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthenticated
	}
	ok, err := s.rdb.Expire(ctx, key(token), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("session: touch: %w", err)
	}
	if !ok {
		return ErrUnauthenticated
	}
	return nil
}

func (s *redisStore) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.rdb.Del(ctx, key(token)).Err()
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
