package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// DefaultRedisKey holds the JSON document with every user.
const DefaultRedisKey = "users"

// maxTxRetries bounds optimistic-lock retries when writers collide.
const maxTxRetries = 10

// RedisStore is an implementation of UserStore backed by a single Redis
// key holding the ordered user list as one JSON document.  Writes are
// read-modify-write cycles guarded by WATCH, so concurrent writers retry
// instead of losing each other's changes.  Fine for the collection sizes
// this API serves; per-user keys would scale further.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisStore connects to a Redis instance at the provided address and
// returns a store using the "users" key.  A ping is performed to verify
// connectivity.
func NewRedisStore(addr string, password string, tls *tls.Config) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     addr,
		Password: password, // empty string means no auth
		DB:       0,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	if tls != nil {
		opts.TLSConfig = tls
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStoreFromClient(client, DefaultRedisKey), nil
}

// NewRedisStoreFromClient wraps an existing client.  The store takes
// ownership of the client and closes it in Close.
func NewRedisStoreFromClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, now: time.Now}
}

func (s *RedisStore) CreateUser(ctx context.Context, draft user.Draft) (user.User, error) {
	u := newRecord(draft, s.now())
	err := s.mutate(ctx, func(users []user.User) ([]user.User, error) {
		return append(users, u), nil
	})
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// GetUser retrieves a user by id from Redis.  It returns (nil, nil) if the
// user does not exist.
func (s *RedisStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	users, err := fetchAll(ctx, s.client, s.key)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, nil
}

// ListUsers returns all users stored in Redis.  On a fresh store or when
// the key doesn't exist, an empty slice and nil error are returned.
func (s *RedisStore) ListUsers(ctx context.Context) ([]user.User, error) {
	return fetchAll(ctx, s.client, s.key)
}

func (s *RedisStore) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	var updated user.User
	err := s.mutate(ctx, func(users []user.User) ([]user.User, error) {
		i := slices.IndexFunc(users, func(x user.User) bool { return x.ID == u.ID })
		if i < 0 {
			return nil, ErrNotFound
		}
		updated = mergeUpdate(users[i], u)
		users[i] = updated
		return users, nil
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

func (s *RedisStore) DeleteUser(ctx context.Context, id string) (user.User, error) {
	var removed user.User
	err := s.mutate(ctx, func(users []user.User) ([]user.User, error) {
		i := slices.IndexFunc(users, func(x user.User) bool { return x.ID == id })
		if i < 0 {
			return nil, ErrNotFound
		}
		removed = users[i]
		return slices.Delete(users, i, i+1), nil
	})
	if err != nil {
		return user.User{}, err
	}
	return removed, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// mutate runs fn over the stored list inside a WATCH transaction and
// retries when another writer changed the key in between.
func (s *RedisStore) mutate(ctx context.Context, fn func([]user.User) ([]user.User, error)) error {
	txf := func(tx *redis.Tx) error {
		users, err := fetchAll(ctx, tx, s.key)
		if err != nil {
			return err
		}
		users, err = fn(users)
		if err != nil {
			return err
		}
		data, err := json.Marshal(users)
		if err != nil {
			return fmt.Errorf("failed to marshal users: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("redis write failed: %w", err)
		}
		return err
	}
	return fmt.Errorf("redis write failed: too many concurrent writers on %q", s.key)
}

// getter is the part of *redis.Client and *redis.Tx that fetchAll needs.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// fetchAll reads the JSON document and decodes it.  A missing key is an
// empty list.
func fetchAll(ctx context.Context, c getter, key string) ([]user.User, error) {
	usersJSON, err := c.Get(ctx, key).Result()
	if err == redis.Nil {
		return []user.User{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var users []user.User
	if err := json.Unmarshal([]byte(usersJSON), &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal users json: %w", err)
	}
	if users == nil {
		users = []user.User{}
	}
	return users, nil
}
