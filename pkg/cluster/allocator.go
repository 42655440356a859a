// Package cluster shares one nonce space between several hosts through
// Redis, so they can search the same commit without overlapping.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gitvanity/pkg/search"
	"gitvanity/pkg/types"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gitvanity:"

// Config describes one shared search. Every host of a search must use the
// same Search id, usually derived from base commit and target.
type Config struct {
	RedisURL string // redis://<user>:<password>@<host>:<port>/<db>
	Search   string
	Start    uint64
	Limit    uint64 // exclusive, 0 for none
	// TTL bounds how long the keys of an abandoned search live.
	TTL time.Duration
}

// Allocator implements search.Allocator and search.Finisher.
type Allocator struct {
	client    *redis.Client
	cursorKey string
	foundKey  string
	limit     uint64
	ttl       time.Duration
}

// NewAllocator connects and joins the search, creating its cursor at
// cfg.Start unless another host already did.
func NewAllocator(ctx context.Context, cfg Config) (*Allocator, error) {
	if cfg.Search == "" {
		return nil, fmt.Errorf("%w: cluster search id is empty", search.ErrConfiguration)
	}
	// INCRBY works on signed 64 bit integers
	if cfg.Start > math.MaxInt64 || cfg.Limit > math.MaxInt64 {
		return nil, fmt.Errorf("%w: cluster nonces must stay below %X", search.ErrConfiguration, uint64(math.MaxInt64))
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// fail fast
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	a := &Allocator{
		client:    client,
		cursorKey: keyPrefix + cfg.Search + ":cursor",
		foundKey:  keyPrefix + cfg.Search + ":found",
		limit:     cfg.Limit,
		ttl:       cfg.TTL,
	}
	if err := client.SetNX(ctx, a.cursorKey, strconv.FormatUint(cfg.Start, 10), cfg.TTL).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize shared cursor: %w", err)
	}
	return a, nil
}

// Reserve claims a block with one INCRBY. Once any host has announced a
// result it returns search.ErrExhausted so local workers wind down.
func (a *Allocator) Reserve(ctx context.Context, n uint64) (uint64, uint64, error) {
	if n == 0 {
		n = 1
	}
	found, err := a.client.Exists(ctx, a.foundKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis exists: %w", err)
	}
	if found > 0 {
		return 0, 0, search.ErrExhausted
	}

	end, err := a.client.IncrBy(ctx, a.cursorKey, int64(n)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incrby: %w", err)
	}
	first := uint64(end) - n
	if a.limit != 0 {
		if first >= a.limit {
			return 0, 0, search.ErrExhausted
		}
		n = min(n, a.limit-first)
	}
	return first, n, nil
}

// Finish announces res to the other hosts. Only the first announcement
// sticks.
func (a *Allocator) Finish(ctx context.Context, res *search.Result) error {
	val := strconv.FormatUint(res.Nonce, 16) + ":" + res.Digest.String()
	if err := a.client.SetNX(ctx, a.foundKey, val, a.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}

// Winner returns the result announced for this search, if any.
func (a *Allocator) Winner(ctx context.Context) (nonce uint64, digest types.Hash, ok bool, err error) {
	val, err := a.client.Get(ctx, a.foundKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, fmt.Errorf("redis get: %w", err)
	}
	hexNonce, id, cut := strings.Cut(val, ":")
	if !cut {
		return 0, "", false, fmt.Errorf("malformed result announcement %q", val)
	}
	nonce, err = strconv.ParseUint(hexNonce, 16, 64)
	if err != nil {
		return 0, "", false, fmt.Errorf("malformed result announcement %q: %w", val, err)
	}
	return nonce, types.Hash(id), true, nil
}

func (a *Allocator) Close() error { return a.client.Close() }
