package valkey

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/geolayers/internal/core/ports"
)

var _ ports.VersionedCache = (*Cache)(nil)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Cache implements ports.CacheService using Valkey (Redis-compatible).
// Keys are namespaced with a prefix so several deployments can share a server.
type Cache struct {
	client valkey.Client
	prefix string
}

// New creates a new Valkey cache client.
func New(addr, prefix string) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client, prefix: prefix}, nil
}

func (c *Cache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Set stores a value with a TTL in seconds. A non-positive TTL stores the
// value without expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return c.client.Do(ctx, c.client.B().Set().Key(c.key(key)).Value(valkey.BinaryString(value)).Build()).Error()
	}
	cmd := c.client.Do(ctx,
		c.client.B().Set().Key(c.key(key)).Value(valkey.BinaryString(value)).Ex(time.Duration(ttlSeconds)*time.Second).Build(),
	)
	return cmd.Error()
}

// setIfNewerScript writes KEYS[1]=ARGV[1] and KEYS[2]=ARGV[2] unless the
// stored version in KEYS[2] is greater. Versions are fixed-width decimal
// strings so they compare lexicographically without Lua float rounding.
var setIfNewerScript = valkey.NewLuaScript(`
local cur = redis.call('GET', KEYS[2])
if cur and cur > ARGV[2] then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'EX', ttl)
  redis.call('SET', KEYS[2], ARGV[2], 'EX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1])
  redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// versionArg renders a version for setIfNewerScript. Negative versions sort
// as zero.
func versionArg(v int64) string {
	if v < 0 {
		v = 0
	}
	return fmt.Sprintf("%020d", v)
}

// SetIfNewer atomically stores value unless the key already holds a value
// with a greater version. It reports whether the value was written.
func (c *Cache) SetIfNewer(ctx context.Context, key string, value []byte, version int64, ttlSeconds int) (bool, error) {
	k := c.key(key)
	n, err := setIfNewerScript.Exec(ctx, c.client,
		[]string{k, k + ":version"},
		[]string{string(value), versionArg(version), strconv.Itoa(ttlSeconds)},
	).AsInt64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.key(key)).Build()).Error()
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
