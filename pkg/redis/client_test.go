package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/abarbet/shoply-backend/pkg/errors"
)

type mockCmdable struct {
	data        map[string]string
	counters    map[string]int64
	expireCalls map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:        make(map[string]string),
		counters:    make(map[string]int64),
		expireCalls: make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *goredis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	cmd := goredis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockCmdable) Get(ctx context.Context, key string) *goredis.StringCmd {
	cmd := goredis.NewStringCmd(ctx)
	val, ok := m.data[key]
	if !ok {
		cmd.SetErr(goredis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *goredis.BoolCmd {
	cmd := goredis.NewBoolCmd(ctx)
	if _, exists := m.data[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	m.data[key] = fmt.Sprint(value)
	cmd.SetVal(true)
	return cmd
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *goredis.IntCmd {
	m.counters[key]++
	m.data[key] = fmt.Sprint(m.counters[key])
	cmd := goredis.NewIntCmd(ctx)
	cmd.SetVal(m.counters[key])
	return cmd
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd {
	m.expireCalls[key] = expiration
	cmd := goredis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			delete(m.counters, key)
			removed++
		}
	}
	cmd := goredis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func (m *mockCmdable) Ping(ctx context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (m *mockCmdable) Close() error { return nil }

func TestFixedWindowAllow(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{rdb: mock}
	ctx := context.Background()

	key := RateLimitKey("login", "10.0.0.1")
	window := time.Minute

	for i := 0; i < 3; i++ {
		allowed, err := client.FixedWindowAllow(ctx, key, 3, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := client.FixedWindowAllow(ctx, key, 3, window)
	require.NoError(t, err)
	assert.False(t, allowed)

	// TTL is attached only on the call that creates the window.
	assert.Equal(t, window, mock.expireCalls[key])
	assert.Len(t, mock.expireCalls, 1)
}

func TestCacheVersionLifecycle(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{rdb: mock}
	ctx := context.Background()

	version, err := client.CacheVersion(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	bumped, err := client.BumpCacheVersion(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, int64(1), bumped)

	version, err = client.CacheVersion(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	before := CacheEntryKey("products", version, "page_1")
	require.NoError(t, client.Set(ctx, before, "payload", time.Minute))

	_, err = client.BumpCacheVersion(ctx, "products")
	require.NoError(t, err)

	version, err = client.CacheVersion(ctx, "products")
	require.NoError(t, err)
	after := CacheEntryKey("products", version, "page_1")
	assert.NotEqual(t, before, after)

	_, found, err := client.Get(ctx, after)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetNXAndDel(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{rdb: mock}
	ctx := context.Background()

	ok, err := client.SetNX(ctx, CounterKey("jobs"), "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, CounterKey("jobs"), "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Del(ctx, CounterKey("jobs")))

	_, found, err := client.Get(ctx, CounterKey("jobs"))
	require.NoError(t, err)
	assert.False(t, found)
}

type failingCmdable struct {
	*mockCmdable
	err error
}

func (f *failingCmdable) Get(ctx context.Context, key string) *goredis.StringCmd {
	cmd := goredis.NewStringCmd(ctx)
	cmd.SetErr(f.err)
	return cmd
}

func (f *failingCmdable) Incr(ctx context.Context, key string) *goredis.IntCmd {
	cmd := goredis.NewIntCmd(ctx)
	cmd.SetErr(f.err)
	return cmd
}

func TestErrorsCarryDependencyCode(t *testing.T) {
	boom := errors.New("connection refused")
	client := &Client{rdb: &failingCmdable{mockCmdable: newMockCmdable(), err: boom}}
	ctx := context.Background()

	_, _, err := client.Get(ctx, CounterKey("jobs"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.ErrorIs(t, err, boom)

	_, err = client.Incr(ctx, CounterKey("jobs"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.ErrorIs(t, err, boom)
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "shoply:rate_limit:login:10.0.0.1", RateLimitKey("login", "10.0.0.1"))
	assert.Equal(t, "shoply:counter:settled", CounterKey("settled"))
	assert.Equal(t, "shoply:cache:products:version", CacheVersionKey("products"))
	assert.Equal(t, "shoply:cache:products:v3:page_1", CacheEntryKey("products", 3, "page_1"))
}
