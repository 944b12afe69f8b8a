package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/agentuity/session-reaper/logger"
	"github.com/agentuity/session-reaper/reaper"
	"github.com/agentuity/session-reaper/registry"
	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func app(name string) registry.ApplicationID {
	return registry.ApplicationID{Handle: name, Name: name}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := New(client, WithPrefix("tomcat:"))

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Save(ctx, app("shop"), "B", Record{Created: 1000, LastAccessed: 2000}, 0))
	require.NoError(t, s.Save(ctx, app("shop"), "A", Record{Created: 3000, LastAccessed: 4000}, time.Hour))

	assert.True(t, mr.Exists("tomcat:shop:sessions"))
	assert.True(t, mr.Exists("tomcat:shop:session:A"))

	ids, err := s.ListSessionIDs(ctx, app("shop"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids)

	created, err := s.SessionTimestamp(ctx, app("shop"), "B", registry.Created)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), created)
	last, err := s.SessionTimestamp(ctx, app("shop"), "B", registry.LastAccessed)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), last)

	require.NoError(t, s.InvalidateSession(ctx, app("shop"), "B"))
	assert.False(t, mr.Exists("tomcat:shop:session:B"))
	ids, err = s.ListSessionIDs(ctx, app("shop"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids)

	assert.True(t, registry.IsNotFound(s.InvalidateSession(ctx, app("shop"), "B")))
	_, err = s.SessionTimestamp(ctx, app("shop"), "B", registry.Created)
	assert.True(t, registry.IsNotFound(err))
}

func TestStoreQueryApplications(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := New(client)

	for _, name := range []string{"shop", "store", "manager", "blog"} {
		require.NoError(t, s.Save(ctx, app(name), "x", Record{}, 0))
	}
	require.NoError(t, client.Set(ctx, "sessions:unrelated", "1", 0).Err())

	apps, err := s.QueryApplications(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []registry.ApplicationID{app("shop"), app("store"), app("manager"), app("blog")}, apps)

	apps, err = s.QueryApplications(ctx, "s*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []registry.ApplicationID{app("shop"), app("store")}, apps)

	apps, err = registry.Discover(ctx, s, DefaultPattern, registry.DefaultDenylist)
	require.NoError(t, err)
	assert.Equal(t, []registry.ApplicationID{app("blog"), app("shop"), app("store")}, apps)
}

func TestStoreIgnoresRecordNamedSessions(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := New(client)

	require.NoError(t, s.Save(ctx, app("shop"), "sessions", Record{Created: 1, LastAccessed: 2}, 0))

	apps, err := s.QueryApplications(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []registry.ApplicationID{app("shop")}, apps)

	ids, err := s.ListSessionIDs(ctx, app("shop"))
	require.NoError(t, err)
	assert.Equal(t, []string{"sessions"}, ids)
}

func TestStorePrunesExpiredRecords(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := New(client)

	require.NoError(t, s.Save(ctx, app("shop"), "short", Record{Created: 1, LastAccessed: 2}, time.Minute))
	require.NoError(t, s.Save(ctx, app("shop"), "kept", Record{Created: 1, LastAccessed: 2}, 0))
	mr.FastForward(2 * time.Minute)

	ids, err := s.ListSessionIDs(ctx, app("shop"))
	require.NoError(t, err)
	assert.Equal(t, []string{"kept", "short"}, ids)

	_, err = s.SessionTimestamp(ctx, app("shop"), "short", registry.LastAccessed)
	assert.True(t, registry.IsNotFound(err))

	ids, err = s.ListSessionIDs(ctx, app("shop"))
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, ids)
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := New(client)

	require.NoError(t, client.Set(ctx, "sessions:shop:session:bad", "not msgpack \xc1", 0).Err())
	_, err := s.SessionTimestamp(ctx, app("shop"), "bad", registry.Created)
	assert.True(t, errors.Is(err, registry.ErrInvocation))

	mr.Close()
	_, err = s.QueryApplications(ctx, "*")
	assert.True(t, errors.Is(err, registry.ErrQuery))
	_, err = s.ListSessionIDs(ctx, app("shop"))
	assert.True(t, errors.Is(err, registry.ErrInvocation))
	assert.True(t, errors.Is(s.InvalidateSession(ctx, app("shop"), "x"), registry.ErrInvocation))
	assert.Error(t, s.Ping(ctx))
}

func TestReaperOverRedis(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := New(client)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ms := func(d time.Duration) int64 { return now.Add(d).UnixMilli() }
	require.NoError(t, s.Save(ctx, app("shop"), "idle", Record{Created: ms(-200 * time.Second), LastAccessed: ms(-199 * time.Second)}, 0))
	require.NoError(t, s.Save(ctx, app("shop"), "busy", Record{Created: ms(-300 * time.Second), LastAccessed: ms(-100 * time.Second)}, 0))

	apps, err := registry.Discover(ctx, s, DefaultPattern, registry.DefaultDenylist)
	require.NoError(t, err)
	r := reaper.New(logger.NewTestLogger(), s, apps, reaper.WithClock(func() time.Time { return now }, nil))
	res := r.Round(ctx)

	assert.Equal(t, 1, res.Invalidated)
	assert.Equal(t, 500*time.Second, res.NextWait)
	ids, err := s.ListSessionIDs(ctx, app("shop"))
	require.NoError(t, err)
	assert.Equal(t, []string{"busy"}, ids)
}
