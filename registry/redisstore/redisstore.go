// Package redisstore reads sessions that an application server keeps in Redis.
//
// Every application owns a set of session ids at <prefix>:<app>:sessions and one
// msgpack encoded record per session at <prefix>:<app>:session:<id>.
package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agentuity/session-reaper/registry"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	DefaultPrefix  = "sessions"
	DefaultPattern = "*"
	scanBatch      = 100
)

// Record is the stored form of a session.
type Record struct {
	Created      int64 `msgpack:"created"`
	LastAccessed int64 `msgpack:"lastAccessed"`
}

type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ registry.Provider = (*Store)(nil)

type Option func(*Store)

// WithPrefix sets the key prefix shared by every application.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.TrimSuffix(prefix, ":")
	}
}

// New returns a registry backed by rdb. The caller owns the client lifecycle.
func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) sessionsKey(app string) string {
	return fmt.Sprintf("%s:%s:sessions", s.prefix, app)
}

func (s *Store) recordKey(app, id string) string {
	return fmt.Sprintf("%s:%s:session:%s", s.prefix, app, id)
}

func (s *Store) application(key string) (registry.ApplicationID, bool) {
	head := s.prefix + ":"
	if !strings.HasPrefix(key, head) || !strings.HasSuffix(key, ":sessions") {
		return registry.ApplicationID{}, false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(key, head), ":sessions")
	if name == "" {
		return registry.ApplicationID{}, false
	}
	return registry.ApplicationID{Handle: name, Name: name}, true
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// QueryApplications scans for session sets whose application matches the Redis glob
// pattern. Only set keys are considered, so a record of a session literally named
// "sessions" is never mistaken for an application.
func (s *Store) QueryApplications(ctx context.Context, pattern string) ([]registry.ApplicationID, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	match := s.sessionsKey(pattern)
	var cursor uint64
	var apps []registry.ApplicationID
	for {
		keys, next, err := s.rdb.ScanType(ctx, cursor, match, scanBatch, "set").Result()
		if err != nil {
			return nil, registry.QueryError(err, "scan %s", match)
		}
		for _, key := range keys {
			if app, ok := s.application(key); ok {
				apps = append(apps, app)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return apps, nil
}

func (s *Store) ListSessionIDs(ctx context.Context, app registry.ApplicationID) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.sessionsKey(app.Handle)).Result()
	if err != nil {
		return nil, registry.InvocationError(err, "list sessions of %s", app)
	}
	sort.Strings(ids)
	return ids, nil
}

// record reads one session. A record that expired through its ttl leaves its id behind
// in the session set; that id is removed here so it is not listed again.
func (s *Store) record(ctx context.Context, app registry.ApplicationID, id string) (Record, error) {
	var rec Record
	data, err := s.rdb.Get(ctx, s.recordKey(app.Handle, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		if err := s.rdb.SRem(ctx, s.sessionsKey(app.Handle), id).Err(); err != nil {
			return rec, registry.InvocationError(err, "prune session %s of %s", id, app)
		}
		return rec, registry.NotFoundError(app, id)
	}
	if err != nil {
		return rec, registry.InvocationError(err, "read session %s of %s", id, app)
	}
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return rec, registry.InvocationError(err, "decode session %s of %s", id, app)
	}
	return rec, nil
}

func (s *Store) SessionTimestamp(ctx context.Context, app registry.ApplicationID, sessionID string, which registry.Timestamp) (int64, error) {
	rec, err := s.record(ctx, app, sessionID)
	if err != nil {
		return 0, err
	}
	if which == registry.Created {
		return rec.Created, nil
	}
	return rec.LastAccessed, nil
}

// InvalidateSession deletes the record and its set membership atomically.
func (s *Store) InvalidateSession(ctx context.Context, app registry.ApplicationID, sessionID string) error {
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, s.recordKey(app.Handle, sessionID))
	pipe.SRem(ctx, s.sessionsKey(app.Handle), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return registry.InvocationError(err, "expire session %s of %s", sessionID, app)
	}
	if del.Val() == 0 {
		return registry.NotFoundError(app, sessionID)
	}
	return nil
}

// Save writes a session the way the application server does. A positive ttl bounds the
// lifetime of the record as a safety net should the reaper not run.
func (s *Store) Save(ctx context.Context, app registry.ApplicationID, sessionID string, rec Record, ttl time.Duration) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.recordKey(app.Handle, sessionID), data, ttl)
	pipe.SAdd(ctx, s.sessionsKey(app.Handle), sessionID)
	_, err = pipe.Exec(ctx)
	return errors.Wrapf(err, "save session %s of %s", sessionID, app)
}
