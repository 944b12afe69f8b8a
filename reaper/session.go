package reaper

import (
	"context"
	"time"

	"github.com/agentuity/session-reaper/registry"
)

// Session is a point in time view of one registry session. It is rebuilt every round
// and never cached.
type Session struct {
	App registry.ApplicationID
	ID  string
	// CreationTime and LastAccessedTime are epoch milliseconds as reported by the registry.
	CreationTime     int64
	LastAccessedTime int64
}

// LoadSession reads both timestamps of a session. Any failure is returned as is so the
// caller can skip the session for the current round.
func LoadSession(ctx context.Context, p registry.Provider, app registry.ApplicationID, id string) (Session, error) {
	created, err := p.SessionTimestamp(ctx, app, id, registry.Created)
	if err != nil {
		return Session{}, err
	}
	lastAccessed, err := p.SessionTimestamp(ctx, app, id, registry.LastAccessed)
	if err != nil {
		return Session{}, err
	}
	return Session{App: app, ID: id, CreationTime: created, LastAccessedTime: lastAccessed}, nil
}

func (s Session) Created() time.Time {
	return time.UnixMilli(s.CreationTime)
}

func (s Session) LastAccessed() time.Time {
	return time.UnixMilli(s.LastAccessedTime)
}

// UsedTime is how long the session was in use before it went idle. It is negative when
// the registry reports a last access before the creation time.
func (s Session) UsedTime() time.Duration {
	return time.Duration(s.LastAccessedTime-s.CreationTime) * time.Millisecond
}

// InactiveTime is how long ago the session was last accessed.
func (s Session) InactiveTime(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-s.LastAccessedTime) * time.Millisecond
}
