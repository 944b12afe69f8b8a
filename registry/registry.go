// Package registry describes the management interface the reaper talks to: something
// that can enumerate deployed applications, list their sessions, read session
// timestamps and invalidate sessions.
package registry

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrQuery is returned when application discovery fails, either because the
	// pattern is malformed or the registry could not be reached.
	ErrQuery = errors.New("registry query failed")
	// ErrInvocation is returned when a remote operation on an application fails.
	ErrInvocation = errors.New("registry invocation failed")
	// ErrInstanceNotFound is returned when the application or session no longer exists.
	ErrInstanceNotFound = errors.New("registry instance not found")
)

// Timestamp selects which session timestamp to read.
type Timestamp int

const (
	Created Timestamp = iota
	LastAccessed
)

func (t Timestamp) String() string {
	if t == Created {
		return "created"
	}
	return "lastAccessed"
}

// ApplicationID identifies a deployed application. Handle is the provider specific
// address (an MBean object name, a key prefix) and Name the application name used for
// filtering and display.
type ApplicationID struct {
	Handle string
	Name   string
}

func (a ApplicationID) String() string {
	if a.Name == "" {
		return a.Handle
	}
	return a.Name
}

// Provider is the management interface. Implementations hold one long lived
// connection and are not required to be safe for concurrent use.
type Provider interface {
	// Ping verifies the registry is reachable.
	Ping(ctx context.Context) error
	// QueryApplications returns every application matching pattern.
	QueryApplications(ctx context.Context, pattern string) ([]ApplicationID, error)
	// ListSessionIDs returns the active session ids of app; an empty slice means no sessions.
	ListSessionIDs(ctx context.Context, app ApplicationID) ([]string, error)
	// SessionTimestamp returns the requested timestamp in epoch milliseconds.
	SessionTimestamp(ctx context.Context, app ApplicationID, sessionID string, which Timestamp) (int64, error)
	// InvalidateSession forces the session to expire.
	InvalidateSession(ctx context.Context, app ApplicationID, sessionID string) error
}

// QueryError marks err as a discovery failure.
func QueryError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrQuery)
}

// InvocationError marks err as a failed remote operation.
func InvocationError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrInvocation)
}

// NotFoundError reports a missing application or session.
func NotFoundError(app ApplicationID, sessionID string) error {
	if sessionID == "" {
		return errors.Wrapf(ErrInstanceNotFound, "application %s", app)
	}
	return errors.Wrapf(ErrInstanceNotFound, "session %s of %s", sessionID, app)
}

// IsNotFound reports whether err means the instance vanished.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

