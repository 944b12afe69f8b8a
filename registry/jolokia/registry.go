package jolokia

import (
	"context"
	"strings"

	"github.com/agentuity/session-reaper/registry"
	"github.com/cockroachdb/errors"
)

// DefaultPattern matches the session manager bean of every web application on the
// local virtual host of a Tomcat server.
const DefaultPattern = "Catalina:type=Manager,host=localhost,context=*"

const (
	opListSessionIDs = "listSessionIds"
	opCreated        = "getCreationTimestamp(java.lang.String)"
	opLastAccessed   = "getLastAccessedTimestamp(java.lang.String)"
	opExpire         = "expireSession(java.lang.String)"
)

// Registry exposes Tomcat session managers as a registry.Provider.
type Registry struct {
	client *Client
}

var _ registry.Provider = (*Registry)(nil)

func NewRegistry(client *Client) *Registry {
	return &Registry{client: client}
}

func (r *Registry) Ping(ctx context.Context) error {
	_, err := r.client.AgentVersion(ctx)
	return err
}

func (r *Registry) QueryApplications(ctx context.Context, pattern string) ([]registry.ApplicationID, error) {
	names, err := r.client.Search(ctx, pattern)
	if err != nil {
		return nil, registry.QueryError(err, "search %s", pattern)
	}
	apps := make([]registry.ApplicationID, 0, len(names))
	for _, name := range names {
		on, err := ParseObjectName(name)
		if err != nil {
			return nil, registry.QueryError(err, "search %s", pattern)
		}
		apps = append(apps, registry.ApplicationID{Handle: name, Name: on.Application()})
	}
	return apps, nil
}

func (r *Registry) invocationError(err error, app registry.ApplicationID, sessionID, op string) error {
	var jerr *Error
	if errors.As(err, &jerr) && jerr.NotFound() {
		return registry.NotFoundError(app, sessionID)
	}
	return registry.InvocationError(err, "%s on %s", op, app)
}

// ListSessionIDs splits the space separated id list returned by the manager bean.
func (r *Registry) ListSessionIDs(ctx context.Context, app registry.ApplicationID) ([]string, error) {
	var ids *string
	if err := r.client.Exec(ctx, app.Handle, opListSessionIDs, &ids); err != nil {
		return nil, r.invocationError(err, app, "", opListSessionIDs)
	}
	if ids == nil {
		return []string{}, nil
	}
	return strings.Fields(*ids), nil
}

// SessionTimestamp returns ErrInstanceNotFound when the manager answers -1, which it
// does for a session that expired since it was listed.
func (r *Registry) SessionTimestamp(ctx context.Context, app registry.ApplicationID, sessionID string, which registry.Timestamp) (int64, error) {
	op := opCreated
	if which == registry.LastAccessed {
		op = opLastAccessed
	}
	var ts int64
	if err := r.client.Exec(ctx, app.Handle, op, &ts, sessionID); err != nil {
		return 0, r.invocationError(err, app, sessionID, op)
	}
	if ts < 0 {
		return 0, registry.NotFoundError(app, sessionID)
	}
	return ts, nil
}

func (r *Registry) InvalidateSession(ctx context.Context, app registry.ApplicationID, sessionID string) error {
	if err := r.client.Exec(ctx, app.Handle, opExpire, nil, sessionID); err != nil {
		return r.invocationError(err, app, sessionID, opExpire)
	}
	return nil
}
