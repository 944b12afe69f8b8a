// Package memory is a map backed registry. Failures can be scripted per operation,
// which makes it the provider of choice for exercising the reaper without a server.
package memory

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/agentuity/session-reaper/registry"
	"github.com/cockroachdb/errors"
)

type session struct {
	created      int64
	lastAccessed int64
}

type application struct {
	id       registry.ApplicationID
	sessions map[string]*session
}

// Op names an operation whose failure can be scripted with Fail.
type Op string

const (
	OpPing       Op = "ping"
	OpQuery      Op = "query"
	OpList       Op = "list"
	OpTimestamp  Op = "timestamp"
	OpInvalidate Op = "invalidate"
)

// Invalidation records one successful InvalidateSession call.
type Invalidation struct {
	App       string
	SessionID string
}

// Registry is an in-memory registry.Provider.
type Registry struct {
	mu            sync.RWMutex
	apps          map[string]*application
	failures      map[Op]map[string]error
	invalidations []Invalidation
	calls         map[Op]int
}

var _ registry.Provider = (*Registry)(nil)

func New() *Registry {
	return &Registry{
		apps:     make(map[string]*application),
		failures: make(map[Op]map[string]error),
		calls:    make(map[Op]int),
	}
}

// AddApplication registers an application under its handle and name.
func (r *Registry) AddApplication(handle, name string) registry.ApplicationID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := registry.ApplicationID{Handle: handle, Name: name}
	if _, ok := r.apps[handle]; !ok {
		r.apps[handle] = &application{id: id, sessions: make(map[string]*session)}
	}
	return id
}

// Put creates or replaces a session of app.
func (r *Registry) Put(app registry.ApplicationID, sessionID string, created, lastAccessed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[app.Handle]
	if !ok {
		a = &application{id: app, sessions: make(map[string]*session)}
		r.apps[app.Handle] = a
	}
	a.sessions[sessionID] = &session{created: created, lastAccessed: lastAccessed}
}

// Touch moves the last access time of a session forward.
func (r *Registry) Touch(app registry.ApplicationID, sessionID string, lastAccessed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.apps[app.Handle]; ok {
		if s, ok := a.sessions[sessionID]; ok {
			s.lastAccessed = lastAccessed
		}
	}
}

// Fail makes op return err for key until cleared with a nil err. The key is the
// application handle for list, the session id for timestamp and invalidate, and
// ignored for ping and query.
func (r *Registry) Fail(op Op, key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures[op] == nil {
		r.failures[op] = make(map[string]error)
	}
	if err == nil {
		delete(r.failures[op], key)
		return
	}
	r.failures[op][key] = err
}

func (r *Registry) failure(op Op, key string) error {
	r.calls[op]++
	if m := r.failures[op]; m != nil {
		if err, ok := m[key]; ok {
			return err
		}
	}
	return nil
}

// Invalidations returns every successful invalidation in call order.
func (r *Registry) Invalidations() []Invalidation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Invalidation, len(r.invalidations))
	copy(out, r.invalidations)
	return out
}

// Calls returns how many times op was invoked.
func (r *Registry) Calls(op Op) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls[op]
}

// Has reports whether the session still exists.
func (r *Registry) Has(app registry.ApplicationID, sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[app.Handle]
	if !ok {
		return false
	}
	_, ok = a.sessions[sessionID]
	return ok
}

func (r *Registry) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure(OpPing, "")
}

// QueryApplications matches pattern against application names, without their leading
// slash, using path.Match globbing.
func (r *Registry) QueryApplications(ctx context.Context, pattern string) ([]registry.ApplicationID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure(OpQuery, ""); err != nil {
		return nil, registry.QueryError(err, "query %q", pattern)
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, registry.QueryError(err, "malformed pattern %q", pattern)
	}
	var result []registry.ApplicationID
	for _, a := range r.apps {
		if ok, _ := path.Match(pattern, strings.TrimPrefix(a.id.Name, "/")); ok {
			result = append(result, a.id)
		}
	}
	return result, nil
}

func (r *Registry) ListSessionIDs(ctx context.Context, app registry.ApplicationID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure(OpList, app.Handle); err != nil {
		return nil, registry.InvocationError(err, "listSessionIds on %s", app)
	}
	a, ok := r.apps[app.Handle]
	if !ok {
		return nil, registry.NotFoundError(app, "")
	}
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Registry) SessionTimestamp(ctx context.Context, app registry.ApplicationID, sessionID string, which registry.Timestamp) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure(OpTimestamp, sessionID); err != nil {
		return 0, registry.InvocationError(err, "%s timestamp of %s", which, sessionID)
	}
	s, err := r.lookup(app, sessionID)
	if err != nil {
		return 0, err
	}
	if which == registry.Created {
		return s.created, nil
	}
	return s.lastAccessed, nil
}

func (r *Registry) InvalidateSession(ctx context.Context, app registry.ApplicationID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure(OpInvalidate, sessionID); err != nil {
		return registry.InvocationError(err, "expireSession %s", sessionID)
	}
	if _, err := r.lookup(app, sessionID); err != nil {
		return err
	}
	delete(r.apps[app.Handle].sessions, sessionID)
	r.invalidations = append(r.invalidations, Invalidation{App: app.Handle, SessionID: sessionID})
	return nil
}

func (r *Registry) lookup(app registry.ApplicationID, sessionID string) (*session, error) {
	a, ok := r.apps[app.Handle]
	if !ok {
		return nil, registry.NotFoundError(app, "")
	}
	s, ok := a.sessions[sessionID]
	if !ok {
		return nil, registry.NotFoundError(app, sessionID)
	}
	return s, nil
}

// ErrUnavailable is a convenience error for scripted failures.
var ErrUnavailable = errors.New("registry unavailable")
