// Package reaper expires idle sessions. Every round it re-reads all sessions of the
// configured applications, invalidates those past their inactivity threshold and then
// sleeps until the session that needs the longest wait becomes eligible.
package reaper

import (
	"context"
	"time"

	"github.com/agentuity/session-reaper/logger"
	"github.com/agentuity/session-reaper/registry"
)

// Reaper runs expiry rounds over a fixed set of applications.
type Reaper struct {
	provider registry.Provider
	apps     []registry.ApplicationID
	policy   Policy
	logger   logger.Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	wake     <-chan struct{}
}

type Option func(*Reaper)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(r *Reaper) {
		r.policy = p
	}
}

// WithClock replaces time.Now and time.After, mostly for tests.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(r *Reaper) {
		if now != nil {
			r.now = now
		}
		if after != nil {
			r.after = after
		}
	}
}

// WithWake ends the inter-round sleep early whenever wake receives.
func WithWake(wake <-chan struct{}) Option {
	return func(r *Reaper) {
		r.wake = wake
	}
}

func New(log logger.Logger, provider registry.Provider, apps []registry.ApplicationID, opts ...Option) *Reaper {
	r := &Reaper{
		provider: provider,
		apps:     apps,
		policy:   DefaultPolicy(),
		logger:   log,
		now:      time.Now,
		after:    time.After,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RoundResult summarises one round.
type RoundResult struct {
	Applications int
	Sessions     int
	Invalidated  int
	// Skipped counts sessions whose timestamps could not be read.
	Skipped int
	// Failed counts invalidation calls the registry rejected.
	Failed   int
	NextWait time.Duration
}

// Report pairs a session with its decision.
type Report struct {
	Session  Session
	Decision Decision
}

// walk hands fn each evaluated session together with a logger scoped to its application.
func (r *Reaper) walk(ctx context.Context, res *RoundResult, fn func(log logger.Logger, s Session, d Decision)) {
	for _, app := range r.apps {
		if ctx.Err() != nil {
			return
		}
		log := r.logger.With(map[string]interface{}{"app": app.String()})
		log.Info("Processing sessions for %s", app.Handle)
		ids, err := r.provider.ListSessionIDs(ctx, app)
		if err != nil {
			log.Error("error getting session ids: %v", err)
			continue
		}
		res.Applications++
		if len(ids) == 0 {
			log.Debug("no sessions found")
			continue
		}
		for _, id := range ids {
			s, err := LoadSession(ctx, r.provider, app, id)
			if err != nil {
				res.Skipped++
				if registry.IsNotFound(err) {
					log.Debug("session %s disappeared before it could be read", id)
				} else {
					log.Error("error reading timestamps of session %s, skipping it this round: %v", id, err)
				}
				continue
			}
			now := r.now()
			d := r.policy.Evaluate(s, now)
			res.Sessions++
			if r.logger.IsLevelEnabled(logger.LevelDebug) {
				log.Debug("session %s created=%s lastAccessed=%s used=%s inactive=%s class=%s",
					id,
					s.Created().UTC().Format(time.RFC3339),
					s.LastAccessed().UTC().Format(time.RFC3339),
					FormatDuration(s.UsedTime()),
					FormatDuration(s.InactiveTime(now)),
					d.Class,
				)
			}
			if s.UsedTime() < 0 {
				log.Warn("session %s was last accessed %s before it was created", id, FormatDuration(-s.UsedTime()))
			}
			fn(log, s, d)
		}
	}
}

// Round evaluates every session once, invalidating the expired ones. NextWait is the
// largest remaining time of the sessions that were left alone, zero when none were.
func (r *Reaper) Round(ctx context.Context) RoundResult {
	var res RoundResult
	r.walk(ctx, &res, func(log logger.Logger, s Session, d Decision) {
		if d.Invalidate {
			if err := r.provider.InvalidateSession(ctx, s.App, s.ID); err != nil {
				res.Failed++
				log.Error("error invalidating session %s of %s: %v", s.ID, s.App, err)
				return
			}
			res.Invalidated++
			log.Debug("invalidated session %s of %s after %s inactive", s.ID, s.App, FormatDuration(d.Inactive))
			return
		}
		if d.Wait > res.NextWait {
			res.NextWait = d.Wait
		}
	})
	return res
}

// Inspect evaluates every session without invalidating anything.
func (r *Reaper) Inspect(ctx context.Context) ([]Report, RoundResult) {
	var res RoundResult
	var reports []Report
	r.walk(ctx, &res, func(_ logger.Logger, s Session, d Decision) {
		reports = append(reports, Report{Session: s, Decision: d})
		if !d.Invalidate && d.Wait > res.NextWait {
			res.NextWait = d.Wait
		}
	})
	return reports, res
}

// Run repeats rounds until a round leaves nothing to wait for. It returns the number
// of rounds run and ctx.Err() if the context is cancelled first.
func (r *Reaper) Run(ctx context.Context) (int, error) {
	var rounds int
	for {
		if err := ctx.Err(); err != nil {
			return rounds, err
		}
		res := r.Round(ctx)
		rounds++
		if err := ctx.Err(); err != nil {
			return rounds, err
		}
		r.logger.Info("round %d: %d applications, %d sessions, %d invalidated, %d skipped, %d failed, next check in %s",
			rounds, res.Applications, res.Sessions, res.Invalidated, res.Skipped, res.Failed, FormatDuration(res.NextWait))
		if res.NextWait == 0 {
			r.logger.Info("Sessions expired")
			return rounds, nil
		}
		if err := r.sleep(ctx, res.NextWait); err != nil {
			return rounds, err
		}
	}
}

func (r *Reaper) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.wake:
		r.logger.Info("woken up early, re-checking sessions")
		return nil
	case <-r.after(d):
		return nil
	}
}
