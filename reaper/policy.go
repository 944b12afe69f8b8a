package reaper

import (
	"time"

	"github.com/cockroachdb/errors"
)

const (
	DefaultUsedTimeCutoff         = 5 * time.Second
	DefaultShortInactiveThreshold = 120 * time.Second
	DefaultLongInactiveThreshold  = 600 * time.Second
)

// Policy decides when an idle session is expired. Sessions used for less than
// UsedTimeCutoff are treated as single page views and expire after
// ShortInactiveThreshold of inactivity, everything else after LongInactiveThreshold.
type Policy struct {
	UsedTimeCutoff         time.Duration
	ShortInactiveThreshold time.Duration
	LongInactiveThreshold  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		UsedTimeCutoff:         DefaultUsedTimeCutoff,
		ShortInactiveThreshold: DefaultShortInactiveThreshold,
		LongInactiveThreshold:  DefaultLongInactiveThreshold,
	}
}

func (p Policy) Validate() error {
	if p.UsedTimeCutoff < 0 {
		return errors.Newf("used time cutoff must not be negative, got %s", p.UsedTimeCutoff)
	}
	if p.ShortInactiveThreshold <= 0 {
		return errors.Newf("short inactive threshold must be positive, got %s", p.ShortInactiveThreshold)
	}
	if p.LongInactiveThreshold <= 0 {
		return errors.Newf("long inactive threshold must be positive, got %s", p.LongInactiveThreshold)
	}
	return nil
}

// Class is the usage category of a session.
type Class int

const (
	SinglePageView Class = iota
	MultiRequest
)

func (c Class) String() string {
	if c == SinglePageView {
		return "single page view"
	}
	return "multi request"
}

// Decision is the outcome of evaluating one session. When Invalidate is false, Wait is
// the time left until the session reaches its threshold and is always positive.
type Decision struct {
	Class      Class
	Used       time.Duration
	Inactive   time.Duration
	Threshold  time.Duration
	Invalidate bool
	Wait       time.Duration
}

func (d Decision) String() string {
	if d.Invalidate {
		return "expire"
	}
	return "wait " + FormatDuration(d.Wait)
}

// Evaluate classifies s at now. Used and inactive times are truncated to whole seconds
// before comparison.
func (p Policy) Evaluate(s Session, now time.Time) Decision {
	d := Decision{
		Used:     s.UsedTime().Truncate(time.Second),
		Inactive: s.InactiveTime(now).Truncate(time.Second),
	}
	if d.Used < p.UsedTimeCutoff {
		d.Class = SinglePageView
		d.Threshold = p.ShortInactiveThreshold
	} else {
		d.Class = MultiRequest
		d.Threshold = p.LongInactiveThreshold
	}
	if d.Inactive >= d.Threshold {
		d.Invalidate = true
		return d
	}
	d.Wait = d.Threshold - d.Inactive
	return d
}
