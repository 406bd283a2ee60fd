package cache

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Observer receives cache events. Implementations must be safe for
// concurrent use.
type Observer interface {
	CacheHit(tag Tag)
	CacheMiss(tag Tag)
	CacheError(op string, err error)
	CacheInvalidated(tags []Tag, deleted int)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) CacheHit(Tag)                {}
func (NopObserver) CacheMiss(Tag)               {}
func (NopObserver) CacheError(string, error)    {}
func (NopObserver) CacheInvalidated([]Tag, int) {}

// Observers fans events out to several observers.
type Observers []Observer

func (o Observers) CacheHit(tag Tag) {
	for _, obs := range o {
		obs.CacheHit(tag)
	}
}

func (o Observers) CacheMiss(tag Tag) {
	for _, obs := range o {
		obs.CacheMiss(tag)
	}
}

func (o Observers) CacheError(op string, err error) {
	for _, obs := range o {
		obs.CacheError(op, err)
	}
}

func (o Observers) CacheInvalidated(tags []Tag, deleted int) {
	for _, obs := range o {
		obs.CacheInvalidated(tags, deleted)
	}
}

// Stats counts cache events in process. Useful in tests and for a quick
// health readout.
type Stats struct {
	hits          [tagCount]*xsync.Counter
	misses        [tagCount]*xsync.Counter
	errors        *xsync.Counter
	invalidations *xsync.Counter
	deleted       *xsync.Counter
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	s := &Stats{
		errors:        xsync.NewCounter(),
		invalidations: xsync.NewCounter(),
		deleted:       xsync.NewCounter(),
	}
	for i := range s.hits {
		s.hits[i] = xsync.NewCounter()
		s.misses[i] = xsync.NewCounter()
	}
	return s
}

func (s *Stats) CacheHit(tag Tag) {
	if tag.valid() {
		s.hits[tag].Inc()
	}
}

func (s *Stats) CacheMiss(tag Tag) {
	if tag.valid() {
		s.misses[tag].Inc()
	}
}

func (s *Stats) CacheError(string, error) {
	s.errors.Inc()
}

func (s *Stats) CacheInvalidated(_ []Tag, deleted int) {
	s.invalidations.Inc()
	s.deleted.Add(int64(deleted))
}

// Hits returns the hit count for tag.
func (s *Stats) Hits(tag Tag) int64 {
	if !tag.valid() {
		return 0
	}
	return s.hits[tag].Value()
}

// Misses returns the miss count for tag.
func (s *Stats) Misses(tag Tag) int64 {
	if !tag.valid() {
		return 0
	}
	return s.misses[tag].Value()
}

// Errors returns the number of degraded operations.
func (s *Stats) Errors() int64 { return s.errors.Value() }

// Invalidations returns the number of applied invalidation plans.
func (s *Stats) Invalidations() int64 { return s.invalidations.Value() }

// Deleted returns the number of keys removed by invalidations.
func (s *Stats) Deleted() int64 { return s.deleted.Value() }
