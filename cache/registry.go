package cache

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Registry maps each tag to the key prefixes it owns. By default a tag owns
// exactly "{tag}_".
type Registry struct {
	mu       sync.RWMutex
	prefixes map[Tag][]Prefix
}

// NewRegistry returns a registry with the default prefix for every tag.
func NewRegistry() *Registry {
	r := &Registry{prefixes: make(map[Tag][]Prefix, tagCount)}
	for _, t := range Tags() {
		r.prefixes[t] = []Prefix{t.Prefix()}
	}
	return r
}

// Register adds extra prefixes to tag. Prefixes owned by another tag keep
// bumping that tag's epoch when they are invalidated.
func (r *Registry) Register(tag Tag, prefixes ...Prefix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[tag] = append(r.prefixes[tag], prefixes...)
}

// Prefixes returns the prefixes owned by tag.
func (r *Registry) Prefixes(tag Tag) []Prefix {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Prefix(nil), r.prefixes[tag]...)
}

// Plan describes a batch of invalidations: whole tags, prefixes and exact keys.
type Plan struct {
	Tags     []Tag
	Prefixes []Prefix
	Keys     []Key
}

// IsEmpty reports whether the plan would delete nothing.
func (p Plan) IsEmpty() bool {
	return len(p.Tags) == 0 && len(p.Prefixes) == 0 && len(p.Keys) == 0
}

// Merge returns the union of both plans.
func (p Plan) Merge(other Plan) Plan {
	return Plan{
		Tags:     append(append([]Tag(nil), p.Tags...), other.Tags...),
		Prefixes: append(append([]Prefix(nil), p.Prefixes...), other.Prefixes...),
		Keys:     append(append([]Key(nil), p.Keys...), other.Keys...),
	}
}

// resolve expands tags through the registry and drops every prefix or key
// already covered by a shorter prefix.
func (p Plan) resolve(r *Registry) ([]Prefix, []Key) {
	var prefixes []Prefix
	for _, t := range p.Tags {
		prefixes = append(prefixes, r.Prefixes(t)...)
	}
	prefixes = append(prefixes, p.Prefixes...)

	sort.SliceStable(prefixes, func(i, j int) bool {
		return len(prefixes[i].Value) < len(prefixes[j].Value)
	})

	var kept []Prefix
	for _, candidate := range prefixes {
		if coveredBy(kept, candidate.Value) {
			continue
		}
		kept = append(kept, candidate)
	}

	seen := make(map[string]struct{}, len(p.Keys))
	var keys []Key
	for _, k := range p.Keys {
		if _, dup := seen[k.Name]; dup || coveredBy(kept, k.Name) {
			continue
		}
		seen[k.Name] = struct{}{}
		keys = append(keys, k)
	}
	return kept, keys
}

func coveredBy(prefixes []Prefix, s string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p.Value) {
			return true
		}
	}
	return false
}

// Invalidator is the write side of the cache as seen by mutating code.
// *Service implements it.
type Invalidator interface {
	Invalidate(ctx context.Context, tag Tag) (int, error)
	InvalidateMany(ctx context.Context, tags ...Tag) (int, error)
	InvalidateKeys(ctx context.Context, keys ...Key) (int, error)
	Apply(ctx context.Context, plan Plan) (int, error)
}

var _ Invalidator = (*Service)(nil)

// Invalidate deletes every entry owned by tag.
func (s *Service) Invalidate(ctx context.Context, tag Tag) (int, error) {
	return s.Apply(ctx, Plan{Tags: []Tag{tag}})
}

// InvalidateMany deletes the entries of several tags in one pass.
func (s *Service) InvalidateMany(ctx context.Context, tags ...Tag) (int, error) {
	return s.Apply(ctx, Plan{Tags: tags})
}

// InvalidateKeys deletes exact keys.
func (s *Service) InvalidateKeys(ctx context.Context, keys ...Key) (int, error) {
	return s.Apply(ctx, Plan{Keys: keys})
}

// Apply executes plan. Epochs of every touched tag are bumped before any
// delete so concurrent read-throughs started earlier do not write back.
// Failures are logged and returned; the deletes that did succeed stand.
func (s *Service) Apply(ctx context.Context, plan Plan) (int, error) {
	if plan.IsEmpty() {
		return 0, nil
	}
	prefixes, keys := plan.resolve(s.registry)

	touched := make(map[Tag]struct{})
	for _, p := range prefixes {
		touched[p.Tag] = struct{}{}
	}
	for _, k := range keys {
		touched[k.Tag] = struct{}{}
	}
	for t := range touched {
		s.bump(t)
	}

	var (
		total  int
		result *multierror.Error
	)

	if len(prefixes) > 0 {
		n, err := s.deletePrefixes(ctx, prefixes)
		total += n
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	if len(keys) > 0 {
		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, k.Name)
		}
		n, err := s.store.Delete(ctx, names...)
		total += n
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	s.observer.CacheInvalidated(sortedTags(touched), total)

	if err := result.ErrorOrNil(); err != nil {
		s.observer.CacheError("invalidate", err)
		s.logger.Warn("cache invalidation incomplete",
			zap.Int("deleted", total),
			zap.Error(err),
		)
		return total, err
	}

	s.logger.Debug("cache invalidated",
		zap.Int("prefixes", len(prefixes)),
		zap.Int("keys", len(keys)),
		zap.Int("deleted", total),
	)
	return total, nil
}

func (s *Service) deletePrefixes(ctx context.Context, prefixes []Prefix) (int, error) {
	values := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		values = append(values, p.Value)
	}

	if multi, ok := s.store.(MultiPrefixDeleter); ok {
		return multi.DeleteByPrefixes(ctx, values)
	}

	var (
		total  int
		result *multierror.Error
	)
	for _, v := range values {
		n, err := s.store.DeleteByPrefix(ctx, v)
		total += n
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return total, result.ErrorOrNil()
}

func sortedTags(set map[Tag]struct{}) []Tag {
	out := make([]Tag, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
