package invalidation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/c360/schoolcache/cache"
)

// Report counts what one invalidation did.
type Report struct {
	// Removed is the number of targeted keys removed.
	Removed int `json:"removed"`
	// Cleared is the number of entries dropped by prefix and user clears.
	Cleared int `json:"cleared"`
}

// Invalidator applies rules to write events.
type Invalidator struct {
	cache  *cache.Manager
	logger *slog.Logger

	mu    sync.RWMutex
	rules map[Entity]Rule
}

// Option configures an Invalidator.
type Option func(*Invalidator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Invalidator) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithRules replaces the default rule set.
func WithRules(rules map[Entity]Rule) Option {
	return func(i *Invalidator) {
		i.rules = make(map[Entity]Rule, len(rules))
		for k, v := range rules {
			i.rules[k] = v
		}
	}
}

// New creates an Invalidator with DefaultRules.
func New(m *cache.Manager, opts ...Option) *Invalidator {
	i := &Invalidator{
		cache:  m,
		logger: slog.Default(),
		rules:  DefaultRules(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "invalidation")
	return i
}

// Register sets the rule for entity, replacing any previous one.
func (i *Invalidator) Register(entity Entity, rule Rule) {
	i.mu.Lock()
	i.rules[entity] = rule
	i.mu.Unlock()
}

func (i *Invalidator) rule(entity Entity) (Rule, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	r, ok := i.rules[entity]
	return r, ok
}

// Invalidate removes every entry ev could have made stale. Store faults are
// absorbed by the cache; an entity without a rule falls back to a per-user
// clear, or a school clear when the event carries no user.
func (i *Invalidator) Invalidate(ctx context.Context, ev Event) Report {
	var report Report

	rule, ok := i.rule(ev.Entity)
	if !ok {
		i.logger.Warn("no invalidation rule, clearing user cache", "entity", ev.Entity)
		rule = Rule{ClearUser: true}
	}

	keys := append([]string(nil), ev.Keys...)
	if rule.Keys != nil {
		keys = append(keys, rule.Keys(ev)...)
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		i.cache.Remove(ctx, k, ev.Scope)
		report.Removed++
	}

	for _, p := range rule.Prefixes {
		report.Cleared += i.cache.ClearPattern(ctx, p, cache.Scope{SchoolID: ev.Scope.SchoolID})
	}

	if rule.ClearUser {
		switch {
		case ev.Scope.UserID != "":
			report.Cleared += i.cache.ClearUserCache(ctx, ev.Scope.UserID)
		case len(rule.Prefixes) == 0:
			// no user to scope the clear to; an empty school clears the namespace
			i.logger.Warn("event has no user, clearing school scope",
				"entity", ev.Entity, "action", ev.Action, "school_id", ev.Scope.SchoolID)
			report.Cleared += i.cache.ClearPattern(ctx, "", cache.Scope{SchoolID: ev.Scope.SchoolID})
		}
	}

	i.logger.Debug("invalidated", "entity", ev.Entity, "action", ev.Action, "id", ev.EntityID,
		"removed", report.Removed, "cleared", report.Cleared)
	return report
}

// Write runs write and, only if it succeeds, invalidates for ev before
// returning. A failed write invalidates nothing.
func Write[T any](ctx context.Context, inv *Invalidator, ev Event, write func(context.Context) (T, error)) (T, error) {
	result, err := write(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	inv.Invalidate(ctx, ev)
	return result, nil
}
