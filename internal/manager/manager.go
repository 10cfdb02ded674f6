// Package manager implements the rule management workflow: fetch an owner's
// collection, validate a change, submit the whole collection as a
// replacement and report what the networking API actually changed.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"grimm.is/policyctl/internal/logging"
	"grimm.is/policyctl/internal/metrics"
	"grimm.is/policyctl/internal/rules"
)

// maxFanOut bounds concurrent ListRules calls in UsedPriorities.
const maxFanOut = 8

// Manager coordinates a rules.Store with validation and reporting.
type Manager struct {
	store     rules.Store
	validator rules.Validator
	logger    *logging.Logger
	metrics   *metrics.Registry
}

// Option configures a Manager.
type Option func(*Manager)

// WithValidator replaces the default validator.
func WithValidator(v rules.Validator) Option {
	return func(m *Manager) {
		m.validator = v
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics records operation metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// New creates a Manager over store.
func New(store rules.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		validator: rules.NewValidator(),
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("manager")
	return m
}

// List fetches the owner's current collection.
func (m *Manager) List(ctx context.Context, owner rules.Owner) (rules.Collection, error) {
	rs, err := m.list(ctx, owner)
	m.metrics.RecordOperation("list", string(owner.Kind), err)
	if err != nil {
		return rules.Collection{}, err
	}
	return rules.Collection{Owner: owner, Rules: rs}, nil
}

// AddRule validates candidate against the owner's collection, places it
// first, and replaces the collection.
func (m *Manager) AddRule(ctx context.Context, owner rules.Owner, candidate rules.Rule) (*Report, error) {
	rep, err := m.addRule(ctx, owner, candidate)
	m.metrics.RecordOperation("add", string(owner.Kind), err)
	return rep, err
}

func (m *Manager) addRule(ctx context.Context, owner rules.Owner, candidate rules.Rule) (*Report, error) {
	current, err := m.list(ctx, owner)
	if err != nil {
		return nil, err
	}
	coll := rules.Collection{Owner: owner, Rules: current}

	r, err := m.validator.Validate(candidate, coll.Priorities())
	if err != nil {
		m.metrics.RecordValidationFailure(rules.ErrorKind(err))
		m.logger.Warn("rule rejected", "owner", owner.String(), "rule", candidate.String(), "error", err)
		return nil, fmt.Errorf("invalid rule for %s: %w", owner, err)
	}

	return m.replace(ctx, "add", coll.With(r), current)
}

// RemoveRule drops the rule identified by key ("<priority>_<ownerID>") from
// the owner's collection. A key that matches nothing leaves the collection
// untouched and reports no change.
func (m *Manager) RemoveRule(ctx context.Context, kind rules.OwnerKind, key string) (*Report, error) {
	rep, err := m.removeRule(ctx, kind, key)
	m.metrics.RecordOperation("remove", string(kind), err)
	return rep, err
}

func (m *Manager) removeRule(ctx context.Context, kind rules.OwnerKind, key string) (*Report, error) {
	priority, ownerID, err := rules.ParseKey(key)
	if err != nil {
		return nil, err
	}
	owner := rules.Owner{Kind: kind, ID: ownerID}

	current, err := m.list(ctx, owner)
	if err != nil {
		return nil, err
	}
	coll := rules.Collection{Owner: owner, Rules: current}

	if _, ok := coll.Find(priority); !ok {
		m.logger.Warn("rule not found", "owner", owner.String(), "priority", priority)
		return NewReport(owner, current, current), nil
	}
	return m.replace(ctx, "remove", coll.Without(priority), current)
}

// Apply replaces the owner's collection with coll after validating every
// rule. Priorities must be explicit and unique within coll.
func (m *Manager) Apply(ctx context.Context, coll rules.Collection) (*Report, error) {
	rep, err := m.apply(ctx, coll)
	m.metrics.RecordOperation("apply", string(coll.Owner.Kind), err)
	return rep, err
}

func (m *Manager) apply(ctx context.Context, coll rules.Collection) (*Report, error) {
	v := m.validator
	v.AllowUnsetPriority = false

	valid := make([]rules.Rule, 0, len(coll.Rules))
	seen := make([]int, 0, len(coll.Rules))
	for i, r := range coll.Rules {
		canon, err := v.Validate(r, seen)
		if err != nil {
			m.metrics.RecordValidationFailure(rules.ErrorKind(err))
			return nil, fmt.Errorf("rule %d of %s: %w", i+1, coll.Owner, err)
		}
		valid = append(valid, canon)
		seen = append(seen, canon.Priority)
	}

	current, err := m.list(ctx, coll.Owner)
	if err != nil {
		return nil, err
	}
	return m.replace(ctx, "apply", rules.Collection{Owner: coll.Owner, Rules: valid}, current)
}

// UsedPriorities collects the priorities in use across owners. Owners that
// do not support rules are skipped. The result is sorted and deduplicated.
func (m *Manager) UsedPriorities(ctx context.Context, owners ...rules.Owner) ([]int, error) {
	var (
		mu   sync.Mutex
		used = make(map[int]struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for _, owner := range owners {
		owner := owner
		g.Go(func() error {
			rs, err := m.list(gctx, owner)
			if errors.Is(err, rules.ErrNotSupported) {
				m.logger.Debug("skipping owner without rule support", "owner", owner.String())
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			for _, p := range rules.Priorities(rs) {
				used[p] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]int, 0, len(used))
	for p := range used {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}

// AvailablePriorities returns the priorities free across all owners, highest
// first.
func (m *Manager) AvailablePriorities(ctx context.Context, owners ...rules.Owner) ([]int, error) {
	used, err := m.UsedPriorities(ctx, owners...)
	if err != nil {
		return nil, err
	}
	return rules.AvailablePriorities(used), nil
}

func (m *Manager) replace(ctx context.Context, op string, next rules.Collection, old []rules.Rule) (*Report, error) {
	owner := next.Owner
	wire := next.Wire()
	log := m.logger.WithFields(map[string]any{"owner": owner.String(), "operation": op})

	start := time.Now()
	updated, err := m.store.ReplaceRules(ctx, owner, wire)
	m.observe("replace", owner, start, err)
	if err != nil {
		log.Error("failed to replace rules", "error", err)
		return nil, fmt.Errorf("failed to replace %s of %s: %w", owner.Noun(), owner, err)
	}

	rep := NewReport(owner, old, updated)
	m.metrics.RecordChanges(string(owner.Kind), owner.ID, len(rep.Delta.Added), len(rep.Delta.Removed), len(updated))

	log.Debug("rule diff", "added", len(rep.Delta.Added), "removed", len(rep.Delta.Removed))
	switch {
	case len(rep.Delta.Removed) > 0:
		log.Warn("rules removed", "removed", joinKeys(rep.Delta.Removed))
	case rep.Delta.Empty():
		log.Warn("replace had no effect")
	}
	if len(rep.Delta.Added) > 0 {
		log.Info("rules added", "added", joinKeys(rep.Delta.Added))
	}

	m.logger.Audit(op, owner.String(), map[string]any{
		"rules":   len(updated),
		"added":   len(rep.Delta.Added),
		"removed": len(rep.Delta.Removed),
	})
	return rep, nil
}

func (m *Manager) list(ctx context.Context, owner rules.Owner) ([]rules.Rule, error) {
	start := time.Now()
	rs, err := m.store.ListRules(ctx, owner)
	m.observe("list", owner, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s of %s: %w", owner.Noun(), owner, err)
	}
	return rs, nil
}

func (m *Manager) observe(call string, owner rules.Owner, start time.Time, err error) {
	kind := ""
	if err != nil {
		kind = rules.ErrorKind(err)
	}
	m.metrics.ObserveUpstream(call, string(owner.Kind), start, kind)
}
