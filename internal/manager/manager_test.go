package manager

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"grimm.is/policyctl/internal/logging"
	"grimm.is/policyctl/internal/metrics"
	"grimm.is/policyctl/internal/rules"
	"grimm.is/policyctl/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListRules(ctx context.Context, owner rules.Owner) ([]rules.Rule, error) {
	args := m.Called(ctx, owner)
	rs, _ := args.Get(0).([]rules.Rule)
	return rs, args.Error(1)
}

func (m *mockStore) ReplaceRules(ctx context.Context, owner rules.Owner, wire []rules.WireRule) ([]rules.Rule, error) {
	args := m.Called(ctx, owner, wire)
	rs, _ := args.Get(0).([]rules.Rule)
	return rs, args.Error(1)
}

func permit(prio int, src, dst string, nexthops ...string) rules.Rule {
	return rules.Rule{Priority: prio, Source: src, Destination: dst, Action: rules.ActionPermit, Nexthops: nexthops}
}

func newTestManager(s rules.Store, reg *metrics.Registry) *Manager {
	return New(s, WithLogger(logging.Nop()), WithMetrics(reg))
}

func TestAddRule_PrependsAndReports(t *testing.T) {
	ctx := context.Background()
	owner := rules.Router("r1")
	existing := []rules.Rule{permit(20, "any", "10.0.0.0/24")}
	candidate := permit(10, "0.0.0.0/0", "10.1.0.0/16", "10.2.0.1", " 10.2.0.2 ", "")

	wantWire := []rules.WireRule{
		{Priority: 10, Source: "any", Destination: "10.1.0.0/16", Action: rules.ActionPermit, Nexthops: "10.2.0.1+10.2.0.2"},
		{Priority: 20, Source: "any", Destination: "10.0.0.0/24", Action: rules.ActionPermit},
	}
	returned := []rules.Rule{
		permit(10, "any", "10.1.0.0/16", "10.2.0.1", "10.2.0.2"),
		permit(20, "any", "10.0.0.0/24"),
	}

	s := &mockStore{}
	s.On("ListRules", ctx, owner).Return(existing, nil)
	s.On("ReplaceRules", ctx, owner, wantWire).Return(returned, nil)

	reg := metrics.NewRegistry()
	rep, err := newTestManager(s, reg).AddRule(ctx, owner, candidate)
	require.NoError(t, err)
	s.AssertExpectations(t)

	assert.True(t, rep.Changed())
	assert.Empty(t, rep.Delta.Removed)
	require.Len(t, rep.Delta.Added, 1)
	assert.Equal(t, rules.MatchKey{Source: "any", Destination: "10.1.0.0/16", Action: rules.ActionPermit, Priority: 10}, rep.Delta.Added[0])

	require.Len(t, rep.Messages, 1)
	assert.Equal(t, LevelSuccess, rep.Messages[0].Level)
	assert.Equal(t, "Added router policies: 10:any->10.1.0.0/16:permit", rep.Messages[0].Text)

	// Caller's candidate is untouched.
	assert.Equal(t, "0.0.0.0/0", candidate.Source)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Operations.WithLabelValues("add", "router", "success")))
}

func TestAddRule_ValidationFailures(t *testing.T) {
	ctx := context.Background()
	owner := rules.Tenant("t1")

	tests := []struct {
		name string
		rule rules.Rule
		want error
		kind string
	}{
		{"duplicate priority", permit(20, "any", "any"), rules.ErrDuplicatePriority, "duplicate_priority"},
		{"bad cidr", permit(30, "10.0.0.0", "any"), rules.ErrInvalidCIDR, "invalid_cidr"},
		{"port without protocol", rules.Rule{Priority: 30, Source: "any", Destination: "any", Action: rules.ActionPermit, SourcePort: 80}, rules.ErrMissingProtocol, "missing_protocol"},
		{"port out of range", rules.Rule{Priority: 30, Source: "any", Destination: "any", Action: rules.ActionPermit, DestinationPort: 70000, Protocol: rules.ProtocolTCP}, rules.ErrInvalidPort, "invalid_port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockStore{}
			s.On("ListRules", ctx, owner).Return([]rules.Rule{permit(20, "any", "10.0.0.0/8")}, nil)
			reg := metrics.NewRegistry()

			_, err := newTestManager(s, reg).AddRule(ctx, owner, tt.rule)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			s.AssertNotCalled(t, "ReplaceRules", mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, 1.0, testutil.ToFloat64(reg.ValidationFailures.WithLabelValues(tt.kind)))
		})
	}
}

func TestAddRule_UnsetPriorityIsUniqueToo(t *testing.T) {
	ctx := context.Background()
	owner := rules.Router("r1")
	s := store.NewMemoryStore()
	m := newTestManager(s, metrics.NewRegistry())

	first := rules.Input{Source: "10.0.0.0/24", Destination: "any", Action: "permit"}
	_, err := m.AddRule(ctx, owner, first.Rule())
	require.NoError(t, err)

	second := rules.Input{Source: "10.1.0.0/24", Destination: "any", Action: "permit"}
	_, err = m.AddRule(ctx, owner, second.Rule())
	assert.ErrorIs(t, err, rules.ErrDuplicatePriority)

	got, err := s.ListRules(ctx, owner)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rules.NoPriority, got[0].Priority)
}

func TestAddRule_SupersetReportsNoChange(t *testing.T) {
	ctx := context.Background()
	owner := rules.Tenant("t1")
	existing := []rules.Rule{permit(20, "any", "any")}

	s := &mockStore{}
	s.On("ListRules", ctx, owner).Return(existing, nil)
	// Upstream drops the redundant rule.
	s.On("ReplaceRules", ctx, owner, mock.Anything).Return(existing, nil)

	rep, err := newTestManager(s, nil).AddRule(ctx, owner, permit(10, "10.0.0.0/8", "any"))
	require.NoError(t, err)
	assert.False(t, rep.Changed())
	require.Len(t, rep.Messages, 1)
	assert.Equal(t, Message{Level: LevelWarning, Text: NoChangeMessage}, rep.Messages[0])
}

func TestAddRule_NotSupported(t *testing.T) {
	ctx := context.Background()
	owner := rules.Router("legacy")

	s := &mockStore{}
	s.On("ListRules", ctx, owner).Return(nil, fmt.Errorf("router legacy: %w", rules.ErrNotSupported))

	_, err := newTestManager(s, nil).AddRule(ctx, owner, permit(10, "any", "any"))
	assert.ErrorIs(t, err, rules.ErrNotSupported)
}

func TestAddRule_UpstreamFailure(t *testing.T) {
	ctx := context.Background()
	owner := rules.Router("r1")

	s := &mockStore{}
	s.On("ListRules", ctx, owner).Return([]rules.Rule{}, nil)
	s.On("ReplaceRules", ctx, owner, mock.Anything).Return(nil, fmt.Errorf("PUT: %w (status 500)", rules.ErrUpstreamFailure))

	reg := metrics.NewRegistry()
	_, err := newTestManager(s, reg).AddRule(ctx, owner, permit(10, "any", "any"))
	assert.ErrorIs(t, err, rules.ErrUpstreamFailure)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.UpstreamErrors.WithLabelValues("replace", "upstream_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Operations.WithLabelValues("add", "router", "error")))
}

func TestRemoveRule(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	owner := rules.Router("r1")
	s.Seed(owner, permit(10, "any", "10.0.0.0/24"), permit(20, "any", "any"))

	m := newTestManager(s, nil)
	rep, err := m.RemoveRule(ctx, rules.OwnerRouter, "10_r1")
	require.NoError(t, err)

	require.Len(t, rep.Delta.Removed, 1)
	assert.Equal(t, 10, rep.Delta.Removed[0].Priority)
	assert.Equal(t, LevelWarning, rep.Messages[0].Level)
	assert.Equal(t, "Removed router policies: 10:any->10.0.0.0/24:permit", rep.Messages[0].Text)

	coll, err := m.List(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []int{20}, coll.Priorities())
}

func TestRemoveRule_UnknownKey(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.Seed(rules.Tenant("t_1"), permit(10, "any", "any"))
	m := newTestManager(s, nil)

	// Owner IDs may themselves contain underscores.
	rep, err := m.RemoveRule(ctx, rules.OwnerTenant, "99_t_1")
	require.NoError(t, err)
	assert.False(t, rep.Changed())
	assert.Equal(t, NoChangeMessage, rep.Messages[0].Text)

	_, err = m.RemoveRule(ctx, rules.OwnerTenant, "nope")
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	owner := rules.Tenant("t1")
	s.Seed(owner, permit(5, "any", "any"))
	m := newTestManager(s, nil)

	rep, err := m.Apply(ctx, rules.Collection{Owner: owner, Rules: []rules.Rule{
		permit(10, "::/0", "10.0.0.0/8", "10.0.0.1"),
		{Priority: 20, Source: "any", Destination: "external", Action: rules.ActionDeny},
	}})
	require.NoError(t, err)
	assert.Len(t, rep.Delta.Added, 2)
	assert.Len(t, rep.Delta.Removed, 1)
	assert.Equal(t, "any", rep.Rules[0].Source)
	assert.Len(t, rep.Messages, 2)

	_, err = m.Apply(ctx, rules.Collection{Owner: owner, Rules: []rules.Rule{
		permit(10, "any", "any"),
		permit(10, "any", "external"),
	}})
	assert.ErrorIs(t, err, rules.ErrDuplicatePriority)

	_, err = m.Apply(ctx, rules.Collection{Owner: owner, Rules: []rules.Rule{
		permit(rules.NoPriority, "any", "any"),
	}})
	assert.ErrorIs(t, err, rules.ErrInvalidPriority)
}

func TestUsedAndAvailablePriorities(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.Seed(rules.Router("r1"), permit(3000, "any", "any"), permit(10, "any", "any"))
	s.Seed(rules.Router("r2"), permit(2999, "any", "any"), permit(10, "any", "external"))
	s.MarkUnsupported(rules.Router("legacy"))
	m := newTestManager(s, nil)

	owners := []rules.Owner{rules.Router("r1"), rules.Router("r2"), rules.Router("legacy")}
	used, err := m.UsedPriorities(ctx, owners...)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 2999, 3000}, used)

	avail, err := m.AvailablePriorities(ctx, owners...)
	require.NoError(t, err)
	assert.Len(t, avail, rules.MaxPriority-3)
	assert.Equal(t, 2998, avail[0])
	assert.NotContains(t, avail, 10)
}

func TestUsedPriorities_PropagatesFailure(t *testing.T) {
	ctx := context.Background()
	s := &mockStore{}
	s.On("ListRules", mock.Anything, rules.Router("r1")).Return([]rules.Rule{}, nil)
	s.On("ListRules", mock.Anything, rules.Router("r2")).Return(nil, errors.Join(rules.ErrUpstreamFailure, errors.New("timeout")))

	_, err := newTestManager(s, nil).UsedPriorities(ctx, rules.Router("r1"), rules.Router("r2"))
	assert.ErrorIs(t, err, rules.ErrUpstreamFailure)
}
