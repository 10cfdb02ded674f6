package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff_Identical(t *testing.T) {
	old := []Rule{permit(1, "any", "any"), permit(2, "10.0.0.0/8", "external", "10.0.0.1")}
	// Physically different values, and attributes outside the match key differ
	updated := []Rule{
		permit(2, "10.0.0.0/8", "external", "10.9.9.9"),
		{Priority: 1, Source: "any", Destination: "any", Action: ActionPermit, DestinationPort: 22, Protocol: ProtocolTCP},
	}

	d := Diff(old, updated)
	assert.True(t, d.Empty())
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
}

func TestDiff_AddedAndRemoved(t *testing.T) {
	old := []Rule{permit(1, "any", "any"), permit(2, "10.0.0.0/8", "any")}
	updated := []Rule{permit(3, "192.168.0.0/16", "any"), permit(1, "any", "any")}

	d := Diff(old, updated)
	assert.Equal(t, []MatchKey{{Source: "10.0.0.0/8", Destination: "any", Action: ActionPermit, Priority: 2}}, d.Removed)
	assert.Equal(t, []MatchKey{{Source: "192.168.0.0/16", Destination: "any", Action: ActionPermit, Priority: 3}}, d.Added)
	assert.False(t, d.Empty())
}

func TestDiff_ActionChangeIsReplace(t *testing.T) {
	old := []Rule{permit(5, "any", "any")}
	updated := []Rule{{Priority: 5, Source: "any", Destination: "any", Action: ActionDeny}}

	d := Diff(old, updated)
	assert.Len(t, d.Removed, 1)
	assert.Len(t, d.Added, 1)
	assert.Equal(t, ActionDeny, d.Added[0].Action)
}

func TestDiff_DuplicatesCollapse(t *testing.T) {
	updated := []Rule{permit(4, "any", "any", "10.0.0.1"), permit(4, "any", "any", "10.0.0.2")}

	d := Diff(nil, updated)
	assert.Len(t, d.Added, 1)
	assert.Empty(t, d.Removed)
}

func TestDiff_CanonicalSources(t *testing.T) {
	old := []Rule{permit(8, "any", "10.0.0.0/8")}
	updated := []Rule{permit(8, "0.0.0.0/0", "10.0.0.0/8")}

	assert.True(t, Diff(old, updated).Empty())
	assert.Equal(t, "any", updated[0].MatchKey().Source)
}

func TestDiff_Empty(t *testing.T) {
	assert.True(t, Diff(nil, nil).Empty())
	assert.Len(t, Diff([]Rule{permit(1, "any", "any")}, nil).Removed, 1)
}
