package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/policyctl/internal/manager"
	"grimm.is/policyctl/internal/reachability"
	"grimm.is/policyctl/internal/rules"
	"grimm.is/policyctl/internal/store"
)

// resetFlags restores every flag to its default so commands can run
// repeatedly within one test binary.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, s rules.Store, args ...string) (string, error) {
	t.Helper()
	t.Setenv("POLICYCTL_CONFIG_DIR", t.TempDir())
	t.Setenv("POLICYCTL_ENDPOINT", "")
	t.Setenv("POLICYCTL_TOKEN", "")

	resetFlags(rootCmd)
	SetStore(s)
	t.Cleanup(func() { SetStore(nil) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := run(context.Background())
	return stdout.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRulesAddAndList(t *testing.T) {
	s := store.NewMemoryStore()
	s.Seed(rules.Router("r1"), rules.Rule{Priority: 20, Source: "any", Destination: "any", Action: rules.ActionDeny})

	out, err := execute(t, s, "rules", "add", "--router", "r1",
		"--priority", "10", "--source", "0.0.0.0/0", "--destination", "10.0.0.0/24",
		"--nexthops", "10.1.0.1, 10.1.0.2")
	require.NoError(t, err)
	assert.Contains(t, out, "Added router policies: 10:any->10.0.0.0/24:permit")

	out, err = execute(t, s, "-o", "json", "rules", "list", "--router", "r1")
	require.NoError(t, err)

	var coll rules.Collection
	require.NoError(t, json.Unmarshal([]byte(out), &coll))
	require.Len(t, coll.Rules, 2)
	assert.Equal(t, 10, coll.Rules[0].Priority)
	assert.Equal(t, rules.Nexthops{"10.1.0.1", "10.1.0.2"}, coll.Rules[0].Nexthops)
	assert.Equal(t, 20, coll.Rules[1].Priority)

	out, err = execute(t, s, "-o", "json", "rules", "list", "--router", "r1", "--filter", "DENY")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &coll))
	assert.Len(t, coll.Rules, 1)
}

func TestRulesAdd_Rejected(t *testing.T) {
	s := store.NewMemoryStore()

	_, err := execute(t, s, "rules", "add", "--tenant", "t1", "--priority", "5",
		"--source", "any", "--destination", "any", "--source-port", "80")
	assert.ErrorIs(t, err, rules.ErrMissingProtocol)

	_, err = execute(t, s, "rules", "add", "--tenant", "t1", "--router", "r1",
		"--source", "any", "--destination", "any")
	assert.Error(t, err, "router and tenant are mutually exclusive")

	_, err = execute(t, s, "rules", "list", "--router", "r1;reboot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid router")
}

func TestRulesAdd_DenyDropsNexthops(t *testing.T) {
	s := store.NewMemoryStore()

	_, err := execute(t, s, "rules", "add", "--router", "r1", "--priority", "7",
		"--source", "any", "--destination", "external", "--action", "deny", "--nexthops", "10.0.0.1")
	require.NoError(t, err)

	got, err := s.ListRules(context.Background(), rules.Router("r1"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Nexthops)
}

func TestRulesRemove(t *testing.T) {
	s := store.NewMemoryStore()
	s.Seed(rules.Tenant("t1"),
		rules.Rule{Priority: 1, Source: "any", Destination: "any", Action: rules.ActionPermit},
		rules.Rule{Priority: 2, Source: "any", Destination: "external", Action: rules.ActionDeny},
	)

	out, err := execute(t, s, "rules", "remove", "--kind", "tenant", "1_t1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed tenant policies: 1:any->any:permit")

	got, err := s.ListRules(context.Background(), rules.Tenant("t1"))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = execute(t, s, "rules", "remove", "--kind", "network", "2_t1")
	assert.Error(t, err)
}

const fileA = `
owner {
  kind = "router"
  id   = "r1"
}

rule {
  priority    = 10
  source      = "any"
  destination = "10.0.0.0/24"
  action      = "permit"
  nexthops    = ["10.1.0.1"]
}

rule {
  priority    = 20
  source      = "external"
  destination = "any"
  action      = "deny"
}
`

const fileB = `
owner {
  kind = "router"
  id   = "r1"
}

rule {
  priority    = 10
  source      = "any"
  destination = "10.0.0.0/24"
  action      = "permit"
  nexthops    = ["10.1.0.2"]
}

rule {
  priority    = 30
  source      = "0.0.0.0/0"
  destination = "any"
  action      = "deny"
}
`

func TestRulesDiff(t *testing.T) {
	a := writeFile(t, "a.hcl", fileA)
	b := writeFile(t, "b.hcl", fileB)

	out, err := execute(t, store.NewMemoryStore(), "rules", "diff", "-a", a, "-b", b)
	require.NoError(t, err)
	assert.Contains(t, out, "- 20:external->any:deny")
	assert.Contains(t, out, "+ 30:any->any:deny")
	// Nexthop-only changes do not count as a rule change but show in the
	// wire diff.
	assert.NotContains(t, out, "- 10:")
	assert.Contains(t, out, `-    "nexthops": "10.1.0.1"`)
}

func TestRulesApplyAndExport(t *testing.T) {
	s := store.NewMemoryStore()
	path := writeFile(t, "rules.hcl", fileA)

	out, err := execute(t, s, "rules", "apply", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Added router policies:")

	out, err = execute(t, s, "rules", "export", "--router", "r1")
	require.NoError(t, err)
	assert.Contains(t, out, `kind = "router"`)
	assert.Contains(t, out, `destination = "10.0.0.0/24"`)

	// Re-applying the export is a no-op.
	again := writeFile(t, "export.hcl", out)
	out, err = execute(t, s, "rules", "apply", "-f", again)
	require.NoError(t, err)
	assert.Contains(t, out, manager.NoChangeMessage)
}

func TestRulesApply_OwnerOverride(t *testing.T) {
	s := store.NewMemoryStore()
	path := writeFile(t, "rules.hcl", fileA)

	_, err := execute(t, s, "rules", "apply", "-f", path, "--tenant", "t9")
	require.NoError(t, err)

	got, err := s.ListRules(context.Background(), rules.Tenant("t9"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPriorities(t *testing.T) {
	s := store.NewMemoryStore()
	s.Seed(rules.Router("r1"), rules.Rule{Priority: 3000, Source: "any", Destination: "any", Action: rules.ActionPermit})
	s.Seed(rules.Router("r2"), rules.Rule{Priority: 2999, Source: "any", Destination: "any", Action: rules.ActionPermit})

	out, err := execute(t, s, "priorities", "--router", "r1", "--router", "r2", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "2998 2997\n")

	_, err = execute(t, s, "priorities")
	assert.Error(t, err)

	_, err = execute(t, s, "priorities", "--all-routers")
	assert.Error(t, err, "memory backend cannot enumerate routers")

	_, err = execute(t, s, "priorities", "--tenant", "t1", "--tenant", "$(id)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tenant")
}

func TestRulesHistory_RequiresSQLite(t *testing.T) {
	_, err := execute(t, store.NewMemoryStore(), "rules", "history", "--router", "r1")
	assert.Error(t, err)
}

type fakeReachability struct {
	result string
	saved  string
}

func (f *fakeReachability) CreateReachabilityTest(_ context.Context, t reachability.Test) (reachability.Test, error) {
	t.ID = "rt-1"
	return t, nil
}

func (f *fakeReachability) UpdateReachabilityTest(_ context.Context, id string, t reachability.Test) (reachability.Test, error) {
	t.ID = id
	return t, nil
}

func (f *fakeReachability) GetQuickTest(context.Context, string) (reachability.Test, error) {
	return reachability.Test{ID: "q1"}, nil
}

func (f *fakeReachability) CreateQuickTest(_ context.Context, t reachability.Test) (reachability.Test, error) {
	return t, nil
}

func (f *fakeReachability) UpdateQuickTest(_ context.Context, _ string, t reachability.Test) (reachability.Test, error) {
	return t, nil
}

func (f *fakeReachability) RunQuickTest(_ context.Context, id string) (reachability.Test, error) {
	return reachability.Test{ID: id, Name: "quicktest_t1", ExpectedResult: reachability.ResultForwarded, TestResult: f.result}, nil
}

func (f *fakeReachability) SaveQuickTest(_ context.Context, _ string, name string) (reachability.Test, error) {
	f.saved = name
	return reachability.Test{Name: name}, nil
}

func TestReachabilityRun(t *testing.T) {
	fake := &fakeReachability{result: reachability.ResultForwarded}
	SetReachabilityAPI(fake)
	defer SetReachabilityAPI(nil)

	args := []string{"reachability", "run", "--tenant", "t1", "--src-ip", "10.0.0.1", "--dst-ip", "10.0.0.2", "--expect", "forwarded"}
	out, err := execute(t, store.NewMemoryStore(), args...)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")

	fake.result = reachability.ResultDroppedByPolicy
	_, err = execute(t, store.NewMemoryStore(), args...)
	assert.Error(t, err)

	_, err = execute(t, store.NewMemoryStore(), "reachability", "save", "--tenant", "t1", "--name", "nightly")
	require.NoError(t, err)
	assert.Equal(t, "nightly", fake.saved)
}

func TestReachabilityCreate_RejectsPlaceholder(t *testing.T) {
	SetReachabilityAPI(&fakeReachability{})
	defer SetReachabilityAPI(nil)

	_, err := execute(t, store.NewMemoryStore(), "reachability", "create", "--name", "x",
		"--src-ip", "10.0.0.1", "--dst-ip", "10.0.0.2", "--expect", "default")
	assert.ErrorIs(t, err, reachability.ErrNoExpectedResult)
}

func TestMetricsWrittenOnFailure(t *testing.T) {
	textfile := filepath.Join(t.TempDir(), "policyctl.prom")
	path := writeFile(t, "policyctl.hcl", fmt.Sprintf(`
store {
  backend = "memory"
}
metrics {
  enabled  = true
  textfile = %q
}
`, textfile))

	_, err := execute(t, store.NewMemoryStore(), "--config", path, "rules", "add", "--router", "r1",
		"--priority", "10", "--source", "10.0.0.1", "--destination", "any")
	require.ErrorIs(t, err, rules.ErrInvalidCIDR)

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `policyctl_validation_failures_total{kind="invalid_cidr"} 1`)
	assert.Contains(t, string(data), `outcome="error"`)
}

func TestConfigShow_RedactsToken(t *testing.T) {
	path := writeFile(t, "policyctl.hcl", `
api {
  endpoint = "https://neutron.example:9696"
  token    = "super-secret"
}
`)
	out, err := execute(t, store.NewMemoryStore(), "--config", path, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "super-secret")
	assert.Contains(t, out, "https://neutron.example:9696")

	out, err = execute(t, store.NewMemoryStore(), "--config", path, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid!")
	assert.Contains(t, out, "Backend: api")
}
