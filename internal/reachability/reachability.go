// Package reachability defines reachability tests: a probe from a source
// segment to a destination IP together with the result the tenant expects.
package reachability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Expected connection results understood by the networking API.
const (
	ResultDroppedByRoute     = "dropped by route"
	ResultDroppedByPolicy    = "dropped by policy"
	ResultNotPermittedBySG   = "not permitted by security groups"
	ResultDroppedPrivateSeg  = "dropped due to private segment"
	ResultDroppedLoop        = "dropped due to loop"
	ResultPacketIn           = "packet in"
	ResultForwarded          = "forwarded"
	ResultDropped            = "dropped"
	ResultUnspecifiedSource  = "unspecified source"
	ResultUnsupported        = "unsupported"
	ResultInvalidInput       = "invalid input"
	ResultInconsistentStatus = "inconsistent status"
	ResultNoTrafficDetected  = "no traffic detected"
	resultPlaceholder        = "default"
	quickTestPrefix          = "quicktest_"
	maxNameLength            = 64
)

// ExpectedResults lists the accepted ExpectedResult values.
var ExpectedResults = []string{
	ResultDroppedByRoute,
	ResultDroppedByPolicy,
	ResultNotPermittedBySG,
	ResultDroppedPrivateSeg,
	ResultDroppedLoop,
	ResultPacketIn,
	ResultForwarded,
	ResultDropped,
	ResultUnspecifiedSource,
	ResultUnsupported,
	ResultInvalidInput,
	ResultInconsistentStatus,
	ResultNoTrafficDetected,
}

// ErrNoExpectedResult is returned when the placeholder result is submitted.
var ErrNoExpectedResult = errors.New("an expected connection result must be selected")

var validate = validator.New()

// Test is a reachability test in the flattened shape the API accepts.
type Test struct {
	ID             string `json:"id,omitempty" yaml:"id,omitempty"`
	Name           string `json:"name" yaml:"name" validate:"required,max=64"`
	SrcTenantID    string `json:"src_tenant_id,omitempty" yaml:"src_tenant_id,omitempty"`
	SrcTenantName  string `json:"src_tenant_name,omitempty" yaml:"src_tenant_name,omitempty"`
	SrcSegmentID   string `json:"src_segment_id,omitempty" yaml:"src_segment_id,omitempty"`
	SrcSegmentName string `json:"src_segment_name,omitempty" yaml:"src_segment_name,omitempty"`
	SrcIP          string `json:"src_ip" yaml:"src_ip" validate:"required,ip"`
	DstIP          string `json:"dst_ip" yaml:"dst_ip" validate:"required,ip"`
	ExpectedResult string `json:"expected_result" yaml:"expected_result"`

	// Set by the API once a run completes.
	TestResult string `json:"test_result,omitempty" yaml:"test_result,omitempty"`
	Detail     any    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Tenant identifies the tenant a test runs as.
type Tenant struct {
	ID   string
	Name string
}

// Segment is a tenant network a test can start from.
type Segment struct {
	ID   string
	Name string
}

// Label renders the segment the way operators pick it: "name (id)", or
// "(id)" when unnamed.
func (s Segment) Label() string {
	if s.Name == "" {
		return "(" + s.ID + ")"
	}
	return fmt.Sprintf("%s (%s)", s.Name, s.ID)
}

// SetSource copies tenant and segment identity into the flat fields.
func (t *Test) SetSource(tenant Tenant, segment Segment) {
	t.SrcTenantID = tenant.ID
	t.SrcTenantName = tenant.Name
	t.SrcSegmentID = segment.ID
	t.SrcSegmentName = segment.Name
}

// Validate checks a test before it is submitted.
func (t Test) Validate() error {
	if strings.TrimSpace(t.ExpectedResult) == "" || t.ExpectedResult == resultPlaceholder {
		return ErrNoExpectedResult
	}
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid reachability test: %w", err)
	}
	for _, r := range ExpectedResults {
		if t.ExpectedResult == r {
			return nil
		}
	}
	return fmt.Errorf("invalid reachability test: unknown expected result %q", t.ExpectedResult)
}

// Passed reports whether the last run matched the expectation.
func (t Test) Passed() bool {
	return t.TestResult != "" && t.TestResult == t.ExpectedResult
}

// QuickTestName is the name of the per-tenant scratch test.
func QuickTestName(tenantID string) string {
	return quickTestPrefix + tenantID
}

// API is the subset of the networking API used for reachability tests.
type API interface {
	CreateReachabilityTest(ctx context.Context, t Test) (Test, error)
	UpdateReachabilityTest(ctx context.Context, id string, t Test) (Test, error)
	GetQuickTest(ctx context.Context, tenantID string) (Test, error)
	CreateQuickTest(ctx context.Context, t Test) (Test, error)
	UpdateQuickTest(ctx context.Context, id string, t Test) (Test, error)
	RunQuickTest(ctx context.Context, id string) (Test, error)
	SaveQuickTest(ctx context.Context, id, name string) (Test, error)
}
