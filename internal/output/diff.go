package output

import (
	"encoding/json"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/policyctl/internal/rules"
)

// UnifiedDiff renders a unified diff of the wire form of two collections,
// which is what the networking API would receive in each case. An empty
// string means the wire forms are identical.
func UnifiedDiff(a, b []rules.Rule, fromName, toName string) (string, error) {
	left, err := wireText(a)
	if err != nil {
		return "", err
	}
	right, err := wireText(b)
	if err != nil {
		return "", err
	}
	if left == right {
		return "", nil
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(left),
		B:        difflib.SplitLines(right),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to build diff: %w", err)
	}
	return text, nil
}

func wireText(rs []rules.Rule) (string, error) {
	wire := rules.FormatAll(rs)
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode wire rules: %w", err)
	}
	return string(data) + "\n", nil
}
