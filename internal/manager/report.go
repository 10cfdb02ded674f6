package manager

import (
	"fmt"
	"strings"

	"grimm.is/policyctl/internal/rules"
)

// Message levels, matching the severity the change deserves.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
)

// NoChangeMessage is reported when a replace changed nothing, which happens
// when an existing rule already covers the candidate.
const NoChangeMessage = "No change in policies, superset policy exists."

// Message is one line of a change report.
type Message struct {
	Level string `json:"level" yaml:"level"`
	Text  string `json:"text" yaml:"text"`
}

// Report describes the outcome of a replace: the authoritative collection
// returned upstream and its difference from what was there before.
type Report struct {
	Owner    rules.Owner  `json:"owner" yaml:"owner"`
	Delta    rules.Delta  `json:"delta" yaml:"delta"`
	Rules    []rules.Rule `json:"rules" yaml:"rules"`
	Messages []Message    `json:"messages" yaml:"messages"`
}

// NewReport diffs old against updated and builds the user-facing messages.
func NewReport(owner rules.Owner, old, updated []rules.Rule) *Report {
	delta := rules.Diff(old, updated)
	rep := &Report{Owner: owner, Delta: delta, Rules: updated}

	noun := owner.Noun()
	if len(delta.Removed) > 0 {
		rep.Messages = append(rep.Messages, Message{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Removed %s: %s", noun, joinKeys(delta.Removed)),
		})
	}
	if len(delta.Added) > 0 {
		rep.Messages = append(rep.Messages, Message{
			Level: LevelSuccess,
			Text:  fmt.Sprintf("Added %s: %s", noun, joinKeys(delta.Added)),
		})
	}
	if delta.Empty() {
		rep.Messages = append(rep.Messages, Message{Level: LevelWarning, Text: NoChangeMessage})
	}
	return rep
}

// Changed reports whether the replace had any effect.
func (r *Report) Changed() bool {
	return !r.Delta.Empty()
}

func joinKeys(keys []rules.MatchKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}
