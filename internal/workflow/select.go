package workflow

import (
	"strings"

	"github.com/simplesurance/taskbot/internal/glob"
)

const branchRefPrefix = "refs/heads/"

// BranchName returns the short branch name of a git ref.
func BranchName(ref string) string {
	return strings.TrimPrefix(ref, branchRefPrefix)
}

// Select returns the first workflow that has a merge pattern pair matching
// the branches. fromRef and toRef can be passed as full refs
// ("refs/heads/main") or as branch names.
// If no workflow matches, nil is returned.
func (c *Config) Select(fromRef, toRef string) *Rule {
	from := BranchName(fromRef)
	to := BranchName(toRef)

	for _, rule := range c.Workflows {
		if rule.Matches(from, to) {
			return rule
		}
	}

	return nil
}

// Matches returns true if any merge pattern pair of the rule matches the
// branches.
func (r *Rule) Matches(fromBranch, toBranch string) bool {
	for _, m := range r.Merges {
		if m.Matches(fromBranch, toBranch) {
			return true
		}
	}

	return false
}

// Matches returns true if the from pattern matches fromBranch and the to
// pattern matches toBranch.
func (m *Merge) Matches(fromBranch, toBranch string) bool {
	from, to := m.from, m.to

	// Merges that were not created by Parse are not compiled.
	if from == nil {
		from = glob.Compile(m.From)
	}
	if to == nil {
		to = glob.Compile(m.To)
	}

	return from.Match(fromBranch) && to.Match(toBranch)
}
