// Package workflow provides the per-repository workflow configuration and
// selects the workflow that applies to a pull request.
//
// A configuration without workflows and a workflow without tasks are
// valid: the former never matches, the latter only creates the comment.
package workflow

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml"

	"github.com/simplesurance/taskbot/internal/glob"
	"github.com/simplesurance/taskbot/internal/stringutils"
)

// DefaultConfigPath is the path of the configuration file in the default
// branch of a repository.
const DefaultConfigPath = "workflow-tasks.toml"

// Config is the workflow configuration of a repository.
// Workflows are evaluated in the defined order, the first one that matches
// is applied.
type Config struct {
	Workflows []*Rule `toml:"workflow"`
}

// Rule defines the branch conditions and the comment and tasks that are
// created when a pull request matches.
type Rule struct {
	Merges  []*Merge `toml:"merge"`
	Comment string   `toml:"comment"`
	Tasks   []string `toml:"tasks"`
}

// Merge is a pair of wildcard patterns for the source and target branch of a
// pull request.
type Merge struct {
	From string `toml:"from"`
	To   string `toml:"to"`

	from *glob.Pattern `toml:"-"`
	to   *glob.Pattern `toml:"-"`
}

// Parse decodes a TOML workflow configuration and validates it.
func Parse(data []byte) (*Config, error) {
	var result Config

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing toml failed: %w", err)
	}

	if err := result.validate(); err != nil {
		return nil, err
	}

	result.compile()

	return &result, nil
}

func (c *Config) validate() error {
	for i, rule := range c.Workflows {
		if rule == nil {
			return fmt.Errorf("workflow %d: empty definition", i+1)
		}

		if len(rule.Merges) == 0 {
			return fmt.Errorf("workflow %d: missing array field: 'merge'", i+1)
		}

		for j, m := range rule.Merges {
			if m == nil || m.From == "" {
				return fmt.Errorf("workflow %d: merge %d: missing string field: 'from'", i+1, j+1)
			}

			if m.To == "" {
				return fmt.Errorf("workflow %d: merge %d: missing string field: 'to'", i+1, j+1)
			}
		}

		if rule.Comment == "" {
			return fmt.Errorf("workflow %d: missing string field: 'comment'", i+1)
		}

		for j, task := range rule.Tasks {
			if strings.TrimSpace(task) == "" {
				return fmt.Errorf("workflow %d: task %d is empty", i+1, j+1)
			}
		}
	}

	return nil
}

func (c *Config) compile() {
	for _, rule := range c.Workflows {
		for _, m := range rule.Merges {
			m.from = glob.Compile(m.From)
			m.to = glob.Compile(m.To)
		}
	}
}

func (c *Config) String() string {
	if len(c.Workflows) == 0 {
		return "no workflows defined"
	}

	var result strings.Builder

	for i, rule := range c.Workflows {
		result.WriteString(fmt.Sprintf("workflow %d:\n", i+1))
		result.WriteString(stringutils.IndentString(rule.String(), "  "))
		if i < len(c.Workflows)-1 {
			result.WriteRune('\n')
		}
	}

	return result.String()
}

func (r *Rule) String() string {
	var result strings.Builder

	result.WriteString("merge:")
	for _, m := range r.Merges {
		result.WriteString(fmt.Sprintf(" %s", m))
	}

	result.WriteString(fmt.Sprintf("\ncomment: %q\ntasks: %d", r.Comment, len(r.Tasks)))

	return result.String()
}

func (m *Merge) String() string {
	return fmt.Sprintf("%s -> %s", m.From, m.To)
}
