// Package glob matches branch names against shell-style wildcard patterns.
package glob

import (
	gobwas "github.com/gobwas/glob"
)

// Pattern is a compiled wildcard pattern.
// It is immutable and safe for concurrent use.
type Pattern struct {
	src string
	g   gobwas.Glob
}

// Compile compiles a wildcard pattern.
// Supported are '*' (any sequence of characters, including '/'), '?' (exactly
// 1 character), character classes ('[a-z]', '[!a]') and alternatives
// ('{a,b}'), everything else is matched literally.
// Matching is case-sensitive and anchored, the whole value must match.
//
// Compilation never fails, a malformed pattern results in a Pattern that
// does not match any value.
func Compile(pattern string) *Pattern {
	g, err := gobwas.Compile(pattern)
	if err != nil {
		return &Pattern{src: pattern}
	}

	return &Pattern{src: pattern, g: g}
}

// Match returns true if value matches the pattern.
func (p *Pattern) Match(value string) bool {
	if p == nil || p.g == nil {
		return false
	}

	return p.g.Match(value)
}

// Valid returns false if the pattern could not be compiled.
func (p *Pattern) Valid() bool {
	return p != nil && p.g != nil
}

func (p *Pattern) String() string {
	if p == nil {
		return ""
	}

	return p.src
}

// Match compiles pattern and matches it against value.
func Match(pattern, value string) bool {
	return Compile(pattern).Match(value)
}
