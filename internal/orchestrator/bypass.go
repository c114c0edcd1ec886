package orchestrator

import (
	"strings"

	"github.com/skein-dev/skein/internal/tools"
)

// DefaultBypassPatterns lists the tool names exempt from approval:
// read-only tools plus todo management. A trailing '*' matches any
// suffix.
var DefaultBypassPatterns = []string{
	"reverse_text",
	"todo",
	"file_read",
	"*_list",
}

// BypassSet decides which tools skip the approval protocol. A tool
// bypasses when its name matches a pattern or when it declares itself
// read-only.
type BypassSet struct {
	patterns []string
	registry *tools.Registry
}

func NewBypassSet(patterns []string, registry *tools.Registry) *BypassSet {
	if patterns == nil {
		patterns = DefaultBypassPatterns
	}
	return &BypassSet{patterns: patterns, registry: registry}
}

// Allows reports whether the named tool is exempt from approval.
func (s *BypassSet) Allows(name string) bool {
	for _, pattern := range s.patterns {
		if matchPattern(pattern, name) {
			return true
		}
	}
	if s.registry != nil {
		if tool, ok := s.registry.Get(name); ok {
			if ro, ok := tool.(tools.ReadOnly); ok && ro.ReadOnly() {
				return true
			}
		}
	}
	return false
}

// matchPattern supports a single leading or trailing '*' wildcard.
func matchPattern(pattern, name string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(name, pattern[1:])
	default:
		return pattern == name
	}
}
