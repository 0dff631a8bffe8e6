package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Lakshmikallagunta/Shams/internal/shared/errors"
)

// OriginMatcher decides whether a browser Origin may call the API.
// Patterns are either exact origins or contain a single "*" wildcard,
// e.g. "https://*.vercel.app".
type OriginMatcher struct {
	exact    map[string]struct{}
	wildcard []*regexp.Regexp
	patterns []string
}

// NewOriginMatcher compiles patterns once. A pattern with more than one "*"
// is rejected so that misconfiguration surfaces at startup.
func NewOriginMatcher(patterns []string) (*OriginMatcher, error) {
	m := &OriginMatcher{
		exact:    make(map[string]struct{}, len(patterns)),
		patterns: make([]string, 0, len(patterns)),
	}

	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			continue
		}
		m.patterns = append(m.patterns, pattern)

		switch strings.Count(pattern, "*") {
		case 0:
			m.exact[pattern] = struct{}{}
		case 1:
			re, err := compileWildcard(pattern)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeConfiguration,
					fmt.Sprintf("invalid origin pattern %q", pattern))
			}
			m.wildcard = append(m.wildcard, re)
		default:
			return nil, errors.New(errors.ErrCodeConfiguration,
				fmt.Sprintf("origin pattern %q has more than one wildcard", pattern))
		}
	}

	return m, nil
}

func compileWildcard(pattern string) (*regexp.Regexp, error) {
	prefix, suffix, _ := strings.Cut(pattern, "*")
	return regexp.Compile("^" + regexp.QuoteMeta(prefix) + ".*" + regexp.QuoteMeta(suffix) + "$")
}

// IsAllowed reports whether origin may be served. Requests without an
// Origin header (curl, server-to-server, same-origin) are always allowed.
func (m *OriginMatcher) IsAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, re := range m.wildcard {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// AllowsAll reports whether the list contains a bare "*".
func (m *OriginMatcher) AllowsAll() bool {
	for _, p := range m.patterns {
		if p == "*" {
			return true
		}
	}
	return false
}

// Patterns returns the normalised pattern list.
func (m *OriginMatcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// IsOriginAllowed is the one-shot form of OriginMatcher.IsAllowed.
// Invalid pattern lists allow nothing but an empty origin.
func IsOriginAllowed(origin string, patterns []string) bool {
	m, err := NewOriginMatcher(patterns)
	if err != nil {
		return origin == ""
	}
	return m.IsAllowed(origin)
}
