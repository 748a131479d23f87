package xcast

import "strings"

const (
	// Separator splits keys and patterns into segments.
	Separator = ":"
	// SingleWildcard matches exactly one segment.
	SingleWildcard = "*"
	// MultiWildcard matches the current segment and every segment after it.
	MultiWildcard = "**"
)

// Match reports whether key matches pattern.
//
// Both are split on Separator. A "*" segment matches any single present key
// segment. A "**" segment matches the rest of the key, but only when the key
// still has a segment at that position: "a:b" does not match "a:b:**".
// Without wildcards the segment counts must agree, so "a:b:c" does not match "a:b".
func Match(key, pattern string) bool {
	return compilePattern(pattern).matchSegments(strings.Split(key, Separator))
}

// pattern is a subscription pattern split once at subscribe time.
type pattern struct {
	raw  string
	segs []string
}

func compilePattern(raw string) pattern {
	return pattern{raw: raw, segs: strings.Split(raw, Separator)}
}

func (p pattern) String() string { return p.raw }

// matchSegments walks up to max(len(key), len(p.segs)) positions. An index past
// the end of either slice is an absent segment, which is never equal to a
// present one (not even the empty string or "*").
func (p pattern) matchSegments(key []string) bool {
	n := max(len(key), len(p.segs))
	for i := 0; i < n; i++ {
		kPresent := i < len(key)
		if i >= len(p.segs) {
			// pattern exhausted while the key still has segments
			return false
		}
		w := p.segs[i]
		if !kPresent {
			// "**" needs a present key segment; nothing else matches absence
			return false
		}
		if w == MultiWildcard {
			return true
		}
		if w != SingleWildcard && w != key[i] {
			return false
		}
	}
	return true
}
