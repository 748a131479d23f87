package xcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		key, pattern string
		want         bool
	}{
		{"a", "a", true},
		{"a:b", "a:b", true},
		{"a:b:c", "a:b:c", true},
		{"a:b:c", "**", true},
		{"a:b:c", "a:**", true},
		{"a:b:c", "a:b:*", true},
		{"a:b:c", "a:b:**", true},
		{"a:b:c", "*:b:*", true},
		{"a:b:c", "a:*:*", true},
		{"a", "*", true},
		{"a", "**", true},

		{"a", "b", false},
		{"a:b:c", "a:*", false},
		{"a:b:c", "a:b", false},
		{"a:b:c", "a:b:c:**", false},
		{"a:b:c", "b:c:*", false},
		{"a:b:c", "c", false},
		{"a:b:c", "b", false},
		{"a:b:c", "a:b:c:d", false},
		{"a:b", "a:b:*", false},
		{"room:1", "room:1:**", false},
		{"a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key+"~"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.key, tt.pattern))
		})
	}
}

func TestMatch_EmptySegments(t *testing.T) {
	// "" splits to one empty segment, and empty segments compare like any other.
	assert.True(t, Match("", ""))
	assert.True(t, Match("a::c", "a::c"))
	assert.True(t, Match("a::c", "a:*:c"))
	assert.True(t, Match("a:", "a:*"))
	assert.False(t, Match("a", "a:"))
}

func TestMatch_DoubleWildcardEverything(t *testing.T) {
	for _, key := range []string{"x", "x:y", "x:y:z:w", " ", "::"} {
		assert.True(t, Match(key, "**"), key)
	}
}

func TestMatch_IdenticalStrings(t *testing.T) {
	for _, key := range []string{"a", "a:b", "orders:eu:created", "*", "**:x", "a:**"} {
		assert.True(t, Match(key, key), key)
	}
}

func TestCompilePattern_ReusedAcrossKeys(t *testing.T) {
	p := compilePattern("room:*")
	assert.Equal(t, "room:*", p.String())
	assert.True(t, p.matchSegments([]string{"room", "1"}))
	assert.True(t, p.matchSegments([]string{"room", "2"}))
	assert.False(t, p.matchSegments([]string{"room"}))
	assert.False(t, p.matchSegments([]string{"room", "1", "x"}))
}

func BenchmarkMatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Match("orders:eu:created:42", "orders:*:created:**")
	}
}
