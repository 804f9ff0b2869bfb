package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already clean", "my-project", "my-project"},
		{"preserves case", "MyProject", "MyProject"},
		{"spaces and punctuation", "My Project!", "My_Project_"},
		{"dots and dashes kept", "v1.2-rc.1", "v1.2-rc.1"},
		{"unicode replaced", "projé€t", "proj__t"},
		{"empty", "", DefaultName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.input))
		})
	}
}

func TestChanged(t *testing.T) {
	assert.False(t, Changed("clean-name_1.0"))
	assert.True(t, Changed("has space"))
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain title", "Fix the parser", "Fix_the_parser"},
		{"collapses underscores", "a   b!!c", "a_b_c"},
		{"trims edges", "  trimmed  ", "trimmed"},
		{"only junk", "???", DefaultName},
		{"empty", "", DefaultName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileStem(tt.input))
		})
	}
}

func TestFileStemCapsLength(t *testing.T) {
	long := strings.Repeat("a", 500)
	stem := FileStem(long)
	assert.Len(t, stem, MaxStemLength)
}

func TestShortID(t *testing.T) {
	a := ShortID("cursor", "conv-1")
	b := ShortID("cursor", "conv-1")
	c := ShortID("claude_code", "conv-1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 8)

	// The NUL join means ("ab","c") and ("a","bc") differ.
	assert.NotEqual(t, ShortID("ab", "c"), ShortID("a", "bc"))
}
