package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGitignoreParserBasicPatterns(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		isDir    bool
		expected bool
	}{
		{"exact file match", "foo.txt", "foo.txt", false, true},
		{"extension wildcard", "*.log", "debug.log", false, true},
		{"extension wildcard miss", "*.log", "debug.txt", false, false},
		{"directory pattern matches dir", "build/", "build", true, true},
		{"directory pattern spares file", "build/", "build", false, false},
		{"nested path suffix match", "*.log", "logs/debug.log", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gp := NewGitignoreParser()
			gp.AddPattern(tt.pattern)
			assert.Equal(t, tt.expected, gp.ShouldIgnore(tt.path, tt.isDir))
		})
	}
}

func TestGitignoreParserNegation(t *testing.T) {
	gp := NewGitignoreParser()
	gp.AddPattern("*.log")
	gp.AddPattern("!important.log")

	assert.True(t, gp.ShouldIgnore("debug.log", false))
	assert.False(t, gp.ShouldIgnore("important.log", false))
}

func TestGetExclusionPatternsSkipsNegations(t *testing.T) {
	gp := NewGitignoreParser()
	gp.AddPattern("*.log")
	gp.AddPattern("!important.log")

	patterns := gp.GetExclusionPatterns()
	assert.Contains(t, patterns, "**/*.log")
	assert.NotContains(t, patterns, "**/important.log")
}
