package fs

import (
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.log"})
		want := len(defaultIgnorePatterns) + 1
		if len(m.patterns) != want {
			t.Fatalf("expected %d patterns, got %d", want, len(m.patterns))
		}
		last := m.patterns[len(m.patterns)-1]
		if last.pattern != "*.log" {
			t.Errorf("expected *.log, got %s", last.pattern)
		}
	})

	t.Run("classifies path vs basename patterns", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.log", "build/output"})
		patterns := m.patterns[len(defaultIgnorePatterns):]
		if patterns[0].matchPath {
			t.Error("*.log should not be a path pattern")
		}
		if !patterns[1].matchPath {
			t.Error("build/output should be a path pattern")
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name         string
		patterns     []string
		relativePath string
		want         bool
	}{
		{
			name:         "inventor lock file ignored by default",
			patterns:     nil,
			relativePath: "~$Bracket.ipt",
			want:         true,
		},
		{
			name:         "lock file ignored in subdirectory",
			patterns:     nil,
			relativePath: filepath.Join("frame", "~$Plate.ipt"),
			want:         true,
		},
		{
			name:         "backup file ignored by default",
			patterns:     nil,
			relativePath: "Bracket.ipt.bak",
			want:         true,
		},
		{
			name:         "regular part file not ignored",
			patterns:     nil,
			relativePath: "Bracket.ipt",
			want:         false,
		},
		{
			name:         "basename glob matches file in subdirectory",
			patterns:     []string{"*.log"},
			relativePath: filepath.Join("sub", "app.log"),
			want:         true,
		},
		{
			name:         "basename glob does not match different extension",
			patterns:     []string{"*.log"},
			relativePath: "app.txt",
			want:         false,
		},
		{
			name:         "path pattern matches exact relative path",
			patterns:     []string{"drafts/scratch.ipt"},
			relativePath: filepath.Join("drafts", "scratch.ipt"),
			want:         true,
		},
		{
			name:         "path pattern does not match wrong path",
			patterns:     []string{"drafts/scratch.ipt"},
			relativePath: filepath.Join("frame", "scratch.ipt"),
			want:         false,
		},
		{
			name:         "path pattern with glob",
			patterns:     []string{"drafts/*.ipt"},
			relativePath: filepath.Join("drafts", "Plate.ipt"),
			want:         true,
		},
		{
			name:         "question mark wildcard",
			patterns:     []string{"?.txt"},
			relativePath: "a.txt",
			want:         true,
		},
		{
			name:         "empty string path",
			patterns:     []string{"*.log"},
			relativePath: "",
			want:         false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			got := m.Match(tt.relativePath)
			if got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
		})
	}
}
