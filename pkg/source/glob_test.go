package source

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeLists(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("10.0.0.1:8080\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	writeLists(t, dir, "http.txt", "socks5.txt", "notes.md")

	join := func(name string) string { return filepath.Join(dir, name) }

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "plain path",
			patterns: []string{join("http.txt")},
			want:     []string{join("http.txt")},
		},
		{
			name:     "glob expands sorted",
			patterns: []string{join("*.txt")},
			want:     []string{join("http.txt"), join("socks5.txt")},
		},
		{
			name:     "unmatched glob kept verbatim",
			patterns: []string{join("*.lst")},
			want:     []string{join("*.lst")},
		},
		{
			name:     "duplicates collapse",
			patterns: []string{join("http.txt"), join("*.txt"), join("http.txt")},
			want:     []string{join("http.txt"), join("socks5.txt")},
		},
		{
			name:     "empty input",
			patterns: nil,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandGlobs(tt.patterns)
			if err != nil {
				t.Fatalf("ExpandGlobs() error = %v", err)
			}
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandGlobs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandGlobs_InvalidPattern(t *testing.T) {
	if _, err := ExpandGlobs([]string{"[proxies"}); err == nil {
		t.Error("ExpandGlobs() expected error for malformed glob")
	}
}
