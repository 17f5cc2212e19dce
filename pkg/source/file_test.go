package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/proxylist/pkg/reader"
)

var _ reader.Reader[string] = (*FileSource)(nil)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAll(t *testing.T, r reader.Reader[string]) []string {
	t.Helper()
	lines, err := reader.Collect[string](context.Background(), r)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return lines
}

func TestFileSource_MultipleFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "1.1.1.1:80\n2.2.2.2:80\n")
	b := writeFile(t, dir, "b.txt", "3.3.3.3:1080\r\n")

	src := NewFileSource([]string{a, b})
	defer src.Close()

	got := readAll(t, src)
	want := []string{"1.1.1.1:80", "2.2.2.2:80", "3.3.3.3:1080"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("lines = %v, want %v", got, want)
	}
	if src.Index() != 3 {
		t.Errorf("Index() = %d, want 3", src.Index())
	}
	if _, ok := src.Len(); ok {
		t.Error("Len() should be unknown for files")
	}

	// Exhaustion is sticky.
	for i := 0; i < 2; i++ {
		if _, err := src.Read(context.Background()); err != io.EOF {
			t.Errorf("Read() after end = %v, want io.EOF", err)
		}
	}
}

func TestFileSource_SkipOptions(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "list.txt", "# header\n\n1.1.1.1:80\n   \n  # indented\n2.2.2.2:80\n")

	tests := []struct {
		name string
		opts []FileOption
		want int
	}{
		{"keep everything", nil, 6},
		{"skip blank", []FileOption{WithSkipBlank(true)}, 4},
		{"skip comments", []FileOption{WithCommentPrefix("#")}, 4},
		{"skip both", []FileOption{WithSkipBlank(true), WithCommentPrefix("#")}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFileSource([]string{path}, tt.opts...)
			defer src.Close()
			if got := readAll(t, src); len(got) != tt.want {
				t.Errorf("got %d lines %q, want %d", len(got), got, tt.want)
			}
		})
	}
}

func TestFileSource_Position(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "list.txt", "# comment\n1.1.1.1:80\n")

	src := NewFileSource([]string{path}, WithCommentPrefix("#"))
	defer src.Close()

	line, err := src.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if line != "1.1.1.1:80" {
		t.Errorf("line = %q", line)
	}
	file, n := src.Position()
	if file != path || n != 2 {
		t.Errorf("Position() = (%s, %d), want (%s, 2)", file, n, path)
	}
	if src.Index() != 1 {
		t.Errorf("Index() = %d, want 1", src.Index())
	}
}

func TestFileSource_Reset(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "list.txt", "a\nb\nc\n")
	ctx := context.Background()

	src := NewFileSource([]string{path})
	defer src.Close()

	if _, err := src.Read(ctx); err != nil {
		t.Fatal(err)
	}
	if err := src.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if src.Index() != 0 {
		t.Errorf("Index() after Reset = %d, want 0", src.Index())
	}
	if got := readAll(t, src); len(got) != 3 {
		t.Errorf("after Reset got %v, want 3 lines", got)
	}

	// Reset after exhaustion restarts too.
	if err := src.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if got := readAll(t, src); len(got) != 3 {
		t.Errorf("second pass got %v, want 3 lines", got)
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	src := NewFileSource([]string{filepath.Join(t.TempDir(), "absent.txt")})
	defer src.Close()

	_, err := src.Read(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read() error = %v, want os.ErrNotExist", err)
	}
}

func TestFileSource_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "list.txt", "a\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewFileSource([]string{path})
	defer src.Close()
	if _, err := src.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
}

func TestFileSource_NoFiles(t *testing.T) {
	src := NewFileSource(nil)
	if _, err := src.Read(context.Background()); err != io.EOF {
		t.Errorf("Read() = %v, want io.EOF", err)
	}
}

func TestFileSource_FailedOpenIsRetried(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "1.1.1.1:80\n")
	late := filepath.Join(dir, "late.txt")
	c := writeFile(t, dir, "c.txt", "3.3.3.3:80\n")

	src := NewFileSource([]string{a, late, c})
	defer src.Close()
	ctx := context.Background()

	if line, err := src.Read(ctx); err != nil || line != "1.1.1.1:80" {
		t.Fatalf("Read() = %q, %v", line, err)
	}
	for i := 0; i < 2; i++ {
		if _, err := src.Read(ctx); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("Read() error = %v, want not exist", err)
		}
	}

	writeFile(t, dir, "late.txt", "2.2.2.2:80\n")

	got := readAll(t, src)
	want := []string{"2.2.2.2:80", "3.3.3.3:80"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("lines after retry = %v, want %v", got, want)
	}
	if file, n := src.Position(); file != c || n != 1 {
		t.Errorf("Position() = (%s, %d), want (%s, 1)", file, n, c)
	}
}
