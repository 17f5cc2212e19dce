package source

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/samber/lo"
)

// ExpandGlobs expands a list of file paths and glob patterns into a deduplicated,
// sorted list of matching file paths. Patterns that don't match any files are
// returned as-is so the caller reports a file-not-found error for them.
func ExpandGlobs(patterns []string) ([]string, error) {
	var result []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			result = append(result, pattern)
			continue
		}
		result = append(result, matches...)
	}

	result = lo.Uniq(result)
	sort.Strings(result)
	return result, nil
}
