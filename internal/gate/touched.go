package gate

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultTestPatterns match Go test files anywhere in the tree.
var DefaultTestPatterns = []string{"**/*_test.go"}

// ValidatePatterns reports the first malformed glob in patterns.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid test pattern %q", p)
		}
	}
	return nil
}

// TouchedTests returns the files of submitted that were already approved and
// match one of patterns, in submission order. Paths are compared cleaned and
// slash-separated.
func TouchedTests(approved, submitted, patterns []string) ([]string, error) {
	if err := ValidatePatterns(patterns); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(approved))
	for _, f := range approved {
		known[normalize(f)] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, f := range submitted {
		name := normalize(f)
		if !known[name] || seen[name] {
			continue
		}
		for _, p := range patterns {
			if doublestar.MatchUnvalidated(p, name) {
				out = append(out, name)
				seen[name] = true
				break
			}
		}
	}
	return out, nil
}

func normalize(f string) string {
	return path.Clean(filepath.ToSlash(f))
}
