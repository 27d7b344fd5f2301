package assets

import (
	"fmt"
	"path/filepath"
	"sort"
)

// DiscoverSeeds lists the seed files in dir, sorted by name. A missing
// directory yields an empty list: seeding is optional.
func DiscoverSeeds(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan seed directory %s: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}
