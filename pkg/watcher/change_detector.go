package watcher

import "path/filepath"

// AffectedEntries returns the classpath entries, in classpath order, that
// contain at least one of the changed paths. Only these need a new snapshot.
func AffectedEntries(event ChangeEvent, classpath []string) []string {
	var affected []string
	for _, entry := range classpath {
		abs, err := filepath.Abs(entry)
		if err != nil {
			continue
		}
		for _, path := range event.Paths {
			if isUnder(path, abs) {
				affected = append(affected, entry)
				break
			}
		}
	}
	return affected
}
