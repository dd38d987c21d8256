package container

import (
	"path"
	"strings"
)

const (
	classSuffix      = ".class"
	moduleDescriptor = "module-info.class"
	metadataPrefix   = "meta-inf/"
)

// ClassFileFilter accepts regular class files, skipping module descriptors
// and anything under META-INF. All comparisons ignore case.
func ClassFileFilter(relativePath string, isDirectory bool) bool {
	if isDirectory {
		return false
	}
	lower := strings.ToLower(relativePath)
	if !strings.HasSuffix(lower, classSuffix) {
		return false
	}
	if path.Base(lower) == moduleDescriptor {
		return false
	}
	return !strings.HasPrefix(lower, metadataPrefix)
}
