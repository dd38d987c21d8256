// Package changes computes which lookup symbols and classes changed between
// two classpath snapshots.
package changes

import (
	"cmp"
	"slices"

	"github.com/ritzau/classpath-changes/pkg/depcache"
)

// LookupSymbol is a (name, scope) pair. Ordered by name, then scope.
type LookupSymbol = depcache.LookupSymbol

// ClasspathChanges is either Available or NotAvailable.
type ClasspathChanges interface {
	isClasspathChanges()
}

// Available lists what changed. Both slices are sorted and free of
// duplicates.
type Available struct {
	LookupSymbols []LookupSymbol
	FqNames       []string
}

// NotAvailable means changes could not be computed and the caller has to
// fall back to a full rebuild.
type NotAvailable struct {
	Reason Reason
}

func (Available) isClasspathChanges()    {}
func (NotAvailable) isClasspathChanges() {}

// IsEmpty reports whether nothing changed.
func (a Available) IsEmpty() bool {
	return len(a.LookupSymbols) == 0 && len(a.FqNames) == 0
}

// Reason explains why changes are not available.
type Reason int

const (
	UnableToCompute Reason = iota + 1
	MissingClasspathSnapshot
	ForNonIncrementalRun
	ClasspathSnapshotIsDisabled
)

func (r Reason) String() string {
	switch r {
	case UnableToCompute:
		return "unable to compute"
	case MissingClasspathSnapshot:
		return "missing classpath snapshot"
	case ForNonIncrementalRun:
		return "non-incremental run"
	case ClasspathSnapshotIsDisabled:
		return "classpath snapshot is disabled"
	}
	return "unknown"
}

// CompareLookupSymbols orders symbols by name, then scope.
func CompareLookupSymbols(a, b LookupSymbol) int {
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.Scope, b.Scope)
}

// NewAvailable sorts and de-duplicates its inputs.
func NewAvailable(symbols []LookupSymbol, fqNames []string) Available {
	symbols = slices.Clone(symbols)
	slices.SortFunc(symbols, CompareLookupSymbols)
	symbols = slices.Compact(symbols)

	fqNames = slices.Clone(fqNames)
	slices.Sort(fqNames)
	fqNames = slices.Compact(fqNames)

	if symbols == nil {
		symbols = []LookupSymbol{}
	}
	if fqNames == nil {
		fqNames = []string{}
	}
	return Available{LookupSymbols: symbols, FqNames: fqNames}
}
