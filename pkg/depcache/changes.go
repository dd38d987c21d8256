package depcache

// SAMLookupName is the pseudo member name referrers record when they use a
// class as a SAM conversion target.
const SAMLookupName = "<SAM-CONSTRUCTOR>"

// LookupSymbol is a member name looked up in a scope (class or package fq-name).
type LookupSymbol struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

// ChangeInfo is one of SignatureChanged or MembersChanged.
type ChangeInfo interface {
	isChangeInfo()
}

// SignatureChanged reports a class-level change: the class was added or
// removed, or its modifiers, kind or supertypes changed.
type SignatureChanged struct {
	Class                 ClassRef
	AreSubclassesAffected bool
}

// MembersChanged reports members that were added, removed or changed.
// Scope is the class fq-name, or the package fq-name for top-level
// declarations, in which case Class is the zero value.
type MembersChanged struct {
	Scope string
	Class ClassRef
	Names []string
}

func (SignatureChanged) isChangeInfo() {}
func (MembersChanged) isChangeInfo()   {}

// ClassRef carries the names a change needs once the class row may be gone.
type ClassRef struct {
	InternalName string
	FqName       string
	ParentFqName string
	ShortName    string
}

// ChangesCollector accumulates the changes reported by Save and RemoveAbsent.
type ChangesCollector struct {
	changes []ChangeInfo
}

// Add records a change.
func (c *ChangesCollector) Add(change ChangeInfo) {
	c.changes = append(c.changes, change)
}

// Changes returns the changes in the order they were reported.
func (c *ChangesCollector) Changes() []ChangeInfo {
	return c.changes
}

// Reset discards accumulated changes.
func (c *ChangesCollector) Reset() {
	c.changes = nil
}

// IsEmpty reports whether nothing was collected.
func (c *ChangesCollector) IsEmpty() bool {
	return len(c.changes) == 0
}
