// Package snapshot computes structural ABI fingerprints of classes and
// aggregates them into classpath entry and classpath snapshots.
package snapshot

import (
	"github.com/ritzau/classpath-changes/pkg/classfile"
	"github.com/ritzau/classpath-changes/pkg/classid"
)

// ErrMalformedClassFile is returned when a class in a batch does not parse.
var ErrMalformedClassFile = classfile.ErrMalformedClassFile

// ClassSnapshot is one of KotlinClassSnapshot, RegularJavaClassSnapshot or
// EmptyJavaClassSnapshot. The kind is fixed at creation.
type ClassSnapshot interface {
	isClassSnapshot()
}

// KotlinClassSnapshot is built from a class carrying kotlin.Metadata.
type KotlinClassSnapshot struct {
	ClassInfo *KotlinClassInfo
}

// RegularJavaClassSnapshot is built from the bytecode of a regular Java class.
type RegularJavaClassSnapshot struct {
	Descriptor *JavaClassDescriptor
}

// EmptyJavaClassSnapshot stands in for classes that cannot affect the ABI of
// any other compilation unit.
type EmptyJavaClassSnapshot struct{}

func (KotlinClassSnapshot) isClassSnapshot()      {}
func (RegularJavaClassSnapshot) isClassSnapshot() {}
func (EmptyJavaClassSnapshot) isClassSnapshot()   {}

// KotlinClassKind mirrors the "k" field of kotlin.Metadata.
type KotlinClassKind int

const (
	KotlinClass                KotlinClassKind = 1
	KotlinFileFacade           KotlinClassKind = 2
	KotlinSyntheticClass       KotlinClassKind = 3
	KotlinMultifileClassFacade KotlinClassKind = 4
	KotlinMultifileClassPart   KotlinClassKind = 5
)

func (k KotlinClassKind) String() string {
	switch k {
	case KotlinClass:
		return "class"
	case KotlinFileFacade:
		return "file-facade"
	case KotlinSyntheticClass:
		return "synthetic-class"
	case KotlinMultifileClassFacade:
		return "multifile-class-facade"
	case KotlinMultifileClassPart:
		return "multifile-class-part"
	}
	return "unknown"
}

// Known reports whether k is a kind this package understands.
func (k KotlinClassKind) Known() bool {
	return k >= KotlinClass && k <= KotlinMultifileClassPart
}

// PackageScoped reports whether members of this kind are top-level
// declarations looked up in the package rather than in the class.
func (k KotlinClassKind) PackageScoped() bool {
	return k == KotlinFileFacade || k == KotlinMultifileClassFacade || k == KotlinMultifileClassPart
}

// KotlinClassInfo is the structural information of a Kotlin class.
type KotlinClassInfo struct {
	ABI             ClassABI        `json:"abi"`
	Kind            KotlinClassKind `json:"kind"`
	MetadataVersion []int           `json:"metadataVersion,omitempty"`
	PackageName     string          `json:"packageName"`
	FacadeName      string          `json:"facadeName,omitempty"`
	// MetadataHash digests d1 and d2. Nullability, default arguments,
	// visibility such as internal and inline bodies live only in the
	// metadata, so a different hash is an ABI change even when the
	// bytecode ABI is identical.
	MetadataHash uint64 `json:"metadataHash"`
	// DeclarationNames are the identifier-like strings of d2: the names of
	// members and parameters declared in the metadata.
	DeclarationNames []string `json:"declarationNames,omitempty"`
}

// JavaClassDescriptor is the structural information of a Java class.
type JavaClassDescriptor struct {
	ABI ClassABI `json:"abi"`
}

// ClassABI is the externally visible structure of a class.
type ClassABI struct {
	ClassID    classid.ClassID `json:"classId"`
	Access     uint16          `json:"access"`
	SuperClass string          `json:"superClass,omitempty"`
	Interfaces []string        `json:"interfaces,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Fields     []MemberABI     `json:"fields,omitempty"`
	Methods    []MemberABI     `json:"methods,omitempty"`
	Hash       uint64          `json:"hash"`
}

// Supertypes returns the superclass followed by the interfaces.
func (a *ClassABI) Supertypes() []string {
	out := make([]string, 0, len(a.Interfaces)+1)
	if a.SuperClass != "" {
		out = append(out, a.SuperClass)
	}
	return append(out, a.Interfaces...)
}

// MemberABI is a non-private field or method.
type MemberABI struct {
	Name       string   `json:"name"`
	Descriptor string   `json:"descriptor"`
	Signature  string   `json:"signature,omitempty"`
	Access     uint16   `json:"access"`
	Constant   string   `json:"constant,omitempty"`
	Exceptions []string `json:"exceptions,omitempty"`
}

// ABIOf returns the ABI carried by a snapshot, or nil for empty snapshots.
func ABIOf(s ClassSnapshot) *ClassABI {
	switch s := s.(type) {
	case KotlinClassSnapshot:
		return &s.ClassInfo.ABI
	case RegularJavaClassSnapshot:
		return &s.Descriptor.ABI
	case EmptyJavaClassSnapshot:
		return nil
	}
	panic("unreachable")
}

// KindName is a short label for the snapshot variant.
func KindName(s ClassSnapshot) string {
	switch s.(type) {
	case KotlinClassSnapshot:
		return kindKotlin
	case RegularJavaClassSnapshot:
		return kindJava
	case EmptyJavaClassSnapshot:
		return kindEmpty
	}
	panic("unreachable")
}

const (
	kindKotlin = "kotlin"
	kindJava   = "java"
	kindEmpty  = "empty"
)

// ClassEntry pairs a relative class file path with its snapshot.
type ClassEntry struct {
	Path     string
	Snapshot ClassSnapshot
}

// ClasspathEntrySnapshot holds the snapshots of one classpath element in
// path order.
type ClasspathEntrySnapshot struct {
	Entry   string
	Classes []ClassEntry
}

// Lookup returns the snapshot stored for a relative path.
func (e *ClasspathEntrySnapshot) Lookup(path string) (ClassSnapshot, bool) {
	for _, c := range e.Classes {
		if c.Path == path {
			return c.Snapshot, true
		}
	}
	return nil, false
}

// ClasspathSnapshot is the full classpath in classpath order.
type ClasspathSnapshot struct {
	Entries []ClasspathEntrySnapshot
}

// Classes flattens the snapshot in entry order, then path order.
func (s *ClasspathSnapshot) Classes() []ClassSnapshot {
	var n int
	for _, e := range s.Entries {
		n += len(e.Classes)
	}
	out := make([]ClassSnapshot, 0, n)
	for _, e := range s.Entries {
		for _, c := range e.Classes {
			out = append(out, c.Snapshot)
		}
	}
	return out
}
