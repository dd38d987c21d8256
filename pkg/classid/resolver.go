package classid

import (
	"strings"

	"github.com/ritzau/classpath-changes/pkg/classfile"
)

// ClassID names a class the way source code refers to it.
type ClassID struct {
	Package      string `json:"package"`      // dotted, empty for the default package
	RelativeName string `json:"relativeName"` // dotted path from the package, e.g. "Outer.Inner"
	InternalName string `json:"internalName"` // e.g. "com/example/Outer$Inner"
}

// FqName is the fully-qualified dotted name.
func (id ClassID) FqName() string {
	if id.Package == "" {
		return id.RelativeName
	}
	return id.Package + "." + id.RelativeName
}

// ShortName is the last segment of the relative name.
func (id ClassID) ShortName() string {
	if i := strings.LastIndexByte(id.RelativeName, '.'); i >= 0 {
		return id.RelativeName[i+1:]
	}
	return id.RelativeName
}

// ParentFqName is the enclosing scope: the outer class for nested classes,
// the package otherwise.
func (id ClassID) ParentFqName() string {
	i := strings.LastIndexByte(id.RelativeName, '.')
	if i < 0 {
		return id.Package
	}
	if id.Package == "" {
		return id.RelativeName[:i]
	}
	return id.Package + "." + id.RelativeName[:i]
}

func (id ClassID) String() string { return id.FqName() }

// Resolved is the outcome of resolving one class of a batch.
type Resolved struct {
	ID ClassID
	// Local is true when the class or any class it is nested in is local.
	Local bool
}

// Resolver resolves identities of a batch of classes in two phases: Add
// records every class, Resolve then walks outer chains using only what was
// recorded. Outer classes missing from the batch are assumed non-local.
type Resolver struct {
	identities map[string]Identity
	resolved   map[string]Resolved
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		identities: make(map[string]Identity),
		resolved:   make(map[string]Resolved),
	}
}

// Add classifies cf and records it. Adding the same internal name twice
// keeps the first.
func (r *Resolver) Add(cf *classfile.ClassFile) Identity {
	if id, ok := r.identities[cf.ThisClass]; ok {
		return id
	}
	id := ClassifyParsed(cf)
	r.identities[cf.ThisClass] = id
	return id
}

// Identity returns the recorded identity of a class.
func (r *Resolver) Identity(internalName string) (Identity, bool) {
	id, ok := r.identities[internalName]
	return id, ok
}

// Resolve returns the class id and effective locality of internalName.
// Cyclic nesting metadata resolves as local.
func (r *Resolver) Resolve(internalName string) Resolved {
	if res, ok := r.resolved[internalName]; ok {
		return res
	}

	// Walk outwards until a class with a known answer, then fill in the
	// chain from the outermost class inwards.
	var chain []string
	onChain := make(map[string]bool)
	var base Resolved
	cur := internalName
	for {
		if res, ok := r.resolved[cur]; ok {
			base = res
			break
		}
		if onChain[cur] {
			base = Resolved{ID: fallbackID(cur), Local: true}
			break
		}
		id, known := r.identities[cur]
		if !known {
			base = Resolved{ID: fallbackID(cur)}
			break
		}

		switch id := id.(type) {
		case TopLevel:
			base = Resolved{ID: topLevelID(cur)}
		case Local:
			base = Resolved{ID: topLevelID(cur), Local: true}
		case NestedNonLocal:
			chain = append(chain, cur)
			onChain[cur] = true
			cur = id.Outer
			continue
		}
		r.resolved[cur] = base
		break
	}

	for i := len(chain) - 1; i >= 0; i-- {
		name := chain[i]
		nested := r.identities[name].(NestedNonLocal)
		simple := nested.Simple
		if simple == "" {
			simple = trailingSegment(name)
		}
		res := Resolved{
			ID: ClassID{
				Package:      PackageOf(name),
				RelativeName: base.ID.RelativeName + "." + simple,
				InternalName: name,
			},
			Local: base.Local,
		}
		r.resolved[name] = res
		base = res
	}
	if res, ok := r.resolved[internalName]; ok {
		return res
	}
	return base
}

func topLevelID(internalName string) ClassID {
	return ClassID{
		Package:      PackageOf(internalName),
		RelativeName: SimpleBinaryName(internalName),
		InternalName: internalName,
	}
}

// fallbackID is used for outer classes outside the batch; '$' is read as a
// nesting separator since there is no InnerClasses row to say otherwise.
func fallbackID(internalName string) ClassID {
	return ClassID{
		Package:      PackageOf(internalName),
		RelativeName: strings.ReplaceAll(SimpleBinaryName(internalName), "$", "."),
		InternalName: internalName,
	}
}
