package depcache

import (
	"context"
	"fmt"

	"github.com/ritzau/classpath-changes/pkg/graph"
)

// DirtyData is the set of symbols and classes affected by the collected
// changes. Entries are unique but unordered.
type DirtyData struct {
	LookupSymbols []LookupSymbol
	FqNames       []string
}

type dirtySet struct {
	symbols    map[LookupSymbol]struct{}
	symbolList []LookupSymbol
	fqNames    map[string]struct{}
	fqNameList []string
}

func newDirtySet() *dirtySet {
	return &dirtySet{
		symbols: make(map[LookupSymbol]struct{}),
		fqNames: make(map[string]struct{}),
	}
}

func (d *dirtySet) addSymbol(name, scope string) {
	s := LookupSymbol{Name: name, Scope: scope}
	if _, ok := d.symbols[s]; ok {
		return
	}
	d.symbols[s] = struct{}{}
	d.symbolList = append(d.symbolList, s)
}

func (d *dirtySet) addFqName(fq string) {
	if _, ok := d.fqNames[fq]; ok {
		return
	}
	d.fqNames[fq] = struct{}{}
	d.fqNameList = append(d.fqNameList, fq)
}

// DirtyData resolves the collected changes against the current cache
// contents. Subtypes are expanded through the stored supertype edges.
func (c *Cache) DirtyData(ctx context.Context) (DirtyData, error) {
	if c.collector.IsEmpty() {
		return DirtyData{}, nil
	}

	supertypes, err := c.supertypeGraph(ctx)
	if err != nil {
		return DirtyData{}, err
	}
	refs, err := c.classRefs(ctx)
	if err != nil {
		return DirtyData{}, err
	}

	withSubtypes := func(ref ClassRef) []ClassRef {
		out := []ClassRef{ref}
		for _, sub := range supertypes.Subtypes(ref.InternalName) {
			if r, ok := refs[sub]; ok {
				out = append(out, r)
			}
		}
		return out
	}

	dirty := newDirtySet()
	for _, change := range c.collector.Changes() {
		switch change := change.(type) {
		case SignatureChanged:
			affected := []ClassRef{change.Class}
			if change.AreSubclassesAffected {
				affected = withSubtypes(change.Class)
			}
			for _, ref := range affected {
				dirty.addFqName(ref.FqName)
				dirty.addSymbol(ref.ShortName, ref.ParentFqName)
				dirty.addSymbol(SAMLookupName, ref.FqName)
			}
		case MembersChanged:
			if change.Class.InternalName == "" {
				// Top-level declarations: only the package scope is dirty.
				for _, name := range change.Names {
					dirty.addSymbol(name, change.Scope)
				}
				continue
			}
			for _, ref := range withSubtypes(change.Class) {
				dirty.addFqName(ref.FqName)
				for _, name := range change.Names {
					dirty.addSymbol(name, ref.FqName)
				}
				dirty.addSymbol(SAMLookupName, ref.FqName)
			}
		default:
			return DirtyData{}, fmt.Errorf("unexpected change %T", change)
		}
	}

	return DirtyData{LookupSymbols: dirty.symbolList, FqNames: dirty.fqNameList}, nil
}

func (c *Cache) supertypeGraph(ctx context.Context) (*graph.SupertypeGraph, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT child, parent FROM supertypes ORDER BY child, parent`)
	if err != nil {
		return nil, fmt.Errorf("load supertypes: %w", err)
	}
	defer rows.Close()

	g := graph.NewSupertypeGraph()
	for rows.Next() {
		var child, parent string
		if err := rows.Scan(&child, &parent); err != nil {
			return nil, fmt.Errorf("load supertypes: %w", err)
		}
		g.AddSupertype(child, parent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load supertypes: %w", err)
	}
	return g, nil
}

func (c *Cache) classRefs(ctx context.Context) (map[string]ClassRef, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT internal_name, fq_name, parent_fq_name, short_name FROM classes WHERE kind = ?`, string(KindClass))
	if err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]ClassRef)
	for rows.Next() {
		var r ClassRef
		if err := rows.Scan(&r.InternalName, &r.FqName, &r.ParentFqName, &r.ShortName); err != nil {
			return nil, fmt.Errorf("load classes: %w", err)
		}
		refs[r.InternalName] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}
	return refs, nil
}
