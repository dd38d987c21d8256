package depcache

import (
	"context"
	"fmt"
	"slices"

	"github.com/ritzau/classpath-changes/pkg/snapshot"
)

// Save stores rec, reporting to the collector how it differs from what was
// stored under the same internal name.
func (c *Cache) Save(ctx context.Context, rec Record) error {
	name := rec.ABI.ClassID.InternalName
	old, err := c.load(ctx, name)
	if err != nil {
		return err
	}

	switch {
	case old == nil:
		c.reportAdded(rec)
	case old.hash == rec.ABI.Hash && old.metadataHash == rec.MetadataHash &&
		old.kind == rec.Kind && old.scope == rec.Scope:
		return nil
	case old.kind != rec.Kind || old.scope != rec.Scope:
		// A class turned into a file facade or moved scope: treat it as a
		// removal followed by an addition.
		c.reportRemoved(old)
		c.reportAdded(rec)
	default:
		c.reportDiff(old, rec)
	}
	return c.store(ctx, rec)
}

// RemoveAbsent deletes every stored class whose internal name is not in
// seen, reporting each as removed.
func (c *Cache) RemoveAbsent(ctx context.Context, seen map[string]struct{}) error {
	rows, err := c.q.QueryContext(ctx, `SELECT internal_name FROM classes ORDER BY internal_name`)
	if err != nil {
		return fmt.Errorf("list classes: %w", err)
	}
	var absent []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("list classes: %w", err)
		}
		if _, ok := seen[name]; !ok {
			absent = append(absent, name)
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("list classes: %w", err)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list classes: %w", err)
	}

	for _, name := range absent {
		old, err := c.load(ctx, name)
		if err != nil {
			return err
		}
		if old == nil {
			continue
		}
		c.reportRemoved(old)
		if err := c.delete(ctx, name); err != nil {
			return err
		}
	}
	if len(absent) > 0 {
		c.log.Debug("removed absent classes", "count", len(absent))
	}
	return nil
}

func (c *Cache) reportAdded(rec Record) {
	if rec.Kind == KindPackagePart {
		if names := allNames(rec.ABI, rec.DeclarationNames); len(names) > 0 {
			c.collector.Add(MembersChanged{Scope: rec.Scope, Names: names})
		}
		return
	}
	c.collector.Add(SignatureChanged{Class: refOf(rec.ABI)})
}

func (c *Cache) reportRemoved(old *storedClass) {
	if old.kind == KindPackagePart {
		if names := allNames(&old.abi, old.declarations); len(names) > 0 {
			c.collector.Add(MembersChanged{Scope: old.scope, Names: names})
		}
		return
	}
	c.collector.Add(SignatureChanged{Class: old.ref, AreSubclassesAffected: true})
}

func (c *Cache) reportDiff(old *storedClass, rec Record) {
	ref := refOf(rec.ABI)
	metadataChanged := old.metadataHash != rec.MetadataHash
	if rec.Kind == KindClass {
		supertypesChanged := old.abi.SuperClass != rec.ABI.SuperClass ||
			!slices.Equal(old.abi.Interfaces, rec.ABI.Interfaces)
		headerChanged := supertypesChanged ||
			old.abi.Access != rec.ABI.Access ||
			old.abi.Signature != rec.ABI.Signature ||
			old.ref.FqName != ref.FqName
		if headerChanged || metadataChanged {
			c.collector.Add(SignatureChanged{
				Class:                 ref,
				AreSubclassesAffected: supertypesChanged || old.abi.Access != rec.ABI.Access,
			})
		}
	}

	names := changedMemberNames(&old.abi, rec.ABI)
	if metadataChanged {
		// The metadata does not say which declaration changed, so every
		// member on either side is dirty.
		names = slices.Concat(names, allNames(&old.abi, old.declarations), allNames(rec.ABI, rec.DeclarationNames))
		slices.Sort(names)
		names = slices.Compact(names)
	}
	if len(names) > 0 {
		change := MembersChanged{Scope: rec.Scope, Names: names}
		if rec.Kind == KindClass {
			change.Class = ref
		}
		c.collector.Add(change)
	}
}

// changedMemberNames returns the sorted names whose set of overloads or
// field definitions differs between old and cur.
func changedMemberNames(old, cur *snapshot.ClassABI) []string {
	before, after := memberIndex(old), memberIndex(cur)
	var names []string
	for name, keys := range before {
		if !slices.Equal(keys, after[name]) {
			names = append(names, name)
		}
	}
	for name := range after {
		if _, ok := before[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// memberIndex maps member names to the sorted keys of all members with that
// name. Fields and methods are kept apart by prefix.
func memberIndex(abi *snapshot.ClassABI) map[string][]string {
	idx := make(map[string][]string)
	for _, f := range abi.Fields {
		idx[f.Name] = append(idx[f.Name], "F"+f.MemberKey())
	}
	for _, m := range abi.Methods {
		idx[m.Name] = append(idx[m.Name], "M"+m.MemberKey())
	}
	for name := range idx {
		slices.Sort(idx[name])
	}
	return idx
}

func memberNames(abi *snapshot.ClassABI) []string {
	var names []string
	for name := range memberIndex(abi) {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// allNames is memberNames plus the declaration names from Kotlin metadata.
func allNames(abi *snapshot.ClassABI, declarations []string) []string {
	names := slices.Concat(memberNames(abi), declarations)
	slices.Sort(names)
	return slices.Compact(names)
}
