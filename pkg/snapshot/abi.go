package snapshot

import (
	"slices"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/ritzau/classpath-changes/pkg/classfile"
	"github.com/ritzau/classpath-changes/pkg/classid"
)

const (
	classAccessMask = classfile.AccPublic | classfile.AccPrivate | classfile.AccProtected | classfile.AccStatic |
		classfile.AccFinal | classfile.AccInterface | classfile.AccAbstract | classfile.AccAnnotation | classfile.AccEnum
	fieldAccessMask  = classfile.AccPublic | classfile.AccProtected | classfile.AccStatic | classfile.AccFinal | classfile.AccEnum
	methodAccessMask = classfile.AccPublic | classfile.AccProtected | classfile.AccStatic | classfile.AccFinal |
		classfile.AccAbstract | classfile.AccVarargs
)

const staticInitializer = "<clinit>"

// buildABI extracts the externally visible structure of cf. Members are
// sorted so that reordering them in the class file is not a change.
func buildABI(cf *classfile.ClassFile, id classid.ClassID) ClassABI {
	access := cf.Access
	if self, ok := cf.SelfInnerClass(); ok {
		// The InnerClasses row carries the source-level modifiers of a
		// nested class (private, protected, static).
		access = self.Access
	}

	abi := ClassABI{
		ClassID:    id,
		Access:     access & classAccessMask,
		SuperClass: cf.SuperClass,
		Interfaces: slices.Sorted(slices.Values(cf.Interfaces)),
		Signature:  cf.Signature,
	}

	for _, f := range cf.Fields {
		if !visible(f) {
			continue
		}
		m := MemberABI{
			Name:       f.Name,
			Descriptor: f.Descriptor,
			Signature:  f.Signature,
			Access:     f.Access & fieldAccessMask,
		}
		if f.Constant != nil {
			m.Constant = f.Constant.String()
		}
		abi.Fields = append(abi.Fields, m)
	}
	for _, mth := range cf.Methods {
		if !visible(mth) || mth.Name == staticInitializer || mth.Access&classfile.AccBridge != 0 {
			continue
		}
		var exceptions []string
		if len(mth.Exceptions) > 0 {
			exceptions = slices.Sorted(slices.Values(mth.Exceptions))
		}
		abi.Methods = append(abi.Methods, MemberABI{
			Name:       mth.Name,
			Descriptor: mth.Descriptor,
			Signature:  mth.Signature,
			Access:     mth.Access & methodAccessMask,
			Exceptions: exceptions,
		})
	}
	slices.SortFunc(abi.Fields, compareMembers)
	slices.SortFunc(abi.Methods, compareMembers)

	abi.Hash = hashABI(&abi)
	return abi
}

func visible(m classfile.Member) bool {
	return !m.IsPrivate() && !m.IsSynthetic()
}

func compareMembers(a, b MemberABI) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.Descriptor, b.Descriptor)
}

// hashABI digests the canonical encoding of everything except the hash
// itself. Fields are length-prefixed so that no two ABIs collide by
// concatenation.
func hashABI(a *ClassABI) uint64 {
	h := xxh3.New()
	put := func(s string) {
		h.WriteString(strconv.Itoa(len(s)))
		h.WriteString(":")
		h.WriteString(s)
	}
	putMembers := func(tag string, ms []MemberABI) {
		put(tag)
		put(strconv.Itoa(len(ms)))
		for _, m := range ms {
			put(m.Name)
			put(m.Descriptor)
			put(m.Signature)
			put(strconv.Itoa(int(m.Access)))
			put(m.Constant)
			put(strings.Join(m.Exceptions, ","))
		}
	}

	put(a.ClassID.InternalName)
	put(a.ClassID.FqName())
	put(strconv.Itoa(int(a.Access)))
	put(a.SuperClass)
	put(strings.Join(a.Interfaces, ","))
	put(a.Signature)
	putMembers("fields", a.Fields)
	putMembers("methods", a.Methods)
	return h.Sum64()
}

// MemberKey identifies a member by everything callers can observe.
func (m MemberABI) MemberKey() string {
	var sb strings.Builder
	sb.WriteString(m.Descriptor)
	sb.WriteByte('|')
	sb.WriteString(m.Signature)
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(int(m.Access)))
	sb.WriteByte('|')
	sb.WriteString(m.Constant)
	sb.WriteByte('|')
	sb.WriteString(strings.Join(m.Exceptions, ","))
	return sb.String()
}

func hashMetadata(md *classfile.KotlinMetadata) uint64 {
	h := xxh3.New()
	for _, part := range [][]string{md.Data1, md.Data2} {
		h.WriteString(strconv.Itoa(len(part)))
		for _, s := range part {
			h.WriteString(strconv.Itoa(len(s)))
			h.WriteString(":")
			h.WriteString(s)
		}
	}
	return h.Sum64()
}

// declarationNames keeps the d2 strings that can name a declaration; type
// descriptors, qualified names and the empty string are dropped.
func declarationNames(md *classfile.KotlinMetadata) []string {
	var names []string
	for _, s := range md.Data2 {
		if !classid.IsJavaIdentifierStart(s) || strings.ContainsAny(s, "/;.<>()[ ") {
			continue
		}
		names = append(names, s)
	}
	slices.Sort(names)
	return slices.Compact(names)
}
