// Package classid derives a class's structural identity (top-level, local or
// nested) from binary naming conventions and nesting attributes, without
// needing the rest of the classpath.
package classid

import (
	"strings"
	"unicode"

	"github.com/ritzau/classpath-changes/pkg/classfile"
)

// Identity is one of TopLevel, Local or NestedNonLocal.
type Identity interface {
	isIdentity()
	String() string
}

// TopLevel is a class that is not nested in any other class.
type TopLevel struct{}

// Local is a local or anonymous class whose name cannot be referenced from
// another compilation unit.
type Local struct{}

// NestedNonLocal is a member class of Outer.
type NestedNonLocal struct {
	Anonymous bool
	Synthetic bool
	Outer     string // internal name of the outer class
	Simple    string // simple name, empty when anonymous
}

func (TopLevel) isIdentity()       {}
func (Local) isIdentity()          {}
func (NestedNonLocal) isIdentity() {}

func (TopLevel) String() string { return "top-level" }
func (Local) String() string    { return "local" }

func (n NestedNonLocal) String() string {
	s := "nested in " + n.Outer
	if n.Anonymous {
		s += " (anonymous)"
	}
	if n.Synthetic {
		s += " (synthetic)"
	}
	return s
}

// Classify parses data and classifies the class it contains.
func Classify(data []byte) (Identity, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}
	return ClassifyParsed(cf), nil
}

// ClassifyParsed classifies an already parsed class.
func ClassifyParsed(cf *classfile.ClassFile) Identity {
	if cf.EnclosingMethod != nil {
		return Local{}
	}

	self, nested := cf.SelfInnerClass()
	if nested && self.Outer == "" {
		// JVMS marks local and anonymous classes with a null outer_class_info.
		return Local{}
	}

	simple := self.Name
	if simple == "" {
		simple = trailingSegment(cf.ThisClass)
	}
	if !IsJavaIdentifierStart(simple) {
		return Local{}
	}

	if nested {
		return NestedNonLocal{
			Anonymous: self.Name == "",
			Synthetic: self.Access&classfile.AccSynthetic != 0 || cf.Access&classfile.AccSynthetic != 0 || cf.Synthetic,
			Outer:     self.Outer,
			Simple:    self.Name,
		}
	}
	return TopLevel{}
}

// IsJavaIdentifierStart reports whether name begins with a character that
// may start a Java identifier. Compiler-generated names for local and
// anonymous classes start with a digit.
func IsJavaIdentifierStart(name string) bool {
	if name == "" {
		return false
	}
	r := []rune(name)[0]
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.Is(unicode.Sc, r)
}

// trailingSegment returns the part of an internal name after the last '$',
// or the simple class name when there is none.
func trailingSegment(internalName string) string {
	s := SimpleBinaryName(internalName)
	if i := strings.LastIndexByte(s, '$'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// SimpleBinaryName strips the package from an internal name.
func SimpleBinaryName(internalName string) string {
	if i := strings.LastIndexByte(internalName, '/'); i >= 0 {
		return internalName[i+1:]
	}
	return internalName
}

// PackageOf returns the dotted package of an internal name.
func PackageOf(internalName string) string {
	i := strings.LastIndexByte(internalName, '/')
	if i < 0 {
		return ""
	}
	return strings.ReplaceAll(internalName[:i], "/", ".")
}
