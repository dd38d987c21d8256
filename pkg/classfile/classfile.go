// Package classfile reads the parts of a JVM class file that matter for ABI
// fingerprinting: the constant pool, class header, member signatures and the
// handful of attributes that describe nesting and Kotlin metadata.
package classfile

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrMalformedClassFile is returned when bytes do not parse as a class file.
var ErrMalformedClassFile = errors.New("malformed class file")

// Magic is the class file signature.
const Magic uint32 = 0xCAFEBABE

// Access and property flags shared by classes, inner classes, fields and methods.
const (
	AccPublic     uint16 = 0x0001
	AccPrivate    uint16 = 0x0002
	AccProtected  uint16 = 0x0004
	AccStatic     uint16 = 0x0008
	AccFinal      uint16 = 0x0010
	AccSuper      uint16 = 0x0020
	AccVolatile   uint16 = 0x0040
	AccBridge     uint16 = 0x0040
	AccTransient  uint16 = 0x0080
	AccVarargs    uint16 = 0x0080
	AccNative     uint16 = 0x0100
	AccInterface  uint16 = 0x0200
	AccAbstract   uint16 = 0x0400
	AccStrict     uint16 = 0x0800
	AccSynthetic  uint16 = 0x1000
	AccAnnotation uint16 = 0x2000
	AccEnum       uint16 = 0x4000
	AccModule     uint16 = 0x8000
)

// ClassFile is the parsed structure of a single class.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Access       uint16

	ThisClass  string // internal name, e.g. "com/example/Foo$Bar"
	SuperClass string // empty for java/lang/Object and module descriptors
	Interfaces []string

	Fields  []Member
	Methods []Member

	Signature       string
	SourceFile      string
	Synthetic       bool
	Deprecated      bool
	InnerClasses    []InnerClass
	EnclosingMethod *EnclosingMethod

	// Annotations holds the type descriptors of runtime-visible class annotations.
	Annotations    []string
	KotlinMetadata *KotlinMetadata
}

// Member is a field or a method.
type Member struct {
	Access     uint16
	Name       string
	Descriptor string
	Signature  string
	Exceptions []string
	Synthetic  bool
	Deprecated bool

	// Constant is set for fields carrying a ConstantValue attribute.
	Constant *Constant
}

// IsPrivate reports whether the member is private.
func (m Member) IsPrivate() bool { return m.Access&AccPrivate != 0 }

// IsSynthetic reports whether the compiler generated the member.
func (m Member) IsSynthetic() bool { return m.Synthetic || m.Access&AccSynthetic != 0 }

// InnerClass is one row of the InnerClasses attribute.
type InnerClass struct {
	Inner  string // internal name of the inner class
	Outer  string // empty for local and anonymous classes
	Name   string // simple name, empty for anonymous classes
	Access uint16
}

// EnclosingMethod is present on local and anonymous classes.
type EnclosingMethod struct {
	Class            string
	MethodName       string
	MethodDescriptor string
}

// ConstantKind tags a ConstantValue.
type ConstantKind byte

const (
	ConstInt    ConstantKind = 'I'
	ConstLong   ConstantKind = 'J'
	ConstFloat  ConstantKind = 'F'
	ConstDouble ConstantKind = 'D'
	ConstString ConstantKind = 's'
)

// Constant is a compile-time constant value of a field.
type Constant struct {
	Kind  ConstantKind
	Int   int64
	Float float64
	Str   string
}

// String renders the constant in a canonical form, stable across runs.
func (c Constant) String() string {
	switch c.Kind {
	case ConstInt, ConstLong:
		return string(c.Kind) + ":" + strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return "F:" + strconv.FormatUint(uint64(math.Float32bits(float32(c.Float))), 16)
	case ConstDouble:
		return "D:" + strconv.FormatUint(math.Float64bits(c.Float), 16)
	case ConstString:
		return "s:" + strconv.Quote(c.Str)
	}
	return "?"
}

// SelfInnerClass returns the InnerClasses row describing the class itself.
func (c *ClassFile) SelfInnerClass() (InnerClass, bool) {
	for _, ic := range c.InnerClasses {
		if ic.Inner == c.ThisClass {
			return ic, true
		}
	}
	return InnerClass{}, false
}

// IsInterface reports whether the class is an interface.
func (c *ClassFile) IsInterface() bool { return c.Access&AccInterface != 0 }

// IsModuleInfo reports whether the class is a module descriptor.
func (c *ClassFile) IsModuleInfo() bool { return c.Access&AccModule != 0 }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedClassFile, fmt.Sprintf(format, args...))
}
