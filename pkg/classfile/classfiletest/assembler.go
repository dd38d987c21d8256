// Package classfiletest assembles small but valid class files for tests.
package classfiletest

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/ritzau/classpath-changes/pkg/classfile"
)

// Class describes the class to assemble. Zero values give a public class
// extending java/lang/Object with no members.
type Class struct {
	Name       string
	Super      string
	Interfaces []string
	Access     uint16
	Major      uint16

	Fields  []Member
	Methods []Member

	Signature       string
	SourceFile      string
	Synthetic       bool
	InnerClasses    []classfile.InnerClass
	EnclosingMethod *classfile.EnclosingMethod
	Kotlin          *classfile.KotlinMetadata
}

// Member describes a field or a method. Code, when set, is emitted as an
// opaque Code attribute so that body-only changes can be simulated.
type Member struct {
	Access     uint16
	Name       string
	Descriptor string
	Signature  string
	Exceptions []string
	Constant   *classfile.Constant
	Code       []byte
}

// Method is shorthand for a public method.
func Method(name, descriptor string) Member {
	return Member{Access: classfile.AccPublic, Name: name, Descriptor: descriptor}
}

// Field is shorthand for a public field.
func Field(name, descriptor string) Member {
	return Member{Access: classfile.AccPublic, Name: name, Descriptor: descriptor}
}

// Bytes assembles the class file.
func (c Class) Bytes() []byte {
	p := newPool()
	var body bytes.Buffer

	access := c.Access
	if access == 0 {
		access = classfile.AccPublic | classfile.AccSuper
	}
	super := c.Super
	if super == "" {
		super = "java/lang/Object"
	}

	u2(&body, access)
	u2(&body, p.class(c.Name))
	u2(&body, p.class(super))
	u2(&body, uint16(len(c.Interfaces)))
	for _, iface := range c.Interfaces {
		u2(&body, p.class(iface))
	}

	u2(&body, uint16(len(c.Fields)))
	for _, f := range c.Fields {
		writeMember(&body, p, f, true)
	}
	u2(&body, uint16(len(c.Methods)))
	for _, m := range c.Methods {
		writeMember(&body, p, m, false)
	}

	var attrs []attribute
	if c.Signature != "" {
		attrs = append(attrs, attribute{"Signature", u2Bytes(p.utf8(c.Signature))})
	}
	if c.SourceFile != "" {
		attrs = append(attrs, attribute{"SourceFile", u2Bytes(p.utf8(c.SourceFile))})
	}
	if c.Synthetic {
		attrs = append(attrs, attribute{"Synthetic", nil})
	}
	if len(c.InnerClasses) > 0 {
		var b bytes.Buffer
		u2(&b, uint16(len(c.InnerClasses)))
		for _, ic := range c.InnerClasses {
			u2(&b, p.class(ic.Inner))
			if ic.Outer == "" {
				u2(&b, 0)
			} else {
				u2(&b, p.class(ic.Outer))
			}
			if ic.Name == "" {
				u2(&b, 0)
			} else {
				u2(&b, p.utf8(ic.Name))
			}
			u2(&b, ic.Access)
		}
		attrs = append(attrs, attribute{"InnerClasses", b.Bytes()})
	}
	if em := c.EnclosingMethod; em != nil {
		var b bytes.Buffer
		u2(&b, p.class(em.Class))
		if em.MethodName == "" {
			u2(&b, 0)
		} else {
			u2(&b, p.nameAndType(em.MethodName, em.MethodDescriptor))
		}
		attrs = append(attrs, attribute{"EnclosingMethod", b.Bytes()})
	}
	if c.Kotlin != nil {
		attrs = append(attrs, attribute{"RuntimeVisibleAnnotations", kotlinAnnotation(p, c.Kotlin)})
	}
	writeAttributes(&body, p, attrs)

	major := c.Major
	if major == 0 {
		major = 52
	}
	var out bytes.Buffer
	u4(&out, classfile.Magic)
	u2(&out, 0)
	u2(&out, major)
	p.writeTo(&out)
	out.Write(body.Bytes())
	return out.Bytes()
}

type attribute struct {
	name string
	data []byte
}

func writeAttributes(w *bytes.Buffer, p *pool, attrs []attribute) {
	u2(w, uint16(len(attrs)))
	for _, a := range attrs {
		u2(w, p.utf8(a.name))
		u4(w, uint32(len(a.data)))
		w.Write(a.data)
	}
}

func writeMember(w *bytes.Buffer, p *pool, m Member, field bool) {
	u2(w, m.Access)
	u2(w, p.utf8(m.Name))
	u2(w, p.utf8(m.Descriptor))

	var attrs []attribute
	if m.Signature != "" {
		attrs = append(attrs, attribute{"Signature", u2Bytes(p.utf8(m.Signature))})
	}
	if field && m.Constant != nil {
		attrs = append(attrs, attribute{"ConstantValue", u2Bytes(p.constant(*m.Constant))})
	}
	if !field && len(m.Exceptions) > 0 {
		var b bytes.Buffer
		u2(&b, uint16(len(m.Exceptions)))
		for _, ex := range m.Exceptions {
			u2(&b, p.class(ex))
		}
		attrs = append(attrs, attribute{"Exceptions", b.Bytes()})
	}
	if !field && m.Code != nil {
		attrs = append(attrs, attribute{"Code", m.Code})
	}
	writeAttributes(w, p, attrs)
}

func kotlinAnnotation(p *pool, md *classfile.KotlinMetadata) []byte {
	var b bytes.Buffer
	u2(&b, 1)
	u2(&b, p.utf8(classfile.KotlinMetadataDescriptor))

	type pair struct {
		name  string
		value func(*bytes.Buffer)
	}
	intValue := func(v int) func(*bytes.Buffer) {
		return func(w *bytes.Buffer) {
			w.WriteByte('I')
			u2(w, p.integer(int32(v)))
		}
	}
	stringValue := func(s string) func(*bytes.Buffer) {
		return func(w *bytes.Buffer) {
			w.WriteByte('s')
			u2(w, p.utf8(s))
		}
	}
	stringArray := func(ss []string) func(*bytes.Buffer) {
		return func(w *bytes.Buffer) {
			w.WriteByte('[')
			u2(w, uint16(len(ss)))
			for _, s := range ss {
				stringValue(s)(w)
			}
		}
	}

	// Kind 0 leaves k out so the annotation default applies
	var pairs []pair
	if md.Kind != 0 {
		pairs = append(pairs, pair{"k", intValue(md.Kind)})
	}
	if len(md.MetadataVersion) > 0 {
		pairs = append(pairs, pair{"mv", func(w *bytes.Buffer) {
			w.WriteByte('[')
			u2(w, uint16(len(md.MetadataVersion)))
			for _, v := range md.MetadataVersion {
				intValue(v)(w)
			}
		}})
	}
	if md.Data1 != nil {
		pairs = append(pairs, pair{"d1", stringArray(md.Data1)})
	}
	if md.Data2 != nil {
		pairs = append(pairs, pair{"d2", stringArray(md.Data2)})
	}
	if md.ExtraString != "" {
		pairs = append(pairs, pair{"xs", stringValue(md.ExtraString)})
	}
	if md.PackageName != "" {
		pairs = append(pairs, pair{"pn", stringValue(md.PackageName)})
	}
	if md.ExtraInt != 0 {
		pairs = append(pairs, pair{"xi", intValue(md.ExtraInt)})
	}

	u2(&b, uint16(len(pairs)))
	for _, pr := range pairs {
		u2(&b, p.utf8(pr.name))
		pr.value(&b)
	}
	return b.Bytes()
}

// pool interns constants in first-use order.
type pool struct {
	buf   bytes.Buffer
	next  uint16
	index map[string]uint16
}

func newPool() *pool {
	return &pool{next: 1, index: make(map[string]uint16)}
}

func (p *pool) intern(key string, slots uint16, write func(*bytes.Buffer)) uint16 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := p.next
	write(&p.buf)
	p.next += slots
	p.index[key] = idx
	return idx
}

func (p *pool) utf8(s string) uint16 {
	return p.intern("u:"+s, 1, func(w *bytes.Buffer) {
		enc := encodeModifiedUTF8(s)
		w.WriteByte(1)
		u2(w, uint16(len(enc)))
		w.Write(enc)
	})
}

func (p *pool) class(name string) uint16 {
	nameIdx := p.utf8(name)
	return p.intern("c:"+name, 1, func(w *bytes.Buffer) {
		w.WriteByte(7)
		u2(w, nameIdx)
	})
}

func (p *pool) nameAndType(name, descriptor string) uint16 {
	n, d := p.utf8(name), p.utf8(descriptor)
	return p.intern("nt:"+name+":"+descriptor, 1, func(w *bytes.Buffer) {
		w.WriteByte(12)
		u2(w, n)
		u2(w, d)
	})
}

func (p *pool) integer(v int32) uint16 {
	return p.intern("i:"+string(u4Bytes(uint32(v))), 1, func(w *bytes.Buffer) {
		w.WriteByte(3)
		u4(w, uint32(v))
	})
}

func (p *pool) constant(c classfile.Constant) uint16 {
	switch c.Kind {
	case classfile.ConstInt:
		return p.integer(int32(c.Int))
	case classfile.ConstFloat:
		bits := math.Float32bits(float32(c.Float))
		return p.intern("f:"+string(u4Bytes(bits)), 1, func(w *bytes.Buffer) {
			w.WriteByte(4)
			u4(w, bits)
		})
	case classfile.ConstLong:
		return p.wide(5, "j:", uint64(c.Int))
	case classfile.ConstDouble:
		return p.wide(6, "d:", math.Float64bits(c.Float))
	default:
		s := p.utf8(c.Str)
		return p.intern("s:"+c.Str, 1, func(w *bytes.Buffer) {
			w.WriteByte(8)
			u2(w, s)
		})
	}
}

func (p *pool) wide(tag byte, prefix string, bits uint64) uint16 {
	return p.intern(prefix+string(u4Bytes(uint32(bits>>32)))+string(u4Bytes(uint32(bits))), 2, func(w *bytes.Buffer) {
		w.WriteByte(tag)
		u4(w, uint32(bits>>32))
		u4(w, uint32(bits))
	})
}

func (p *pool) writeTo(w *bytes.Buffer) {
	u2(w, p.next)
	w.Write(p.buf.Bytes())
}

func encodeModifiedUTF8(s string) []byte {
	var out []byte
	for _, r := range s {
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			out = appendUnit(out, hi)
			out = appendUnit(out, lo)
			continue
		}
		out = appendUnit(out, r)
	}
	return out
}

func appendUnit(out []byte, r rune) []byte {
	switch {
	case r != 0 && r < 0x80:
		return append(out, byte(r))
	case r < 0x800:
		return append(out, byte(0xC0|r>>6), byte(0x80|r&0x3F))
	default:
		return append(out, byte(0xE0|r>>12), byte(0x80|(r>>6)&0x3F), byte(0x80|r&0x3F))
	}
}

func u2(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func u4(w *bytes.Buffer, v uint32) {
	w.Write(u4Bytes(v))
}

func u2Bytes(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

func u4Bytes(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}
