package classfile

import (
	"encoding/binary"
	"math"
)

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type cpEntry struct {
	tag  byte
	str  string
	bits uint64 // raw integer/float payload
	a, b uint16 // referenced indexes
}

// reader is a bounds-checked big-endian cursor. The first failure sticks and
// every later read returns zero values.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = malformed("truncated at offset %d (need %d bytes of %d)", r.pos, n, len(r.data))
		return false
	}
	return true
}

func (r *reader) u1() byte {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v
}

type parser struct {
	r    *reader
	pool []cpEntry
}

// Parse decodes a class file. Method bodies and attributes that carry no ABI
// information are skipped by length.
func Parse(data []byte) (*ClassFile, error) {
	p := &parser{r: &reader{data: data}}
	cf, err := p.parse()
	if err != nil {
		return nil, err
	}
	return cf, nil
}

func (p *parser) parse() (*ClassFile, error) {
	r := p.r
	if magic := r.u4(); r.err == nil && magic != Magic {
		return nil, malformed("bad magic 0x%08X", magic)
	}

	cf := &ClassFile{}
	cf.MinorVersion = r.u2()
	cf.MajorVersion = r.u2()
	if err := p.readConstantPool(); err != nil {
		return nil, err
	}

	cf.Access = r.u2()
	var err error
	if cf.ThisClass, err = p.className(r.u2()); err != nil {
		return nil, err
	}
	if superIdx := r.u2(); superIdx != 0 {
		if cf.SuperClass, err = p.className(superIdx); err != nil {
			return nil, err
		}
	}

	count := int(r.u2())
	for i := 0; i < count && r.err == nil; i++ {
		name, err := p.className(r.u2())
		if err != nil {
			return nil, err
		}
		cf.Interfaces = append(cf.Interfaces, name)
	}

	if cf.Fields, err = p.readMembers(true); err != nil {
		return nil, err
	}
	if cf.Methods, err = p.readMembers(false); err != nil {
		return nil, err
	}
	if err := p.readClassAttributes(cf); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(r.data) {
		return nil, malformed("%d trailing bytes", len(r.data)-r.pos)
	}
	return cf, nil
}

func (p *parser) readConstantPool() error {
	r := p.r
	count := int(r.u2())
	if r.err != nil {
		return r.err
	}
	if count == 0 {
		return malformed("empty constant pool")
	}
	p.pool = make([]cpEntry, count)
	for i := 1; i < count; i++ {
		e := cpEntry{tag: r.u1()}
		switch e.tag {
		case tagUtf8:
			n := int(r.u2())
			s, err := decodeModifiedUTF8(r.bytes(n))
			if r.err != nil {
				return r.err
			}
			if err != nil {
				return malformed("constant #%d: %v", i, err)
			}
			e.str = s
		case tagInteger, tagFloat:
			e.bits = uint64(r.u4())
		case tagLong, tagDouble:
			hi := uint64(r.u4())
			lo := uint64(r.u4())
			e.bits = hi<<32 | lo
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.a = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			e.a = r.u2()
			e.b = r.u2()
		case tagMethodHandle:
			e.a = uint16(r.u1())
			e.b = r.u2()
		default:
			if r.err != nil {
				return r.err
			}
			return malformed("constant #%d: unknown tag %d", i, e.tag)
		}
		if r.err != nil {
			return r.err
		}
		p.pool[i] = e
		if e.tag == tagLong || e.tag == tagDouble {
			i++ // eight-byte constants occupy two slots
		}
	}
	return nil
}

func (p *parser) entry(idx uint16, tag byte) (cpEntry, error) {
	if idx == 0 || int(idx) >= len(p.pool) {
		return cpEntry{}, malformed("constant index %d out of range", idx)
	}
	e := p.pool[idx]
	if e.tag != tag {
		return cpEntry{}, malformed("constant #%d has tag %d, want %d", idx, e.tag, tag)
	}
	return e, nil
}

func (p *parser) utf8(idx uint16) (string, error) {
	e, err := p.entry(idx, tagUtf8)
	if err != nil {
		return "", err
	}
	return e.str, nil
}

func (p *parser) className(idx uint16) (string, error) {
	e, err := p.entry(idx, tagClass)
	if err != nil {
		return "", err
	}
	return p.utf8(e.a)
}

func (p *parser) readMembers(fields bool) ([]Member, error) {
	r := p.r
	count := int(r.u2())
	var members []Member
	for i := 0; i < count && r.err == nil; i++ {
		m := Member{Access: r.u2()}
		var err error
		if m.Name, err = p.utf8(r.u2()); err != nil {
			return nil, err
		}
		if m.Descriptor, err = p.utf8(r.u2()); err != nil {
			return nil, err
		}
		if err := p.readMemberAttributes(&m, fields); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, r.err
}

func (p *parser) readMemberAttributes(m *Member, field bool) error {
	r := p.r
	count := int(r.u2())
	for i := 0; i < count && r.err == nil; i++ {
		name, err := p.utf8(r.u2())
		if err != nil {
			return err
		}
		body := r.bytes(int(r.u4()))
		if r.err != nil {
			return r.err
		}
		sub := &parser{r: &reader{data: body}, pool: p.pool}
		switch {
		case name == "Signature":
			if m.Signature, err = sub.utf8(sub.r.u2()); err != nil {
				return err
			}
		case name == "Synthetic":
			m.Synthetic = true
		case name == "Deprecated":
			m.Deprecated = true
		case name == "ConstantValue" && field:
			c, err := p.constant(sub.r.u2())
			if err != nil {
				return err
			}
			m.Constant = &c
		case name == "Exceptions" && !field:
			n := int(sub.r.u2())
			for j := 0; j < n && sub.r.err == nil; j++ {
				ex, err := sub.className(sub.r.u2())
				if err != nil {
					return err
				}
				m.Exceptions = append(m.Exceptions, ex)
			}
		}
		if sub.r.err != nil {
			return malformed("attribute %s of %s: %v", name, m.Name, sub.r.err)
		}
	}
	return r.err
}

func (p *parser) constant(idx uint16) (Constant, error) {
	if idx == 0 || int(idx) >= len(p.pool) {
		return Constant{}, malformed("constant index %d out of range", idx)
	}
	e := p.pool[idx]
	switch e.tag {
	case tagInteger:
		return Constant{Kind: ConstInt, Int: int64(int32(uint32(e.bits)))}, nil
	case tagLong:
		return Constant{Kind: ConstLong, Int: int64(e.bits)}, nil
	case tagFloat:
		return Constant{Kind: ConstFloat, Float: float64(math.Float32frombits(uint32(e.bits)))}, nil
	case tagDouble:
		return Constant{Kind: ConstDouble, Float: math.Float64frombits(e.bits)}, nil
	case tagString:
		s, err := p.utf8(e.a)
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstString, Str: s}, nil
	}
	return Constant{}, malformed("constant #%d is not a loadable value (tag %d)", idx, e.tag)
}

func (p *parser) readClassAttributes(cf *ClassFile) error {
	r := p.r
	count := int(r.u2())
	for i := 0; i < count && r.err == nil; i++ {
		name, err := p.utf8(r.u2())
		if err != nil {
			return err
		}
		body := r.bytes(int(r.u4()))
		if r.err != nil {
			return r.err
		}
		sub := &parser{r: &reader{data: body}, pool: p.pool}
		switch name {
		case "Signature":
			cf.Signature, err = sub.utf8(sub.r.u2())
		case "SourceFile":
			cf.SourceFile, err = sub.utf8(sub.r.u2())
		case "Synthetic":
			cf.Synthetic = true
		case "Deprecated":
			cf.Deprecated = true
		case "InnerClasses":
			cf.InnerClasses, err = sub.innerClasses()
		case "EnclosingMethod":
			cf.EnclosingMethod, err = sub.enclosingMethod()
		case "RuntimeVisibleAnnotations":
			err = sub.classAnnotations(cf)
		}
		if err != nil {
			return err
		}
		if sub.r.err != nil {
			return malformed("class attribute %s: %v", name, sub.r.err)
		}
	}
	return r.err
}

func (p *parser) innerClasses() ([]InnerClass, error) {
	r := p.r
	n := int(r.u2())
	rows := make([]InnerClass, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		innerIdx, outerIdx, nameIdx := r.u2(), r.u2(), r.u2()
		ic := InnerClass{Access: r.u2()}
		if r.err != nil {
			break
		}
		var err error
		if ic.Inner, err = p.className(innerIdx); err != nil {
			return nil, err
		}
		if outerIdx != 0 {
			if ic.Outer, err = p.className(outerIdx); err != nil {
				return nil, err
			}
		}
		if nameIdx != 0 {
			if ic.Name, err = p.utf8(nameIdx); err != nil {
				return nil, err
			}
		}
		rows = append(rows, ic)
	}
	return rows, nil
}

func (p *parser) enclosingMethod() (*EnclosingMethod, error) {
	classIdx, methodIdx := p.r.u2(), p.r.u2()
	if p.r.err != nil {
		return nil, p.r.err
	}
	em := &EnclosingMethod{}
	var err error
	if em.Class, err = p.className(classIdx); err != nil {
		return nil, err
	}
	if methodIdx != 0 {
		nt, err := p.entry(methodIdx, tagNameAndType)
		if err != nil {
			return nil, err
		}
		if em.MethodName, err = p.utf8(nt.a); err != nil {
			return nil, err
		}
		if em.MethodDescriptor, err = p.utf8(nt.b); err != nil {
			return nil, err
		}
	}
	return em, nil
}
