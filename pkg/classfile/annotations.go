package classfile

// KotlinMetadataDescriptor is the type descriptor of the kotlin.Metadata annotation.
const KotlinMetadataDescriptor = "Lkotlin/Metadata;"

// KotlinMetadata is the content of the kotlin.Metadata annotation.
type KotlinMetadata struct {
	Kind            int
	MetadataVersion []int
	Data1           []string
	Data2           []string
	ExtraString     string // multifile facade name for multifile parts
	PackageName     string
	ExtraInt        int
}

// elementValue is a decoded annotation element_value. Nested annotations are
// parsed for their length and dropped.
type elementValue struct {
	tag    byte
	index  uint16
	values []elementValue
}

func (p *parser) classAnnotations(cf *ClassFile) error {
	r := p.r
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		typeName, pairs, err := p.annotation()
		if err != nil {
			return err
		}
		cf.Annotations = append(cf.Annotations, typeName)
		if typeName == KotlinMetadataDescriptor {
			md, err := p.kotlinMetadata(pairs)
			if err != nil {
				return err
			}
			cf.KotlinMetadata = md
		}
	}
	return r.err
}

func (p *parser) annotation() (string, map[string]elementValue, error) {
	r := p.r
	typeName, err := p.utf8(r.u2())
	if err != nil {
		return "", nil, err
	}
	n := int(r.u2())
	pairs := make(map[string]elementValue, n)
	for i := 0; i < n && r.err == nil; i++ {
		name, err := p.utf8(r.u2())
		if err != nil {
			return "", nil, err
		}
		v, err := p.elementValue(0)
		if err != nil {
			return "", nil, err
		}
		pairs[name] = v
	}
	return typeName, pairs, r.err
}

// maxAnnotationDepth bounds recursion on hostile nested element values.
const maxAnnotationDepth = 64

func (p *parser) elementValue(depth int) (elementValue, error) {
	if depth > maxAnnotationDepth {
		return elementValue{}, malformed("annotation nesting deeper than %d", maxAnnotationDepth)
	}
	r := p.r
	v := elementValue{tag: r.u1()}
	switch v.tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		v.index = r.u2()
	case 'e':
		r.u2()
		v.index = r.u2()
	case '@':
		r.u2()
		n := int(r.u2())
		for i := 0; i < n && r.err == nil; i++ {
			r.u2()
			if _, err := p.elementValue(depth + 1); err != nil {
				return elementValue{}, err
			}
		}
	case '[':
		n := int(r.u2())
		for i := 0; i < n && r.err == nil; i++ {
			ev, err := p.elementValue(depth + 1)
			if err != nil {
				return elementValue{}, err
			}
			v.values = append(v.values, ev)
		}
	default:
		if r.err != nil {
			return elementValue{}, r.err
		}
		return elementValue{}, malformed("unknown element value tag %q", v.tag)
	}
	return v, r.err
}

func (p *parser) kotlinMetadata(pairs map[string]elementValue) (*KotlinMetadata, error) {
	// k defaults to 1 (class) in the annotation declaration
	md := &KotlinMetadata{Kind: 1}
	var err error
	if v, ok := pairs["k"]; ok {
		if md.Kind, err = p.intValue(v); err != nil {
			return nil, err
		}
	}
	if v, ok := pairs["xi"]; ok {
		if md.ExtraInt, err = p.intValue(v); err != nil {
			return nil, err
		}
	}
	if v, ok := pairs["mv"]; ok {
		for _, ev := range v.values {
			n, err := p.intValue(ev)
			if err != nil {
				return nil, err
			}
			md.MetadataVersion = append(md.MetadataVersion, n)
		}
	}
	if v, ok := pairs["d1"]; ok {
		if md.Data1, err = p.stringValues(v); err != nil {
			return nil, err
		}
	}
	if v, ok := pairs["d2"]; ok {
		if md.Data2, err = p.stringValues(v); err != nil {
			return nil, err
		}
	}
	if v, ok := pairs["xs"]; ok {
		if md.ExtraString, err = p.utf8(v.index); err != nil {
			return nil, err
		}
	}
	if v, ok := pairs["pn"]; ok {
		if md.PackageName, err = p.utf8(v.index); err != nil {
			return nil, err
		}
	}
	return md, nil
}

func (p *parser) intValue(v elementValue) (int, error) {
	if v.tag != 'I' {
		return 0, malformed("expected int element value, got %q", v.tag)
	}
	e, err := p.entry(v.index, tagInteger)
	if err != nil {
		return 0, err
	}
	return int(int32(uint32(e.bits))), nil
}

func (p *parser) stringValues(v elementValue) ([]string, error) {
	out := make([]string, 0, len(v.values))
	for _, ev := range v.values {
		if ev.tag != 's' {
			return nil, malformed("expected string element value, got %q", ev.tag)
		}
		s, err := p.utf8(ev.index)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
