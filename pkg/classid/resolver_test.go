package classid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/classpath-changes/pkg/classfile"
	"github.com/ritzau/classpath-changes/pkg/classfile/classfiletest"
)

func parse(t *testing.T, c classfiletest.Class) *classfile.ClassFile {
	t.Helper()
	cf, err := classfile.Parse(c.Bytes())
	require.NoError(t, err)
	return cf
}

func member(inner, outer, name string) classfiletest.Class {
	return classfiletest.Class{
		Name:         inner,
		InnerClasses: []classfile.InnerClass{{Inner: inner, Outer: outer, Name: name}},
	}
}

func TestResolverNestedChain(t *testing.T) {
	r := NewResolver()
	// Inner classes first: resolution must not depend on batch order.
	r.Add(parse(t, member("com/example/Foo$Bar$Baz", "com/example/Foo$Bar", "Baz")))
	r.Add(parse(t, member("com/example/Foo$Bar", "com/example/Foo", "Bar")))
	r.Add(parse(t, classfiletest.Class{Name: "com/example/Foo"}))

	res := r.Resolve("com/example/Foo$Bar$Baz")
	assert.False(t, res.Local)
	assert.Equal(t, "com.example.Foo.Bar.Baz", res.ID.FqName())
	assert.Equal(t, "Baz", res.ID.ShortName())
	assert.Equal(t, "com.example.Foo.Bar", res.ID.ParentFqName())

	top := r.Resolve("com/example/Foo")
	assert.Equal(t, ClassID{Package: "com.example", RelativeName: "Foo", InternalName: "com/example/Foo"}, top.ID)
	assert.Equal(t, "com.example", top.ID.ParentFqName())
}

func TestResolverNestedInLocalIsLocal(t *testing.T) {
	r := NewResolver()
	r.Add(parse(t, classfiletest.Class{
		Name:            "com/example/Foo$1Helper",
		InnerClasses:    []classfile.InnerClass{{Inner: "com/example/Foo$1Helper", Name: "Helper"}},
		EnclosingMethod: &classfile.EnclosingMethod{Class: "com/example/Foo"},
	}))
	r.Add(parse(t, member("com/example/Foo$1Helper$Node", "com/example/Foo$1Helper", "Node")))

	id, ok := r.Identity("com/example/Foo$1Helper$Node")
	require.True(t, ok)
	assert.IsType(t, NestedNonLocal{}, id)
	assert.True(t, r.Resolve("com/example/Foo$1Helper$Node").Local)
}

func TestResolverOuterOutsideBatch(t *testing.T) {
	r := NewResolver()
	r.Add(parse(t, member("com/example/Foo$Bar$Baz", "com/example/Foo$Bar", "Baz")))

	res := r.Resolve("com/example/Foo$Bar$Baz")
	assert.False(t, res.Local)
	assert.Equal(t, "com.example.Foo.Bar.Baz", res.ID.FqName())
}

func TestResolverCyclicNesting(t *testing.T) {
	r := NewResolver()
	r.Add(parse(t, member("p/A", "p/B", "A")))
	r.Add(parse(t, member("p/B", "p/A", "B")))

	assert.True(t, r.Resolve("p/A").Local)
	assert.True(t, r.Resolve("p/B").Local)
}

func TestResolverDefaultPackage(t *testing.T) {
	r := NewResolver()
	r.Add(parse(t, classfiletest.Class{Name: "Main"}))
	r.Add(parse(t, member("Main$Inner", "Main", "Inner")))

	res := r.Resolve("Main$Inner")
	assert.Equal(t, "Main.Inner", res.ID.FqName())
	assert.Equal(t, "Main", res.ID.ParentFqName())
	assert.Equal(t, "", r.Resolve("Main").ID.ParentFqName())
}
