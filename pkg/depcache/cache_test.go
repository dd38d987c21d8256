package depcache

import (
	"context"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/classpath-changes/pkg/classfile"
	"github.com/ritzau/classpath-changes/pkg/classfile/classfiletest"
	"github.com/ritzau/classpath-changes/pkg/snapshot"
)

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func javaRecord(t *testing.T, c classfiletest.Class) Record {
	t.Helper()
	snaps, err := snapshot.NewSnapshotter().Snapshot([]snapshot.ClassFileWithContents{{Path: c.Name, Contents: c.Bytes()}})
	require.NoError(t, err)
	switch s := snaps[0].(type) {
	case snapshot.RegularJavaClassSnapshot:
		return JavaRecord(s.Descriptor)
	case snapshot.KotlinClassSnapshot:
		return KotlinRecord(s.ClassInfo)
	}
	t.Fatalf("unexpected snapshot %T", snaps[0])
	return Record{}
}

func dirty(t *testing.T, c *Cache) DirtyData {
	t.Helper()
	d, err := c.DirtyData(context.Background())
	require.NoError(t, err)
	sort.Slice(d.LookupSymbols, func(i, j int) bool {
		a, b := d.LookupSymbols[i], d.LookupSymbols[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Scope < b.Scope
	})
	sort.Strings(d.FqNames)
	return d
}

var foo = classfiletest.Class{
	Name:    "com/example/Foo",
	Methods: []classfiletest.Member{classfiletest.Method("bar", "()I")},
}

func TestOpenAndCloseRemovesScratch(t *testing.T) {
	root := t.TempDir()
	c, err := Open(context.Background(), root)
	require.NoError(t, err)

	_, err = os.Stat(c.Dir())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	_, err = os.Stat(c.Dir())
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenUsesUniqueDirectories(t *testing.T) {
	root := t.TempDir()
	a := openCacheAt(t, root)
	b := openCacheAt(t, root)
	assert.NotEqual(t, a.Dir(), b.Dir())
}

func openCacheAt(t *testing.T, root string) *Cache {
	c, err := Open(context.Background(), root)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSaveNewClass(t *testing.T) {
	c := openCache(t)
	require.NoError(t, c.Save(context.Background(), javaRecord(t, foo)))

	d := dirty(t, c)
	assert.Equal(t, []string{"com.example.Foo"}, d.FqNames)
	assert.Equal(t, []LookupSymbol{
		{Name: "<SAM-CONSTRUCTOR>", Scope: "com.example.Foo"},
		{Name: "Foo", Scope: "com.example"},
	}, d.LookupSymbols)
}

func TestSaveUnchangedReportsNothing(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	require.NoError(t, c.Save(ctx, javaRecord(t, foo)))
	c.Collector().Reset()

	require.NoError(t, c.Save(ctx, javaRecord(t, foo)))
	assert.True(t, c.Collector().IsEmpty())
	assert.Equal(t, DirtyData{}, dirty(t, c))
}

func TestSaveChangedMethod(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	require.NoError(t, c.Save(ctx, javaRecord(t, foo)))
	c.Collector().Reset()

	changed := foo
	changed.Methods = []classfiletest.Member{classfiletest.Method("bar", "(I)I"), classfiletest.Method("baz", "()V")}
	require.NoError(t, c.Save(ctx, javaRecord(t, changed)))

	require.Len(t, c.Collector().Changes(), 1)
	mc, ok := c.Collector().Changes()[0].(MembersChanged)
	require.True(t, ok)
	assert.Equal(t, []string{"bar", "baz"}, mc.Names)

	d := dirty(t, c)
	assert.Equal(t, []string{"com.example.Foo"}, d.FqNames)
	assert.Equal(t, []LookupSymbol{
		{Name: "<SAM-CONSTRUCTOR>", Scope: "com.example.Foo"},
		{Name: "bar", Scope: "com.example.Foo"},
		{Name: "baz", Scope: "com.example.Foo"},
	}, d.LookupSymbols)
}

func TestSaveSupertypeChangeAffectsSubclasses(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	base := classfiletest.Class{Name: "com/example/Base"}
	sub := classfiletest.Class{Name: "com/example/Sub", Super: "com/example/Base"}
	leaf := classfiletest.Class{Name: "com/example/Leaf", Super: "com/example/Sub"}
	for _, cls := range []classfiletest.Class{base, sub, leaf} {
		require.NoError(t, c.Save(ctx, javaRecord(t, cls)))
	}
	c.Collector().Reset()

	base.Interfaces = []string{"java/io/Serializable"}
	require.NoError(t, c.Save(ctx, javaRecord(t, base)))

	d := dirty(t, c)
	assert.Equal(t, []string{"com.example.Base", "com.example.Leaf", "com.example.Sub"}, d.FqNames)
	assert.Contains(t, d.LookupSymbols, LookupSymbol{Name: "Leaf", Scope: "com.example"})
}

func TestSaveMemberChangeExpandsSubtypes(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	sub := classfiletest.Class{Name: "com/example/Sub", Super: "com/example/Foo"}
	require.NoError(t, c.Save(ctx, javaRecord(t, foo)))
	require.NoError(t, c.Save(ctx, javaRecord(t, sub)))
	c.Collector().Reset()

	changed := foo
	changed.Methods = nil
	require.NoError(t, c.Save(ctx, javaRecord(t, changed)))

	d := dirty(t, c)
	assert.Equal(t, []string{"com.example.Foo", "com.example.Sub"}, d.FqNames)
	assert.Contains(t, d.LookupSymbols, LookupSymbol{Name: "bar", Scope: "com.example.Sub"})
}

func TestRemoveAbsent(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	gone := classfiletest.Class{Name: "com/example/Gone"}
	require.NoError(t, c.Save(ctx, javaRecord(t, foo)))
	require.NoError(t, c.Save(ctx, javaRecord(t, gone)))
	c.Collector().Reset()

	require.NoError(t, c.RemoveAbsent(ctx, map[string]struct{}{"com/example/Foo": {}}))

	d := dirty(t, c)
	assert.Equal(t, []string{"com.example.Gone"}, d.FqNames)
	assert.Contains(t, d.LookupSymbols, LookupSymbol{Name: "Gone", Scope: "com.example"})

	// The row is gone: saving it again reports an addition.
	c.Collector().Reset()
	require.NoError(t, c.Save(ctx, javaRecord(t, gone)))
	assert.IsType(t, SignatureChanged{}, c.Collector().Changes()[0])
}

func TestPackagePartMembersScopedToPackage(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	facade := classfiletest.Class{
		Name:    "com/example/UtilsKt",
		Methods: []classfiletest.Member{{Access: classfile.AccPublic | classfile.AccStatic, Name: "greet", Descriptor: "()V"}},
		Kotlin:  &classfile.KotlinMetadata{Kind: 2},
	}
	require.NoError(t, c.Save(ctx, javaRecord(t, facade)))
	c.Collector().Reset()

	facade.Methods = append(facade.Methods, classfiletest.Member{Access: classfile.AccPublic | classfile.AccStatic, Name: "wave", Descriptor: "()V"})
	require.NoError(t, c.Save(ctx, javaRecord(t, facade)))

	d := dirty(t, c)
	assert.Empty(t, d.FqNames)
	assert.Equal(t, []LookupSymbol{{Name: "wave", Scope: "com.example"}}, d.LookupSymbols)
}

func TestKotlinMetadataChangeIsReported(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	kt := foo
	kt.Kotlin = &classfile.KotlinMetadata{Kind: 1, Data1: []string{"bar: Int"}, Data2: []string{"bar"}}
	require.NoError(t, c.Save(ctx, javaRecord(t, kt)))
	c.Collector().Reset()

	require.NoError(t, c.Save(ctx, javaRecord(t, kt)))
	assert.True(t, c.Collector().IsEmpty(), "identical metadata is not a change")

	kt.Kotlin = &classfile.KotlinMetadata{Kind: 1, Data1: []string{"bar: Int?"}, Data2: []string{"bar"}}
	require.NoError(t, c.Save(ctx, javaRecord(t, kt)))

	d := dirty(t, c)
	assert.Equal(t, []string{"com.example.Foo"}, d.FqNames)
	assert.Contains(t, d.LookupSymbols, LookupSymbol{Name: "bar", Scope: "com.example.Foo"})
	assert.Contains(t, d.LookupSymbols, LookupSymbol{Name: "Foo", Scope: "com.example"})
}

func TestInTransactionRollsBack(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()

	err := c.InTransaction(ctx, func() error {
		if err := c.Save(ctx, javaRecord(t, foo)); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	c.Collector().Reset()
	require.NoError(t, c.Save(ctx, javaRecord(t, foo)))
	assert.IsType(t, SignatureChanged{}, c.Collector().Changes()[0], "rolled back save must not be visible")
}

func TestCorruptRowIsReported(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	require.NoError(t, c.Save(ctx, javaRecord(t, foo)))

	_, err := c.db.ExecContext(ctx, `UPDATE classes SET abi = '{not json' WHERE internal_name = ?`, "com/example/Foo")
	require.NoError(t, err)

	err = c.Save(ctx, javaRecord(t, foo))
	require.ErrorIs(t, err, ErrCorrupt)
}
