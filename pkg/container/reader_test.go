package container

import (
	"archive/zip"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

type zipEntry struct {
	name, content string
}

func writeZip(t *testing.T, p string, entries []zipEntry) {
	t.Helper()
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestReadDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "com/example/Foo.class", "foo")
	writeFile(t, root, "com/example/Bar.CLASS", "bar")
	writeFile(t, root, "com/example/readme.txt", "nope")
	writeFile(t, root, "module-info.class", "module")
	writeFile(t, root, "META-INF/versions/9/com/example/Foo.class", "versioned")
	writeFile(t, root, "a/Top.class", "top")

	entries, err := Read(root, ClassFileFilter)
	require.NoError(t, err)

	assert.Equal(t, []string{"a/Top.class", "com/example/Bar.CLASS", "com/example/Foo.class"}, entries.Paths())
	assert.Equal(t, [][]byte{[]byte("top"), []byte("bar"), []byte("foo")}, entries.Contents())
}

func TestReadDirectoryIsDeterministic(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"z/Z.class", "b/B.class", "a/A.class", "a/b/C.class", "a-b/D.class"} {
		writeFile(t, root, name, name)
	}

	first, err := Read(root, ClassFileFilter)
	require.NoError(t, err)
	second, err := Read(root, ClassFileFilter)
	require.NoError(t, err)

	assert.Equal(t, first.All(), second.All())
	// Byte-wise order: '-' (0x2D) sorts before '/' (0x2F).
	assert.Equal(t, []string{"a-b/D.class", "a/A.class", "a/b/C.class", "b/B.class", "z/Z.class"}, first.Paths())
}

func TestReadArchiveOrderIndependent(t *testing.T) {
	dir := t.TempDir()
	entries := []zipEntry{
		{"com/example/Foo.class", "foo"},
		{"com/example/", ""},
		{"META-INF/MANIFEST.MF", "Manifest-Version: 1.0"},
		{"com/example/Bar.class", "bar"},
		{"module-info.class", "module"},
	}
	reversed := make([]zipEntry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}

	a := filepath.Join(dir, "a.jar")
	b := filepath.Join(dir, "b.ZIP")
	writeZip(t, a, entries)
	writeZip(t, b, reversed)

	fromA, err := Read(a, ClassFileFilter)
	require.NoError(t, err)
	fromB, err := Read(b, ClassFileFilter)
	require.NoError(t, err)

	assert.Equal(t, []string{"com/example/Bar.class", "com/example/Foo.class"}, fromA.Paths())
	assert.Equal(t, fromA.All(), fromB.All())
}

func TestReadArchiveDuplicateEntries(t *testing.T) {
	p := filepath.Join(t.TempDir(), "dup.jar")
	writeZip(t, p, []zipEntry{
		{"p/A.class", "first"},
		{"p/A.class", "second"},
	})

	for i := 0; i < 3; i++ {
		entries, err := Read(p, ClassFileFilter)
		require.NoError(t, err)
		require.Equal(t, 1, entries.Len())
		assert.Equal(t, "second", string(entries.All()[0].Content))
	}
}

func TestReadInvalidContainer(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "classes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))

	_, err := Read(txt, ClassFileFilter)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidContainerKind))

	_, err = Read(filepath.Join(dir, "missing.jar"), ClassFileFilter)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, errors.Is(err, ErrInvalidContainerKind))
}

func TestReadCorruptArchive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.jar")
	require.NoError(t, os.WriteFile(p, []byte("not a zip"), 0o644))

	_, err := Read(p, ClassFileFilter)
	require.Error(t, err)
}

func TestClassFileFilter(t *testing.T) {
	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"com/example/Foo.class", false, true},
		{"com/example/Foo.Class", false, true},
		{"com/example/Foo.class", true, false},
		{"com/example/Foo.java", false, false},
		{"module-info.class", false, false},
		{"META-INF/versions/11/Module-Info.CLASS", false, false},
		{"meta-inf/foo/Bar.class", false, false},
		{"lib/META-INF/Bar.class", false, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassFileFilter(tt.path, tt.isDir), tt.path)
	}
}
