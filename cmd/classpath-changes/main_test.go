package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/classpath-changes/pkg/classfile/classfiletest"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), buf.String())
	return buf.String()
}

func writeClass(t *testing.T, root string, c classfiletest.Class) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(c.Name)+".class")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, c.Bytes(), 0o644))
	return path
}

func foo(methodDescriptor string) classfiletest.Class {
	return classfiletest.Class{
		Name:    "com/example/Foo",
		Super:   "java/lang/Object",
		Methods: []classfiletest.Member{classfiletest.Method("bar", methodDescriptor)},
	}
}

func TestSnapshotDiffClassify(t *testing.T) {
	classes := t.TempDir()
	scratch := t.TempDir()
	previous := filepath.Join(t.TempDir(), "previous.json")

	writeClass(t, classes, foo("()I"))
	execute(t, "snapshot", "--scratch", scratch, "--output", previous, classes)
	require.FileExists(t, previous)

	classFile := writeClass(t, classes, foo("(I)I"))
	out := execute(t, "diff", "--scratch", scratch, "--previous", previous, "--format", "json", classes)

	assert.Contains(t, out, `"available": true`)
	assert.Contains(t, out, `"com.example.Foo"`)
	assert.Contains(t, out, `"name": "bar"`)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch caches are removed after each computation")

	out = execute(t, "classify", "--color=false", classFile)
	assert.True(t, strings.HasPrefix(out, classFile+": java com.example.Foo [top-level]"), out)
}

func TestDiffWithoutPreviousIsNotAvailable(t *testing.T) {
	classes := t.TempDir()
	writeClass(t, classes, foo("()I"))

	out := execute(t, "diff", "--scratch", t.TempDir(), "--previous", filepath.Join(t.TempDir(), "missing.json"), "--format", "json", classes)
	assert.Contains(t, out, `"available": false`)
	assert.Contains(t, out, `"reason": "missing classpath snapshot"`)
}

func TestDiffSkippedRuns(t *testing.T) {
	t.Cleanup(func() {
		diffCmd.Flags().Set("full", "false")
		diffCmd.Flags().Set("no-snapshot", "false")
		diffCmd.Flags().Set("output", "")
	})
	classes := t.TempDir()
	writeClass(t, classes, foo("()I"))
	saved := filepath.Join(t.TempDir(), "snapshot.json")

	out := execute(t, "diff", "--scratch", t.TempDir(), "--full", "--output", saved, "--format", "json", classes)
	assert.Contains(t, out, `"reason": "non-incremental run"`)
	assert.FileExists(t, saved, "a full run still records the baseline")

	out = execute(t, "diff", "--full=false", "--no-snapshot", "--format", "json")
	assert.Contains(t, out, `"reason": "classpath snapshot is disabled"`)
}
