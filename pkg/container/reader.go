// Package container reads classpath elements (directories and jar/zip
// archives) into a deterministic, path-sorted list of entries.
package container

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ritzau/classpath-changes/pkg/logging"
)

// ErrInvalidContainerKind is returned for classpath elements that are
// neither a directory nor a recognised archive.
var ErrInvalidContainerKind = errors.New("classpath element is neither a directory nor a jar/zip archive")

// Filter decides whether an entry is included. relativePath always uses
// forward slashes.
type Filter func(relativePath string, isDirectory bool) bool

// Entry is one file read from a container.
type Entry struct {
	Path    string
	Content []byte
}

// Entries is sorted by Path, byte-wise ascending, with unique paths.
type Entries struct {
	items []Entry
}

// Len returns the number of entries.
func (e *Entries) Len() int { return len(e.items) }

// All returns the entries in order.
func (e *Entries) All() []Entry { return e.items }

// Paths returns the relative paths in order.
func (e *Entries) Paths() []string {
	paths := make([]string, len(e.items))
	for i, it := range e.items {
		paths[i] = it.Path
	}
	return paths
}

// Contents returns the entry contents in path order.
func (e *Entries) Contents() [][]byte {
	contents := make([][]byte, len(e.items))
	for i, it := range e.items {
		contents[i] = it.Content
	}
	return contents
}

// Kind is the type of a classpath element.
type Kind int

const (
	KindDirectory Kind = iota
	KindArchive
)

// KindOf inspects a classpath element on disk.
func KindOf(container string) (Kind, error) {
	info, err := os.Stat(container)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", container, err)
	}
	if info.IsDir() {
		return KindDirectory, nil
	}
	if info.Mode().IsRegular() && IsArchivePath(container) {
		return KindArchive, nil
	}
	return 0, fmt.Errorf("%s: %w", container, ErrInvalidContainerKind)
}

// IsArchivePath reports whether the file name has a jar or zip extension.
func IsArchivePath(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return ext == ".jar" || ext == ".zip"
}

// Read returns every entry of container accepted by filter, sorted by path.
func Read(container string, filter Filter) (*Entries, error) {
	kind, err := KindOf(container)
	if err != nil {
		return nil, err
	}

	var byPath map[string][]byte
	switch kind {
	case KindDirectory:
		byPath, err = readDirectory(container, filter)
	case KindArchive:
		byPath, err = readArchive(container, filter)
	}
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	items := make([]Entry, len(paths))
	for i, p := range paths {
		items[i] = Entry{Path: p, Content: byPath[p]}
	}
	logging.Debug("read container", "path", container, "entries", len(items))
	return &Entries{items: items}, nil
}

func readDirectory(root string, filter Filter) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		isDir := d.IsDir()
		if d.Type()&fs.ModeSymlink != 0 {
			// Only symlinks to regular files are followed; symlinked
			// directories could introduce cycles.
			info, err := os.Stat(p)
			if err != nil {
				return fmt.Errorf("resolve symlink %s: %w", p, err)
			}
			if !info.Mode().IsRegular() {
				return nil
			}
		}

		if !filter(rel, isDir) {
			return nil
		}
		if isDir {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		out[rel] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return out, nil
}

func readArchive(archive string, filter Filter) (map[string][]byte, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archive, err)
	}
	defer zr.Close()

	out := make(map[string][]byte)
	// Central directory order is part of the archive bytes, so letting the
	// last duplicate win is deterministic.
	for _, f := range zr.File {
		name := normalizeArchivePath(f.Name)
		if name == "" {
			continue
		}
		isDir := strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
		name = strings.TrimSuffix(name, "/")
		if !filter(name, isDir) || isDir {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s!/%s: %w", archive, f.Name, err)
		}
		out[name] = data
	}
	return out, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func normalizeArchivePath(name string) string {
	s := strings.ReplaceAll(name, "\\", "/")
	s = strings.TrimLeft(s, "/")
	if s == "" {
		return ""
	}
	trailing := strings.HasSuffix(s, "/")
	s = path.Clean(s)
	if s == "." {
		return ""
	}
	if trailing {
		s += "/"
	}
	return s
}
