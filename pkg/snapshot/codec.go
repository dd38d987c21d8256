package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FormatVersion is bumped whenever the persisted layout changes.
const FormatVersion = 1

// ErrUnsupportedFormat is returned when decoding a snapshot written by an
// incompatible version.
var ErrUnsupportedFormat = errors.New("unsupported classpath snapshot format")

type fileJSON struct {
	Version int         `json:"version"`
	Entries []entryJSON `json:"entries"`
}

type entryJSON struct {
	Entry   string      `json:"entry"`
	Classes []classJSON `json:"classes"`
}

type classJSON struct {
	Path   string               `json:"path"`
	Kind   string               `json:"kind"`
	Kotlin *KotlinClassInfo     `json:"kotlin,omitempty"`
	Java   *JavaClassDescriptor `json:"java,omitempty"`
}

// Encode writes s as versioned JSON.
func Encode(w io.Writer, s *ClasspathSnapshot) error {
	out := fileJSON{Version: FormatVersion, Entries: make([]entryJSON, len(s.Entries))}
	for i, e := range s.Entries {
		ej := entryJSON{Entry: e.Entry, Classes: make([]classJSON, len(e.Classes))}
		for j, c := range e.Classes {
			cj := classJSON{Path: c.Path, Kind: KindName(c.Snapshot)}
			switch snap := c.Snapshot.(type) {
			case KotlinClassSnapshot:
				cj.Kotlin = snap.ClassInfo
			case RegularJavaClassSnapshot:
				cj.Java = snap.Descriptor
			case EmptyJavaClassSnapshot:
			}
			ej.Classes[j] = cj
		}
		out.Entries[i] = ej
	}
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*ClasspathSnapshot, error) {
	var in fileJSON
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode classpath snapshot: %w", err)
	}
	if in.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, in.Version)
	}

	s := &ClasspathSnapshot{Entries: make([]ClasspathEntrySnapshot, len(in.Entries))}
	for i, ej := range in.Entries {
		e := ClasspathEntrySnapshot{Entry: ej.Entry, Classes: make([]ClassEntry, len(ej.Classes))}
		for j, cj := range ej.Classes {
			snap, err := decodeClass(cj)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", ej.Entry, cj.Path, err)
			}
			e.Classes[j] = ClassEntry{Path: cj.Path, Snapshot: snap}
		}
		s.Entries[i] = e
	}
	return s, nil
}

func decodeClass(cj classJSON) (ClassSnapshot, error) {
	switch cj.Kind {
	case kindKotlin:
		if cj.Kotlin == nil {
			return nil, fmt.Errorf("%w: kotlin class without class info", ErrUnsupportedFormat)
		}
		return KotlinClassSnapshot{ClassInfo: cj.Kotlin}, nil
	case kindJava:
		if cj.Java == nil {
			return nil, fmt.Errorf("%w: java class without descriptor", ErrUnsupportedFormat)
		}
		return RegularJavaClassSnapshot{Descriptor: cj.Java}, nil
	case kindEmpty:
		return EmptyJavaClassSnapshot{}, nil
	}
	return nil, fmt.Errorf("%w: unknown class kind %q", ErrUnsupportedFormat, cj.Kind)
}

// SaveFile writes s to path atomically.
func SaveFile(path string, s *ClasspathSnapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, s); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot written by SaveFile.
func LoadFile(path string) (*ClasspathSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
