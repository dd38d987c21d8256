package snapshot

import (
	"fmt"
	"log/slog"

	"github.com/ritzau/classpath-changes/pkg/classfile"
	"github.com/ritzau/classpath-changes/pkg/classid"
	"github.com/ritzau/classpath-changes/pkg/logging"
)

// ClassFileWithContents is one class file of a batch.
type ClassFileWithContents struct {
	Path     string // relative path inside the classpath element, for errors
	Contents []byte
}

// Snapshotter turns batches of class files into class snapshots.
type Snapshotter struct {
	log *slog.Logger
}

// NewSnapshotter creates a snapshotter.
func NewSnapshotter() *Snapshotter {
	return &Snapshotter{log: logging.New("snapshot")}
}

type pending struct {
	cf     *classfile.ClassFile
	kotlin KotlinClassKind
}

// Snapshot returns one snapshot per input, in input order. All classes of
// one classpath element must be passed in a single call: whether a nested
// class matters can depend on its outer class.
func (s *Snapshotter) Snapshot(classes []ClassFileWithContents) ([]ClassSnapshot, error) {
	parsed := make([]pending, len(classes))
	resolver := classid.NewResolver()

	// Phase one: parse and classify everything so that outer classes are
	// known before any nested class is resolved.
	for i, c := range classes {
		cf, err := classfile.Parse(c.Contents)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", c.Path, err)
		}
		parsed[i] = pending{cf: cf}
		if md := cf.KotlinMetadata; md != nil && KotlinClassKind(md.Kind).Known() {
			parsed[i].kotlin = KotlinClassKind(md.Kind)
		}
		resolver.Add(cf)
	}

	// Phase two: resolve identities and build snapshots.
	out := make([]ClassSnapshot, len(classes))
	var kotlin, regular, empty int
	for i, p := range parsed {
		if p.kotlin != 0 {
			res := resolver.Resolve(p.cf.ThisClass)
			out[i] = KotlinClassSnapshot{ClassInfo: kotlinClassInfo(p.cf, p.kotlin, res.ID)}
			kotlin++
			continue
		}

		if isEmpty(classid.ClassifyParsed(p.cf), resolver, p.cf.ThisClass) {
			out[i] = EmptyJavaClassSnapshot{}
			empty++
			continue
		}
		res := resolver.Resolve(p.cf.ThisClass)
		out[i] = RegularJavaClassSnapshot{Descriptor: &JavaClassDescriptor{ABI: buildABI(p.cf, res.ID)}}
		regular++
	}

	s.log.Debug("snapshotted batch", "classes", len(classes), "kotlin", kotlin, "java", regular, "empty", empty)
	return out, nil
}

func isEmpty(identity classid.Identity, resolver *classid.Resolver, internalName string) bool {
	switch id := identity.(type) {
	case classid.Local:
		return true
	case classid.NestedNonLocal:
		return id.Anonymous || id.Synthetic || resolver.Resolve(internalName).Local
	case classid.TopLevel:
		return false
	}
	panic(fmt.Sprintf("unexpected identity %T", identity))
}

func kotlinClassInfo(cf *classfile.ClassFile, kind KotlinClassKind, id classid.ClassID) *KotlinClassInfo {
	md := cf.KotlinMetadata
	info := &KotlinClassInfo{
		ABI:              buildABI(cf, id),
		Kind:             kind,
		MetadataVersion:  md.MetadataVersion,
		PackageName:      id.Package,
		MetadataHash:     hashMetadata(md),
		DeclarationNames: declarationNames(md),
	}
	if md.PackageName != "" {
		info.PackageName = md.PackageName
	}
	if kind == KotlinMultifileClassPart {
		info.FacadeName = md.ExtraString
	}
	return info
}
