// Package depcache is a transient, disk-backed cache of class ABI facts.
// Saving a class compares it with what was stored before and reports the
// difference as ChangeInfo; DirtyData turns those changes into dirty lookup
// symbols and fq-names.
package depcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ritzau/classpath-changes/pkg/logging"
	"github.com/ritzau/classpath-changes/pkg/snapshot"
)

// ErrCorrupt is returned when stored cache state cannot be read back.
var ErrCorrupt = errors.New("dependency cache is corrupt")

const schema = `
CREATE TABLE classes (
	internal_name  TEXT PRIMARY KEY,
	fq_name        TEXT NOT NULL,
	parent_fq_name TEXT NOT NULL,
	short_name     TEXT NOT NULL,
	kind           TEXT NOT NULL,
	scope          TEXT NOT NULL,
	hash           INTEGER NOT NULL,
	abi            TEXT NOT NULL,
	metadata_hash  INTEGER NOT NULL DEFAULT 0,
	declarations   TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE supertypes (
	child  TEXT NOT NULL,
	parent TEXT NOT NULL,
	PRIMARY KEY (child, parent)
);
CREATE INDEX supertypes_parent ON supertypes(parent);
`

// Kind tells how a class's members are looked up.
type Kind string

const (
	// KindClass members are looked up in the class scope.
	KindClass Kind = "class"
	// KindPackagePart members are top-level declarations looked up in the
	// package scope (Kotlin file facades and multifile parts).
	KindPackagePart Kind = "package-part"
)

// Record is what Save stores for one class.
type Record struct {
	ABI  *snapshot.ClassABI
	Kind Kind
	// Scope is the lookup scope of members: the class fq-name for
	// KindClass, the package fq-name for KindPackagePart.
	Scope string
	// MetadataHash and DeclarationNames are set for Kotlin classes only.
	MetadataHash     uint64
	DeclarationNames []string
}

// JavaRecord builds the record of a regular Java class.
func JavaRecord(d *snapshot.JavaClassDescriptor) Record {
	return Record{ABI: &d.ABI, Kind: KindClass, Scope: d.ABI.ClassID.FqName()}
}

// KotlinRecord builds the record of a Kotlin class.
func KotlinRecord(info *snapshot.KotlinClassInfo) Record {
	rec := Record{
		ABI:              &info.ABI,
		Kind:             KindClass,
		Scope:            info.ABI.ClassID.FqName(),
		MetadataHash:     info.MetadataHash,
		DeclarationNames: info.DeclarationNames,
	}
	if info.Kind.PackageScoped() {
		rec.Kind = KindPackagePart
		rec.Scope = info.PackageName
	}
	return rec
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Cache is private to one computation. It is not safe for concurrent use.
type Cache struct {
	dir       string
	db        *sql.DB
	q         querier
	collector *ChangesCollector
	log       *slog.Logger
}

// Open creates a fresh cache in a new, uniquely named directory under
// scratchRoot (the OS temp dir when empty).
func Open(ctx context.Context, scratchRoot string) (*Cache, error) {
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	dir := filepath.Join(scratchRoot, "classpath-changes-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "cache.db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// One connection: the cache is used sequentially and transactions must
	// see their own writes.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = MEMORY",
		"PRAGMA synchronous = OFF",
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			os.RemoveAll(dir)
			return nil, fmt.Errorf("initialise cache database: %w", err)
		}
	}

	c := &Cache{
		dir:       dir,
		db:        db,
		q:         db,
		collector: &ChangesCollector{},
		log:       logging.New("depcache"),
	}
	c.log.Debug("opened scratch cache", "dir", dir)
	return c, nil
}

// Dir is the scratch directory backing the cache.
func (c *Cache) Dir() string { return c.dir }

// Collector returns the accumulator of reported changes.
func (c *Cache) Collector() *ChangesCollector { return c.collector }

// Close closes the database and deletes the scratch directory. It always
// attempts both.
func (c *Cache) Close() error {
	closeErr := c.db.Close()
	removeErr := os.RemoveAll(c.dir)
	c.log.Debug("discarded scratch cache", "dir", c.dir)
	return errors.Join(closeErr, removeErr)
}

// InTransaction runs fn with all cache writes in one transaction.
func (c *Cache) InTransaction(ctx context.Context, fn func() error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	c.q = tx
	defer func() { c.q = c.db }()

	if err := fn(); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type storedClass struct {
	ref          ClassRef
	kind         Kind
	scope        string
	hash         uint64
	abi          snapshot.ClassABI
	metadataHash uint64
	declarations []string
}

func (c *Cache) load(ctx context.Context, internalName string) (*storedClass, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT fq_name, parent_fq_name, short_name, kind, scope, hash, abi, metadata_hash, declarations
		 FROM classes WHERE internal_name = ?`,
		internalName)
	var (
		s            = storedClass{ref: ClassRef{InternalName: internalName}}
		hash         int64
		abi          string
		metadataHash int64
		declarations string
	)
	err := row.Scan(&s.ref.FqName, &s.ref.ParentFqName, &s.ref.ShortName, &s.kind, &s.scope, &hash, &abi,
		&metadataHash, &declarations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", internalName, err)
	}
	if err := json.Unmarshal([]byte(abi), &s.abi); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, internalName, err)
	}
	if err := json.Unmarshal([]byte(declarations), &s.declarations); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, internalName, err)
	}
	s.hash = uint64(hash)
	s.metadataHash = uint64(metadataHash)
	return &s, nil
}

func (c *Cache) store(ctx context.Context, rec Record) error {
	abi, err := json.Marshal(rec.ABI)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.ABI.ClassID.InternalName, err)
	}
	declarations, err := json.Marshal(rec.DeclarationNames)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.ABI.ClassID.InternalName, err)
	}
	ref := refOf(rec.ABI)
	if _, err := c.q.ExecContext(ctx,
		`INSERT INTO classes (internal_name, fq_name, parent_fq_name, short_name, kind, scope, hash, abi,
			metadata_hash, declarations)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(internal_name) DO UPDATE SET
			fq_name = excluded.fq_name, parent_fq_name = excluded.parent_fq_name,
			short_name = excluded.short_name, kind = excluded.kind, scope = excluded.scope,
			hash = excluded.hash, abi = excluded.abi,
			metadata_hash = excluded.metadata_hash, declarations = excluded.declarations`,
		ref.InternalName, ref.FqName, ref.ParentFqName, ref.ShortName, string(rec.Kind), rec.Scope,
		int64(rec.ABI.Hash), string(abi), int64(rec.MetadataHash), string(declarations),
	); err != nil {
		return fmt.Errorf("store %s: %w", ref.InternalName, err)
	}

	if _, err := c.q.ExecContext(ctx, `DELETE FROM supertypes WHERE child = ?`, ref.InternalName); err != nil {
		return fmt.Errorf("store supertypes of %s: %w", ref.InternalName, err)
	}
	for _, parent := range rec.ABI.Supertypes() {
		if _, err := c.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO supertypes (child, parent) VALUES (?, ?)`, ref.InternalName, parent,
		); err != nil {
			return fmt.Errorf("store supertypes of %s: %w", ref.InternalName, err)
		}
	}
	return nil
}

func (c *Cache) delete(ctx context.Context, internalName string) error {
	if _, err := c.q.ExecContext(ctx, `DELETE FROM classes WHERE internal_name = ?`, internalName); err != nil {
		return fmt.Errorf("delete %s: %w", internalName, err)
	}
	if _, err := c.q.ExecContext(ctx, `DELETE FROM supertypes WHERE child = ?`, internalName); err != nil {
		return fmt.Errorf("delete supertypes of %s: %w", internalName, err)
	}
	return nil
}

func refOf(abi *snapshot.ClassABI) ClassRef {
	return ClassRef{
		InternalName: abi.ClassID.InternalName,
		FqName:       abi.ClassID.FqName(),
		ParentFqName: abi.ClassID.ParentFqName(),
		ShortName:    abi.ClassID.ShortName(),
	}
}
