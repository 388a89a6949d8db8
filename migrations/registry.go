// Package migrations locates the webhook event schema for each supported
// SQL dialect.
package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	payments "github.com/goliatone/go-payments"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const (
	rootPath   = "data/sql/migrations"
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Source is the migration set of one dialect. Postgres files live at the
// root of the tree, SQLite overrides under sqlite/.
type Source struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []string
}

// Sources resolves every dialect from root, or from the embedded tree when
// root is nil. Each up migration must ship with its down counterpart so the
// dedupe table can be rolled back.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = payments.GetMigrationsFS()
	}
	base, err := fs.Sub(root, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/" + DialectSQLite, FS: sqliteFS},
	}
	for i := range sources {
		versions, err := pairedVersions(sources[i])
		if err != nil {
			return nil, err
		}
		sources[i].Versions = versions
	}
	if !sameVersions(sources[0].Versions, sources[1].Versions) {
		return nil, fmt.Errorf("migrations: dialects diverge: postgres %v, sqlite %v", sources[0].Versions, sources[1].Versions)
	}
	return sources, nil
}

// For returns the embedded migrations of a single dialect.
func For(dialect string) (Source, error) {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	sources, err := Sources(nil)
	if err != nil {
		return Source{}, err
	}
	for _, source := range sources {
		if source.Dialect == dialect {
			return source, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

func pairedVersions(source Source) ([]string, error) {
	ups, err := fs.Glob(source.FS, "*"+upSuffix)
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s has no %s files", source.Path, upSuffix)
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		version := strings.TrimSuffix(up, upSuffix)
		if _, err := fs.Stat(source.FS, version+downSuffix); err != nil {
			return nil, fmt.Errorf("migrations: %s/%s has no down migration", source.Path, up)
		}
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions, nil
}

func sameVersions(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
