// Package migrations exposes the account store schema per SQL dialect and
// checks that every dialect ships the same, complete set of versions before
// handing it to a migration runner.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"

	launcher "github.com/goliatone/go-launcher"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	// AccountsTable is the table every schema must create in its first version.
	AccountsTable = "launcher_accounts"

	defaultSourceLabel = "go-launcher"
	schemaRoot         = "data/sql/migrations"
)

var knownDialects = []string{DialectPostgres, DialectSQLite}

// DialectForDriver maps a database/sql driver name to its schema dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("migrations: no account schema for driver %q", driver)
}

// Schema is the account store migration set for one dialect.
type Schema struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []int
}

// Registration records what Register handed to the runner.
type Registration struct {
	SourceLabel string
	Dialects    []string
	Schemas     []Schema
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithDialects limits registration to the given dialects, typically the one
// returned by DialectForDriver for the configured store.
func WithDialects(dialects ...string) Option {
	return func(r *Registration) {
		next := normalizeDialects(dialects)
		if len(next) > 0 {
			r.Dialects = next
		}
	}
}

// WithSchemas replaces the embedded schemas, for hosts that ship their own
// copy of the account tables.
func WithSchemas(schemas ...Schema) Option {
	return func(r *Registration) {
		copied := make([]Schema, 0, len(schemas))
		for _, schema := range schemas {
			schema.Dialect = strings.TrimSpace(strings.ToLower(schema.Dialect))
			if schema.Dialect == "" || schema.FS == nil {
				continue
			}
			copied = append(copied, schema)
		}
		if len(copied) > 0 {
			r.Schemas = copied
		}
	}
}

// Schemas returns the account schema of every dialect, read from root or
// from the embedded migrations when root is nil. Postgres files live at the
// top of the tree and sqlite alternatives under sqlite/.
func Schemas(root fs.FS) ([]Schema, error) {
	if root == nil {
		root = launcher.GetMigrationsFS()
	}
	base, basePath, err := schemaBase(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite schema: %w", err)
	}

	schemas := []Schema{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: joinPath(basePath, DialectSQLite), FS: sqliteFS},
	}
	for i := range schemas {
		versions, err := validateSchema(schemas[i])
		if err != nil {
			return nil, err
		}
		schemas[i].Versions = versions
	}
	if !slices.Equal(schemas[0].Versions, schemas[1].Versions) {
		return nil, fmt.Errorf("migrations: dialects disagree on versions: postgres %v, sqlite %v", schemas[0].Versions, schemas[1].Versions)
	}
	return schemas, nil
}

// Register validates the account schemas and passes each selected dialect to
// registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: defaultSourceLabel,
		Dialects:    append([]string(nil), knownDialects...),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	for _, dialect := range reg.Dialects {
		if !slices.Contains(knownDialects, dialect) {
			return reg, fmt.Errorf("migrations: unsupported dialect %q", dialect)
		}
	}

	if len(reg.Schemas) == 0 {
		schemas, err := Schemas(nil)
		if err != nil {
			return reg, err
		}
		reg.Schemas = schemas
	} else {
		for i := range reg.Schemas {
			versions, err := validateSchema(reg.Schemas[i])
			if err != nil {
				return reg, err
			}
			reg.Schemas[i].Versions = versions
		}
	}

	for _, dialect := range reg.Dialects {
		schema, ok := findSchema(reg.Schemas, dialect)
		if !ok {
			return reg, fmt.Errorf("migrations: no account schema for %s", dialect)
		}
		if err := registerFn(ctx, schema.Dialect, reg.SourceLabel, schema.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", schema.Dialect, schema.Path, err)
		}
	}
	return reg, nil
}

// validateSchema checks that versions start at 1 without gaps, that every up
// file has its down file, and that version 1 creates the accounts table.
func validateSchema(schema Schema) ([]int, error) {
	ups, err := fs.Glob(schema.FS, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s schema: %w", schema.Dialect, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s schema %q has no *.up.sql files", schema.Dialect, schema.Path)
	}
	slices.Sort(ups)

	versions := make([]int, 0, len(ups))
	for i, up := range ups {
		version, err := fileVersion(up)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s: %w", schema.Dialect, err)
		}
		if version != i+1 {
			return nil, fmt.Errorf("migrations: %s schema expected version %d, found %s", schema.Dialect, i+1, up)
		}
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(schema.FS, down); err != nil {
			return nil, fmt.Errorf("migrations: %s schema is missing %s", schema.Dialect, down)
		}
		versions = append(versions, version)
	}

	first, err := fs.ReadFile(schema.FS, ups[0])
	if err != nil {
		return nil, fmt.Errorf("migrations: read %s %s: %w", schema.Dialect, ups[0], err)
	}
	if !strings.Contains(strings.ToLower(string(first)), AccountsTable) {
		return nil, fmt.Errorf("migrations: %s schema does not create %s", schema.Dialect, AccountsTable)
	}
	return versions, nil
}

func fileVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("migration %q has no version prefix", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, fmt.Errorf("migration %q has an invalid version prefix", name)
	}
	return version, nil
}

func schemaBase(root fs.FS) (fs.FS, string, error) {
	sub, err := fs.Sub(root, schemaRoot)
	if err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			if matches, _ := fs.Glob(sub, "*.up.sql"); len(matches) > 0 {
				return sub, schemaRoot, nil
			}
		}
	}
	if matches, _ := fs.Glob(root, "*.up.sql"); len(matches) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", schemaRoot)
}

func findSchema(schemas []Schema, dialect string) (Schema, bool) {
	for _, schema := range schemas {
		if schema.Dialect == dialect {
			return schema, true
		}
	}
	return Schema{}, false
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(strings.ToLower(value))
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func joinPath(base string, suffix string) string {
	if base == "." {
		return suffix
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
