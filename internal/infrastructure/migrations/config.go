package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

const (
	// Dir is the migration directory inside the embedded filesystem.
	Dir       = "sql"
	TableName = "goose_db_version"
)

// Migrator applies the schema the attendance job reads and writes.
// Migrations ship inside the binary, so no directory has to exist at runtime.
type Migrator struct {
	db *sql.DB
}

func NewMigrator(db *sql.DB) (*Migrator, error) {
	goose.SetBaseFS(embedded)
	goose.SetTableName(TableName)
	if err := goose.SetDialect("mysql"); err != nil {
		return nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return &Migrator{db: db}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return goose.UpContext(ctx, m.db, Dir)
}

// Run executes one goose command by name, e.g. "up", "down" or "status".
func (m *Migrator) Run(ctx context.Context, command string, args ...string) error {
	return goose.RunContext(ctx, command, m.db, Dir, args...)
}

// Version reports the currently applied schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, m.db)
}

// Files lists the embedded migration files, mainly for diagnostics.
func Files() ([]string, error) {
	entries, err := embedded.ReadDir(Dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
