package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	payments "github.com/goliatone/go-payments"
	_ "github.com/mattn/go-sqlite3"
)

func TestSources_ResolvesBothDialects(t *testing.T) {
	sources, err := Sources(nil)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	for _, source := range sources {
		if len(source.Versions) != 1 || source.Versions[0] != "00001_payment_webhook_events" {
			t.Fatalf("unexpected %s versions: %v", source.Dialect, source.Versions)
		}
	}
}

func TestFor_SelectsDialect(t *testing.T) {
	source, err := For(" SQLite ")
	if err != nil {
		t.Fatalf("for sqlite: %v", err)
	}
	if source.Dialect != DialectSQLite || source.Path != "data/sql/migrations/sqlite" {
		t.Fatalf("unexpected source: %+v", source)
	}
	if _, err := fs.Stat(source.FS, "00001_payment_webhook_events.up.sql"); err != nil {
		t.Fatalf("expected sqlite up migration: %v", err)
	}
	if _, err := For("mysql"); err == nil {
		t.Fatalf("expected unsupported dialect to fail")
	}
}

func TestSources_RejectsBrokenTrees(t *testing.T) {
	stmt := &fstest.MapFile{Data: []byte("SELECT 1;")}
	tests := []struct {
		name string
		tree fstest.MapFS
		want string
	}{
		{
			name: "missing down",
			tree: fstest.MapFS{
				"data/sql/migrations/00001_a.up.sql":          stmt,
				"data/sql/migrations/sqlite/00001_a.up.sql":   stmt,
				"data/sql/migrations/sqlite/00001_a.down.sql": stmt,
			},
			want: "no down migration",
		},
		{
			name: "diverging dialects",
			tree: fstest.MapFS{
				"data/sql/migrations/00001_a.up.sql":          stmt,
				"data/sql/migrations/00001_a.down.sql":        stmt,
				"data/sql/migrations/00002_b.up.sql":          stmt,
				"data/sql/migrations/00002_b.down.sql":        stmt,
				"data/sql/migrations/sqlite/00001_a.up.sql":   stmt,
				"data/sql/migrations/sqlite/00001_a.down.sql": stmt,
			},
			want: "dialects diverge",
		},
		{
			name: "empty sqlite",
			tree: fstest.MapFS{
				"data/sql/migrations/00001_a.up.sql":   stmt,
				"data/sql/migrations/00001_a.down.sql": stmt,
				"data/sql/migrations/sqlite/README.md": stmt,
			},
			want: "has no .up.sql files",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sources(tt.tree)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestWebhookEventMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := payments.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_payment_webhook_events.up.sql",
		"data/sql/migrations/00001_payment_webhook_events.down.sql",
		"data/sql/migrations/sqlite/00001_payment_webhook_events.up.sql",
		"data/sql/migrations/sqlite/00001_payment_webhook_events.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteWebhookEventMigration_ApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:migrations-webhook-events?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(payments.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_payment_webhook_events.up.sql"); err != nil {
		t.Fatalf("apply up: %v", err)
	}

	insert := `INSERT INTO payment_webhook_events (id, provider_id, event_id, status, claimed_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "a", "stripe", "evt_1", "processing", "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "b", "stripe", "evt_1", "processing", "2026-01-01T00:00:00Z"); err == nil {
		t.Fatalf("expected (provider_id, event_id) to be unique")
	}
	if _, err := db.ExecContext(ctx, insert, "c", "stripe", "evt_2", "bogus", "2026-01-01T00:00:00Z"); err == nil {
		t.Fatalf("expected status check to reject unknown states")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_payment_webhook_events.down.sql"); err != nil {
		t.Fatalf("apply down: %v", err)
	}
	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", "payment_webhook_events").Scan(&name)
	if err != sql.ErrNoRows {
		t.Fatalf("expected table to be dropped, got %q %v", name, err)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
