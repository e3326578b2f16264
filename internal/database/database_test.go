package database

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/idro/idro/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTempDB(t *testing.T, cfg config.DatabaseConfig) (*DB, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "idro.db")
	db, err := Open(path, cfg, filepath.Join(dir, "backups"), discardLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, path
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestOpen(t *testing.T) {
	db, path := openTempDB(t, config.DatabaseConfig{})
	ctx := context.Background()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("reading journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if !db.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if err := db.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() on closed database should fail")
	}
}

func TestOpen_InvalidSchedule(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "idro.db"), config.DatabaseConfig{BackupSchedule: "not a schedule"}, dir, discardLogger())
	if err == nil {
		t.Error("expected error for invalid backup schedule")
	}
}

func TestMigrator(t *testing.T) {
	db, _ := openTempDB(t, config.DatabaseConfig{})
	ctx := context.Background()

	m, err := NewMigrator(db)
	if err != nil {
		t.Fatalf("NewMigrator() error = %v", err)
	}

	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		t.Fatalf("PendingMigrations() error = %v", err)
	}
	if len(pending) == 0 {
		t.Fatal("expected pending migrations on a fresh database")
	}

	result, err := m.MigrateUp(ctx)
	if err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	if len(result.Applied) != len(pending) {
		t.Errorf("applied %d migrations, want %d", len(result.Applied), len(pending))
	}

	version, err := m.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if version != result.TargetVersion {
		t.Errorf("CurrentVersion() = %d, want %d", version, result.TargetVersion)
	}

	for _, table := range []string{"alerts", "camps", "camp_predictions"} {
		var n int
		if err := db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&n); err != nil || n != 1 {
			t.Errorf("table %s missing (n=%d, err=%v)", table, n, err)
		}
	}

	again, err := m.MigrateUp(ctx)
	if err != nil {
		t.Fatalf("second MigrateUp() error = %v", err)
	}
	if len(again.Applied) != 0 {
		t.Errorf("second MigrateUp applied %d migrations", len(again.Applied))
	}

	down, err := m.MigrateDown(ctx)
	if err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if down.TargetVersion != version-1 {
		t.Errorf("MigrateDown target = %d, want %d", down.TargetVersion, version-1)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'alerts'").Scan(&n); err != nil || n != 0 {
		t.Errorf("alerts table should be dropped (n=%d, err=%v)", n, err)
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "two statements",
			script: "CREATE TABLE a (x INT);\nCREATE TABLE b (y INT);",
			want:   []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"},
		},
		{
			name:   "semicolon in string",
			script: "INSERT INTO a VALUES ('x;y');",
			want:   []string{"INSERT INTO a VALUES ('x;y')"},
		},
		{
			name:   "comment lines dropped",
			script: "-- header\nSELECT 1;\n-- trailing",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "empty",
			script: "  \n-- only a comment\n",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, splitStatements(tt.script)); diff != "" {
				t.Errorf("splitStatements() (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseMigration(t *testing.T) {
	up, down := parseMigration("-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n")
	if up == "" || down == "" {
		t.Fatalf("parseMigration() up=%q down=%q", up, down)
	}
	if got := splitStatements(down); len(got) != 1 || got[0] != "DROP TABLE a" {
		t.Errorf("down statements = %v", got)
	}
}

func TestBackup(t *testing.T) {
	db, _ := openTempDB(t, config.DatabaseConfig{BackupRetentionDays: 1})
	ctx := context.Background()

	if _, err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	stale := filepath.Join(db.backupDir, "idro-20000101-000000.db")
	if err := os.MkdirAll(db.backupDir, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}
	old := mustParseTime(t, "2000-01-01T00:00:00Z")
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	path, err := db.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if err := checkFile(ctx, path); err != nil {
		t.Errorf("backup fails integrity check: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale backup should be removed, stat err = %v", err)
	}
}

func TestBackup_NoDirectory(t *testing.T) {
	db, err := NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory() error = %v", err)
	}
	defer db.Close()

	if _, err := db.Backup(context.Background()); err == nil {
		t.Error("expected error without backup directory")
	}
}

func TestAttemptRecovery(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file is a first run", func(t *testing.T) {
		report, err := AttemptRecovery(ctx, filepath.Join(t.TempDir(), "none.db"), "", discardLogger())
		if err != nil {
			t.Fatalf("AttemptRecovery() error = %v", err)
		}
		if report.Result != RecoveryHealthy {
			t.Errorf("Result = %v, want healthy", report.Result)
		}
	})

	t.Run("healthy database", func(t *testing.T) {
		db, path := openTempDB(t, config.DatabaseConfig{})
		if _, err := Migrate(ctx, db); err != nil {
			t.Fatal(err)
		}
		db.Close()

		report, err := AttemptRecovery(ctx, path, "", discardLogger())
		if err != nil {
			t.Fatalf("AttemptRecovery() error = %v", err)
		}
		if report.Result != RecoveryHealthy || len(report.Steps) != 1 {
			t.Errorf("report = %+v", report)
		}
	})

	t.Run("corrupt database restored from backup", func(t *testing.T) {
		db, path := openTempDB(t, config.DatabaseConfig{})
		if _, err := Migrate(ctx, db); err != nil {
			t.Fatal(err)
		}
		backup, err := db.Backup(ctx)
		if err != nil {
			t.Fatal(err)
		}
		db.Close()
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")

		if err := os.WriteFile(path, []byte("this is not a database file at all, just noise"), 0600); err != nil {
			t.Fatal(err)
		}

		report, err := AttemptRecovery(ctx, path, filepath.Dir(backup), discardLogger())
		if err != nil {
			t.Fatalf("AttemptRecovery() error = %v", err)
		}
		if report.Result != RecoveryFromBackup {
			t.Errorf("Result = %v, want restored_from_backup", report.Result)
		}
		if report.BackupUsed != backup {
			t.Errorf("BackupUsed = %q, want %q", report.BackupUsed, backup)
		}
		if err := checkFile(ctx, path); err != nil {
			t.Errorf("restored database fails integrity check: %v", err)
		}
	})

	t.Run("corrupt database without backups fails", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "idro.db")
		if err := os.WriteFile(path, []byte("garbage garbage garbage garbage"), 0600); err != nil {
			t.Fatal(err)
		}
		report, err := AttemptRecovery(ctx, path, dir, discardLogger())
		if err == nil {
			t.Fatal("expected error")
		}
		if report.Result != RecoveryFailed {
			t.Errorf("Result = %v, want failed", report.Result)
		}
	})
}
