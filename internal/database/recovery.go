package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RecoveryResult is the outcome of a recovery attempt.
type RecoveryResult int

const (
	// RecoveryHealthy means the database was missing, healthy or repaired in place.
	RecoveryHealthy RecoveryResult = iota
	// RecoveryFromBackup means the database was replaced by a backup.
	RecoveryFromBackup
	// RecoveryFailed means every step failed.
	RecoveryFailed
)

func (r RecoveryResult) String() string {
	switch r {
	case RecoveryHealthy:
		return "healthy"
	case RecoveryFromBackup:
		return "restored_from_backup"
	case RecoveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecoveryStep records one step of a recovery attempt.
type RecoveryStep struct {
	Name      string
	Succeeded bool
	Message   string
	Duration  time.Duration
}

// RecoveryReport describes a recovery attempt.
type RecoveryReport struct {
	Result     RecoveryResult
	BackupUsed string
	Steps      []RecoveryStep
}

// AttemptRecovery checks the database before the backend opens it. A corrupt
// file is first repaired by a WAL checkpoint, then replaced by the newest
// backup that passes its own integrity check.
func AttemptRecovery(ctx context.Context, dbPath, backupDir string, logger *slog.Logger) (*RecoveryReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := &RecoveryReport{}

	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		report.Steps = append(report.Steps, RecoveryStep{Name: "check_exists", Succeeded: true, Message: "first run"})
		return report, nil
	}

	check := func() (string, error) { return "ok", checkFile(ctx, dbPath) }

	if report.run("integrity_check", check) {
		return report, nil
	}
	logger.Warn("database integrity check failed", "path", dbPath)

	if _, err := os.Stat(dbPath + "-wal"); err == nil {
		if report.run("wal_checkpoint", func() (string, error) { return walCheckpoint(ctx, dbPath) }) &&
			report.run("post_wal_integrity", check) {
			logger.Info("database repaired by WAL checkpoint", "path", dbPath)
			return report, nil
		}
	}

	if backupDir != "" && report.run("restore_backup", func() (string, error) { return restoreNewestBackup(ctx, dbPath, backupDir, logger) }) {
		report.Result = RecoveryFromBackup
		report.BackupUsed = report.Steps[len(report.Steps)-1].Message
		logger.Info("database restored from backup", "path", dbPath, "backup", report.BackupUsed)
		return report, nil
	}

	report.Result = RecoveryFailed
	logger.Error("database recovery failed", "path", dbPath, "steps", len(report.Steps))
	return report, errors.New("all recovery attempts failed")
}

func (r *RecoveryReport) run(name string, fn func() (string, error)) bool {
	start := time.Now()
	msg, err := fn()
	step := RecoveryStep{Name: name, Succeeded: err == nil, Message: msg, Duration: time.Since(start)}
	if err != nil {
		step.Message = err.Error()
	}
	r.Steps = append(r.Steps, step)
	return step.Succeeded
}

func checkFile(ctx context.Context, path string) error {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return integrityCheck(ctx, conn)
}

func walCheckpoint(ctx context.Context, path string) (string, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_txlock=immediate", path))
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA wal_checkpoint(RESTART)"); err != nil {
		return "", fmt.Errorf("WAL checkpoint: %w", err)
	}
	return "checkpoint complete", nil
}

func restoreNewestBackup(ctx context.Context, dbPath, backupDir string, logger *slog.Logger) (string, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return "", fmt.Errorf("reading backup directory: %w", err)
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	var backups []backup
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		if info, err := e.Info(); err == nil {
			backups = append(backups, backup{filepath.Join(backupDir, e.Name()), info.ModTime()})
		}
	}
	if len(backups) == 0 {
		return "", errors.New("no backup files found")
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].modTime.After(backups[j].modTime) })

	for _, b := range backups {
		if err := checkFile(ctx, b.path); err != nil {
			logger.Debug("skipping corrupt backup", "path", b.path, "error", err)
			continue
		}

		corrupted := dbPath + ".corrupted." + time.Now().UTC().Format("20060102-150405")
		if err := os.Rename(dbPath, corrupted); err != nil {
			logger.Warn("preserving corrupted database", "path", dbPath, "error", err)
		}
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")

		if err := copyFile(b.path, dbPath); err != nil {
			return "", fmt.Errorf("copying backup: %w", err)
		}
		return b.path, nil
	}
	return "", errors.New("no valid backup found")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return out.Sync()
}
