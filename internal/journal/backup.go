package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const backupPrefix = "tutorbook_journal_"

// Backup writes a consistent copy of the journal to dest.
func (db *DB) Backup(ctx context.Context, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("backup journal: %w", err)
	}
	return nil
}

// CleanupBackups removes journal backups in dir older than retention.
func CleanupBackups(dir string, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	deleted := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), backupPrefix) {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, file.Name())); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}

// BackupLoop snapshots the journal into dir every interval until ctx is done.
func (db *DB) BackupLoop(ctx context.Context, dir string, interval, retention time.Duration, logger *zerolog.Logger) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dest := filepath.Join(dir, backupPrefix+time.Now().Format("20060102_150405")+".db")
			if err := db.Backup(ctx, dest); err != nil {
				logger.Error().Err(err).Msg("journal backup failed")
				continue
			}
			logger.Info().Str("path", dest).Msg("journal backup completed")

			deleted, err := CleanupBackups(dir, retention)
			if err != nil {
				logger.Error().Err(err).Msg("backup cleanup failed")
			} else if deleted > 0 {
				logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
			}
		}
	}
}
