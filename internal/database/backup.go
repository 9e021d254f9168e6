package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// BackupConfig controls the periodic sqlite file backup.
type BackupConfig struct {
	Enabled       bool
	IntervalHours int
	Path          string
	RetentionDays int
}

// BackupService copies the database file on a fixed interval and prunes
// copies past retention.
type BackupService struct {
	dbPath string
	config BackupConfig
	logger zerolog.Logger
}

// NewBackupService creates a backup service for the database at dbPath.
func NewBackupService(dbPath string, cfg BackupConfig, logger zerolog.Logger) *BackupService {
	if cfg.IntervalHours <= 0 {
		cfg.IntervalHours = 24
	}
	return &BackupService{dbPath: dbPath, config: cfg, logger: logger}
}

// Run blocks until ctx is done, backing up on the configured interval.
// The first backup runs immediately.
func (s *BackupService) Run(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("backup service disabled")
		return
	}

	s.logger.Info().Int("interval_hours", s.config.IntervalHours).Msg("backup service started")

	ticker := time.NewTicker(time.Duration(s.config.IntervalHours) * time.Hour)
	defer ticker.Stop()

	if err := s.Backup(); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Backup(); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.pruneOld()
		}
	}
}

// Backup writes one timestamped copy of the database file.
func (s *BackupService) Backup() error {
	if err := os.MkdirAll(s.config.Path, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("backup_%s.db", time.Now().Format("20060102_150405"))
	dest := filepath.Join(s.config.Path, name)

	src, err := os.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("open database file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}

	s.logger.Info().Str("path", dest).Msg("database backup written")
	return out.Close()
}

// pruneOld removes backup files older than the retention window.
func (s *BackupService) pruneOld() {
	if s.config.RetentionDays <= 0 {
		return
	}

	entries, err := os.ReadDir(s.config.Path)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read backup dir for pruning")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "backup_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", entry.Name()).Msg("pruning old backup")
			_ = os.Remove(filepath.Join(s.config.Path, entry.Name()))
		}
	}
}
