package audit

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds configuration for the audit service.
type Config struct {
	// DataRetentionDays is how long audit_log rows are kept. Default: 365.
	DataRetentionDays int

	// ExportOnStart runs an export immediately on service start.
	ExportOnStart bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{DataRetentionDays: 365}
}

// Service runs the monthly export and retention cleanup on the 1st of each
// month, just after midnight.
type Service struct {
	config   *Config
	exporter TableExporter
	writer   func() SheetWriter // factory, one fresh workbook per export
	sink     Sink
	cleaner  Cleaner
	logger   zerolog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewService creates an audit export service.
func NewService(config *Config, exporter TableExporter, writerFactory func() SheetWriter, sink Sink, cleaner Cleaner, logger zerolog.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DataRetentionDays <= 0 {
		config.DataRetentionDays = 365
	}
	return &Service{
		config:   config,
		exporter: exporter,
		writer:   writerFactory,
		sink:     sink,
		cleaner:  cleaner,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		go s.runOnce()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Int("retention_days", s.config.DataRetentionDays).Msg("audit service started")
}

// Stop gracefully stops the scheduler.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := nextFirstOfMonth(time.Now())
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()

	s.logger.Info().Time("next_run", nextRun).Msg("audit export scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.runOnce()
			nextRun = nextFirstOfMonth(time.Now())
			timer.Reset(time.Until(nextRun))
			s.logger.Info().Time("next_run", nextRun).Msg("audit export scheduled")
		}
	}
}

func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

func (s *Service) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := s.Export(ctx); err != nil {
		s.logger.Error().Err(err).Msg("audit export failed")
	}
	if err := s.Cleanup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("audit cleanup failed")
	}
}

// Export writes every exportable table to one workbook and hands it to the
// sink. A table that fails to read is skipped, not fatal: a partial report
// beats none.
func (s *Service) Export(ctx context.Context) error {
	if s.exporter == nil || s.writer == nil {
		return fmt.Errorf("exporter or writer not configured")
	}

	tables, err := s.exporter.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("get table names: %w", err)
	}
	if len(tables) == 0 {
		s.logger.Info().Msg("no tables to export")
		return nil
	}

	book := s.writer()
	for _, tableName := range tables {
		data, columns, err := s.exporter.GetTableData(ctx, tableName)
		if err != nil {
			s.logger.Error().Err(err).Str("table", tableName).Msg("failed to read table")
			continue
		}
		if err := book.AddSheet(tableName); err != nil {
			s.logger.Error().Err(err).Str("table", tableName).Msg("failed to add sheet")
			continue
		}
		if err := book.WriteHeader(columns); err != nil {
			s.logger.Error().Err(err).Str("table", tableName).Msg("failed to write header")
			continue
		}
		for _, row := range data {
			rowData := make([]interface{}, len(columns))
			for i, col := range columns {
				rowData[i] = row[col]
			}
			if err := book.WriteRow(rowData); err != nil {
				s.logger.Error().Err(err).Str("table", tableName).Msg("failed to write row")
			}
		}
		s.logger.Debug().Str("table", tableName).Int("rows", len(data)).Msg("exported table")
	}

	var buf bytes.Buffer
	if err := book.Save(&buf); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	if s.sink != nil {
		filename := FilenameForPreviousMonth(time.Now())
		if err := s.sink.StoreDocument(ctx, filename, &buf); err != nil {
			return fmt.Errorf("store export %s: %w", filename, err)
		}
		s.logger.Info().Str("filename", filename).Msg("audit report stored")
	}
	return nil
}

// Cleanup removes audit rows past the retention window.
func (s *Service) Cleanup(ctx context.Context) error {
	if s.cleaner == nil {
		return nil
	}

	retention := time.Duration(s.config.DataRetentionDays) * 24 * time.Hour
	deleted, err := s.cleaner.DeleteOldAuditEntries(ctx, retention)
	if err != nil {
		return fmt.Errorf("delete old audit entries: %w", err)
	}

	s.logger.Info().Int64("deleted", deleted).Int("retention_days", s.config.DataRetentionDays).
		Msg("audit retention cleanup done")
	return nil
}
