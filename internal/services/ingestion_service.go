package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"traffic-dashboard/internal/loader"
	"traffic-dashboard/internal/models"
	"traffic-dashboard/internal/repository"
	"traffic-dashboard/pkg/logging"
	"traffic-dashboard/pkg/metrics"
)

// maxReportedErrors caps the rejected-row messages kept in an IngestionResult
const maxReportedErrors = 100

// IngestionService handles traffic CSV ingestion into PostgreSQL
type IngestionService struct {
	repo    repository.ObservationRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionOptions controls a single ingestion run
type IngestionOptions struct {
	BatchSize     int
	SkipMalformed bool
	Truncate      bool
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.ObservationRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestFile streams a traffic CSV into the observations table in file order.
// Without SkipMalformed the whole run, truncate included, is one transaction,
// so an aborted run leaves the table unchanged.
func (s *IngestionService) IngestFile(ctx context.Context, filePath string, opts IngestionOptions) (*IngestionResult, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}

	startTime := time.Now()
	log := s.logger.WithFields(logging.Fields{"file_path": filePath})

	log.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"batch_size":     opts.BatchSize,
		"skip_malformed": opts.SkipMalformed,
		"truncate":       opts.Truncate,
		"stage":          "INITIALIZATION",
	})

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result := &IngestionResult{Errors: make([]string, 0)}

	if opts.SkipMalformed {
		err = s.ingest(ctx, file, opts, s.repo, result)
	} else {
		err = s.repo.InTx(ctx, func(w repository.ObservationWriter) error {
			return s.ingest(ctx, file, opts, w, result)
		})
		if err != nil {
			// rolled back
			result.SuccessfulRecords = 0
		}
	}
	if err != nil {
		log.Error(ctx, "[INGEST_ERROR] Ingestion aborted", logging.Fields{
			"successful_records": result.SuccessfulRecords,
			"stage":              "PROCESSING",
		}, err)
		return result, err
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	log.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"stage":              "COMPLETE",
	})

	return result, nil
}

func (s *IngestionService) ingest(ctx context.Context, r io.Reader, opts IngestionOptions, w repository.ObservationWriter, result *IngestionResult) error {
	if opts.Truncate {
		if err := w.Truncate(ctx); err != nil {
			return err
		}
	}

	batch := make([]*models.Observation, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.CreateObservationsBatch(ctx, batch); err != nil {
			s.metrics.RecordIngestionError("batch_insert_error")
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
		batch = make([]*models.Observation, 0, opts.BatchSize)
		return nil
	}

	policy := loader.Options{OnMalformed: func(rowErr *models.MalformedRowError) error {
		s.metrics.RecordIngestionError("malformed_row")
		if len(result.Errors) < maxReportedErrors {
			result.Errors = append(result.Errors, rowErr.Error())
		}
		if !opts.SkipMalformed {
			return rowErr
		}
		return nil
	}}

	stats, err := loader.Stream(r, policy, func(obs models.Observation) error {
		batch = append(batch, &obs)
		if len(batch) >= opts.BatchSize {
			return flush()
		}
		return nil
	})
	if stats != nil {
		result.TotalRecords = stats.Rows
		result.FailedRecords = len(stats.Rejected)
	}
	if err != nil {
		return err
	}
	return flush()
}
