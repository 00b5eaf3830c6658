package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"traffic-dashboard/internal/models"
	"traffic-dashboard/pkg/database"
	"traffic-dashboard/pkg/logging"
	"traffic-dashboard/pkg/metrics"
)

// ObservationWriter stores observations, either directly or inside an open
// transaction
type ObservationWriter interface {
	CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error
	Truncate(ctx context.Context) error
}

// ObservationRepository provides data access for traffic observations
type ObservationRepository interface {
	ObservationWriter
	// InTx runs fn against a writer bound to one transaction. Nothing fn
	// wrote is kept unless it returns nil.
	InTx(ctx context.Context, fn func(w ObservationWriter) error) error
	ListObservations(ctx context.Context, filter ObservationFilter) ([]models.Observation, int, error)
	LoadAll(ctx context.Context) ([]models.Observation, error)
	CountObservations(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) error
}

// ObservationFilter defines filters for querying observations.
// A zero Limit returns every matching row.
type ObservationFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

const observationColumns = `id, observed_at, traffic_volume, temperature_kelvin,
	weather_main, weather_description, holiday, created_at`

const insertObservation = `
	INSERT INTO traffic_observations (
		observed_at, traffic_volume, temperature_kelvin,
		weather_main, weather_description, holiday, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const truncateObservations = "TRUNCATE traffic_observations RESTART IDENTITY"

// observationRepository implements ObservationRepository
type observationRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ObservationRepository {
	return &observationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateObservationsBatch inserts observations in one transaction, preserving
// slice order in the id sequence
func (r *observationRepository) CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	return r.db.InTx(ctx, "insert_observations_batch", func(tx *sqlx.Tx) error {
		return r.insertBatch(ctx, tx, observations)
	})
}

// InTx runs fn inside a single transaction
func (r *observationRepository) InTx(ctx context.Context, fn func(w ObservationWriter) error) error {
	return r.db.InTx(ctx, "ingest_transaction", func(tx *sqlx.Tx) error {
		return fn(&txWriter{repo: r, tx: tx})
	})
}

func (r *observationRepository) insertBatch(ctx context.Context, tx *sqlx.Tx, observations []*models.Observation) error {
	timer := time.Now()

	stmt, err := tx.PrepareContext(ctx, insertObservation)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, obs := range observations {
		if obs.CreatedAt.IsZero() {
			obs.CreatedAt = now
		}
		_, err := stmt.ExecContext(ctx,
			obs.Timestamp,
			obs.TrafficVolume,
			obs.Temperature,
			obs.WeatherMain,
			obs.WeatherDescription,
			obs.Holiday,
			obs.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert observation at %s: %w", obs.Timestamp.Format(time.DateTime), err)
		}
	}

	r.metrics.IngestionBatchSize.Observe(float64(len(observations)))
	r.metrics.IngestionRecordsTotal.Add(float64(len(observations)))
	r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
		"count":       len(observations),
		"duration_ms": time.Since(timer).Milliseconds(),
	})
	return nil
}

// txWriter writes through an open transaction owned by InTx
type txWriter struct {
	repo *observationRepository
	tx   *sqlx.Tx
}

func (w *txWriter) CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	return w.repo.insertBatch(ctx, w.tx, observations)
}

func (w *txWriter) Truncate(ctx context.Context) error {
	if _, err := w.tx.ExecContext(ctx, truncateObservations); err != nil {
		return fmt.Errorf("failed to truncate observations: %w", err)
	}
	return nil
}

// ListObservations retrieves observations in insertion order with filtering and pagination
func (r *observationRepository) ListObservations(ctx context.Context, filter ObservationFilter) ([]models.Observation, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.StartDate != nil {
		where += fmt.Sprintf(" AND observed_at >= $%d", argNum)
		args = append(args, *filter.StartDate)
		argNum++
	}

	if filter.EndDate != nil {
		where += fmt.Sprintf(" AND observed_at <= $%d", argNum)
		args = append(args, *filter.EndDate)
		argNum++
	}

	var totalCount int
	countQuery := "SELECT COUNT(*) FROM traffic_observations" + where
	if err := r.db.GetContext(ctx, "count_observations", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count observations: %w", err)
	}

	query := "SELECT " + observationColumns + " FROM traffic_observations" + where + " ORDER BY id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	observations := []models.Observation{}
	if err := r.db.SelectContext(ctx, "list_observations", &observations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list observations: %w", err)
	}

	return observations, totalCount, nil
}

// LoadAll returns every stored observation in insertion order
func (r *observationRepository) LoadAll(ctx context.Context) ([]models.Observation, error) {
	observations, _, err := r.ListObservations(ctx, ObservationFilter{})
	if err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "[REPO_LOAD_ALL] Observations loaded", logging.Fields{
		"count": len(observations),
	})
	return observations, nil
}

// CountObservations returns the number of stored observations
func (r *observationRepository) CountObservations(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, "count_all_observations", &count, "SELECT COUNT(*) FROM traffic_observations"); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return count, nil
}

// Truncate removes every observation and restarts the id sequence
func (r *observationRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "truncate_observations", truncateObservations); err != nil {
		return fmt.Errorf("failed to truncate observations: %w", err)
	}

	r.logger.Warn(ctx, "[REPO_TRUNCATE] Observations table truncated", logging.Fields{})
	return nil
}

// HealthCheck performs a repository health check
func (r *observationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
