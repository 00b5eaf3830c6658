package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"traffic-dashboard/internal/loader"
	"traffic-dashboard/internal/models"
	"traffic-dashboard/internal/pipeline"
	"traffic-dashboard/internal/repository"
	"traffic-dashboard/pkg/logging"
	"traffic-dashboard/pkg/metrics"
)

// maxLoggedRejections caps per-row warnings during a lenient load
const maxLoggedRejections = 20

// ErrDatasetNotLoaded is returned by queries issued before a dataset is loaded
var ErrDatasetNotLoaded = errors.New("dataset not loaded")

// ErrInvalidPage is returned for a page or limit outside the addressable range
var ErrInvalidPage = errors.New("invalid pagination")

// DashboardService owns the in-memory dataset and computes views over it
type DashboardService struct {
	mu      sync.RWMutex
	dataset *pipeline.Dataset
	// store is set when the dataset came from PostgreSQL; raw listings and
	// health checks then go to the table
	store repository.ObservationRepository

	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

// NewDashboardService creates a dashboard service with no dataset
func NewDashboardService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *DashboardService {
	return &DashboardService{
		logger:  logger,
		metrics: metricsCollector,
		tracer:  otel.Tracer("traffic-dashboard/services"),
	}
}

// LoadFromFile loads the dataset from a CSV file. With skipMalformed unset the
// first malformed row aborts the load.
func (s *DashboardService) LoadFromFile(ctx context.Context, path string, skipMalformed bool) (*pipeline.Dataset, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.load_csv", trace.WithAttributes(
		attribute.String("dataset.file", path),
		attribute.Bool("dataset.skip_malformed", skipMalformed),
	))
	defer span.End()

	timer := s.metrics.NewTimer(s.metrics.DatasetLoadDuration)

	s.logger.Info(ctx, "[DATASET_LOAD_START] Loading dataset from CSV", logging.Fields{
		"file":           path,
		"skip_malformed": skipMalformed,
		"stage":          "INITIALIZATION",
	})

	opts := loader.Options{OnMalformed: loader.Abort}
	if skipMalformed {
		opts.OnMalformed = s.skipAndWarn(ctx)
	}

	result, err := loader.LoadFile(path, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dataset load failed")
		s.logger.Error(ctx, "[DATASET_LOAD_ERROR] Dataset load failed", logging.Fields{
			"file":  path,
			"stage": "READ",
		}, err)
		return nil, err
	}

	ds := pipeline.NewDataset(result.Observations, path, len(result.Rejected))
	s.install(ctx, ds, timer.ObserveDuration())
	return ds, nil
}

// LoadFromRepository loads every stored observation in insertion order
func (s *DashboardService) LoadFromRepository(ctx context.Context, repo repository.ObservationRepository) (*pipeline.Dataset, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.load_postgres")
	defer span.End()

	timer := s.metrics.NewTimer(s.metrics.DatasetLoadDuration)

	observations, err := repo.LoadAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dataset load failed")
		s.logger.Error(ctx, "[DATASET_LOAD_ERROR] Dataset load from database failed", logging.Fields{
			"stage": "READ",
		}, err)
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	ds := pipeline.NewDataset(observations, "postgres:traffic_observations", 0)
	s.install(ctx, ds, timer.ObserveDuration())

	s.mu.Lock()
	s.store = repo
	s.mu.Unlock()
	return ds, nil
}

// SetDataset installs an already built dataset and detaches any store
func (s *DashboardService) SetDataset(ds *pipeline.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = ds
	s.store = nil
	summary := ds.Summary()
	s.metrics.RecordDatasetLoad(summary.Rows, summary.Rejected)
}

func (s *DashboardService) install(ctx context.Context, ds *pipeline.Dataset, took time.Duration) {
	s.SetDataset(ds)

	summary := ds.Summary()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("dataset.rows", summary.Rows),
		attribute.Int("dataset.rejected", summary.Rejected),
	)
	s.logger.Info(ctx, "[DATASET_LOAD_COMPLETE] Dataset loaded", logging.Fields{
		"source":        summary.Source,
		"rows":          summary.Rows,
		"rejected_rows": summary.Rejected,
		"duration_ms":   took.Milliseconds(),
		"stage":         "COMPLETE",
	})
}

func (s *DashboardService) skipAndWarn(ctx context.Context) loader.MalformedRowPolicy {
	logged := 0
	return func(err *models.MalformedRowError) error {
		logged++
		if logged <= maxLoggedRejections {
			s.logger.Warn(ctx, "[DATASET_ROW_SKIPPED] Malformed row skipped", logging.Fields{
				"row":    err.Row,
				"column": err.Column,
				"value":  err.Value,
				"reason": err.Reason,
			})
		}
		return nil
	}
}

func (s *DashboardService) current() (*pipeline.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dataset == nil {
		return nil, ErrDatasetNotLoaded
	}
	return s.dataset, nil
}

// ListViews returns the view catalog
func (s *DashboardService) ListViews() []pipeline.ViewSpec {
	return pipeline.Views()
}

// RenderView computes one dashboard view
func (s *DashboardService) RenderView(ctx context.Context, id pipeline.ViewID) (*pipeline.ViewResult, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "view.render", trace.WithAttributes(
		attribute.String("view.id", string(id)),
	))
	defer span.End()

	timer := time.Now()
	result, err := ds.Render(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logFailure(ctx, "[VIEW_RENDER_ERROR] View computation failed", logging.Fields{"view": id}, err)
		return nil, err
	}

	duration := time.Since(timer)
	s.metrics.ViewRenderDuration.WithLabelValues(string(result.ID)).Observe(duration.Seconds())
	span.SetAttributes(attribute.Int("view.rows", result.Rows))

	s.logger.Debug(ctx, "[VIEW_RENDER] View rendered", logging.Fields{
		"view":        result.ID,
		"rows":        result.Rows,
		"series":      len(result.Series),
		"duration_ms": duration.Milliseconds(),
	})
	return result, nil
}

// Aggregate runs an ad-hoc group mean query
func (s *DashboardService) Aggregate(ctx context.Context, q pipeline.AggregateQuery) ([]pipeline.GroupPoint, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "view.aggregate", trace.WithAttributes(
		attribute.String("aggregate.partition", string(q.Partition)),
		attribute.String("aggregate.key", string(q.Key)),
		attribute.String("aggregate.key2", string(q.SecondKey)),
		attribute.String("aggregate.order", string(q.Order)),
	))
	defer span.End()

	partition := string(q.Partition)
	if partition == "" {
		partition = string(pipeline.PartitionAll)
	}

	timer := time.Now()
	groups, err := ds.Aggregate(q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logFailure(ctx, "[AGGREGATE_ERROR] Aggregation failed", logging.Fields{"query": q}, err)
		return nil, err
	}
	s.metrics.AggregationDuration.WithLabelValues(partition).Observe(time.Since(timer).Seconds())
	return groups, nil
}

// Summary describes the loaded dataset
func (s *DashboardService) Summary(ctx context.Context) (pipeline.Summary, error) {
	ds, err := s.current()
	if err != nil {
		return pipeline.Summary{}, err
	}
	return ds.Summary(), nil
}

// Observations returns one page of observations within an optional time range.
// With a PostgreSQL source the page is read from the table.
func (s *DashboardService) Observations(ctx context.Context, start, end *time.Time, page, limit int) ([]pipeline.ObservationView, int, error) {
	ds, err := s.current()
	if err != nil {
		return nil, 0, err
	}
	if page < 1 || limit < 1 || page-1 > math.MaxInt/limit {
		return nil, 0, fmt.Errorf("%w: page=%d limit=%d", ErrInvalidPage, page, limit)
	}
	offset := (page - 1) * limit

	store := s.currentStore()
	if store == nil {
		items, total := ds.Page(start, end, offset, limit)
		return items, total, nil
	}

	rows, total, err := store.ListObservations(ctx, repository.ObservationFilter{
		StartDate: start,
		EndDate:   end,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		s.logger.Error(ctx, "[OBSERVATIONS_ERROR] Listing observations failed", logging.Fields{
			"page":  page,
			"limit": limit,
		}, err)
		return nil, 0, err
	}

	items := make([]pipeline.ObservationView, len(rows))
	for i, o := range rows {
		items[i] = pipeline.NewObservationView(o)
	}
	return items, total, nil
}

// StoreStatus reports the backing table when the dataset came from
// PostgreSQL. attached is false for a CSV source.
func (s *DashboardService) StoreStatus(ctx context.Context) (attached bool, rows int, err error) {
	store := s.currentStore()
	if store == nil {
		return false, 0, nil
	}
	if err := store.HealthCheck(ctx); err != nil {
		return true, 0, err
	}
	rows, err = store.CountObservations(ctx)
	return true, rows, err
}

func (s *DashboardService) currentStore() repository.ObservationRepository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// logFailure logs request errors at warn and internal faults at error.
// An EmptyGroupError from a catalog view means the pipeline produced an
// empty group it should have omitted.
func (s *DashboardService) logFailure(ctx context.Context, message string, fields logging.Fields, err error) {
	var unsupported *models.UnsupportedViewError
	if errors.As(err, &unsupported) {
		fields["kind"] = unsupported.Kind
		fields["value"] = unsupported.Value
		s.logger.Warn(ctx, message, fields)
		return
	}
	s.logger.Error(ctx, message, fields, err)
}
