package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-dashboard/internal/models"
	"traffic-dashboard/internal/pipeline"
	"traffic-dashboard/internal/repository"
	"traffic-dashboard/pkg/logging"
	"traffic-dashboard/pkg/metrics"
)

const csvHeader = "holiday,temp,rain_1h,snow_1h,clouds_all,weather_main,weather_description,date_time,traffic_volume\n"

const validCSV = csvHeader +
	"None,288.28,0,0,40,Clouds,scattered clouds,2012-10-02 09:00:00,5545\n" +
	"None,289.36,0,0,75,Clouds,broken clouds,2012-10-02 10:00:00,4516\n" +
	"None,289.58,0,0,90,Clouds,overcast clouds,2012-10-02 11:00:00,4767\n" +
	"None,290.13,0,0,90,Clouds,overcast clouds,2012-10-02 20:00:00,5026\n" +
	"None,291.14,0,0,75,Rain,light rain,2012-10-06 12:00:00,4918\n"

const malformedCSV = csvHeader +
	"None,288.28,0,0,40,Clouds,scattered clouds,2012-10-02 09:00:00,5545\n" +
	"None,289.36,0,0,75,Clouds,broken clouds,2012-10-02 10:00:00,-1\n" +
	"None,289.58,0,0,90,Clouds,overcast clouds,2012-10-02 11:00:00,4767\n"

type fakeRepository struct {
	batches      [][]*models.Observation
	stored       []models.Observation
	truncated    bool
	failOn       int
	loadErr      error
	healthErr    error
	transactions int
	listFilters  []repository.ObservationFilter
}

// InTx snapshots the fake's state and restores it when fn fails
func (f *fakeRepository) InTx(_ context.Context, fn func(w repository.ObservationWriter) error) error {
	f.transactions++
	stored, batches, truncated := slices.Clone(f.stored), slices.Clone(f.batches), f.truncated
	if err := fn(f); err != nil {
		f.stored, f.batches, f.truncated = stored, batches, truncated
		return err
	}
	return nil
}

func (f *fakeRepository) CreateObservationsBatch(_ context.Context, observations []*models.Observation) error {
	if f.failOn > 0 && len(f.batches)+1 == f.failOn {
		return errors.New("connection reset")
	}
	f.batches = append(f.batches, observations)
	for _, o := range observations {
		f.stored = append(f.stored, *o)
	}
	return nil
}

func (f *fakeRepository) ListObservations(_ context.Context, filter repository.ObservationFilter) ([]models.Observation, int, error) {
	f.listFilters = append(f.listFilters, filter)
	var matched []models.Observation
	for _, o := range f.stored {
		if filter.StartDate != nil && o.Timestamp.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && o.Timestamp.After(*filter.EndDate) {
			continue
		}
		matched = append(matched, o)
	}
	total := len(matched)
	if filter.Limit > 0 {
		matched = matched[min(filter.Offset, total):min(filter.Offset+filter.Limit, total)]
	}
	return matched, total, nil
}

func (f *fakeRepository) LoadAll(context.Context) ([]models.Observation, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.stored, nil
}

func (f *fakeRepository) CountObservations(context.Context) (int, error) { return len(f.stored), nil }

func (f *fakeRepository) Truncate(context.Context) error {
	f.truncated = true
	f.stored = nil
	return nil
}

func (f *fakeRepository) HealthCheck(context.Context) error { return f.healthErr }

func newTestDeps(t *testing.T) (*logging.StructuredLogger, *metrics.Collector, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger("traffic-test", "test", logging.DebugLevel)
	logger.SetOutput(&buf)
	return logger, metrics.NewCollectorWithRegistry("traffic_test", prometheus.NewRegistry()), &buf
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "traffic.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDashboardServiceRequiresDataset(t *testing.T) {
	logger, collector, _ := newTestDeps(t)
	svc := NewDashboardService(logger, collector)

	_, err := svc.RenderView(context.Background(), pipeline.ViewWeather)
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)

	_, err = svc.Summary(context.Background())
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
}

func TestDashboardServiceLoadFromFile(t *testing.T) {
	logger, collector, _ := newTestDeps(t)
	svc := NewDashboardService(logger, collector)
	ctx := context.Background()

	ds, err := svc.LoadFromFile(ctx, writeCSV(t, validCSV), false)
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.DatasetRowsLoaded))

	monthly, err := svc.RenderView(ctx, pipeline.ViewMonthly)
	require.NoError(t, err)
	// 20:00 falls outside the day window
	assert.Equal(t, 4, monthly.Rows)

	_, err = svc.RenderView(ctx, "unknown")
	var unsupported *models.UnsupportedViewError
	assert.ErrorAs(t, err, &unsupported)

	groups, err := svc.Aggregate(ctx, pipeline.AggregateQuery{Key: pipeline.DimWeatherMain})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, pipeline.DimValue{Text: "Clouds", Labeled: true}, groups[0].Key)

	items, total, err := svc.Observations(ctx, nil, nil, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, 4767, items[0].TrafficVolume)

	_, _, err = svc.Observations(ctx, nil, nil, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidPage)

	// (page-1)*limit would wrap around to offset 0
	_, _, err = svc.Observations(ctx, nil, nil, 1<<62+1, 4)
	assert.ErrorIs(t, err, ErrInvalidPage)

	attached, _, err := svc.StoreStatus(ctx)
	require.NoError(t, err)
	assert.False(t, attached)
}

func TestDashboardServiceMalformedPolicy(t *testing.T) {
	logger, collector, buf := newTestDeps(t)
	svc := NewDashboardService(logger, collector)
	path := writeCSV(t, malformedCSV)

	_, err := svc.LoadFromFile(context.Background(), path, false)
	var malformed *models.MalformedRowError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 2, malformed.Row)

	ds, err := svc.LoadFromFile(context.Background(), path, true)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 1, ds.Summary().Rejected)
	assert.Contains(t, buf.String(), "[DATASET_ROW_SKIPPED]")
}

func TestDashboardServiceLoadFromRepository(t *testing.T) {
	logger, collector, _ := newTestDeps(t)
	svc := NewDashboardService(logger, collector)

	ts := time.Date(2016, 7, 4, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepository{stored: []models.Observation{
		{ID: 1, Timestamp: ts, TrafficVolume: 100},
		{ID: 2, Timestamp: ts.Add(time.Hour), TrafficVolume: 300},
	}}

	ds, err := svc.LoadFromRepository(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	yearly, err := svc.RenderView(context.Background(), pipeline.ViewYearly)
	require.NoError(t, err)
	require.Len(t, yearly.Series[0].Groups, 1)
	assert.Equal(t, 200.0, yearly.Series[0].Groups[0].Mean)

	attached, rows, err := svc.StoreStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, attached)
	assert.Equal(t, 2, rows)

	start := ts.Add(time.Hour)
	items, total, err := svc.Observations(context.Background(), &start, nil, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ID)
	assert.Equal(t, 13, items[0].Derived.Hour)
	require.Len(t, repo.listFilters, 1)
	assert.Equal(t, 10, repo.listFilters[0].Limit)
	assert.Equal(t, &start, repo.listFilters[0].StartDate)

	repo.healthErr = errors.New("connection refused")
	attached, _, err = svc.StoreStatus(context.Background())
	assert.True(t, attached)
	assert.Error(t, err)

	_, err = NewDashboardService(logger, collector).LoadFromRepository(context.Background(), &fakeRepository{loadErr: errors.New("down")})
	assert.Error(t, err)
}

func TestIngestFile(t *testing.T) {
	logger, collector, _ := newTestDeps(t)
	repo := &fakeRepository{}
	svc := NewIngestionService(repo, logger, collector)

	result, err := svc.IngestFile(context.Background(), writeCSV(t, validCSV), IngestionOptions{BatchSize: 2, Truncate: true})
	require.NoError(t, err)

	assert.True(t, repo.truncated)
	assert.Equal(t, 5, result.TotalRecords)
	assert.Equal(t, 5, result.SuccessfulRecords)
	assert.Zero(t, result.FailedRecords)
	require.Len(t, repo.batches, 3)
	assert.Len(t, repo.batches[2], 1)

	// file order is preserved across batches
	volumes := make([]int, len(repo.stored))
	for i, o := range repo.stored {
		volumes[i] = o.TrafficVolume
	}
	assert.Equal(t, []int{5545, 4516, 4767, 5026, 4918}, volumes)
}

func TestIngestFileMalformedRows(t *testing.T) {
	logger, collector, _ := newTestDeps(t)

	t.Run("abort", func(t *testing.T) {
		repo := &fakeRepository{}
		svc := NewIngestionService(repo, logger, collector)

		result, err := svc.IngestFile(context.Background(), writeCSV(t, malformedCSV), IngestionOptions{BatchSize: 10})
		var malformed *models.MalformedRowError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, 1, result.FailedRecords)
		assert.Empty(t, repo.stored)
	})

	t.Run("abort rolls back flushed batches", func(t *testing.T) {
		existing := []models.Observation{{TrafficVolume: 1}, {TrafficVolume: 2}}
		repo := &fakeRepository{stored: slices.Clone(existing)}
		svc := NewIngestionService(repo, logger, collector)

		result, err := svc.IngestFile(context.Background(), writeCSV(t, malformedCSV), IngestionOptions{BatchSize: 1, Truncate: true})
		var malformed *models.MalformedRowError
		require.ErrorAs(t, err, &malformed)

		assert.Equal(t, 1, repo.transactions)
		assert.Zero(t, result.SuccessfulRecords)
		assert.False(t, repo.truncated)
		assert.Equal(t, existing, repo.stored)
	})

	t.Run("skip", func(t *testing.T) {
		repo := &fakeRepository{}
		svc := NewIngestionService(repo, logger, collector)

		result, err := svc.IngestFile(context.Background(), writeCSV(t, malformedCSV), IngestionOptions{BatchSize: 10, SkipMalformed: true})
		require.NoError(t, err)
		assert.Zero(t, repo.transactions)
		assert.Equal(t, 3, result.TotalRecords)
		assert.Equal(t, 2, result.SuccessfulRecords)
		assert.Equal(t, 1, result.FailedRecords)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "negative volume")
	})
}

func TestIngestFileBatchFailure(t *testing.T) {
	t.Run("single transaction", func(t *testing.T) {
		logger, collector, _ := newTestDeps(t)
		repo := &fakeRepository{failOn: 2}
		svc := NewIngestionService(repo, logger, collector)

		result, err := svc.IngestFile(context.Background(), writeCSV(t, validCSV), IngestionOptions{BatchSize: 2})
		require.Error(t, err)
		assert.Zero(t, result.SuccessfulRecords)
		assert.Empty(t, repo.stored)
		assert.Equal(t, 1.0, testutil.ToFloat64(collector.IngestionErrorsTotal.WithLabelValues("batch_insert_error")))
	})

	t.Run("skip malformed commits per batch", func(t *testing.T) {
		logger, collector, _ := newTestDeps(t)
		repo := &fakeRepository{failOn: 2}
		svc := NewIngestionService(repo, logger, collector)

		result, err := svc.IngestFile(context.Background(), writeCSV(t, validCSV), IngestionOptions{BatchSize: 2, SkipMalformed: true})
		require.Error(t, err)
		assert.Equal(t, 2, result.SuccessfulRecords)
		assert.Len(t, repo.stored, 2)
	})
}

func TestIngestFileValidatesOptions(t *testing.T) {
	logger, collector, _ := newTestDeps(t)
	svc := NewIngestionService(&fakeRepository{}, logger, collector)

	_, err := svc.IngestFile(context.Background(), "unused.csv", IngestionOptions{})
	assert.Error(t, err)

	_, err = svc.IngestFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), IngestionOptions{BatchSize: 1})
	assert.Error(t, err)
}
