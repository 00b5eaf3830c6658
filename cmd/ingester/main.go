package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"traffic-dashboard/internal/config"
	"traffic-dashboard/internal/repository"
	"traffic-dashboard/internal/services"
	"traffic-dashboard/pkg/database"
	"traffic-dashboard/pkg/logging"
	"traffic-dashboard/pkg/metrics"
)

func main() {
	dataFile := flag.String("data-file", "Metro_Interstate_Traffic_Volume.csv", "Traffic volume CSV file")
	batchSize := flag.Int("batch-size", 1000, "Number of records to insert per transaction")
	skipMalformed := flag.Bool("skip-malformed", false, "Skip malformed rows instead of aborting")
	truncate := flag.Bool("truncate", false, "Empty the observations table before ingesting")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("traffic-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting traffic data ingestion", logging.Fields{
		"version":        "1.0.0",
		"data_file":      *dataFile,
		"batch_size":     *batchSize,
		"skip_malformed": *skipMalformed,
		"truncate":       *truncate,
	})

	metricsCollector := metrics.NewCollector("traffic_ingester")

	db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	repo := repository.NewObservationRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(repo, logger, metricsCollector)

	result, err := ingestionService.IngestFile(ctx, *dataFile, services.IngestionOptions{
		BatchSize:     *batchSize,
		SkipMalformed: *skipMalformed,
		Truncate:      *truncate,
	})
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"data_file": *dataFile,
		}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Data File:          %s\n", *dataFile)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}
	if stored, err := repo.CountObservations(ctx); err != nil {
		logger.Error(ctx, "[INGESTER_ERROR] Failed to count stored observations", logging.Fields{}, err)
	} else {
		fmt.Printf("Rows In Table:      %d\n", stored)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}
