package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"traffic-dashboard/internal/loader"
	"traffic-dashboard/internal/models"
	"traffic-dashboard/internal/pipeline"
	"traffic-dashboard/pkg/logging"
)

// Offline walk through the pipeline without a database or HTTP server
func main() {
	dataFile := flag.String("data-file", "Metro_Interstate_Traffic_Volume.csv", "Traffic volume CSV file")
	flag.Parse()

	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("TRAFFIC DASHBOARD - DATA PROCESSING DEMONSTRATION")
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println()

	logger := logging.NewStructuredLogger("demo", "1.0.0", logging.InfoLevel)
	ctx := context.Background()

	skipped := 0
	result, err := loader.LoadFile(*dataFile, loader.Options{
		OnMalformed: func(rowErr *models.MalformedRowError) error {
			if skipped < 5 {
				fmt.Printf("  skipped: %v\n", rowErr)
			}
			skipped++
			return nil
		},
	})
	if err != nil {
		logger.Error(ctx, "Failed to load dataset", logging.Fields{
			"file": *dataFile,
		}, err)
		os.Exit(1)
	}

	ds := pipeline.NewDataset(result.Observations, *dataFile, len(result.Rejected))
	summary := ds.Summary()

	fmt.Printf("Rows read:     %d\n", result.Rows)
	fmt.Printf("Rows accepted: %d\n", summary.Rows)
	fmt.Printf("Rows rejected: %d\n", summary.Rejected)
	if summary.First != nil && summary.Last != nil {
		fmt.Printf("Time range:    %s → %s\n", summary.First.Format("2006-01-02 15:04"), summary.Last.Format("2006-01-02 15:04"))
	}
	fmt.Println()

	for _, spec := range pipeline.Views() {
		fmt.Printf("─────────────────────────────────────────────────────────────\n")
		fmt.Printf("%s (%s)\n", spec.Title, spec.Chart)
		fmt.Printf("─────────────────────────────────────────────────────────────\n")

		view, err := ds.Render(spec.ID)
		if err != nil {
			fmt.Printf("  render failed: %v\n\n", err)
			continue
		}

		fmt.Printf("  rows in partition: %d\n", view.Rows)
		for _, s := range view.Series {
			fmt.Printf("  %s: %s\n", s.Name, describeSeries(s))
		}
		fmt.Println()
	}

	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("✓ All views rendered")
	fmt.Println("════════════════════════════════════════════════════════════════")
}

func describeSeries(s pipeline.Series) string {
	switch {
	case len(s.Groups) > 0:
		parts := make([]string, 0, 4)
		for i, g := range s.Groups {
			if i == 3 {
				parts = append(parts, fmt.Sprintf("... %d groups", len(s.Groups)))
				break
			}
			parts = append(parts, fmt.Sprintf("%v=%.1f", g.Key, g.Mean))
		}
		return strings.Join(parts, ", ")
	case len(s.Bins) > 0:
		peak := s.Bins[0]
		for _, b := range s.Bins[1:] {
			if b.Count > peak.Count {
				peak = b
			}
		}
		return fmt.Sprintf("%d bins, peak [%.1f, %.1f) with %d", len(s.Bins), peak.Lower, peak.Upper, peak.Count)
	case len(s.Daily) > 0:
		return fmt.Sprintf("%d days from %s", len(s.Daily), s.Daily[0].Date)
	case len(s.Cells) > 0:
		return fmt.Sprintf("%d heatmap cells", len(s.Cells))
	case len(s.Points) > 0:
		return fmt.Sprintf("%d scatter points", len(s.Points))
	case len(s.Values) > 0:
		return fmt.Sprintf("%d values", len(s.Values))
	default:
		return "empty"
	}
}
