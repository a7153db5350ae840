// legacy_verify recomputes final marks straight from a legacy export file
// and diffs them against a running API's analytics for the mark set the
// file was imported into. A non-zero exit means the migration drifted.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openmarks/markbook-api/internal/legacy"
	"github.com/openmarks/markbook-api/internal/marks"
	"github.com/openmarks/markbook-api/internal/models"
)

type analyticsEnvelope struct {
	Data models.MarkReport `json:"data"`
}

func main() {
	var (
		file      string
		apiBase   string
		markSetID string
		token     string
		tolerance float64
		timeout   time.Duration
	)

	flag.StringVar(&file, "file", "", "Legacy export file path")
	flag.StringVar(&apiBase, "api-base", "http://localhost:8080", "API base URL")
	flag.StringVar(&markSetID, "mark-set", "", "Mark set id the file was imported into")
	flag.StringVar(&token, "token", "", "Bearer token for the analytics endpoint")
	flag.Float64Var(&tolerance, "tolerance", 0.05, "Allowed absolute drift per final mark")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if file == "" || markSetID == "" {
		flag.Usage()
		os.Exit(2)
	}

	export, err := legacy.ParseExportFile(file)
	if err != nil {
		log.Fatalf("failed to parse export file: %v", err)
	}

	expected := expectedFinals(export)
	report, err := fetchReport(apiBase, markSetID, token, timeout)
	if err != nil {
		log.Fatalf("failed to fetch analytics: %v", err)
	}

	byPosition := make(map[int]models.MarkRow, len(report.Rows))
	for _, row := range report.Rows {
		byPosition[row.Position] = row
	}

	drifted := 0
	for position, want := range expected {
		row, ok := byPosition[position]
		if !ok {
			fmt.Printf("[MISSING] row %d: expected %.1f, no student in report\n", position, want)
			drifted++
			continue
		}
		if row.Final == nil {
			fmt.Printf("[DIFF] row %d (%s): expected %.1f, API has no final\n", position, row.StudentName, want)
			drifted++
			continue
		}
		if math.Abs(*row.Final-want) > tolerance {
			fmt.Printf("[DIFF] row %d (%s): expected %.1f, API reports %.1f\n", position, row.StudentName, want, *row.Final)
			drifted++
		}
	}

	fmt.Printf("checked %d rows, %d drifted\n", len(expected), drifted)
	if drifted > 0 {
		os.Exit(1)
	}
}

// expectedFinals computes per-row finals the way an import followed by an
// AVERAGE computation would: every block lands in one category with weight 1,
// so the final is the plain average of block percents. Negative values are
// unentered and excluded; zeros count.
func expectedFinals(export *models.ExportFile) map[int]float64 {
	policy := marks.AveragePolicy{}
	finals := make(map[int]float64)
	for position := 0; position < export.LastStudent; position++ {
		var entries []marks.WeightedPercent
		for _, block := range export.Blocks {
			if position >= len(block.Values) || block.OutOf <= 0 {
				continue
			}
			value := block.Values[position]
			if value < 0 {
				continue
			}
			entries = append(entries, marks.WeightedPercent{
				Percent: value / block.OutOf * 100,
				Weight:  1,
			})
		}
		if pct, ok := policy.Combine(entries); ok {
			finals[position] = marks.Round1(pct)
		}
	}
	return finals
}

func fetchReport(apiBase, markSetID, token string, timeout time.Duration) (*models.MarkReport, error) {
	url := fmt.Sprintf("%s/api/v1/analytics/mark-sets/%s?scope=all", strings.TrimRight(apiBase, "/"), markSetID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analytics endpoint returned %d", resp.StatusCode)
	}

	var envelope analyticsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode analytics payload: %w", err)
	}
	return &envelope.Data, nil
}
