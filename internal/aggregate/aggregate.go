// Package aggregate turns raw event streams into percentile and error-rate
// summary tables.
package aggregate

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"s3bench/internal/dataset"
	"s3bench/internal/events"
	"s3bench/internal/logging"
)

// ErrNoValidRecords is returned when no event file yields a single valid
// record, leaving nothing to report.
var ErrNoValidRecords = errors.New("no valid event records found")

// SummaryRow is the derived statistics for one (provider, op) group.
type SummaryRow struct {
	Provider     string
	Op           string
	P50MS        float64
	P95MS        float64
	P99MS        float64
	AvgMS        float64
	MBps         float64
	ErrorRatePct float64
	Samples      int
}

// ProviderRow is one row of a per-provider table, grouped by (op, iteration).
type ProviderRow struct {
	Op           string
	Iteration    int
	P50MS        float64
	P95MS        float64
	P99MS        float64
	AvgMS        float64
	ErrorRatePct float64
	Samples      int
}

// Result reports what aggregation produced.
type Result struct {
	ManifestSHA256   string
	Providers        []string
	ProviderTables   map[string]string // provider id to CSV path
	ConsolidatedPath string
	Consolidated     []SummaryRow
}

// Options controls optional outputs.
type Options struct {
	// WriteParquet additionally exports each provider's raw records as a
	// parquet file next to the CSV tables.
	WriteParquet bool
}

// Process aggregates every event stream under dataPath. Malformed records are
// dropped, providers with no valid records are skipped, and only a total
// absence of valid data is fatal.
func Process(dataPath string, opts Options) (*Result, error) {
	log := logging.Component("aggregate")

	manifestHash, err := hashFile(dataset.ManifestPath(dataPath))
	if err != nil {
		return nil, fmt.Errorf("manifest not found at %s: %w", dataset.ManifestPath(dataPath), err)
	}

	files, err := eventFiles(dataPath)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no event streams in %s", ErrNoValidRecords, dataPath)
	}

	result := &Result{
		ManifestSHA256: manifestHash,
		ProviderTables: make(map[string]string),
	}

	var all []events.Record
	for _, file := range files {
		records, dropped, err := events.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if dropped > 0 {
			log.Warn("dropped malformed records", "file", filepath.Base(file), "count", dropped)
		}
		if len(records) == 0 {
			log.Warn("skipping event stream with no valid records", "file", filepath.Base(file))
			continue
		}

		provider := records[0].Provider
		csvPath, err := writeProviderTable(dataPath, provider, records)
		if err != nil {
			return nil, err
		}
		result.ProviderTables[provider] = csvPath
		result.Providers = append(result.Providers, provider)

		if opts.WriteParquet {
			if err := writeParquet(dataPath, provider, records); err != nil {
				return nil, err
			}
		}

		all = append(all, records...)
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("%w: %d event streams present but none contained valid rows",
			ErrNoValidRecords, len(files))
	}
	sort.Strings(result.Providers)

	result.Consolidated = Summarize(all)
	result.ConsolidatedPath = filepath.Join(dataPath, "consolidated_metrics.csv")
	if err := writeConsolidated(result.ConsolidatedPath, result.Consolidated); err != nil {
		return nil, err
	}

	log.Info("aggregation complete",
		"providers", len(result.Providers),
		"records", len(all),
		slog.String("manifest_sha256", manifestHash),
	)
	return result, nil
}

// Summarize groups records by (provider, op) and derives one summary row per
// group, ordered by provider then op.
func Summarize(records []events.Record) []SummaryRow {
	type key struct{ provider, op string }
	groups := make(map[key][]events.Record)
	for _, rec := range records {
		k := key{rec.Provider, rec.Op}
		groups[k] = append(groups[k], rec)
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].provider != keys[j].provider {
			return keys[i].provider < keys[j].provider
		}
		return keys[i].op < keys[j].op
	})

	rows := make([]SummaryRow, 0, len(keys))
	for _, k := range keys {
		group := groups[k]

		durations := make([]float64, 0, len(group))
		throughputs := make([]float64, 0, len(group))
		failures := 0
		for _, rec := range group {
			durations = append(durations, rec.DurationMS)
			if rec.ExitCode != 0 {
				failures++
			}
			// Per-record throughput weights every attempt equally regardless
			// of payload size; zero-duration records cannot contribute.
			if rec.DurationMS > 0 {
				throughputs = append(throughputs, float64(rec.Bytes)/1e6/(rec.DurationMS/1000))
			}
		}

		rows = append(rows, SummaryRow{
			Provider:     k.provider,
			Op:           k.op,
			P50MS:        Percentile(durations, 50),
			P95MS:        Percentile(durations, 95),
			P99MS:        Percentile(durations, 99),
			AvgMS:        Mean(durations),
			MBps:         Mean(throughputs),
			ErrorRatePct: float64(failures) / float64(len(group)) * 100,
			Samples:      len(group),
		})
	}
	return rows
}

// SummarizeProvider groups one provider's records by (op, iteration). The
// error rate is computed per op, mirroring the consolidated view.
func SummarizeProvider(records []events.Record) []ProviderRow {
	type key struct {
		op        string
		iteration int
	}
	groups := make(map[key][]events.Record)
	opFailures := make(map[string]int)
	opCounts := make(map[string]int)
	for _, rec := range records {
		k := key{rec.Op, rec.Iteration}
		groups[k] = append(groups[k], rec)
		opCounts[rec.Op]++
		if rec.ExitCode != 0 {
			opFailures[rec.Op]++
		}
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].op != keys[j].op {
			return keys[i].op < keys[j].op
		}
		return keys[i].iteration < keys[j].iteration
	})

	rows := make([]ProviderRow, 0, len(keys))
	for _, k := range keys {
		group := groups[k]
		durations := make([]float64, 0, len(group))
		for _, rec := range group {
			durations = append(durations, rec.DurationMS)
		}
		rows = append(rows, ProviderRow{
			Op:           k.op,
			Iteration:    k.iteration,
			P50MS:        Percentile(durations, 50),
			P95MS:        Percentile(durations, 95),
			P99MS:        Percentile(durations, 99),
			AvgMS:        Mean(durations),
			ErrorRatePct: float64(opFailures[k.op]) / float64(opCounts[k.op]) * 100,
			Samples:      len(group),
		})
	}
	return rows
}

// writeProviderTable writes metrics_<provider>.csv under dataPath.
func writeProviderTable(dataPath, provider string, records []events.Record) (string, error) {
	path := filepath.Join(dataPath, "metrics_"+provider+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	header := []string{"op", "iteration", "p50_ms", "p95_ms", "p99_ms", "avg_ms", "error_rate_pct", "samples", "provider"}
	if err := w.Write(header); err != nil {
		f.Close()
		return "", err
	}
	for _, row := range SummarizeProvider(records) {
		record := []string{
			row.Op,
			strconv.Itoa(row.Iteration),
			formatFloat(row.P50MS),
			formatFloat(row.P95MS),
			formatFloat(row.P99MS),
			formatFloat(row.AvgMS),
			formatFloat(row.ErrorRatePct),
			strconv.Itoa(row.Samples),
			provider,
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// writeConsolidated writes the cross-provider summary CSV.
func writeConsolidated(path string, rows []SummaryRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	header := []string{"provider", "op", "p50_ms", "p95_ms", "p99_ms", "avg_ms", "MBps", "error_rate_pct", "samples"}
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Provider,
			row.Op,
			formatFloat(row.P50MS),
			formatFloat(row.P95MS),
			formatFloat(row.P99MS),
			formatFloat(row.AvgMS),
			formatFloat(row.MBps),
			formatFloat(row.ErrorRatePct),
			strconv.Itoa(row.Samples),
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// eventFiles lists plain and gzip-compressed NDJSON streams under dataPath.
func eventFiles(dataPath string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.ndjson", "*.ndjson.gz"} {
		matches, err := filepath.Glob(filepath.Join(dataPath, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// hashFile computes the SHA-256 of a file as a hex string.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
