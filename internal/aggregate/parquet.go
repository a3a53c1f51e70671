package aggregate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"s3bench/internal/events"
)

// eventRow is the parquet projection of one event record.
type eventRow struct {
	Provider   string  `parquet:"provider"`
	Op         string  `parquet:"op"`
	Iteration  int32   `parquet:"iteration"`
	Attempt    int32   `parquet:"attempt"`
	DurationMS float64 `parquet:"duration_ms"`
	ExitCode   int32   `parquet:"exit_code"`
	Bytes      int64   `parquet:"bytes"`
	Error      string  `parquet:"error"`
}

// writeParquet exports a provider's raw records as <provider>_events.parquet
// for analysis tools that prefer columnar input over NDJSON.
func writeParquet(dataPath, provider string, records []events.Record) error {
	path := filepath.Join(dataPath, provider+"_events.parquet")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	rows := make([]eventRow, len(records))
	for i, rec := range records {
		rows[i] = eventRow{
			Provider:   rec.Provider,
			Op:         rec.Op,
			Iteration:  int32(rec.Iteration),
			Attempt:    int32(rec.Attempt),
			DurationMS: rec.DurationMS,
			ExitCode:   int32(rec.ExitCode),
			Bytes:      rec.Bytes,
			Error:      rec.Error,
		}
	}

	w := parquet.NewGenericWriter[eventRow](f, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(rows); err != nil {
		f.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Close()
}
