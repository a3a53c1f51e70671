package events

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxLineSize bounds a single NDJSON line when scanning.
const maxLineSize = 1 << 20

// ReadFile reads all valid records from a plain or gzip-compressed NDJSON
// file. Malformed lines are counted and dropped; they never abort the file.
func ReadFile(path string) (records []Record, dropped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open event stream %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, 0, fmt.Errorf("open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, ok := ParseLine([]byte(line))
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, dropped, fmt.Errorf("scan event stream %s: %w", path, err)
	}

	return records, dropped, nil
}
