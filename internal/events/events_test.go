package events

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func sampleRecord(iteration, attempt, exit int) Record {
	return Record{
		Provider:   "minio",
		Op:         "PUT",
		Iteration:  iteration,
		Attempt:    attempt,
		DurationMS: 123.5,
		ExitCode:   exit,
		Bytes:      1 << 20,
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minio.ndjson")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() = %v", err)
	}
	want := []Record{
		sampleRecord(1, 1, 0),
		sampleRecord(1, 2, 1),
		sampleRecord(2, 1, 0),
	}
	want[1].Error = "connection reset"
	for _, rec := range want {
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append() = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got, dropped, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReadFileDropsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.ndjson")
	content := `{"provider":"a","op":"PUT","iteration":1,"duration_ms":10,"bytes":5,"exit_code":0}
not json at all
{"provider":"a","op":"GET","iteration":1,"duration_ms":20}

{"provider":"a","op":"GET","iteration":1,"duration_ms":20,"bytes":5,"exit_code":0}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records, dropped, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	// One garbage line and one missing required fields; the blank line is
	// neither a record nor a drop.
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}

func TestReadFileGzip(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "p.ndjson")
	compressed := filepath.Join(dir, "p.ndjson.gz")

	w, err := NewWriter(plain)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if err := w.Append(sampleRecord(i, 1, 0)); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()

	data, err := os.ReadFile(plain)
	if err != nil {
		t.Fatal(err)
	}
	out, err := os.Create(compressed)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(out)
	if _, err := gz.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	out.Close()

	fromPlain, _, err := ReadFile(plain)
	if err != nil {
		t.Fatal(err)
	}
	fromGzip, _, err := ReadFile(compressed)
	if err != nil {
		t.Fatalf("ReadFile(gz) = %v", err)
	}

	if len(fromPlain) != len(fromGzip) {
		t.Fatalf("gzip read %d records, plain read %d", len(fromGzip), len(fromPlain))
	}
	for i := range fromPlain {
		if fromPlain[i] != fromGzip[i] {
			t.Errorf("record %d differs across encodings", i)
		}
	}
}

func TestParseLineRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
	}{
		{"complete", `{"provider":"x","op":"PUT","iteration":0,"duration_ms":1.5,"bytes":0,"exit_code":0}`, true},
		{"missing provider", `{"op":"PUT","iteration":0,"duration_ms":1.5,"bytes":0,"exit_code":0}`, false},
		{"missing exit_code", `{"provider":"x","op":"PUT","iteration":0,"duration_ms":1.5,"bytes":0}`, false},
		{"not an object", `[1,2,3]`, false},
		{"garbage", `{{{`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseLine([]byte(tt.line))
			if ok != tt.ok {
				t.Errorf("ParseLine() ok = %v, want %v", ok, tt.ok)
			}
		})
	}
}
