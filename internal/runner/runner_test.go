package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"s3bench/internal/config"
	"s3bench/internal/dataset"
	"s3bench/internal/events"
	"s3bench/internal/storageclient"
)

// fakeClient counts calls and fails configured operations.
type fakeClient struct {
	calls      map[string]int
	fail       map[string]bool
	ensureFail bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		calls: make(map[string]int),
		fail:  make(map[string]bool),
	}
}

func (f *fakeClient) result(op string, bytes int64) storageclient.Result {
	f.calls[op]++
	if f.fail[op] {
		return storageclient.Result{ExitCode: 1, Stderr: fmt.Sprintf("injected %s failure", op)}
	}
	return storageclient.Result{Bytes: bytes}
}

func (f *fakeClient) EnsureBucket(ctx context.Context) storageclient.Result {
	f.calls["ensure"]++
	if f.ensureFail {
		return storageclient.Result{ExitCode: 1, Stderr: "injected bucket failure"}
	}
	return storageclient.Result{}
}

func (f *fakeClient) Put(ctx context.Context, key, localPath string) storageclient.Result {
	return f.result("put", 100)
}

func (f *fakeClient) Get(ctx context.Context, key, localPath string) storageclient.Result {
	return f.result("get", 100)
}

func (f *fakeClient) List(ctx context.Context, prefix string) storageclient.Result {
	return f.result("list", 0)
}

func (f *fakeClient) Head(ctx context.Context, key string) storageclient.Result {
	return f.result("head", 0)
}

func (f *fakeClient) Delete(ctx context.Context, key string) storageclient.Result {
	return f.result("delete", 0)
}

func (f *fakeClient) DeletePrefix(ctx context.Context, prefix string) storageclient.Result {
	return f.result("deleteprefix", 0)
}

func (f *fakeClient) Close() error { return nil }

func testManifest(n int) *dataset.Manifest {
	m := &dataset.Manifest{Seed: 1, FileCount: n}
	for i := 0; i < n; i++ {
		m.Files = append(m.Files, dataset.FileEntry{
			Path:     fmt.Sprintf("file_1_%06d.bin", i),
			Size:     100,
			Checksum: "unchecked",
		})
	}
	return m
}

func testConfig(t *testing.T, mutate func(*config.TestConfig)) *config.Config {
	cfg := &config.Config{
		Dataset: config.DatasetConfig{DataPath: t.TempDir()},
		Test: config.TestConfig{
			Iterations:       1,
			Operations:       []string{"PUT", "LIST", "HEAD", "GET", "DELETE"},
			WarmupOperations: 0,
			RetryAttempts:    0,
			TimeoutSeconds:   30,
			HeadSample:       10,
		},
	}
	if mutate != nil {
		mutate(&cfg.Test)
	}
	return cfg
}

// newTestRunner wires a runner over a fake client with backoff sleeps captured.
func newTestRunner(t *testing.T, cfg *config.Config, client storageclient.Client,
	manifest *dataset.Manifest) (*Runner, string, *[]time.Duration) {

	t.Helper()
	streamPath := filepath.Join(t.TempDir(), "fake.ndjson")
	writer, err := events.NewWriter(streamPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { writer.Close() })

	provider := config.ProviderConfig{ID: "fake", Bucket: "bench", Namespace: "FAKE"}
	r := New(cfg, provider, manifest, client, writer)

	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, streamPath, &slept
}

func readRecords(t *testing.T, path string) []events.Record {
	t.Helper()
	records, dropped, err := events.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if dropped > 0 {
		t.Fatalf("runner produced %d malformed records", dropped)
	}
	return records
}

func TestRunHappyPath(t *testing.T) {
	cfg := testConfig(t, func(tc *config.TestConfig) {
		tc.Iterations = 2
		tc.WarmupOperations = 1
		tc.CleanupAfterRun = true
	})
	client := newFakeClient()
	r, streamPath, slept := newTestRunner(t, cfg, client, testManifest(3))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	records := readRecords(t, streamPath)

	// Warmup: PUT + DELETE at iteration 0. Each of 2 iterations: 5 ops.
	if len(records) != 12 {
		t.Fatalf("got %d records, want 12", len(records))
	}
	for i, rec := range records {
		if rec.ExitCode != 0 {
			t.Errorf("record %d has exit code %d: %s", i, rec.ExitCode, rec.Error)
		}
		if rec.Attempt != 1 {
			t.Errorf("record %d has attempt %d, want 1", i, rec.Attempt)
		}
		if rec.Provider != "fake" {
			t.Errorf("record %d provider = %q", i, rec.Provider)
		}
	}

	if records[0].Op != "PUT" || records[0].Iteration != 0 {
		t.Errorf("first record = %s/%d, want warmup PUT/0", records[0].Op, records[0].Iteration)
	}
	if records[1].Op != "DELETE" || records[1].Iteration != 0 {
		t.Errorf("second record = %s/%d, want warmup DELETE/0", records[1].Op, records[1].Iteration)
	}
	if records[2].Op != "PUT" || records[2].Iteration != 1 {
		t.Errorf("third record = %s/%d, want measured PUT/1", records[2].Op, records[2].Iteration)
	}

	if client.calls["ensure"] != 1 {
		t.Errorf("EnsureBucket called %d times, want 1", client.calls["ensure"])
	}
	// Warmup delete + 2 measured deletes + teardown cleanup.
	if client.calls["deleteprefix"] != 4 {
		t.Errorf("DeletePrefix called %d times, want 4", client.calls["deleteprefix"])
	}
	// Bulk PUT uploads every manifest file: 3 files x (1 warmup + 2 iterations).
	if client.calls["put"] != 9 {
		t.Errorf("Put called %d times, want 9", client.calls["put"])
	}
	if len(*slept) != 0 {
		t.Errorf("no backoff expected on success, slept %v", *slept)
	}
}

func TestRunRetriesThenAborts(t *testing.T) {
	cfg := testConfig(t, func(tc *config.TestConfig) {
		tc.Operations = []string{"PUT"}
		tc.RetryAttempts = 2
	})
	client := newFakeClient()
	client.fail["put"] = true
	r, streamPath, slept := newTestRunner(t, cfg, client, testManifest(2))

	err := r.Run(context.Background())
	if !errors.Is(err, ErrRunAborted) {
		t.Fatalf("Run() = %v, want ErrRunAborted", err)
	}

	records := readRecords(t, streamPath)
	if len(records) != 3 {
		t.Fatalf("got %d records, want retry_attempts+1 = 3", len(records))
	}
	for i, rec := range records {
		if rec.Attempt != i+1 {
			t.Errorf("record %d attempt = %d, want %d", i, rec.Attempt, i+1)
		}
		if rec.ExitCode != 1 {
			t.Errorf("record %d exit code = %d, want 1", i, rec.ExitCode)
		}
		if rec.Error == "" {
			t.Errorf("record %d missing error detail", i)
		}
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("backoff %d = %v, want %v", i, (*slept)[i], want[i])
		}
	}
}

func TestRunHeadFailureIsNonFatal(t *testing.T) {
	cfg := testConfig(t, func(tc *config.TestConfig) {
		tc.Operations = []string{"PUT", "HEAD", "GET"}
		tc.RetryAttempts = 1
	})
	client := newFakeClient()
	client.fail["head"] = true
	r, streamPath, _ := newTestRunner(t, cfg, client, testManifest(2))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil despite HEAD failures", err)
	}

	records := readRecords(t, streamPath)
	// PUT once, HEAD twice (retried), GET once.
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}

	var headFailures int
	for _, rec := range records {
		if rec.Op == "HEAD" && rec.ExitCode == 1 {
			headFailures++
		}
		if rec.Op != "HEAD" && rec.ExitCode != 0 {
			t.Errorf("unexpected failure for %s", rec.Op)
		}
	}
	if headFailures != 2 {
		t.Errorf("head failure records = %d, want 2", headFailures)
	}
	if records[len(records)-1].Op != "GET" {
		t.Error("run did not continue past the failed HEAD")
	}
}

func TestRunGetFailureIsFatal(t *testing.T) {
	cfg := testConfig(t, func(tc *config.TestConfig) {
		tc.Operations = []string{"PUT", "GET"}
	})
	client := newFakeClient()
	client.fail["get"] = true
	r, _, _ := newTestRunner(t, cfg, client, testManifest(1))

	if err := r.Run(context.Background()); !errors.Is(err, ErrRunAborted) {
		t.Fatalf("Run() = %v, want ErrRunAborted", err)
	}
}

func TestRunEnsureBucketFailure(t *testing.T) {
	cfg := testConfig(t, nil)
	client := newFakeClient()
	client.ensureFail = true
	r, streamPath, _ := newTestRunner(t, cfg, client, testManifest(1))

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil, want bucket provisioning error")
	}
	if records := readRecords(t, streamPath); len(records) != 0 {
		t.Errorf("bucket failure should precede any event record, got %d", len(records))
	}
}

func TestRunCanceledContext(t *testing.T) {
	cfg := testConfig(t, nil)
	r, _, _ := newTestRunner(t, cfg, newFakeClient(), testManifest(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
}

func TestHeadSampleBounded(t *testing.T) {
	cfg := testConfig(t, func(tc *config.TestConfig) {
		tc.Operations = []string{"HEAD"}
		tc.HeadSample = 2
	})
	client := newFakeClient()
	r, _, _ := newTestRunner(t, cfg, client, testManifest(6))

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if client.calls["head"] != 2 {
		t.Errorf("Head called %d times, want sample of 2", client.calls["head"])
	}
}

func TestNewRunIDUnique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Errorf("two run ids collided: %s", a)
	}
	if len(a) == 0 || a[:4] != "run-" {
		t.Errorf("run id %q missing prefix", a)
	}
}

func TestParseOps(t *testing.T) {
	ops, err := ParseOps([]string{"put", "LIST", "Head", "GET", "delete"})
	if err != nil {
		t.Fatalf("ParseOps() = %v", err)
	}
	want := []Op{OpPut, OpList, OpHead, OpGet, OpDelete}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("ops[%d] = %v, want %v", i, ops[i], want[i])
		}
	}

	if _, err := ParseOps([]string{"COPY"}); err == nil {
		t.Error("ParseOps(COPY) = nil error, want unknown operation")
	}
}

func TestOpFatality(t *testing.T) {
	for _, op := range []Op{OpPut, OpList, OpGet, OpDelete} {
		if !op.Fatal() {
			t.Errorf("%s should be fatal", op)
		}
	}
	if OpHead.Fatal() {
		t.Error("HEAD should be non-fatal")
	}
}
