// Package runner executes the benchmark state machine against one provider:
// ensure bucket, warmup, measured iterations, cleanup, teardown. It emits one
// durably-flushed event record per operation attempt.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"s3bench/internal/config"
	"s3bench/internal/dataset"
	"s3bench/internal/events"
	"s3bench/internal/keymap"
	"s3bench/internal/logging"
	"s3bench/internal/metrics"
	"s3bench/internal/storageclient"
	"s3bench/internal/util"
)

// ErrRunAborted wraps a fatal operation failure that ends the run early.
var ErrRunAborted = errors.New("run aborted")

// handler performs one bulk operation attempt and reports payload bytes moved.
type handler func(ctx context.Context) (int64, error)

// Runner drives the benchmark for a single provider. Execution is strictly
// sequential: one operation, one attempt at a time, so latency measurements
// are never confounded by overlapping requests.
type Runner struct {
	cfg      *config.Config
	provider config.ProviderConfig
	manifest *dataset.Manifest
	client   storageclient.Client
	writer   *events.Writer

	runID      string
	runPrefix  string
	scratchDir string
	limiter    *rate.Limiter
	met        *metrics.Metrics
	log        *slog.Logger

	// sleep is swappable so tests do not wait out real backoffs.
	sleep func(time.Duration)

	handlers map[Op]handler
}

// New creates a runner over an already-constructed client and event writer.
func New(cfg *config.Config, provider config.ProviderConfig, manifest *dataset.Manifest,
	client storageclient.Client, writer *events.Writer) *Runner {

	runID := NewRunID()
	r := &Runner{
		cfg:        cfg,
		provider:   provider,
		manifest:   manifest,
		client:     client,
		writer:     writer,
		runID:      runID,
		runPrefix:  runID,
		scratchDir: filepath.Join(os.TempDir(), "s3bench-scratch-"+runID),
		met:        metrics.Get(),
		log:        logging.RunLogger(runID, provider.ID),
		sleep:      time.Sleep,
	}
	if cfg.Test.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Test.RateLimit), 1)
	}
	r.handlers = map[Op]handler{
		OpPut:    r.putAll,
		OpList:   r.list,
		OpHead:   r.headSample,
		OpGet:    r.getAll,
		OpDelete: r.deletePrefix,
	}
	return r
}

// NewRunID returns a timestamp-derived unique run label. It doubles as the
// run-scoped key prefix, so repeated runs never collide in a shared bucket.
func NewRunID() string {
	return fmt.Sprintf("run-%s-%s",
		time.Now().UTC().Format("20060102T150405Z"),
		uuid.NewString()[:8])
}

// RunID returns the run's unique label.
func (r *Runner) RunID() string {
	return r.runID
}

// Run executes the full benchmark cycle. Teardown of run-local scratch
// resources is attempted even when the run aborts.
func (r *Runner) Run(ctx context.Context) (err error) {
	ops, opErr := ParseOps(r.cfg.Test.Operations)
	if opErr != nil {
		return opErr
	}

	if err := util.EnsureDir(r.scratchDir); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer r.teardown()

	defer func() {
		if r.met != nil {
			r.met.ObserveRun(r.provider.ID, err == nil)
		}
	}()

	r.log.Info("ensuring bucket", "bucket", r.provider.Bucket)
	if res := r.client.EnsureBucket(ctx); !res.OK() {
		return fmt.Errorf("ensure bucket %s: %s", r.provider.Bucket, res.Stderr)
	}

	if err := r.warmup(ctx); err != nil {
		return err
	}

	for iteration := 1; iteration <= r.cfg.Test.Iterations; iteration++ {
		r.log.Info("starting iteration", "iteration", iteration, "of", r.cfg.Test.Iterations)
		for _, op := range ops {
			if err := r.runMeasuredOp(ctx, op, iteration); err != nil {
				return err
			}
		}
	}

	r.log.Info("run complete", "iterations", r.cfg.Test.Iterations)
	return nil
}

// warmup repeats a cheap upload+delete cycle with iteration number 0 to
// surface connection warm-up effects before they pollute measured percentiles.
func (r *Runner) warmup(ctx context.Context) error {
	for w := 0; w < r.cfg.Test.WarmupOperations; w++ {
		r.log.Info("warmup cycle", "cycle", w+1, "of", r.cfg.Test.WarmupOperations)
		if err := r.runMeasuredOp(ctx, OpPut, 0); err != nil {
			return err
		}
		if err := r.runMeasuredOp(ctx, OpDelete, 0); err != nil {
			return err
		}
	}
	return nil
}

// runMeasuredOp runs one operation with retries and applies its fatality
// classification: fatal failures abort the run, non-fatal ones are logged and
// the run continues.
func (r *Runner) runMeasuredOp(ctx context.Context, op Op, iteration int) error {
	err := r.attemptLoop(ctx, op, iteration)

	if op == OpGet {
		// Scratch contents are only needed for checksum verification within
		// the attempt; purge between operations to bound disk usage.
		if perr := util.PurgeDir(r.scratchDir); perr != nil {
			r.log.Warn("failed to purge scratch area", "error", perr)
		}
	}

	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if !op.Fatal() {
		logging.OpLogger(r.log, op.String(), iteration).Warn("non-fatal operation failed", "error", err)
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRunAborted, err)
}

// attemptLoop tries an operation up to retry_attempts+1 times. Every attempt
// is timed independently and produces exactly one event record, flushed before
// the next attempt begins. Backoff between attempts is linear in the attempt
// number; the storage client may retry internally, so anything cleverer here
// just compounds.
func (r *Runner) attemptLoop(ctx context.Context, op Op, iteration int) error {
	h := r.handlers[op]
	maxAttempts := r.cfg.Test.RetryAttempts + 1
	timeout := time.Duration(r.cfg.Test.TimeoutSeconds) * time.Second
	log := logging.OpLogger(r.log, op.String(), iteration)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		bytes, err := h(attemptCtx)
		elapsed := time.Since(start)
		cancel()

		rec := events.Record{
			Provider:   r.provider.ID,
			Op:         op.String(),
			Iteration:  iteration,
			Attempt:    attempt,
			DurationMS: float64(elapsed) / float64(time.Millisecond),
			Bytes:      bytes,
		}
		if err != nil {
			rec.ExitCode = 1
			rec.Error = err.Error()
		}
		if werr := r.writer.Append(rec); werr != nil {
			return fmt.Errorf("persist event record: %w", werr)
		}
		if r.met != nil {
			r.met.ObserveAttempt(r.provider.ID, op.String(), elapsed.Seconds(), bytes, err == nil)
		}

		if err == nil {
			log.Debug("attempt succeeded", "attempt", attempt, "duration_ms", rec.DurationMS)
			return nil
		}

		lastErr = err
		log.Warn("attempt failed", "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			if r.met != nil {
				r.met.IncRetry(r.provider.ID, op.String())
			}
			r.sleep(time.Duration(attempt) * time.Second)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, maxAttempts, lastErr)
}

// teardown purges run-local scratch resources. Best effort: failures are
// logged, never escalated.
func (r *Runner) teardown() {
	if r.cfg.Test.CleanupAfterRun {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(r.cfg.Test.TimeoutSeconds)*time.Second)
		if res := r.client.DeletePrefix(ctx, r.runPrefix+"/"); !res.OK() {
			r.log.Warn("failed to clean up run prefix", "error", res.Stderr)
		}
		cancel()
	}
	if err := os.RemoveAll(r.scratchDir); err != nil {
		r.log.Warn("failed to remove scratch area", "error", err)
	}
}

// putAll uploads the entire dataset under the run-scoped prefix.
func (r *Runner) putAll(ctx context.Context) (int64, error) {
	var total int64
	for _, entry := range r.manifest.Files {
		key := keymap.KeyForEntry(r.runPrefix, entry.Path)
		localPath := filepath.Join(r.cfg.Dataset.DataPath, filepath.FromSlash(entry.Path))

		res := r.client.Put(ctx, key, localPath)
		total += res.Bytes
		if !res.OK() {
			return total, fmt.Errorf("put %s: %s", key, res.Stderr)
		}
	}
	return total, nil
}

// list enumerates the run-scoped prefix.
func (r *Runner) list(ctx context.Context) (int64, error) {
	res := r.client.List(ctx, r.runPrefix+"/")
	if !res.OK() {
		return 0, fmt.Errorf("list %s: %s", r.runPrefix, res.Stderr)
	}
	return 0, nil
}

// headSample probes a bounded, evenly spaced sample of the dataset. Probing
// every object is wasteful when the goal is verifying prefix correctness.
func (r *Runner) headSample(ctx context.Context) (int64, error) {
	sample := r.cfg.Test.HeadSample
	if sample > len(r.manifest.Files) {
		sample = len(r.manifest.Files)
	}
	if sample == 0 {
		return 0, nil
	}

	step := len(r.manifest.Files) / sample
	if step == 0 {
		step = 1
	}
	for i := 0; i < sample; i++ {
		entry := r.manifest.Files[i*step]
		key := keymap.KeyForEntry(r.runPrefix, entry.Path)
		if res := r.client.Head(ctx, key); !res.OK() {
			return 0, fmt.Errorf("head %s: %s", key, res.Stderr)
		}
	}
	return 0, nil
}

// getAll downloads the entire dataset into the scratch area, optionally
// verifying content checksums against the manifest.
func (r *Runner) getAll(ctx context.Context) (int64, error) {
	var total int64
	for _, entry := range r.manifest.Files {
		key := keymap.KeyForEntry(r.runPrefix, entry.Path)
		localPath := filepath.Join(r.scratchDir, filepath.FromSlash(entry.Path))
		if err := util.EnsureDir(filepath.Dir(localPath)); err != nil {
			return total, fmt.Errorf("prepare scratch dir: %w", err)
		}

		res := r.client.Get(ctx, key, localPath)
		total += res.Bytes
		if !res.OK() {
			return total, fmt.Errorf("get %s: %s", key, res.Stderr)
		}

		if r.cfg.Test.VerifyChecksums {
			sum, err := dataset.ChecksumFile(localPath)
			if err != nil {
				return total, fmt.Errorf("hash downloaded %s: %w", key, err)
			}
			if sum != entry.Checksum {
				return total, fmt.Errorf("checksum mismatch for %s: expected %s, actual %s",
					key, entry.Checksum, sum)
			}
		}
	}
	return total, nil
}

// deletePrefix removes every object under the run-scoped prefix.
func (r *Runner) deletePrefix(ctx context.Context) (int64, error) {
	res := r.client.DeletePrefix(ctx, r.runPrefix+"/")
	if !res.OK() {
		return 0, fmt.Errorf("delete prefix %s: %s", r.runPrefix, res.Stderr)
	}
	return 0, nil
}
