// Package storageclient abstracts storage-operation invocation against an
// S3-compatible endpoint. Operations report an exit code, timing and
// stdout/stderr tails, mirroring a synchronous CLI invocation; the caller's
// context carries the per-attempt timeout.
package storageclient

import (
	"context"
	"fmt"
	"time"

	"s3bench/internal/credentials"
)

// Result is the outcome of a single storage invocation.
type Result struct {
	ExitCode int           // 0 = success, nonzero = failure
	Duration time.Duration // wall clock of this invocation only
	Bytes    int64         // payload bytes transferred; 0 for LIST/HEAD/DELETE
	Stdout   string        // short diagnostic output
	Stderr   string        // short error tail, empty on success
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Client issues storage operations against a single bucket.
type Client interface {
	// EnsureBucket creates the bucket if absent. "Already exists" and
	// "already owned by you" responses are success, not failure.
	EnsureBucket(ctx context.Context) Result

	// Put uploads a local file to the given key.
	Put(ctx context.Context, key, localPath string) Result

	// Get downloads the object at key to a local path.
	Get(ctx context.Context, key, localPath string) Result

	// List enumerates object keys under a prefix.
	List(ctx context.Context, prefix string) Result

	// Head stats the object at key.
	Head(ctx context.Context, key string) Result

	// Delete removes a single object.
	Delete(ctx context.Context, key string) Result

	// DeletePrefix removes every object under a prefix.
	DeletePrefix(ctx context.Context, prefix string) Result

	// Close releases client resources.
	Close() error
}

// Config selects and parameterizes a client backend.
type Config struct {
	Backend     string // "s3" | "blob"
	Endpoint    string // S3 endpoint URL, or a gocloud bucket URL for "blob"
	Region      string
	Bucket      string
	InsecureSSL bool
	Credentials credentials.Credentials
}

// New creates a storage client for the configured backend.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Client(ctx, cfg)
	case "blob":
		return NewBlobClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage client backend: %s", cfg.Backend)
	}
}

// stderrTailLimit bounds the stored error tail.
const stderrTailLimit = 512

// invocationResult builds a Result from an invocation outcome.
func invocationResult(start time.Time, bytes int64, stdout string, err error) Result {
	res := Result{
		Duration: time.Since(start),
		Bytes:    bytes,
		Stdout:   stdout,
	}
	if err != nil {
		res.ExitCode = 1
		res.Stderr = errTail(err)
	}
	return res
}

// errTail returns the last stderrTailLimit bytes of an error message.
func errTail(err error) string {
	msg := err.Error()
	if len(msg) > stderrTailLimit {
		msg = msg[len(msg)-stderrTailLimit:]
	}
	return msg
}
