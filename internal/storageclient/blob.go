package storageclient

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
)

// BlobClient issues operations through a gocloud.dev bucket. The endpoint is
// a bucket URL (s3://, file:// or mem://); file and mem buckets make local
// runs and tests possible without remote infrastructure.
type BlobClient struct {
	bucket *blob.Bucket
}

// NewBlobClient opens the bucket URL given as the endpoint.
func NewBlobClient(ctx context.Context, cfg Config) (*BlobClient, error) {
	bucket, err := blob.OpenBucket(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", cfg.Endpoint, err)
	}
	return &BlobClient{bucket: bucket}, nil
}

// NewBlobClientFromBucket wraps an already-open bucket (used by tests).
func NewBlobClientFromBucket(bucket *blob.Bucket) *BlobClient {
	return &BlobClient{bucket: bucket}
}

// EnsureBucket is a success no-op: gocloud bucket URLs reference storage that
// already exists (fileblob creates its directory at open).
func (c *BlobClient) EnsureBucket(ctx context.Context) Result {
	return invocationResult(time.Now(), 0, "bucket exists", nil)
}

// Put uploads a local file to the given key.
func (c *BlobClient) Put(ctx context.Context, key, localPath string) Result {
	start := time.Now()

	f, err := os.Open(localPath)
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("open %s: %w", localPath, err))
	}
	defer f.Close()

	w, err := c.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("create writer for %s: %w", key, err))
	}

	n, err := io.Copy(w, f)
	if err != nil {
		w.Close()
		return invocationResult(start, n, "", fmt.Errorf("write %s: %w", key, err))
	}
	if err := w.Close(); err != nil {
		return invocationResult(start, n, "", fmt.Errorf("close writer for %s: %w", key, err))
	}
	return invocationResult(start, n, key, nil)
}

// Get downloads the object at key to a local path.
func (c *BlobClient) Get(ctx context.Context, key, localPath string) Result {
	start := time.Now()

	r, err := c.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("open reader for %s: %w", key, err))
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("create %s: %w", localPath, err))
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return invocationResult(start, n, "", fmt.Errorf("download %s: %w", key, err))
	}
	return invocationResult(start, n, key, nil)
}

// List enumerates object keys under a prefix.
func (c *BlobClient) List(ctx context.Context, prefix string) Result {
	start := time.Now()

	count := 0
	iter := c.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		_, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return invocationResult(start, 0, "", fmt.Errorf("list %s: %w", prefix, err))
		}
		count++
	}

	return invocationResult(start, 0, fmt.Sprintf("%d objects", count), nil)
}

// Head stats the object at key.
func (c *BlobClient) Head(ctx context.Context, key string) Result {
	start := time.Now()

	if _, err := c.bucket.Attributes(ctx, key); err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("head %s: %w", key, err))
	}
	return invocationResult(start, 0, key, nil)
}

// Delete removes a single object.
func (c *BlobClient) Delete(ctx context.Context, key string) Result {
	start := time.Now()

	if err := c.bucket.Delete(ctx, key); err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("delete %s: %w", key, err))
	}
	return invocationResult(start, 0, key, nil)
}

// DeletePrefix removes every object under a prefix.
func (c *BlobClient) DeletePrefix(ctx context.Context, prefix string) Result {
	start := time.Now()

	deleted := 0
	iter := c.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return invocationResult(start, 0, "", fmt.Errorf("list for delete %s: %w", prefix, err))
		}
		if err := c.bucket.Delete(ctx, obj.Key); err != nil {
			return invocationResult(start, 0, "", fmt.Errorf("delete %s: %w", obj.Key, err))
		}
		deleted++
	}

	return invocationResult(start, 0, fmt.Sprintf("%d objects deleted", deleted), nil)
}

// Close releases the bucket handle.
func (c *BlobClient) Close() error {
	return c.bucket.Close()
}
