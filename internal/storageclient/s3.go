package storageclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// deleteBatchSize is the maximum keys per DeleteObjects request.
const deleteBatchSize = 1000

// S3Client issues operations through the AWS SDK against any S3-compatible
// endpoint (AWS, MinIO, R2, B2 and friends).
type S3Client struct {
	client *s3.Client
	bucket string
}

// NewS3Client creates an S3 client with static credentials and a custom
// endpoint. Path-style addressing is always used; custom endpoints require it
// and AWS accepts it.
func NewS3Client(ctx context.Context, cfg Config) (*S3Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
			cfg.Credentials.AccessKey,
			cfg.Credentials.SecretKey,
			cfg.Credentials.SessionToken,
		)),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	s3Opts = append(s3Opts, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	if cfg.InsecureSSL {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = &http.Client{
				Transport: &http.Transport{
					TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
				},
			}
		})
	}

	return &S3Client{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket checks existence and creates the bucket only when absent.
func (c *S3Client) EnsureBucket(ctx context.Context) Result {
	start := time.Now()

	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return invocationResult(start, 0, "bucket exists", nil)
	}

	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return invocationResult(start, 0, "bucket exists", nil)
		}
		return invocationResult(start, 0, "", fmt.Errorf("create bucket %s: %w", c.bucket, err))
	}

	return invocationResult(start, 0, "bucket created", nil)
}

// Put uploads a local file to the given key.
func (c *S3Client) Put(ctx context.Context, key, localPath string) Result {
	start := time.Now()

	f, err := os.Open(localPath)
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("open %s: %w", localPath, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("stat %s: %w", localPath, err))
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("put %s: %w", key, err))
	}
	return invocationResult(start, info.Size(), key, nil)
}

// Get downloads the object at key to a local path.
func (c *S3Client) Get(ctx context.Context, key, localPath string) Result {
	start := time.Now()

	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("get %s: %w", key, err))
	}
	defer resp.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("create %s: %w", localPath, err))
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return invocationResult(start, n, "", fmt.Errorf("download %s: %w", key, err))
	}
	return invocationResult(start, n, key, nil)
}

// List enumerates object keys under a prefix.
func (c *S3Client) List(ctx context.Context, prefix string) Result {
	start := time.Now()

	count := 0
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return invocationResult(start, 0, "", fmt.Errorf("list %s: %w", prefix, err))
		}
		count += len(page.Contents)
	}

	return invocationResult(start, 0, fmt.Sprintf("%d objects", count), nil)
}

// Head stats the object at key.
func (c *S3Client) Head(ctx context.Context, key string) Result {
	start := time.Now()

	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("head %s: %w", key, err))
	}
	return invocationResult(start, 0, key, nil)
}

// Delete removes a single object.
func (c *S3Client) Delete(ctx context.Context, key string) Result {
	start := time.Now()

	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return invocationResult(start, 0, "", fmt.Errorf("delete %s: %w", key, err))
	}
	return invocationResult(start, 0, key, nil)
}

// DeletePrefix removes every object under a prefix using batched deletes.
func (c *S3Client) DeletePrefix(ctx context.Context, prefix string) Result {
	start := time.Now()

	deleted := 0
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return invocationResult(start, 0, "", fmt.Errorf("list for delete %s: %w", prefix, err))
		}
		if len(page.Contents) == 0 {
			continue
		}

		batch := make([]types.ObjectIdentifier, 0, deleteBatchSize)
		for _, obj := range page.Contents {
			batch = append(batch, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: batch},
		})
		if err != nil {
			return invocationResult(start, 0, "", fmt.Errorf("delete batch under %s: %w", prefix, err))
		}
		deleted += len(batch)
	}

	return invocationResult(start, 0, fmt.Sprintf("%d objects deleted", deleted), nil)
}

// Close is a no-op; the SDK client holds no long-lived resources.
func (c *S3Client) Close() error {
	return nil
}
