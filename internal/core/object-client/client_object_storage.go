package objectclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cfg "github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
)

type S3Client struct {
	client   *s3.Client
	region   string
	bucket   string
	endpoint string
	timeout  time.Duration
}

var _ core.ObjectClient = (*S3Client)(nil)

// NewS3Client uses static credentials when both keys are set and the default
// AWS credential chain otherwise. S3Endpoint switches to path-style addressing
// for S3-compatible stores.
func NewS3Client(ctx context.Context, cfg *cfg.Config) (*S3Client, error) {
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Info("s3 client ready", "bucket", cfg.BucketName, "region", cfg.AwsRegion)

	return &S3Client{
		client:   client,
		region:   cfg.AwsRegion,
		bucket:   cfg.BucketName,
		endpoint: cfg.S3Endpoint,
		timeout:  cfg.DownloadTimeout,
	}, nil
}

// UploadFile uploads to the configured bucket and returns the path to store on the document.
func (c *S3Client) UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	uploader := manager.NewUploader(c.client)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	ctxUpload, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if _, err := uploader.Upload(ctxUpload, input); err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	if c.endpoint != "" {
		return fmt.Sprintf("s3://%s/%s", c.bucket, key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, key), nil
}

func (c *S3Client) DeleteFile(ctx context.Context, path string) error {
	bucket, key, err := ParseObjectPath(path, c.bucket)
	if err != nil {
		return err
	}

	ctxDel, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = c.client.DeleteObject(ctxDel, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

func (c *S3Client) GetFile(ctx context.Context, path string) ([]byte, error) {
	bucket, key, err := ParseObjectPath(path, c.bucket)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get s3://%s/%s failed: %w", bucket, key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// ParseObjectPath resolves a stored file path to a bucket and key. It accepts
// s3://bucket/key, virtual-hosted (https://bucket.s3.region.amazonaws.com/key)
// and path-style (https://s3.region.amazonaws.com/bucket/key) URLs, or a bare
// key in defaultBucket.
func ParseObjectPath(path, defaultBucket string) (bucket, key string, err error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", "", fmt.Errorf("%w: empty file path", core.ErrInvalidInput)
	}

	switch {
	case strings.HasPrefix(path, "s3://"):
		bucket, key, _ = strings.Cut(strings.TrimPrefix(path, "s3://"), "/")

	case strings.HasPrefix(path, "https://"), strings.HasPrefix(path, "http://"):
		u, perr := url.Parse(path)
		if perr != nil {
			return "", "", fmt.Errorf("%w: file path %q: %v", core.ErrInvalidInput, path, perr)
		}
		key = strings.TrimPrefix(u.Path, "/")
		host := u.Hostname()
		if first, _, ok := strings.Cut(host, "."); ok && first != "s3" && !strings.HasPrefix(first, "s3-") {
			bucket = first
		} else {
			bucket, key, _ = strings.Cut(key, "/")
		}

	default:
		bucket, key = defaultBucket, strings.TrimPrefix(path, "/")
	}

	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: cannot resolve bucket and key from %q", core.ErrInvalidInput, path)
	}
	return bucket, key, nil
}
