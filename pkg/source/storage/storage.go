// Package storage reads objects from S3-compatible object storage and warms
// them into the query cache.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/querykit/internal/telemetry"
)

var (
	// ErrObjectNotFound is returned for missing objects.
	ErrObjectNotFound = errors.New("storage: object not found")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("storage: store closed")

	// ErrObjectTooLarge is returned when an object exceeds Config.MaxObjectSize.
	ErrObjectTooLarge = errors.New("storage: object too large")
)

// Config holds configuration for the object store.
type Config struct {
	// Bucket is the default bucket for keys without an explicit one.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services
	// such as Supabase Storage or MinIO).
	Endpoint string

	// KeyPrefix is prepended to all object keys.
	KeyPrefix string

	// ForcePathStyle forces path-style addressing.
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// MaxObjectSize caps how many bytes GetObject reads. Zero means 16 MiB.
	MaxObjectSize int64
}

const defaultMaxObjectSize = 16 << 20

// ObjectInfo describes an object without its body.
type ObjectInfo struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Object is an object body with its metadata.
type Object struct {
	ObjectInfo
	Data []byte `json:"-"`
}

// Store reads objects from S3.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	maxSize   int64

	mu     sync.RWMutex
	closed bool
}

// New creates a store around an existing client.
func New(client *s3.Client, cfg Config) *Store {
	maxSize := cfg.MaxObjectSize
	if maxSize <= 0 {
		maxSize = defaultMaxObjectSize
	}
	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		maxSize:   maxSize,
	}
}

// NewFromConfig creates a store by building an S3 client from cfg.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// Bucket returns the default bucket.
func (s *Store) Bucket() string {
	return s.bucket
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *Store) resolve(bucket string) string {
	if bucket == "" {
		return s.bucket
	}
	return bucket
}

// GetObject reads an object. An empty bucket selects the default bucket.
func (s *Store) GetObject(ctx context.Context, bucket, key string) (*Object, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	bucket = s.resolve(bucket)
	fullKey := s.keyPrefix + key

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanStorageGetObject)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.Bucket(bucket), telemetry.ObjectKey(fullKey))

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		err = mapError(err, "get object", bucket, fullKey)
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: %s/%s exceeds %d bytes", ErrObjectTooLarge, bucket, fullKey, s.maxSize)
	}

	return &Object{
		ObjectInfo: ObjectInfo{
			Bucket:       bucket,
			Key:          key,
			Size:         int64(len(data)),
			ContentType:  aws.ToString(resp.ContentType),
			ETag:         aws.ToString(resp.ETag),
			LastModified: aws.ToTime(resp.LastModified),
		},
		Data: data,
	}, nil
}

// HeadObject returns object metadata.
func (s *Store) HeadObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	if err := s.checkOpen(); err != nil {
		return ObjectInfo{}, err
	}
	bucket = s.resolve(bucket)
	fullKey := s.keyPrefix + key

	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		return ObjectInfo{}, mapError(err, "head object", bucket, fullKey)
	}

	return ObjectInfo{
		Bucket:       bucket,
		Key:          key,
		Size:         aws.ToInt64(resp.ContentLength),
		ContentType:  aws.ToString(resp.ContentType),
		ETag:         aws.ToString(resp.ETag),
		LastModified: aws.ToTime(resp.LastModified),
	}, nil
}

// HealthCheck verifies the default bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func mapError(err error, op, bucket, key string) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var respErr *awshttp.ResponseError
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) ||
		(errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	return fmt.Errorf("s3 %s %s/%s: %w", op, bucket, key, err)
}
