// Package s3 provides an S3-backed object store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/dray/pkg/metrics"
	"github.com/marmos91/dray/pkg/store/object"
)

// Config holds configuration for the S3 object store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to every key (e.g., "sftp/"). It is invisible
	// to callers: listings strip it again.
	KeyPrefix string

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the SDK default chain (env, shared config, IMDS) is used.
	AccessKeyID     string
	SecretAccessKey string

	// MaxRetries is the maximum number of attempts for transient errors.
	MaxRetries int

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool
}

// Client is the subset of the S3 API used by Store.
type Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Store is an S3-backed implementation of object.Store.
type Store struct {
	client    Client
	bucket    string
	keyPrefix string
	metrics   metrics.S3Metrics

	mu     sync.RWMutex
	closed bool
}

// New creates a store around an existing client. m may be nil.
func New(client Client, cfg Config, m metrics.S3Metrics) *Store {
	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		metrics:   m,
	}
}

// NewFromConfig builds an SDK client from cfg and wraps it.
func NewFromConfig(ctx context.Context, cfg Config, m metrics.S3Metrics) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return New(client, cfg, m), nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return object.ErrStoreClosed
	}
	return nil
}

func (s *Store) fullKey(key string) string {
	return s.keyPrefix + key
}

func (s *Store) observe(op string, start time.Time, err error) {
	metrics.ObserveOperation(s.metrics, op, time.Since(start), err)
}

func (s *Store) List(ctx context.Context, prefix, token string, limit int) (*object.ListPage, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.fullKey(prefix)),
		Delimiter: aws.String(object.Delimiter),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}
	if limit > 0 {
		input.MaxKeys = aws.Int32(int32(limit))
	}

	start := time.Now()
	out, err := s.client.ListObjectsV2(ctx, input)
	s.observe("ListObjectsV2", start, err)
	if err != nil {
		return nil, wrap("list", prefix, err)
	}

	page := &object.ListPage{}
	for _, o := range out.Contents {
		page.Objects = append(page.Objects, object.Info{
			Key:     strings.TrimPrefix(aws.ToString(o.Key), s.keyPrefix),
			Size:    aws.ToInt64(o.Size),
			ModTime: aws.ToTime(o.LastModified),
		})
	}
	for _, p := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, strings.TrimPrefix(aws.ToString(p.Prefix), s.keyPrefix))
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextToken = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

func (s *Store) Head(ctx context.Context, key string) (object.Info, error) {
	if err := s.checkOpen(); err != nil {
		return object.Info{}, err
	}

	start := time.Now()
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	s.observe("HeadObject", start, err)
	if err != nil {
		return object.Info{}, wrap("head", key, err)
	}
	return object.Info{
		Key:     key,
		Size:    aws.ToInt64(out.ContentLength),
		ModTime: aws.ToTime(out.LastModified),
	}, nil
}

func (s *Store) Get(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, object.ErrInvalidRange
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	}
	if r := rangeHeader(offset, length); r != "" {
		input.Range = aws.String(r)
	}

	start := time.Now()
	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		s.observe("GetObject", start, err)
		return nil, wrap("get", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	s.observe("GetObject", start, err)
	if err != nil {
		return nil, fmt.Errorf("s3 get %q: read body: %w", key, err)
	}
	metrics.RecordBytes(s.metrics, "GetObject", int64(len(data)))
	return data, nil
}

// rangeHeader renders an HTTP Range for offset/length. A zero offset with no
// length needs no header, which also keeps reads of empty objects valid.
func rangeHeader(offset, length int64) string {
	switch {
	case length > 0:
		return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	case offset > 0:
		return fmt.Sprintf("bytes=%d-", offset)
	}
	return ""
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.fullKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	s.observe("PutObject", start, err)
	if err != nil {
		return wrap("put", key, err)
	}
	metrics.RecordBytes(s.metrics, "PutObject", int64(len(data)))
	return nil
}

// Delete removes key. S3 reports success for absent keys, so existence is
// checked with HEAD first; a concurrent delete between the two calls is
// reported as success.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.Head(ctx, key); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	s.observe("DeleteObject", start, err)
	if err != nil {
		return wrap("delete", key, err)
	}
	return nil
}

func (s *Store) Copy(ctx context.Context, src, dst string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.fullKey(dst)),
		CopySource: aws.String(copySource(s.bucket, s.fullKey(src))),
	})
	s.observe("CopyObject", start, err)
	if err != nil {
		return wrap("copy", src, err)
	}
	return nil
}

// copySource URL-encodes bucket/key segment by segment.
func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + "/" + strings.Join(parts, "/")
}

// HealthCheck verifies the bucket exists and the credentials can reach it.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	s.observe("HeadBucket", start, err)
	if err != nil {
		return fmt.Errorf("s3 bucket %q unreachable: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// wrap attaches the matching object sentinel, if any, to an SDK error.
func wrap(op, key string, err error) error {
	if sentinel := classify(err); sentinel != nil {
		return fmt.Errorf("s3 %s %q: %w: %w", op, key, sentinel, err)
	}
	return fmt.Errorf("s3 %s %q: %w", op, key, err)
}

func classify(err error) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return object.ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return object.ErrNotFound
		case "AccessDenied", "Forbidden", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return object.ErrAccessDenied
		case "InvalidRange":
			return object.ErrInvalidRange
		}
	}

	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		switch status.HTTPStatusCode() {
		case 404:
			return object.ErrNotFound
		case 403:
			return object.ErrAccessDenied
		case 416:
			return object.ErrInvalidRange
		}
	}
	return nil
}

var _ object.Store = (*Store)(nil)
