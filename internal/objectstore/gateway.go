// Package objectstore proxies bucket and object operations to the cluster's S3 gateway.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/config"
	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/metrics"
)

// S3 error codes the gateway distinguishes.
const (
	codeNoSuchBucket            = "NoSuchBucket"
	codeNoSuchKey               = "NoSuchKey"
	codeNotFound                = "NotFound"
	codeBucketAlreadyOwnedByYou = "BucketAlreadyOwnedByYou"
	codeBucketAlreadyExists     = "BucketAlreadyExists"
	codeBucketNotEmpty          = "BucketNotEmpty"
)

// maxBucketHealRetries bounds how many times a write is retried after
// creating its missing bucket.
const maxBucketHealRetries = 1

// S3API is the subset of the S3 client the gateway uses.
type S3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Bucket is a bucket as reported by the gateway.
type Bucket struct {
	Name         string
	CreationDate *time.Time
}

// Object is an object listing entry.
type Object struct {
	Bucket       string
	Key          string
	Size         int64
	LastModified *time.Time
	ETag         string
}

// ObjectData is a fetched object with its full body.
type ObjectData struct {
	Object
	ContentType string
	Body        []byte
}

// PutResult describes a completed write.
type PutResult struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

// NewS3Client creates an S3 client for the gateway endpoint. Requests use
// path-style addressing and are never retried by the SDK.
func NewS3Client(cfg config.GatewayConfig) *s3.Client {
	return s3.New(s3.Options{
		Region:                     cfg.Region,
		BaseEndpoint:               aws.String(cfg.Endpoint),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		RetryMaxAttempts:           1,
		HTTPClient:                 &http.Client{Timeout: cfg.Timeout},
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
}

// Gateway wraps the S3 API with error translation and bucket auto-heal.
type Gateway struct {
	client        S3API
	timeout       time.Duration
	maxObjectSize int64
	now           func() time.Time
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewGateway creates a gateway on top of client.
func NewGateway(client S3API, cfg config.GatewayConfig, m *metrics.Metrics, logger *zap.Logger) *Gateway {
	return &Gateway{
		client:        client,
		timeout:       cfg.Timeout,
		maxObjectSize: cfg.MaxObjectSize,
		now:           time.Now,
		metrics:       m,
		logger:        logger,
	}
}

// ListBuckets returns all buckets visible to the configured credentials.
func (g *Gateway) ListBuckets(ctx context.Context) ([]Bucket, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	out, err := g.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	g.record("ListBuckets", err, start)
	if err != nil {
		return nil, translate(err, "", "")
	}

	buckets := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, Bucket{
			Name:         aws.ToString(b.Name),
			CreationDate: b.CreationDate,
		})
	}
	return buckets, nil
}

// CreateBucket creates a bucket. A bucket already owned by the caller is
// reported as a Conflict with code BUCKET_ALREADY_OWNED.
func (g *Gateway) CreateBucket(ctx context.Context, bucket string) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := g.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	g.record("CreateBucket", err, start)
	if err != nil {
		return translate(err, bucket, "")
	}

	g.logger.Info("bucket created", zap.String("bucket", bucket))
	return nil
}

// DeleteBucket deletes an empty bucket.
func (g *Gateway) DeleteBucket(ctx context.Context, bucket string) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := g.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	g.record("DeleteBucket", err, start)
	if err != nil {
		return translate(err, bucket, "")
	}

	g.logger.Info("bucket deleted", zap.String("bucket", bucket))
	return nil
}

// ListObjects returns every object in bucket, following continuation tokens.
func (g *Gateway) ListObjects(ctx context.Context, bucket string) ([]Object, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		g.record("ListObjectsV2", err, start)
		if err != nil {
			return nil, translate(err, bucket, "")
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Bucket:       bucket,
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: obj.LastModified,
				ETag:         aws.ToString(obj.ETag),
			})
		}
	}
	return objects, nil
}

// PutObject writes body to bucket/key. When the bucket does not exist it is
// created and the write retried, at most maxBucketHealRetries times.
func (g *Gateway) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) (*PutResult, error) {
	var lastErr error
	for attempt := 0; attempt <= maxBucketHealRetries; attempt++ {
		out, err := g.putOnce(ctx, bucket, key, body, contentType)
		if err == nil {
			g.logger.Info("object written",
				zap.String("bucket", bucket),
				zap.String("key", key),
				zap.Int("size", len(body)),
			)
			return &PutResult{
				Bucket: bucket,
				Key:    key,
				Size:   int64(len(body)),
				ETag:   aws.ToString(out.ETag),
			}, nil
		}

		lastErr = err
		if attempt == maxBucketHealRetries || apiErrorCode(err) != codeNoSuchBucket {
			break
		}
		if err := g.healBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}
	return nil, translate(lastErr, bucket, key)
}

func (g *Gateway) putOnce(ctx context.Context, bucket, key string, body []byte, contentType string) (*s3.PutObjectOutput, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	start := time.Now()
	out, err := g.client.PutObject(ctx, input)
	g.record("PutObject", err, start)
	return out, err
}

// healBucket creates a bucket that a write found missing. A concurrent
// creation by another writer counts as success.
func (g *Gateway) healBucket(ctx context.Context, bucket string) error {
	g.logger.Info("bucket missing on write, creating", zap.String("bucket", bucket))

	err := g.CreateBucket(ctx, bucket)
	switch {
	case err == nil:
		g.recordHeal("created")
		return nil
	case apierrors.IsKind(err, apierrors.KindConflict):
		g.recordHeal("exists")
		return nil
	default:
		g.recordHeal("failed")
		return err
	}
}

// GetObject fetches bucket/key with its full body. Objects larger than the
// configured maximum object size are refused without buffering them.
func (g *Gateway) GetObject(ctx context.Context, bucket, key string) (*ObjectData, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	g.record("GetObject", err, start)
	if err != nil {
		return nil, translate(err, bucket, key)
	}
	defer out.Body.Close()

	if g.maxObjectSize > 0 && aws.ToInt64(out.ContentLength) > g.maxObjectSize {
		return nil, g.tooLarge(bucket, key, aws.ToInt64(out.ContentLength))
	}

	reader := io.Reader(out.Body)
	if g.maxObjectSize > 0 {
		reader = io.LimitReader(out.Body, g.maxObjectSize+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, translate(err, bucket, key)
	}
	if g.maxObjectSize > 0 && int64(len(body)) > g.maxObjectSize {
		return nil, g.tooLarge(bucket, key, int64(len(body)))
	}

	return &ObjectData{
		Object: Object{
			Bucket:       bucket,
			Key:          key,
			Size:         int64(len(body)),
			LastModified: out.LastModified,
			ETag:         aws.ToString(out.ETag),
		},
		ContentType: aws.ToString(out.ContentType),
		Body:        body,
	}, nil
}

func (g *Gateway) tooLarge(bucket, key string, size int64) error {
	g.logger.Warn("object exceeds the readable size",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("size", size),
		zap.Int64("max_object_size", g.maxObjectSize),
	)
	return apierrors.New(apierrors.KindInvalidInput, apierrors.ErrorCodeObjectTooLarge,
		fmt.Sprintf("object '%s' exceeds the %d byte read limit", key, g.maxObjectSize), nil)
}

// DeleteObject removes bucket/key. S3 deletes are idempotent, so existence is
// checked first to report a missing bucket or key as NotFound.
func (g *Gateway) DeleteObject(ctx context.Context, bucket, key string) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	g.record("HeadObject", err, start)
	if err != nil {
		if apiErrorCode(err) == codeNotFound && g.bucketMissing(ctx, bucket) {
			return translate(err, bucket, "")
		}
		return translate(err, bucket, key)
	}

	start = time.Now()
	_, err = g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	g.record("DeleteObject", err, start)
	if err != nil {
		return translate(err, bucket, key)
	}

	g.logger.Info("object deleted", zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

// bucketMissing reports whether bucket is known to be absent. A HEAD miss
// carries no error body, so the key and bucket cases look the same.
func (g *Gateway) bucketMissing(ctx context.Context, bucket string) bool {
	start := time.Now()
	_, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	g.record("HeadBucket", err, start)
	switch apiErrorCode(err) {
	case codeNotFound, codeNoSuchBucket:
		return true
	default:
		return false
	}
}

// Ping checks that the gateway answers an authenticated request.
func (g *Gateway) Ping(ctx context.Context) error {
	_, err := g.ListBuckets(ctx)
	return err
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gateway) record(operation string, err error, start time.Time) {
	if g.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = apiErrorCode(err)
		if outcome == "" {
			outcome = "transport_error"
		}
	}
	g.metrics.RecordGatewayCall(operation, outcome, time.Since(start))
}

func (g *Gateway) recordHeal(outcome string) {
	if g.metrics != nil {
		g.metrics.RecordBucketAutoHeal(outcome)
	}
}

// apiErrorCode returns the S3 error code carried by err, or "" for
// transport failures.
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// translate classifies a gateway failure. Messages name the resource but never
// the endpoint; the cause is kept for logging.
func translate(err error, bucket, key string) error {
	if ae, ok := apierrors.As(err); ok {
		return ae
	}

	code := apiErrorCode(err)
	switch code {
	case codeNoSuchBucket:
		return apierrors.NotFound(apierrors.ErrorCodeBucketNotFound,
			fmt.Sprintf("bucket '%s' not found", bucket), err)
	case codeNoSuchKey, codeNotFound:
		if key == "" {
			return apierrors.NotFound(apierrors.ErrorCodeBucketNotFound,
				fmt.Sprintf("bucket '%s' not found", bucket), err)
		}
		return apierrors.NotFound(apierrors.ErrorCodeObjectNotFound,
			fmt.Sprintf("object '%s' not found in bucket '%s'", key, bucket), err)
	case codeBucketAlreadyOwnedByYou:
		return apierrors.Conflict(apierrors.ErrorCodeBucketAlreadyOwned,
			fmt.Sprintf("bucket '%s' already exists", bucket), err)
	case codeBucketAlreadyExists:
		return apierrors.Conflict(apierrors.ErrorCodeBucketExists,
			fmt.Sprintf("bucket '%s' is owned by another account", bucket), err)
	case codeBucketNotEmpty:
		return apierrors.Conflict(apierrors.ErrorCodeBucketNotEmpty,
			fmt.Sprintf("bucket '%s' is not empty", bucket), err)
	case "":
		if errors.Is(err, context.Canceled) {
			return apierrors.Unavailable(apierrors.ErrorCodeGatewayUnavailable,
				"storage gateway request cancelled", err)
		}
		return apierrors.Unavailable(apierrors.ErrorCodeGatewayUnavailable,
			"storage gateway unavailable", err)
	default:
		return apierrors.New(apierrors.KindInternal, apierrors.ErrorCodeGatewayError,
			fmt.Sprintf("storage gateway rejected the request (%s)", code), err)
	}
}
