package mocks

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// FakeS3 is an in-memory S3 backend. It mirrors the error codes a SeaweedFS
// gateway returns for missing or conflicting resources.
type FakeS3 struct {
	mu      sync.Mutex
	buckets map[string]*fakeBucket
	calls   map[string]int

	// PageSize limits ListObjectsV2 pages when positive.
	PageSize int
	// Inject, when set, is consulted before every call; a non-nil result is
	// returned in place of the normal outcome.
	Inject func(operation, bucket string) error
}

type fakeBucket struct {
	created time.Time
	objects map[string]fakeObject
}

type fakeObject struct {
	body        []byte
	contentType string
	modified    time.Time
	etag        string
}

// NewFakeS3 creates an empty backend.
func NewFakeS3() *FakeS3 {
	return &FakeS3{
		buckets: make(map[string]*fakeBucket),
		calls:   make(map[string]int),
	}
}

// Calls returns how many times operation was invoked.
func (f *FakeS3) Calls(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[operation]
}

// AddBucket creates a bucket directly, bypassing call accounting.
func (f *FakeS3) AddBucket(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[name] = &fakeBucket{created: time.Now(), objects: make(map[string]fakeObject)}
}

// AddObject stores an object directly, bypassing call accounting.
func (f *FakeS3) AddObject(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := md5.Sum(body)
	f.buckets[bucket].objects[key] = fakeObject{
		body:     body,
		modified: time.Now(),
		etag:     `"` + hex.EncodeToString(sum[:]) + `"`,
	}
}

// HasBucket reports whether the bucket exists.
func (f *FakeS3) HasBucket(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.buckets[name]
	return ok
}

func (f *FakeS3) begin(operation, bucket string) error {
	f.calls[operation]++
	if f.Inject != nil {
		return f.Inject(operation, bucket)
	}
	return nil
}

// APIError builds an S3 API error with the given code.
func APIError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

// ListBuckets implements the S3 API.
func (f *FakeS3) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListBuckets", ""); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &s3.ListBucketsOutput{}
	for _, name := range names {
		created := f.buckets[name].created
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(name), CreationDate: &created})
	}
	return out, nil
}

// CreateBucket implements the S3 API.
func (f *FakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.Bucket)
	if err := f.begin("CreateBucket", name); err != nil {
		return nil, err
	}
	if _, ok := f.buckets[name]; ok {
		return nil, APIError("BucketAlreadyOwnedByYou")
	}
	f.buckets[name] = &fakeBucket{created: time.Now(), objects: make(map[string]fakeObject)}
	return &s3.CreateBucketOutput{}, nil
}

// DeleteBucket implements the S3 API.
func (f *FakeS3) DeleteBucket(_ context.Context, in *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.Bucket)
	if err := f.begin("DeleteBucket", name); err != nil {
		return nil, err
	}
	b, ok := f.buckets[name]
	if !ok {
		return nil, APIError("NoSuchBucket")
	}
	if len(b.objects) > 0 {
		return nil, APIError("BucketNotEmpty")
	}
	delete(f.buckets, name)
	return &s3.DeleteBucketOutput{}, nil
}

// ListObjectsV2 implements the S3 API. Continuation tokens are key offsets.
func (f *FakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.Bucket)
	if err := f.begin("ListObjectsV2", name); err != nil {
		return nil, err
	}
	b, ok := f.buckets[name]
	if !ok {
		return nil, APIError("NoSuchBucket")
	}

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	offset := 0
	if in.ContinuationToken != nil {
		offset, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := len(keys)
	if f.PageSize > 0 && offset+f.PageSize < end {
		end = offset + f.PageSize
	}

	out := &s3.ListObjectsV2Output{Name: in.Bucket, IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[offset:end] {
		obj := b.objects[k]
		modified := obj.modified
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.body))),
			LastModified: &modified,
			ETag:         aws.String(obj.etag),
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

// PutObject implements the S3 API.
func (f *FakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.Bucket)
	if err := f.begin("PutObject", name); err != nil {
		return nil, err
	}
	b, ok := f.buckets[name]
	if !ok {
		return nil, APIError("NoSuchBucket")
	}

	var body []byte
	if in.Body != nil {
		data, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, err
		}
		body = data
	}
	sum := md5.Sum(body)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	b.objects[aws.ToString(in.Key)] = fakeObject{
		body:        body,
		contentType: aws.ToString(in.ContentType),
		modified:    time.Now(),
		etag:        etag,
	}
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (f *FakeS3) lookup(bucket, key string) (fakeObject, error) {
	b, ok := f.buckets[bucket]
	if !ok {
		return fakeObject{}, APIError("NoSuchBucket")
	}
	obj, ok := b.objects[key]
	if !ok {
		return fakeObject{}, APIError("NoSuchKey")
	}
	return obj, nil
}

// GetObject implements the S3 API.
func (f *FakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.Bucket)
	if err := f.begin("GetObject", name); err != nil {
		return nil, err
	}
	obj, err := f.lookup(name, aws.ToString(in.Key))
	if err != nil {
		return nil, err
	}
	modified := obj.modified
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.body)),
		ContentLength: aws.Int64(int64(len(obj.body))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(obj.etag),
		LastModified:  &modified,
	}, nil
}

// HeadBucket implements the S3 API. A missing bucket is reported as NotFound.
func (f *FakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.Bucket)
	if err := f.begin("HeadBucket", name); err != nil {
		return nil, err
	}
	if _, ok := f.buckets[name]; !ok {
		return nil, APIError("NotFound")
	}
	return &s3.HeadBucketOutput{}, nil
}

// HeadObject implements the S3 API. Like a real gateway, a HEAD carries no
// body so every miss is reported as NotFound.
func (f *FakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.Bucket)
	if err := f.begin("HeadObject", name); err != nil {
		return nil, err
	}
	obj, err := f.lookup(name, aws.ToString(in.Key))
	if err != nil {
		return nil, APIError("NotFound")
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.body))),
		ETag:          aws.String(obj.etag),
	}, nil
}

// DeleteObject implements the S3 API. Deleting a missing key succeeds.
func (f *FakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.Bucket)
	if err := f.begin("DeleteObject", name); err != nil {
		return nil, err
	}
	b, ok := f.buckets[name]
	if !ok {
		return nil, APIError("NoSuchBucket")
	}
	delete(b.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}
