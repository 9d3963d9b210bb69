// Package converter provides HTTP to domain and domain to HTTP conversion utilities.
package converter

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/validation"
)

// fillerPattern is repeated to build synthetic object content.
const fillerPattern = "SeaweedFS synthetic test data 0123456789abcdefghijklmnopqrstuvwxyz\n"

// HTTPToDomain handles conversion of HTTP requests to domain calls.
type HTTPToDomain struct {
	maxObjectSize int64
}

// NewHTTPToDomain creates a new HTTPToDomain converter. Object bodies larger
// than maxObjectSize bytes are rejected.
func NewHTTPToDomain(maxObjectSize int64) *HTTPToDomain {
	return &HTTPToDomain{maxObjectSize: maxObjectSize}
}

// PutObjectRequest is a decoded object write.
type PutObjectRequest struct {
	Bucket      string
	Key         string
	Body        []byte
	ContentType string
	Synthetic   bool
}

// ContainerName extracts and validates the {name} path variable.
func (c *HTTPToDomain) ContainerName(r *http.Request) (string, error) {
	name := mux.Vars(r)["name"]
	if err := validation.ContainerName(name); err != nil {
		return "", err
	}
	return name, nil
}

// BucketName extracts and validates the {bucket} path variable.
func (c *HTTPToDomain) BucketName(r *http.Request) (string, error) {
	bucket := mux.Vars(r)["bucket"]
	if err := validation.BucketName(bucket); err != nil {
		return "", err
	}
	return bucket, nil
}

// ObjectRef extracts and validates the {bucket} and {key} path variables.
func (c *HTTPToDomain) ObjectRef(r *http.Request) (string, string, error) {
	bucket, err := c.BucketName(r)
	if err != nil {
		return "", "", err
	}
	key := mux.Vars(r)["key"]
	if err := validation.ObjectKey(key); err != nil {
		return "", "", err
	}
	return bucket, key, nil
}

// Since returns the optional since query parameter.
func (c *HTTPToDomain) Since(r *http.Request) string {
	return r.URL.Query().Get("since")
}

// PutObject decodes an object write. The raw request body is the content;
// when the body is empty, size_kb asks for that many KiB of filler instead.
func (c *HTTPToDomain) PutObject(r *http.Request) (*PutObjectRequest, error) {
	bucket, key, err := c.ObjectRef(r)
	if err != nil {
		return nil, err
	}

	body, err := c.readBody(r)
	if err != nil {
		return nil, err
	}

	req := &PutObjectRequest{
		Bucket:      bucket,
		Key:         key,
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
	}
	if len(body) > 0 {
		return req, nil
	}

	raw := r.URL.Query().Get("size_kb")
	if raw == "" {
		return req, nil
	}
	sizeKB, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || sizeKB < 0 {
		return nil, apierrors.InvalidInput(fmt.Sprintf("size_kb must be a non-negative integer, got '%s'", raw), err)
	}
	if sizeKB > c.maxObjectSize/1024 {
		return nil, apierrors.InvalidInput(fmt.Sprintf("size_kb exceeds the %d byte object limit", c.maxObjectSize), nil)
	}

	req.Body = Filler(int(sizeKB * 1024))
	req.ContentType = "text/plain"
	req.Synthetic = true
	return req, nil
}

func (c *HTTPToDomain) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, c.maxObjectSize+1))
	if err != nil {
		return nil, apierrors.InvalidInput("failed to read request body", err)
	}
	if int64(len(body)) > c.maxObjectSize {
		return nil, apierrors.InvalidInput(fmt.Sprintf("object exceeds the %d byte limit", c.maxObjectSize), nil)
	}
	return body, nil
}

// Filler returns size bytes of deterministic printable content.
func Filler(size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	repeats := size/len(fillerPattern) + 1
	return bytes.Repeat([]byte(fillerPattern), repeats)[:size]
}
