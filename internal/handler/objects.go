package handler

import (
	"net/http"

	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
)

// ListOperations handles GET /s3-operations requests.
func (h *Handlers) ListOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.objects.ListOperations(r.Context(), h.httpToDomain.Since(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.OperationsResponse(ops))
}

// ListBuckets handles GET /s3/buckets requests.
func (h *Handlers) ListBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.objects.ListBuckets(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.BucketListResponse(buckets))
}

// CreateBucket handles PUT /s3/buckets/{bucket} requests. Creating a bucket
// the caller already owns succeeds with 200.
func (h *Handlers) CreateBucket(w http.ResponseWriter, r *http.Request) {
	bucket, err := h.httpToDomain.BucketName(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	err = h.objects.CreateBucket(r.Context(), bucket)
	switch {
	case err == nil:
		h.writeJSONResponse(w, http.StatusCreated, h.domainToHTTP.BucketActionResponse(bucket, "created", "bucket created"))
	case apierrors.IsCode(err, apierrors.ErrorCodeBucketAlreadyOwned):
		h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.BucketActionResponse(bucket, "exists", "bucket already exists"))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// DeleteBucket handles DELETE /s3/buckets/{bucket} requests.
func (h *Handlers) DeleteBucket(w http.ResponseWriter, r *http.Request) {
	bucket, err := h.httpToDomain.BucketName(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.objects.DeleteBucket(r.Context(), bucket); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.BucketActionResponse(bucket, "deleted", "bucket deleted"))
}

// ListObjects handles GET /s3/buckets/{bucket} and GET /s3/buckets/{bucket}/objects requests.
func (h *Handlers) ListObjects(w http.ResponseWriter, r *http.Request) {
	bucket, err := h.httpToDomain.BucketName(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	objects, err := h.objects.ListObjects(r.Context(), bucket)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.ObjectListResponse(bucket, objects))
}

// PutObject handles POST /s3/buckets/{bucket}/objects/{key} requests.
func (h *Handlers) PutObject(w http.ResponseWriter, r *http.Request) {
	req, err := h.httpToDomain.PutObject(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.objects.PutObject(r.Context(), req.Bucket, req.Key, req.Body, req.ContentType)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.PutObjectResponse(result))
}

// GetObject handles GET /s3/buckets/{bucket}/objects/{key} requests.
func (h *Handlers) GetObject(w http.ResponseWriter, r *http.Request) {
	bucket, key, err := h.httpToDomain.ObjectRef(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	obj, err := h.objects.GetObject(r.Context(), bucket, key)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.GetObjectResponse(obj))
}

// DeleteObject handles DELETE /s3/buckets/{bucket}/objects/{key} requests.
func (h *Handlers) DeleteObject(w http.ResponseWriter, r *http.Request) {
	bucket, key, err := h.httpToDomain.ObjectRef(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.objects.DeleteObject(r.Context(), bucket, key); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.DeleteObjectResponse(bucket, key))
}
