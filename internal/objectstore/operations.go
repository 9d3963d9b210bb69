package objectstore

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
)

// OperationKind labels a synthesized operation record.
type OperationKind string

const (
	OpGet    OperationKind = "GET"
	OpPut    OperationKind = "PUT"
	OpDelete OperationKind = "DELETE"
	OpList   OperationKind = "LIST"
	OpInfo   OperationKind = "INFO"
	OpError  OperationKind = "ERROR"
)

// Operation is one record of the operations snapshot. Records describe the
// current bucket contents, not past requests; no history is kept.
type Operation struct {
	Kind       OperationKind
	Bucket     string
	Key        string
	Size       *int64
	StatusCode int
	Timestamp  time.Time
	Message    string
}

// ListOperations builds a snapshot by listing every object in every bucket.
// since is accepted for compatibility and does not filter: every record is
// stamped with the time of the call.
func (g *Gateway) ListOperations(ctx context.Context, since string) ([]Operation, error) {
	if since != "" {
		g.logger.Debug("operations filter ignored", zap.String("since", since))
	}

	buckets, err := g.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	if len(buckets) == 0 {
		return []Operation{{
			Kind:       OpInfo,
			StatusCode: http.StatusOK,
			Timestamp:  now,
			Message:    "no buckets found",
		}}, nil
	}

	var ops []Operation
	for _, b := range buckets {
		objects, err := g.ListObjects(ctx, b.Name)
		if err != nil {
			status := http.StatusInternalServerError
			if apierrors.IsCode(err, apierrors.ErrorCodeBucketNotFound) {
				status = http.StatusNotFound
			}
			g.logger.Warn("bucket listing failed",
				zap.String("bucket", b.Name),
				zap.Error(err),
			)
			ops = append(ops, Operation{
				Kind:       OpError,
				Bucket:     b.Name,
				StatusCode: status,
				Timestamp:  now,
				Message:    safeMessage(err),
			})
			continue
		}

		for _, obj := range objects {
			size := obj.Size
			ops = append(ops, Operation{
				Kind:       OpList,
				Bucket:     b.Name,
				Key:        obj.Key,
				Size:       &size,
				StatusCode: http.StatusOK,
				Timestamp:  now,
			})
		}
	}
	return ops, nil
}

func safeMessage(err error) string {
	if e, ok := apierrors.As(err); ok {
		return e.Message
	}
	return "internal error"
}
