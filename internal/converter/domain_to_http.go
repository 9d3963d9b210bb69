package converter

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/cluster"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/engine"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/node"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/objectstore"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/probe"
)

// TimestampLayout formats every timestamp in API responses.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

const ellipsis = "..."

// DomainToHTTP handles conversion of domain results to HTTP responses.
type DomainToHTTP struct {
	previewLength int
}

// NewDomainToHTTP creates a new DomainToHTTP converter. Object content is
// cut to previewLength characters in read responses.
func NewDomainToHTTP(previewLength int) *DomainToHTTP {
	return &DomainToHTTP{previewLength: previewLength}
}

// ContainerStatusHTTPResponse represents the HTTP response for a status query.
type ContainerStatusHTTPResponse struct {
	Container string `json:"container"`
	FullName  string `json:"full_name"`
	NodeType  string `json:"node_type"`
	Status    string `json:"status"`
}

// ContainerActionHTTPResponse represents the HTTP response for start and stop.
type ContainerActionHTTPResponse struct {
	Container string `json:"container"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// ContainerHealthHTTPResponse represents the HTTP response for a node health check.
type ContainerHealthHTTPResponse struct {
	Container     string `json:"container"`
	Status        string `json:"status"`
	OverallStatus string `json:"overall_status"`
}

// ContainerListHTTPResponse represents the HTTP response for a container listing.
type ContainerListHTTPResponse struct {
	Containers []engine.Container `json:"containers"`
}

// NodeHealthHTTPResponse is one node of a cluster health report.
type NodeHealthHTTPResponse struct {
	Container     string `json:"container"`
	FullName      string `json:"full_name"`
	NodeType      string `json:"node_type"`
	Status        string `json:"status"`
	OverallStatus string `json:"overall_status"`
}

// HealthSummaryHTTPResponse counts verdicts.
type HealthSummaryHTTPResponse struct {
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Unknown   int `json:"unknown"`
}

// ClusterHealthHTTPResponse represents the HTTP response for the cluster health report.
type ClusterHealthHTTPResponse struct {
	Nodes   []NodeHealthHTTPResponse  `json:"nodes"`
	Summary HealthSummaryHTTPResponse `json:"summary"`
}

// OperationHTTPResponse is one record of the operations snapshot.
type OperationHTTPResponse struct {
	Timestamp  string `json:"timestamp"`
	Operation  string `json:"operation"`
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	Size       *int64 `json:"size,omitempty"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message,omitempty"`
}

// OperationsHTTPResponse represents the HTTP response for the operations snapshot.
type OperationsHTTPResponse struct {
	Operations []OperationHTTPResponse `json:"operations"`
}

// BucketHTTPResponse is one bucket of a listing.
type BucketHTTPResponse struct {
	Name         string  `json:"name"`
	CreationDate *string `json:"creation_date"`
}

// BucketListHTTPResponse represents the HTTP response for a bucket listing.
type BucketListHTTPResponse struct {
	Buckets []BucketHTTPResponse `json:"buckets"`
}

// BucketActionHTTPResponse represents the HTTP response for bucket create and delete.
type BucketActionHTTPResponse struct {
	Success bool   `json:"success"`
	Bucket  string `json:"bucket"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ObjectHTTPResponse is one object of a listing.
type ObjectHTTPResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified"`
	ETag         string  `json:"etag"`
}

// ObjectListHTTPResponse represents the HTTP response for an object listing.
type ObjectListHTTPResponse struct {
	Bucket  string               `json:"bucket"`
	Count   int                  `json:"count"`
	Objects []ObjectHTTPResponse `json:"objects"`
}

// PutObjectHTTPResponse represents the HTTP response for an object write.
type PutObjectHTTPResponse struct {
	Success bool   `json:"success"`
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Size    int64  `json:"size"`
	ETag    string `json:"etag"`
}

// GetObjectHTTPResponse represents the HTTP response for an object read.
type GetObjectHTTPResponse struct {
	Bucket       string  `json:"bucket"`
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified"`
	ETag         string  `json:"etag"`
	ContentType  string  `json:"content_type"`
	Content      string  `json:"content"`
	Truncated    bool    `json:"truncated"`
}

// DeleteObjectHTTPResponse represents the HTTP response for an object delete.
type DeleteObjectHTTPResponse struct {
	Success bool   `json:"success"`
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
}

// ContainerStatusResponse converts a resolved identity and its run state.
func (c *DomainToHTTP) ContainerStatusResponse(id node.Identity, state engine.RunState) *ContainerStatusHTTPResponse {
	return &ContainerStatusHTTPResponse{
		Container: id.ShortName,
		FullName:  id.FullName,
		NodeType:  id.Type.String(),
		Status:    string(state),
	}
}

// ContainerActionResponse converts a start or stop result.
func (c *DomainToHTTP) ContainerActionResponse(id node.Identity, result engine.Result, message string) *ContainerActionHTTPResponse {
	return &ContainerActionHTTPResponse{
		Container: id.ShortName,
		Status:    string(result.State),
		Message:   message,
	}
}

// ContainerHealthResponse converts a probe report.
func (c *DomainToHTTP) ContainerHealthResponse(report probe.Report) *ContainerHealthHTTPResponse {
	return &ContainerHealthHTTPResponse{
		Container:     report.Container,
		Status:        string(report.Verdict),
		OverallStatus: string(report.State),
	}
}

// ContainerListResponse converts a container listing.
func (c *DomainToHTTP) ContainerListResponse(containers []engine.Container) *ContainerListHTTPResponse {
	if containers == nil {
		containers = []engine.Container{}
	}
	return &ContainerListHTTPResponse{Containers: containers}
}

// ClusterHealthResponse converts a cluster health report.
func (c *DomainToHTTP) ClusterHealthResponse(report cluster.Report) *ClusterHealthHTTPResponse {
	return &ClusterHealthHTTPResponse{
		Nodes: lo.Map(report.Nodes, func(n cluster.NodeHealth, _ int) NodeHealthHTTPResponse {
			return NodeHealthHTTPResponse{
				Container:     n.Identity.ShortName,
				FullName:      n.Identity.FullName,
				NodeType:      n.Identity.Type.String(),
				Status:        string(n.Report.Verdict),
				OverallStatus: string(n.Report.State),
			}
		}),
		Summary: HealthSummaryHTTPResponse{
			Healthy:   report.Summary.Healthy,
			Unhealthy: report.Summary.Unhealthy,
			Unknown:   report.Summary.Unknown,
		},
	}
}

// OperationsResponse converts an operations snapshot.
func (c *DomainToHTTP) OperationsResponse(ops []objectstore.Operation) *OperationsHTTPResponse {
	return &OperationsHTTPResponse{
		Operations: lo.Map(ops, func(op objectstore.Operation, _ int) OperationHTTPResponse {
			return OperationHTTPResponse{
				Timestamp:  op.Timestamp.UTC().Format(TimestampLayout),
				Operation:  string(op.Kind),
				Bucket:     op.Bucket,
				Key:        op.Key,
				Size:       op.Size,
				StatusCode: op.StatusCode,
				Message:    op.Message,
			}
		}),
	}
}

// BucketListResponse converts a bucket listing.
func (c *DomainToHTTP) BucketListResponse(buckets []objectstore.Bucket) *BucketListHTTPResponse {
	return &BucketListHTTPResponse{
		Buckets: lo.Map(buckets, func(b objectstore.Bucket, _ int) BucketHTTPResponse {
			return BucketHTTPResponse{Name: b.Name, CreationDate: formatTime(b.CreationDate)}
		}),
	}
}

// BucketActionResponse builds the response for a bucket create or delete.
func (c *DomainToHTTP) BucketActionResponse(bucket, status, message string) *BucketActionHTTPResponse {
	return &BucketActionHTTPResponse{
		Success: true,
		Bucket:  bucket,
		Status:  status,
		Message: message,
	}
}

// ObjectListResponse converts an object listing.
func (c *DomainToHTTP) ObjectListResponse(bucket string, objects []objectstore.Object) *ObjectListHTTPResponse {
	return &ObjectListHTTPResponse{
		Bucket: bucket,
		Count:  len(objects),
		Objects: lo.Map(objects, func(o objectstore.Object, _ int) ObjectHTTPResponse {
			return ObjectHTTPResponse{
				Key:          o.Key,
				Size:         o.Size,
				LastModified: formatTime(o.LastModified),
				ETag:         o.ETag,
			}
		}),
	}
}

// PutObjectResponse converts a completed write.
func (c *DomainToHTTP) PutObjectResponse(result *objectstore.PutResult) *PutObjectHTTPResponse {
	return &PutObjectHTTPResponse{
		Success: true,
		Bucket:  result.Bucket,
		Key:     result.Key,
		Size:    result.Size,
		ETag:    result.ETag,
	}
}

// GetObjectResponse converts a fetched object. Only the returned content is
// cut to the preview length; Size always reports the stored length.
func (c *DomainToHTTP) GetObjectResponse(obj *objectstore.ObjectData) *GetObjectHTTPResponse {
	content, truncated := Preview(obj.Body, c.previewLength)
	return &GetObjectHTTPResponse{
		Bucket:       obj.Bucket,
		Key:          obj.Key,
		Size:         obj.Size,
		LastModified: formatTime(obj.LastModified),
		ETag:         obj.ETag,
		ContentType:  obj.ContentType,
		Content:      content,
		Truncated:    truncated,
	}
}

// DeleteObjectResponse builds the response for an object delete.
func (c *DomainToHTTP) DeleteObjectResponse(bucket, key string) *DeleteObjectHTTPResponse {
	return &DeleteObjectHTTPResponse{Success: true, Bucket: bucket, Key: key}
}

// Preview renders body as text, cut to limit characters with an ellipsis
// appended when anything was dropped. A non-positive limit disables cutting.
func Preview(body []byte, limit int) (string, bool) {
	text := strings.ToValidUTF8(string(body), "�")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:limit]) + ellipsis, true
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(TimestampLayout)
	return &s
}
