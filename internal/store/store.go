// Package store talks to the search engine that owns indexed documents.
package store

import (
	"context"
	"net/http"

	"github.com/aevon-lab/aggindex/internal/core/document"
)

// Response is the engine's acknowledgement of a document or index operation.
// A 404 is a normal response, not an error.
type Response struct {
	StatusCode int               `json:"-"`
	Index      string            `json:"_index,omitempty"`
	Type       string            `json:"_type,omitempty"`
	ID         string            `json:"_id,omitempty"`
	Version    int64             `json:"_version,omitempty"`
	Found      bool              `json:"found,omitempty"`
	Result     string            `json:"result,omitempty"`
	Source     document.Document `json:"_source,omitempty"`
}

// OK reports whether the operation took effect.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode < http.StatusBadRequest
}

// Store is the document store contract used by the indexer.
// Get and GetFields return nil, nil when the document does not exist.
type Store interface {
	Get(ctx context.Context, index, typ, id string) (document.Document, error)
	GetFields(ctx context.Context, index, typ, id string, fields []string) (document.Document, error)
	Exists(ctx context.Context, index, typ, id string) (bool, error)
	Put(ctx context.Context, index, typ, id string, doc document.Document) (*Response, error)
	// Update merges partial into the stored document.
	Update(ctx context.Context, index, typ, id string, partial document.Document) (*Response, error)
	Delete(ctx context.Context, index, typ, id string) (*Response, error)
	CreateIndex(ctx context.Context, name string, body map[string]interface{}) (*Response, error)
	DeleteIndex(ctx context.Context, name string) (*Response, error)
	Ping(ctx context.Context) error
}

// mergeInto overlays partial onto dst the way the engine's partial update
// does: nested objects merge recursively, everything else is replaced.
func mergeInto(dst map[string]interface{}, partial map[string]interface{}) {
	for k, v := range partial {
		src, srcIsMap := document.AsMap(v)
		cur, curIsMap := document.AsMap(dst[k])
		if srcIsMap && curIsMap {
			merged := document.DeepCopy(cur).(map[string]interface{})
			mergeInto(merged, src)
			dst[k] = merged
			continue
		}
		dst[k] = document.DeepCopy(v)
	}
}
