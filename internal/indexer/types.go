package indexer

import (
	"log/slog"
	"net/http"

	"github.com/aevon-lab/aggindex/internal/core/document"
	"github.com/aevon-lab/aggindex/internal/core/registry"
	"github.com/aevon-lab/aggindex/internal/core/signal"
	"github.com/aevon-lab/aggindex/internal/lock"
	"github.com/aevon-lab/aggindex/internal/store"
)

// UpdateMode selects how an update treats fields missing from the request.
type UpdateMode string

const (
	// ModeFull nulls every stored field the new document omits, stats groups excepted.
	ModeFull UpdateMode = "FULL"
	// ModeMerge overlays only the fields present in the new document.
	ModeMerge UpdateMode = "MERGE"
)

// Operation names reported in results.
const (
	OpAdd    = "ADD"
	OpUpdate = "UPDATE"
	OpMerge  = "MERGE"
	OpRemove = "REMOVE"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFail    = "FAIL"
)

// Fail codes for requests that completed without mutating anything.
const (
	FailSkip          = "SKIP"
	FailNotFound      = "NOT_FOUND"
	FailExistsAlready = "EXISTS_ALREADY"
)

// Request describes a document mutation.
type Request struct {
	Type string
	// ID overrides the id derived from Doc.
	ID  string
	Doc document.Document
	// ExistingDoc is the caller's copy of the stored document. It is only
	// trusted when ExistingKnown is set; a nil ExistingDoc then means absent.
	ExistingDoc   document.Document
	ExistingKnown bool
	UpdateMode    UpdateMode
	// Filter is a request-level eligibility check on top of the type filter.
	Filter  registry.FilterFunc
	Signals []signal.Signal
	// Lease is set when the caller already holds the document's key.
	Lease *lock.Lease
}

func (r Request) mode() UpdateMode {
	if r.UpdateMode == "" {
		return ModeFull
	}
	return r.UpdateMode
}

// Result is the per-document outcome.
type Result struct {
	ID         string `json:"_id"`
	Type       string `json:"_type"`
	Index      string `json:"_index"`
	Version    int64  `json:"_version,omitempty"`
	Found      *bool  `json:"found,omitempty"`
	StatusCode int    `json:"_statusCode"`
	Status     string `json:"_status"`
	FailCode   string `json:"_failCode,omitempty"`
	Operation  string `json:"_operation"`
}

// Failed reports whether the request completed without effect.
func (r *Result) Failed() bool { return r.Status == StatusFail }

func failure(t *registry.Type, id, op, code string) *Result {
	return &Result{
		ID:         id,
		Type:       t.Name,
		Index:      t.Index.Store,
		StatusCode: http.StatusNotFound,
		Status:     StatusFail,
		FailCode:   code,
		Operation:  op,
	}
}

func fromResponse(t *registry.Type, id, op string, resp *store.Response) *Result {
	r := &Result{
		ID:         id,
		Type:       t.Name,
		Index:      t.Index.Store,
		Version:    resp.Version,
		StatusCode: resp.StatusCode,
		Status:     StatusSuccess,
		Operation:  op,
	}
	if !resp.OK() {
		r.Status = StatusFail
	}
	if op == OpRemove {
		found := resp.Found
		r.Found = &found
	}
	return r
}

// IndexResult is the outcome of creating or deleting one physical index.
type IndexResult struct {
	Index      string `json:"_index"`
	StatusCode int    `json:"_statusCode"`
	Status     string `json:"_status"`
}

// Lifecycle states traced at debug level.
const (
	stateStart           = "START"
	stateLockAcquired    = "LOCK_ACQUIRED"
	stateExistingFetched = "EXISTING_FETCHED"
	stateSkipped         = "SKIPPED"
	stateRemoved         = "REMOVED"
	stateMutated         = "MUTATED"
	stateAggregatesBuilt = "AGGREGATES_BUILT"
	stateLockReleased    = "LOCK_RELEASED"
)

func trace(op, key, state string) {
	slog.Debug("[Indexer] State", "op", op, "key", key, "state", state)
}
