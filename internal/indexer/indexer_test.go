package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aevon-lab/aggindex/internal/cache"
	"github.com/aevon-lab/aggindex/internal/core/document"
	coreerr "github.com/aevon-lab/aggindex/internal/core/errors"
	"github.com/aevon-lab/aggindex/internal/core/measure"
	"github.com/aevon-lab/aggindex/internal/core/registry"
	"github.com/aevon-lab/aggindex/internal/core/signal"
	"github.com/aevon-lab/aggindex/internal/lock"
	"github.com/aevon-lab/aggindex/internal/store"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const searchLogTypes = `
types:
  searchLog:
    index: search_log
    filter:
      - field: count
        op: gt
        value: 0
    mapping:
      id: $IdentityText
      key: $Keyword
      count: $Long
aggregators:
  searchLog:
    measures:
      - type: sum
        field: count
      - type: count
        field: queries
    aggregates:
      searchQuery:
        field: key
`

const (
	logStore   = "humane:search_log_store"
	queryStore = "humane:search_query_store"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	idx   *Indexer
	store store.Store
	mem   *store.Memory
	cache *cache.Memory
}

func newFixture(t *testing.T, wrap func(*store.Memory) store.Store) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search.yaml"), []byte(searchLogTypes), 0o644))
	reg, err := registry.Load("humane", dir)
	require.NoError(t, err)

	mem := store.NewMemory()
	var st store.Store = mem
	if wrap != nil {
		st = wrap(mem)
	}
	c := cache.NewMemory()
	return &fixture{
		idx:   New(reg, st, lock.NewMemory(time.Second), c, Options{AggregateConcurrency: 4, Now: func() time.Time { return fixedNow }}),
		store: st,
		mem:   mem,
		cache: c,
	}
}

func (f *fixture) add(t *testing.T, doc document.Document) *Result {
	t.Helper()
	res, err := f.idx.Add(context.Background(), Request{Type: "searchLog", Doc: doc})
	require.NoError(t, err)
	return res
}

func (f *fixture) flushAll(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	keys, err := f.idx.PendingKeys(ctx, 0)
	require.NoError(t, err)
	for _, k := range keys {
		_, err := f.idx.Flush(ctx, k)
		require.NoError(t, err)
	}
	require.Equal(t, 0, f.cache.Len())
}

func (f *fixture) stored(t *testing.T, index, typ, id string) document.Document {
	t.Helper()
	doc, err := f.mem.Get(context.Background(), index, typ, id)
	require.NoError(t, err)
	return doc
}

func (f *fixture) pending(t *testing.T, key string) *cache.Entry {
	t.Helper()
	e, err := f.cache.Retrieve(context.Background(), key)
	require.NoError(t, err)
	return e
}

func TestSearchQueryScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res := f.add(t, document.Document{"id": "q1", "key": "shoe", "count": 5.0})
	require.Equal(t, StatusSuccess, res.Status)
	require.Equal(t, logStore, res.Index)

	entry := f.pending(t, "searchQuery:shoe")
	require.Equal(t, measure.OpAdd, entry.OpType)
	require.Equal(t, 5.0, entry.Doc["count"])
	require.Nil(t, f.stored(t, queryStore, "searchQuery", "shoe"), "aggregates reach the store only on flush")

	f.flushAll(t)
	agg := f.stored(t, queryStore, "searchQuery", "shoe")
	require.Equal(t, 5.0, agg["count"])
	require.Equal(t, 1.0, agg["queries"])
	require.Equal(t, "shoe", agg["key"])
	require.Equal(t, 1.792, agg["_weight"])
	require.Equal(t, "en", agg["_lang"])

	f.add(t, document.Document{"id": "q2", "key": "shoe", "count": 3.0})
	require.Equal(t, measure.OpUpdate, f.pending(t, "searchQuery:shoe").OpType)
	f.flushAll(t)
	agg = f.stored(t, queryStore, "searchQuery", "shoe")
	require.Equal(t, 8.0, agg["count"])
	require.Equal(t, 2.0, agg["queries"])

	res, err := f.idx.Remove(ctx, Request{Type: "searchLog", ID: "q1"})
	require.NoError(t, err)
	require.Equal(t, OpRemove, res.Operation)
	require.True(t, *res.Found)
	f.flushAll(t)
	agg = f.stored(t, queryStore, "searchQuery", "shoe")
	require.Equal(t, 3.0, agg["count"])
	require.Equal(t, 1.0, agg["queries"])
}

func TestPendingAggregateAccumulatesUntilFlush(t *testing.T) {
	f := newFixture(t, nil)

	f.add(t, document.Document{"id": "q1", "key": "shoe", "count": 5.0})
	f.add(t, document.Document{"id": "q2", "key": "shoe", "count": 3.0})

	entry := f.pending(t, "searchQuery:shoe")
	require.Equal(t, measure.OpAdd, entry.OpType, "still never persisted")
	require.Equal(t, 8.0, entry.Doc["count"])
	require.Equal(t, 5.0, entry.ExistingDoc["count"])

	f.flushAll(t)
	require.Equal(t, 8.0, f.stored(t, queryStore, "searchQuery", "shoe")["count"])
}

func TestAdd_ArrayFieldFeedsEveryGroup(t *testing.T) {
	f := newFixture(t, nil)
	f.add(t, document.Document{"id": "q1", "key": []interface{}{"red", "shoe", "red"}, "count": 2.0})

	require.Equal(t, 2.0, f.pending(t, "searchQuery:red").Doc["count"])
	require.Equal(t, 2.0, f.pending(t, "searchQuery:shoe").Doc["count"])
	require.Equal(t, 2, f.cache.Len())
}

func TestAdd_ExistsAlreadyAndFilters(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.add(t, document.Document{"id": "q1", "key": "shoe", "count": 5.0})
	res := f.add(t, document.Document{"id": "q1", "key": "shoe", "count": 7.0})
	require.Equal(t, StatusFail, res.Status)
	require.Equal(t, FailExistsAlready, res.FailCode)
	require.Equal(t, 5.0, f.pending(t, "searchQuery:shoe").Doc["count"])

	res = f.add(t, document.Document{"id": "q2", "key": "boot", "count": 0.0})
	require.Equal(t, FailSkip, res.FailCode, "type filter rejects zero counts")
	require.Nil(t, f.pending(t, "searchQuery:boot"))

	onlyRed, err := registry.CompileFilter([]registry.PredicateSpec{{Field: "key", Op: registry.PredEq, Value: "red"}})
	require.NoError(t, err)
	res, err = f.idx.Add(ctx, Request{Type: "searchLog", Doc: document.Document{"id": "q3", "key": "shoe", "count": 1.0}, Filter: onlyRed})
	require.NoError(t, err)
	require.Equal(t, FailSkip, res.FailCode)
	require.Equal(t, 404, res.StatusCode)
}

func TestAdd_DerivesWeightAndLang(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.idx.Add(context.Background(), Request{Type: "searchQuery", Doc: document.Document{"key": "shoe", "count": 5.0}})
	require.NoError(t, err)

	doc := f.stored(t, queryStore, "searchQuery", "shoe")
	require.Equal(t, 1.792, doc["_weight"])
	require.Equal(t, "en", doc["_lang"])
}

func TestUpdate_WeightBelowMinusOneDerivesZero(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.idx.Add(ctx, Request{Type: "searchQuery", Doc: document.Document{"key": "shoe", "count": 1.0}})
	require.NoError(t, err)

	for _, count := range []float64{-2, -1} {
		res, err := f.idx.Update(ctx, Request{Type: "searchQuery", Doc: document.Document{"key": "shoe", "count": count}})
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, res.Status)
		require.Equal(t, 0.0, f.stored(t, queryStore, "searchQuery", "shoe")["_weight"])
	}

	_, err = f.idx.Update(ctx, Request{Type: "searchQuery", Doc: document.Document{"key": "shoe", "count": 3.0}})
	require.NoError(t, err, "key stays lockable")
	require.Equal(t, 1.386, f.stored(t, queryStore, "searchQuery", "shoe")["_weight"])
}

func TestUpdateAndRemove_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.idx.Update(ctx, Request{Type: "searchLog", Doc: document.Document{"id": "ghost", "count": 1.0}})
	require.NoError(t, err)
	require.Equal(t, FailNotFound, res.FailCode)
	require.Equal(t, OpUpdate, res.Operation)

	res, err = f.idx.Merge(ctx, Request{Type: "searchLog", ID: "ghost", Doc: document.Document{"count": 1.0}})
	require.NoError(t, err)
	require.Equal(t, OpMerge, res.Operation)

	res, err = f.idx.Remove(ctx, Request{Type: "searchLog", ID: "ghost"})
	require.NoError(t, err)
	require.Equal(t, FailNotFound, res.FailCode)
}

func TestUpdate_FullModeNullsOmittedFieldsButKeepsStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.mem.Put(ctx, logStore, "searchLog", "q1", document.Document{
		"id": "q1", "count": 5.0, "note": "x",
		"_dailyStats": map[string]interface{}{"views": map[string]interface{}{"value": 3.0}},
	})
	require.NoError(t, err)

	res, err := f.idx.Update(ctx, Request{Type: "searchLog", Doc: document.Document{"id": "q1", "count": 6.0}})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status)

	doc := f.stored(t, logStore, "searchLog", "q1")
	require.Contains(t, doc, "note")
	require.Nil(t, doc["note"])
	require.Equal(t, 6.0, doc["count"])
	require.Equal(t, 3.0, doc.Object("_dailyStats")["views"].(map[string]interface{})["value"])
}

func TestUpdate_FullModeRemovesRelationMergeModeKeepsIt(t *testing.T) {
	for _, tc := range []struct {
		name      string
		mode      UpdateMode
		wantCount float64
		wantQs    float64
	}{
		{name: "full", mode: ModeFull, wantCount: 3.0, wantQs: 1.0},
		{name: "merge", mode: ModeMerge, wantCount: 8.0, wantQs: 2.0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.add(t, document.Document{"id": "q1", "key": "shoe", "count": 5.0})
			f.add(t, document.Document{"id": "q2", "key": "shoe", "count": 3.0})
			f.flushAll(t)

			_, err := f.idx.Update(context.Background(), Request{
				Type:       "searchLog",
				ID:         "q1",
				Doc:        document.Document{"key": "", "count": 5.0},
				UpdateMode: tc.mode,
			})
			require.NoError(t, err)
			f.flushAll(t)

			agg := f.stored(t, queryStore, "searchQuery", "shoe")
			require.Equal(t, tc.wantCount, agg["count"])
			require.Equal(t, tc.wantQs, agg["queries"])
		})
	}
}

func TestUpdate_MovesContributionBetweenGroups(t *testing.T) {
	f := newFixture(t, nil)
	f.add(t, document.Document{"id": "q1", "key": "shoe", "count": 5.0})
	f.add(t, document.Document{"id": "q2", "key": "shoe", "count": 3.0})
	f.flushAll(t)

	_, err := f.idx.Update(context.Background(), Request{Type: "searchLog", Doc: document.Document{"id": "q1", "key": "boot", "count": 4.0}})
	require.NoError(t, err)
	f.flushAll(t)

	require.Equal(t, 3.0, f.stored(t, queryStore, "searchQuery", "shoe")["count"])
	boot := f.stored(t, queryStore, "searchQuery", "boot")
	require.Equal(t, 4.0, boot["count"])
	require.Equal(t, 1.0, boot["queries"])
}

func TestUpdate_FilterOutcomes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.add(t, document.Document{"id": "q1", "key": "shoe", "count": 5.0})
	f.add(t, document.Document{"id": "q2", "key": "shoe", "count": 3.0})
	f.flushAll(t)

	never := func(doc, existing document.Document, isMerge bool) bool { return false }

	res, err := f.idx.Update(ctx, Request{Type: "searchLog", Doc: document.Document{"id": "q2", "key": "shoe", "count": 9.0}, Filter: never})
	require.NoError(t, err)
	require.Equal(t, FailSkip, res.FailCode, "request filter alone skips")
	require.Equal(t, 3.0, f.stored(t, logStore, "searchLog", "q2")["count"])

	res, err = f.idx.Update(ctx, Request{Type: "searchLog", Doc: document.Document{"id": "q1", "key": "shoe", "count": 0.0}})
	require.NoError(t, err)
	require.Equal(t, OpRemove, res.Operation, "type filter turns the update into a remove")
	require.Nil(t, f.stored(t, logStore, "searchLog", "q1"))

	f.flushAll(t)
	require.Equal(t, 3.0, f.stored(t, queryStore, "searchQuery", "shoe")["count"])
}

func TestUpsert_AddsThenUpdates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.idx.Upsert(ctx, Request{Type: "searchLog", Doc: document.Document{"id": "q1", "key": "shoe", "count": 5.0}})
	require.NoError(t, err)
	require.Equal(t, OpAdd, res.Operation)

	res, err = f.idx.Upsert(ctx, Request{Type: "searchLog", Doc: document.Document{"id": "q1", "key": "shoe", "count": 7.0}})
	require.NoError(t, err)
	require.Equal(t, OpUpdate, res.Operation)

	f.flushAll(t)
	require.Equal(t, 7.0, f.stored(t, queryStore, "searchQuery", "shoe")["count"])
}

func TestAddSignal_DailyViews(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.idx.Add(ctx, Request{Type: "searchQuery", Doc: document.Document{"key": "shoe", "count": 1.0}})
	require.NoError(t, err)

	views := signal.Signal{Name: "views", TimeUnit: signal.UnitDay, TimeInUnit: 20240101}
	for n := 0; n < 2; n++ {
		res, err := f.idx.AddSignal(ctx, SignalRequest{Type: "searchQuery", ID: "shoe", Signals: []signal.Signal{views}})
		require.NoError(t, err)
		require.Equal(t, OpMerge, res.Operation)
	}

	doc := f.stored(t, queryStore, "searchQuery", "shoe")
	daily, ok := doc.Get("_dailyStats.views")
	require.True(t, ok)
	dailyStat := daily.(map[string]interface{})
	require.Equal(t, 2.0, dailyStat["value"])
	require.Equal(t, []interface{}{map[string]interface{}{"timeInUnit": int64(20240101), "value": 2.0}}, dailyStat["lastNStats"])

	overall, _ := doc.Get("_overallStats.views.value")
	require.Equal(t, 2.0, overall)
	require.Equal(t, 1.0, doc["count"], "signals leave measures alone")
}

func TestAddSignal_FansOutToAggregates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.add(t, document.Document{"id": "q1", "key": "shoe", "count": 5.0})
	f.flushAll(t)

	three := 3.0
	_, err := f.idx.AddSignal(ctx, SignalRequest{
		Type:    "searchLog",
		ID:      "q1",
		Signals: []signal.Signal{{Name: "clicks", TimeUnit: signal.UnitDay, TimeInUnit: 20240101, Value: &three}},
	})
	require.NoError(t, err)

	entry := f.pending(t, "searchQuery:shoe")
	require.Equal(t, measure.OpUpdate, entry.OpType)
	clicks, _ := entry.Doc.Get("_dailyStats.clicks.value")
	require.Equal(t, 3.0, clicks)
	require.Equal(t, 5.0, entry.Doc["count"], "unchanged membership keeps the sum")

	f.flushAll(t)
	stored, _ := f.stored(t, queryStore, "searchQuery", "shoe").Get("_overallStats.clicks.value")
	require.Equal(t, 3.0, stored)
}

func TestAddSignal_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	views := signal.Signal{Name: "views", TimeUnit: signal.UnitDay, TimeInUnit: 20240101}

	tests := []struct {
		name string
		req  SignalRequest
		code string
	}{
		{"no type", SignalRequest{ID: "x", Signals: []signal.Signal{views}}, coreerr.CodeUndefinedType},
		{"unknown type", SignalRequest{Type: "nope", ID: "x", Signals: []signal.Signal{views}}, coreerr.CodeUnrecognizedType},
		{"no id", SignalRequest{Type: "searchQuery", Signals: []signal.Signal{views}}, coreerr.CodeUndefinedID},
		{"no signal", SignalRequest{Type: "searchQuery", ID: "x"}, coreerr.CodeUndefinedSignal},
		{"bad period", SignalRequest{Type: "searchQuery", ID: "x", Signals: []signal.Signal{{Name: "views", TimeUnit: signal.UnitDay, TimeInUnit: 20241340}}}, coreerr.CodeInvalidSignal},
		{"missing doc", SignalRequest{Type: "searchQuery", ID: "x", Signals: []signal.Signal{views}}, coreerr.CodeNotExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.idx.AddSignal(ctx, tt.req)
			ve, ok := coreerr.IsValidation(err)
			require.True(t, ok, "got %v", err)
			require.Equal(t, tt.code, ve.Code)
		})
	}
}

func TestOperations_RequireID(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.idx.Add(ctx, Request{Type: "searchLog", Doc: document.Document{"count": 1.0}})
	ve, ok := coreerr.IsValidation(err)
	require.True(t, ok)
	require.Equal(t, coreerr.CodeUndefinedID, ve.Code)

	_, err = f.idx.Remove(ctx, Request{Type: "searchLog"})
	_, ok = coreerr.IsValidation(err)
	require.True(t, ok)

	_, err = f.idx.Get(ctx, "searchLog", "")
	_, ok = coreerr.IsValidation(err)
	require.True(t, ok)
}

// flakyStore fails the calls a test registers and delegates the rest.
type flakyStore struct {
	*store.Memory
	mock.Mock
}

func (s *flakyStore) GetFields(ctx context.Context, index, typ, id string, fields []string) (document.Document, error) {
	if err := s.Called(typ, id).Error(0); err != nil {
		return nil, err
	}
	return s.Memory.GetFields(ctx, index, typ, id, fields)
}

func (s *flakyStore) Put(ctx context.Context, index, typ, id string, doc document.Document) (*store.Response, error) {
	if err := s.Called(typ, id).Error(0); err != nil {
		return nil, err
	}
	return s.Memory.Put(ctx, index, typ, id, doc)
}

func TestBuild_FailingKeyDoesNotStopSiblings(t *testing.T) {
	flaky := &flakyStore{}
	f := newFixture(t, func(m *store.Memory) store.Store {
		flaky.Memory = m
		return flaky
	})
	flaky.On("GetFields", "searchQuery", "red").Return(errors.New("shard unavailable"))
	flaky.On("GetFields", mock.Anything, mock.Anything).Return(nil)
	flaky.On("Put", mock.Anything, mock.Anything).Return(nil)

	res, err := f.idx.Add(context.Background(), Request{Type: "searchLog", Doc: document.Document{"id": "q1", "key": []interface{}{"red", "shoe", "boot"}, "count": 2.0}})
	require.Error(t, err)
	require.ErrorContains(t, err, "searchQuery:red")
	require.Equal(t, StatusSuccess, res.Status, "the source document itself was indexed")

	ie, ok := coreerr.IsInternal(err)
	require.True(t, ok)
	require.Equal(t, "OPTIMISED_GET", ie.Op)

	require.Nil(t, f.pending(t, "searchQuery:red"))
	require.NotNil(t, f.pending(t, "searchQuery:shoe"))
	require.NotNil(t, f.pending(t, "searchQuery:boot"))
}

func TestFlush_FailureKeepsEntry(t *testing.T) {
	flaky := &flakyStore{}
	f := newFixture(t, func(m *store.Memory) store.Store {
		flaky.Memory = m
		return flaky
	})
	flaky.On("GetFields", mock.Anything, mock.Anything).Return(nil)
	flaky.On("Put", "searchQuery", "shoe").Return(errors.New("engine down")).Once()
	flaky.On("Put", mock.Anything, mock.Anything).Return(nil)

	f.add(t, document.Document{"id": "q1", "key": "shoe", "count": 5.0})

	_, err := f.idx.Flush(context.Background(), "searchQuery:shoe")
	require.ErrorContains(t, err, "engine down")
	require.NotNil(t, f.pending(t, "searchQuery:shoe"), "entry retained for retry")

	res, err := f.idx.Flush(context.Background(), "searchQuery:shoe")
	require.NoError(t, err)
	require.Equal(t, OpAdd, res.Operation)
	require.Nil(t, f.pending(t, "searchQuery:shoe"))
	require.Equal(t, 5.0, f.stored(t, queryStore, "searchQuery", "shoe")["count"])

	res, err = f.idx.Flush(context.Background(), "searchQuery:shoe")
	require.NoError(t, err)
	require.Nil(t, res, "nothing pending")
}

func TestFlush_AddFallsBackToUpdateWhenCreatedElsewhere(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.add(t, document.Document{"id": "q1", "key": "shoe", "count": 5.0})

	_, err := f.mem.Put(ctx, queryStore, "searchQuery", "shoe", document.Document{"key": "shoe", "count": 2.0})
	require.NoError(t, err)

	res, err := f.idx.Flush(ctx, "searchQuery:shoe")
	require.NoError(t, err)
	require.Equal(t, OpUpdate, res.Operation)
	require.Equal(t, 5.0, f.stored(t, queryStore, "searchQuery", "shoe")["count"])
}

func TestConcurrentAddsSerializePerAggregate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			_, err := f.idx.Add(ctx, Request{Type: "searchLog", Doc: document.Document{
				"id": fmt.Sprintf("q%d", k), "key": "shoe", "count": 1.0,
			}})
			errs <- err
		}(k)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entry := f.pending(t, "searchQuery:shoe")
	require.Equal(t, float64(n), entry.Doc["count"])
	require.Equal(t, float64(n), entry.Doc["queries"])
	f.flushAll(t)
	require.Equal(t, float64(n), f.stored(t, queryStore, "searchQuery", "shoe")["count"])
}

func TestCreateAndDeleteIndex(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	results, err := f.idx.CreateIndex(ctx, "")
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "humane:metadata_store", results[0].Index)

	body := f.mem.IndexBody(logStore)
	require.NotNil(t, body)
	mappings := body["mappings"].(map[string]interface{})
	require.Contains(t, mappings, "searchLog")

	results, err = f.idx.DeleteIndex(ctx, "search_log")
	require.NoError(t, err)
	require.Equal(t, []IndexResult{{Index: logStore, StatusCode: 200, Status: StatusSuccess}}, results)

	results, err = f.idx.DeleteIndex(ctx, "search_log")
	require.NoError(t, err)
	require.Equal(t, StatusFail, results[0].Status)

	_, err = f.idx.CreateIndex(ctx, "nope")
	ve, ok := coreerr.IsValidation(err)
	require.True(t, ok)
	require.Equal(t, coreerr.CodeUnrecognizedIndex, ve.Code)
}
