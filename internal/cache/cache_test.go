package cache

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aevon-lab/aggindex/internal/core/document"
	"github.com/aevon-lab/aggindex/internal/core/measure"
	"github.com/stretchr/testify/require"
)

func sampleEntry() *Entry {
	return &Entry{
		Doc: document.Document{
			"key":   "shoe",
			"count": 8.0,
			"_dailyStats": map[string]interface{}{
				"views": map[string]interface{}{
					"timeInUnit": int64(20240101),
					"value":      2.0,
					"lastNStats": []interface{}{
						map[string]interface{}{"timeInUnit": int64(20240101), "value": 2.0},
					},
				},
			},
		},
		ExistingDoc: document.Document{"key": "shoe", "count": 5.0},
		OpType:      measure.OpUpdate,
		ID:          "shoe",
		Type:        "searchQuery",
	}
}

func TestMemory_StoreRetrieveRemove(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	got, err := c.Retrieve(ctx, "searchQuery:shoe")
	require.NoError(t, err)
	require.Nil(t, got)

	entry := sampleEntry()
	require.NoError(t, c.Store(ctx, "searchQuery:shoe", entry))

	entry.Doc["count"] = 99.0
	got, err = c.Retrieve(ctx, "searchQuery:shoe")
	require.NoError(t, err)
	require.Equal(t, 8.0, got.Doc["count"], "stored entry must not alias the caller's")

	got.Doc["count"] = 100.0
	again, _ := c.Retrieve(ctx, "searchQuery:shoe")
	require.Equal(t, 8.0, again.Doc["count"], "retrieved entry must not alias the cache's")

	require.NoError(t, c.Remove(ctx, "searchQuery:shoe"))
	got, err = c.Retrieve(ctx, "searchQuery:shoe")
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 0, c.Len())
}

func TestMemory_KeysOverwriteKeepsOneEntry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	for _, k := range []string{"t:a", "t:b", "t:c", "t:a"} {
		require.NoError(t, c.Store(ctx, k, sampleEntry()))
	}
	keys, err := c.Keys(ctx, 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"t:a", "t:b", "t:c"}, keys)

	keys, err = c.Keys(ctx, 2)
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestCodec_RoundTripAndCompression(t *testing.T) {
	entry := sampleEntry()
	entry.Doc["description"] = strings.Repeat("red running shoe ", 200)

	payload, err := encodeEntry(entry)
	require.NoError(t, err)
	require.Equal(t, formatLZ4, payload[0])
	require.Less(t, len(payload), 3400)

	got, err := decodeEntry(payload)
	require.NoError(t, err)
	require.Equal(t, measure.OpUpdate, got.OpType)
	require.Equal(t, "searchQuery", got.Type)
	require.Equal(t, entry.Doc["description"], got.Doc["description"])
	require.Equal(t, 8.0, got.Doc["count"])
	require.Equal(t, int64(20240101), document.Int64(got.Doc.Object("_dailyStats")["views"].(map[string]interface{})["timeInUnit"]))
	require.Equal(t, 5.0, got.ExistingDoc["count"])
}

func TestCodec_SmallPayloadStoredRaw(t *testing.T) {
	payload, err := encodeEntry(&Entry{ID: "x", Type: "t", OpType: measure.OpAdd})
	require.NoError(t, err)
	require.Equal(t, formatRaw, payload[0])

	got, err := decodeEntry(payload)
	require.NoError(t, err)
	require.Equal(t, "x", got.ID)
	require.Equal(t, measure.OpAdd, got.OpType)
}

func TestCodec_RejectsCorruptPayload(t *testing.T) {
	_, err := decodeEntry([]byte{1, 2})
	require.ErrorContains(t, err, "too small")

	_, err = decodeEntry([]byte{9, 0, 0, 0, 0})
	require.ErrorContains(t, err, "unknown cache payload format")

	_, err = decodeEntry([]byte{formatRaw, 0, 0, 0, 9, 1})
	require.ErrorContains(t, err, "length mismatch")
}

func TestPostgres_StoreAndRetrieve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := NewPostgres(db)
	ctx := context.Background()
	entry := sampleEntry()
	payload, err := encodeEntry(entry)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO aggregate_cache (key, payload, updated_at)`)).
		WithArgs("searchQuery:shoe", payload, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM aggregate_cache WHERE key = $1`)).
		WithArgs("searchQuery:shoe").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	require.NoError(t, c.Store(ctx, "searchQuery:shoe", entry))
	got, err := c.Retrieve(ctx, "searchQuery:shoe")
	require.NoError(t, err)
	require.Equal(t, "shoe", got.ID)
	require.Equal(t, 8.0, got.Doc["count"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RetrieveMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM aggregate_cache`)).
		WithArgs("t:missing").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	got, err := NewPostgres(db).Retrieve(context.Background(), "t:missing")
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RemoveAndKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := NewPostgres(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM aggregate_cache WHERE key = $1`)).
		WithArgs("t:a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT key FROM aggregate_cache ORDER BY updated_at, key LIMIT $1`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("t:b").AddRow("t:c"))

	require.NoError(t, c.Remove(ctx, "t:a"))
	keys, err := c.Keys(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"t:b", "t:c"}, keys)

	require.NoError(t, mock.ExpectationsWereMet())
}
