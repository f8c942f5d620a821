package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aevon-lab/aggindex/internal/core/document"
	coreerr "github.com/aevon-lab/aggindex/internal/core/errors"
	"github.com/aevon-lab/aggindex/internal/core/measure"
	"github.com/stretchr/testify/require"
)

const productTypes = `
indices:
  catalog:
    settings:
      number_of_shards: 4
types:
  product:
    index: catalog
    id: sku
    weight: popularity
    lang: locale
    transform:
      - op: lowercase
        field: brand
    filter:
      - field: sku
        op: exists
    mapping:
      sku: $IdentityText
      brand: $Keyword
  brandStats:
    index: catalog
    id: key
    mapping:
      key: $IdentityText
      productCount: $Long
aggregators:
  product:
    filter:
      - field: active
        op: eq
        value: true
    measures:
      - type: count
        field: productCount
      - type: average
        field: avgPrice
        source: price
        count: productCount
    aggregates:
      byBrand:
        type: brandStats
        field: brand
        copy: [_lang]
`

func writeTypes(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoad_TypesAndAggregators(t *testing.T) {
	dir := t.TempDir()
	writeTypes(t, dir, "products.yaml", productTypes)
	writeTypes(t, dir, "notes.txt", "ignored")

	reg, err := Load("Shop", dir)
	require.NoError(t, err)

	product, err := reg.Type("product")
	require.NoError(t, err)
	require.Equal(t, "shop:catalog_store", product.Index.Store)
	require.Len(t, product.Fingerprint, 64)
	require.Equal(t, "A1", product.ID(document.Document{"sku": "A1"}))
	require.Equal(t, "fr", product.Lang(document.Document{"locale": "fr"}))
	require.Equal(t, "en", product.Lang(document.Document{}))
	require.Equal(t, 1.0, product.Weight(document.Document{}))
	require.Equal(t, 1.099, product.DerivedWeight(document.Document{"popularity": 2.0}))

	transformed := product.Transform(document.Document{"brand": "ACME"})
	require.Equal(t, "acme", transformed["brand"])

	require.True(t, product.Filter(document.Document{"sku": "A1"}, nil, false))
	require.False(t, product.Filter(document.Document{"sku": ""}, nil, false))
	require.True(t, product.Filter(document.Document{"brand": "x"}, document.Document{"sku": "A1"}, true),
		"partial documents are judged against the stored document")

	agg := reg.Aggregator("product")
	require.NotNil(t, agg)
	require.Len(t, agg.Aggregates, 1)
	require.Equal(t, "brandStats", agg.Aggregates[0].Type.Name)
	require.Equal(t, []string{"avgPrice", "productCount"}, agg.Aggregates[0].Measures.AggregateFields())
	require.Nil(t, reg.Aggregator("brandStats"))

	catalog, err := reg.Index("catalog")
	require.NoError(t, err)
	require.Len(t, catalog.Types, 2)
	settings := catalog.Body()["settings"].(map[string]interface{})["index"].(map[string]interface{})
	require.Equal(t, 4, settings["number_of_shards"])
	require.Equal(t, false, settings["token_index_enabled"])
}

func TestLoad_DefaultTypes(t *testing.T) {
	reg, err := Load("humane", filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	sq, err := reg.Type("searchQuery")
	require.NoError(t, err)
	require.Equal(t, "humane:search_query_store", sq.Index.Store)
	require.Equal(t, "shoe", sq.ID(document.Document{"key": "shoe", "id": "other"}))
	require.Equal(t, 5.0, sq.Weight(document.Document{"count": 5.0}))
	require.Len(t, sq.Measures, 1)

	metadata, err := reg.Index("humane:metadata_store")
	require.NoError(t, err)
	require.Len(t, metadata.Types, 3)
	settings := metadata.Body()["settings"].(map[string]interface{})["index"].(map[string]interface{})
	require.Equal(t, true, settings["token_index_enabled"])
	require.Equal(t, 2, settings["number_of_shards"])

	require.Len(t, reg.Indices(), 2)
}

func TestRegistry_TypeErrors(t *testing.T) {
	reg, err := NewBuilder("x").Build()
	require.NoError(t, err)

	_, err = reg.Type("")
	ve, ok := coreerr.IsValidation(err)
	require.True(t, ok)
	require.Equal(t, coreerr.CodeUndefinedType, ve.Code)

	_, err = reg.Type("nope")
	ve, ok = coreerr.IsValidation(err)
	require.True(t, ok)
	require.Equal(t, coreerr.CodeUnrecognizedType, ve.Code)

	_, err = reg.Index("nope")
	ve, ok = coreerr.IsValidation(err)
	require.True(t, ok)
	require.Equal(t, coreerr.CodeUnrecognizedIndex, ve.Code)
}

func TestBuild_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		wantErr string
	}{
		{
			name:    "aggregate of undeclared type",
			file:    File{Types: map[string]TypeSpec{"a": {}}, Aggregators: map[string]AggregatorSpec{"a": {Aggregates: map[string]AggregateSpec{"b": {Field: "f"}}}}},
			wantErr: `type "b" is not declared`,
		},
		{
			name:    "aggregator for undeclared source",
			file:    File{Aggregators: map[string]AggregatorSpec{"ghost": {}}},
			wantErr: "source type is not declared",
		},
		{
			name: "aggregate without measures",
			file: File{
				Types:       map[string]TypeSpec{"a": {}, "b": {}},
				Aggregators: map[string]AggregatorSpec{"a": {Aggregates: map[string]AggregateSpec{"b": {Field: "f"}}}},
			},
			wantErr: "no measures declared",
		},
		{
			name:    "unknown mapping preset",
			file:    File{Types: map[string]TypeSpec{"a": {Mapping: map[string]interface{}{"f": "$Nope"}}}},
			wantErr: "unknown mapping preset",
		},
		{
			name:    "unknown filter op",
			file:    File{Types: map[string]TypeSpec{"a": {Filter: []PredicateSpec{{Field: "f", Op: "like"}}}}},
			wantErr: "unknown op",
		},
		{
			name:    "index without types",
			file:    File{Indices: map[string]IndexSpec{"orphan": {}}},
			wantErr: "no type is stored in it",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("x")
			require.NoError(t, b.AddFile(tt.file, ""))
			_, err := b.Build()
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBuilder_DuplicateTypes(t *testing.T) {
	b := NewBuilder("x").WithDefaults()
	require.NoError(t, b.AddType("searchQuery", TypeSpec{ID: "query"}), "built-ins may be redeclared")
	require.ErrorContains(t, b.AddType("searchQuery", TypeSpec{}), "declared twice")
}

func TestAggregate_Partials(t *testing.T) {
	b := NewBuilder("x")
	require.NoError(t, b.AddFile(File{
		Types: map[string]TypeSpec{
			"query":   {ID: "id"},
			"term":    {ID: "key"},
			"sellers": {ID: "id"},
		},
		Aggregators: map[string]AggregatorSpec{
			"query": {
				Measures: measureSpecs("count"),
				Aggregates: map[string]AggregateSpec{
					"term":    {Field: "terms", Copy: []string{"_lang"}},
					"sellers": {Field: "seller"},
				},
			},
		},
	}, ""))
	reg, err := b.Build()
	require.NoError(t, err)
	aggs := reg.Aggregator("query").Aggregates
	require.Equal(t, "sellers", aggs[0].Name)
	require.Equal(t, "term", aggs[1].Name)

	parts := aggs[1].Partials(document.Document{"_lang": "en", "terms": []interface{}{"red", "", "shoe", "red"}})
	require.Equal(t, []Partial{
		{ID: "red", Doc: document.Document{"key": "red", "_lang": "en"}},
		{ID: "shoe", Doc: document.Document{"key": "shoe", "_lang": "en"}},
	}, parts)

	parts = aggs[0].Partials(document.Document{"seller": map[string]interface{}{"id": "s1", "name": "A"}})
	require.Equal(t, []Partial{{ID: "s1", Doc: document.Document{"id": "s1", "name": "A"}}}, parts)

	require.Empty(t, aggs[1].Partials(document.Document{}))
	require.Empty(t, aggs[1].Partials(nil))
}

func TestSnakeCaseAndStoreName(t *testing.T) {
	require.Equal(t, "search_query", snakeCase("searchQuery"))
	require.Equal(t, "search_query", snakeCase("search_query"))
	require.Equal(t, "http_server_log", snakeCase("HTTPServer Log"))
	require.Equal(t, "acme_store", StoreName("ACME", ""))
	require.Equal(t, "acme:search_query_store", StoreName("ACME", "searchQuery"))
}

func TestResolveProperties_AddsDerivedFields(t *testing.T) {
	props, err := resolveProperties(map[string]interface{}{
		"title": "$Text",
		"meta": map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"n": "$Long"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"type": "double"}, props["_weight"])
	require.Equal(t, "humane_keyword_analyzer", props["_lang"].(map[string]interface{})["analyzer"])
	nested := props["meta"].(map[string]interface{})["properties"].(map[string]interface{})
	require.Equal(t, map[string]interface{}{"type": "long"}, nested["n"])
}

func measureSpecs(fields ...string) []measure.Spec {
	out := make([]measure.Spec, 0, len(fields))
	for _, f := range fields {
		out = append(out, measure.Spec{Type: measure.TypeCount, Field: f})
	}
	return out
}
