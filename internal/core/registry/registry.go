package registry

import (
	"fmt"
	"math"
	"sort"

	"github.com/aevon-lab/aggindex/internal/core/document"
	coreerr "github.com/aevon-lab/aggindex/internal/core/errors"
	"github.com/aevon-lab/aggindex/internal/core/measure"
	"github.com/shopspring/decimal"
)

const (
	defaultIDField = "id"
	defaultLang    = "en"
	defaultWeight  = 1.0
	defaultKey     = "key"
)

// Type is a resolved document type.
type Type struct {
	Name  string
	Index *Index

	Transform TransformFunc
	Filter    FilterFunc
	Measures  measure.Set

	Properties       map[string]interface{}
	DynamicTemplates []interface{}

	// Fingerprint is the SHA-256 of the file that declared the type; empty for built-ins.
	Fingerprint string

	idField     string
	weightField string
	langField   string
	defaultLang string
}

// ID extracts the document identifier, or "" when absent.
func (t *Type) ID(doc document.Document) string {
	return doc.String(t.idField)
}

// Weight extracts the raw weight, defaulting to 1.
func (t *Type) Weight(doc document.Document) float64 {
	if t.weightField == "" {
		return defaultWeight
	}
	v, ok := doc.Get(t.weightField)
	if !ok || v == nil {
		return defaultWeight
	}
	return document.Decimal(v).InexactFloat64()
}

// DerivedWeight is the stored _weight: log1p of the weight, rounded to 3
// places. Weights at or below -1 have no log1p and derive 0.
func (t *Type) DerivedWeight(doc document.Document) float64 {
	w := document.Finite(math.Log1p(t.Weight(doc)))
	return decimal.NewFromFloat(w).Round(3).InexactFloat64()
}

// Lang extracts the language tag, falling back to the type default.
func (t *Type) Lang(doc document.Document) string {
	if t.langField != "" {
		if lang := doc.String(t.langField); lang != "" {
			return lang
		}
	}
	return t.defaultLang
}

// MappingBody is the per-type mapping sent when creating the index.
func (t *Type) MappingBody() map[string]interface{} {
	return map[string]interface{}{
		"dynamic":           false,
		"dynamic_templates": document.DeepCopy(t.DynamicTemplates),
		"properties":        document.DeepCopy(t.Properties),
	}
}

// Index is a physical store shared by one or more types.
type Index struct {
	Name     string
	Store    string
	Settings map[string]interface{}
	Analysis map[string]interface{}
	Types    []*Type
}

// Body is the create-index request body.
func (ix *Index) Body() map[string]interface{} {
	settings := map[string]interface{}{
		"number_of_shards":    2,
		"token_index_enabled": false,
	}
	for k, v := range ix.Settings {
		settings[k] = document.DeepCopy(v)
	}
	body := map[string]interface{}{"settings": map[string]interface{}{"index": settings}}
	if len(ix.Analysis) > 0 {
		body["settings"].(map[string]interface{})["analysis"] = document.DeepCopy(ix.Analysis)
	}
	mappings := make(map[string]interface{}, len(ix.Types))
	for _, t := range ix.Types {
		mappings[t.Name] = t.MappingBody()
	}
	body["mappings"] = mappings
	return body
}

// Aggregator lists the aggregates a source type contributes to.
type Aggregator struct {
	Source     string
	Filter     FilterFunc
	Measures   measure.Set
	Aggregates []*Aggregate
}

// Aggregate groups source documents by Field into aggregate documents of Type.
type Aggregate struct {
	Name     string
	Type     *Type
	Field    string
	Measures measure.Set

	key  string
	copy []string
}

// Partial is the group identity and payload derived from one group value.
type Partial struct {
	ID  string
	Doc document.Document
}

// Partials expands doc's grouping field (scalar or array) into partial
// aggregate documents, dropping empty values and values with no identifier.
func (a *Aggregate) Partials(doc document.Document) []Partial {
	if doc == nil {
		return nil
	}
	raw, ok := doc.Get(a.Field)
	if !ok || raw == nil {
		return nil
	}
	values, isList := raw.([]interface{})
	if !isList {
		values = []interface{}{raw}
	}
	out := make([]Partial, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if empty(v) {
			continue
		}
		partial := a.build(doc, v)
		id := a.Type.ID(partial)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Partial{ID: id, Doc: partial})
	}
	return out
}

func (a *Aggregate) build(doc document.Document, value interface{}) document.Document {
	partial := document.Document{}
	for _, f := range a.copy {
		if v, ok := doc.Get(f); ok {
			partial.Set(f, document.DeepCopy(v))
		}
	}
	if obj, ok := document.AsMap(value); ok {
		for k, v := range obj {
			partial[k] = document.DeepCopy(v)
		}
		return partial
	}
	partial.Set(a.key, value)
	return partial
}

func empty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	}
	if document.IsNumber(v) {
		return document.Decimal(v).IsZero()
	}
	return false
}

// Registry is the immutable, resolved type configuration.
type Registry struct {
	instance    string
	types       map[string]*Type
	indices     map[string]*Index
	aggregators map[string]*Aggregator
}

// InstanceName is the lowercase-able prefix of every store name.
func (r *Registry) InstanceName() string { return r.instance }

// Type resolves a type by name.
func (r *Registry) Type(name string) (*Type, error) {
	if name == "" {
		return nil, coreerr.NewValidation(coreerr.CodeUndefinedType, "type is required")
	}
	t, ok := r.types[name]
	if !ok {
		return nil, coreerr.NewValidation(coreerr.CodeUnrecognizedType, fmt.Sprintf("unrecognized type %q", name), "type", name)
	}
	return t, nil
}

// Types returns every type sorted by name.
func (r *Registry) Types() []*Type {
	out := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Aggregator returns the aggregator fed by source, or nil.
func (r *Registry) Aggregator(source string) *Aggregator {
	return r.aggregators[source]
}

// Index resolves an index by store name or logical name.
func (r *Registry) Index(key string) (*Index, error) {
	if ix, ok := r.indices[key]; ok {
		return ix, nil
	}
	for _, ix := range r.indices {
		if ix.Name == key && key != "" {
			return ix, nil
		}
	}
	return nil, coreerr.NewValidation(coreerr.CodeUnrecognizedIndex, fmt.Sprintf("unrecognized index %q", key), "index", key)
}

// Indices returns every index sorted by store name.
func (r *Registry) Indices() []*Index {
	out := make([]*Index, 0, len(r.indices))
	for _, ix := range r.indices {
		out = append(out, ix)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Store < out[j].Store })
	return out
}
