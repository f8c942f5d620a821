package registry

import "github.com/aevon-lab/aggindex/internal/core/measure"

// File is the on-disk YAML shape of a type file. A file may declare any mix
// of indices, types and aggregators.
type File struct {
	Indices     map[string]IndexSpec      `yaml:"indices"`
	Types       map[string]TypeSpec       `yaml:"types"`
	Aggregators map[string]AggregatorSpec `yaml:"aggregators"`
}

// IndexSpec carries store-level settings for an index name.
type IndexSpec struct {
	Settings map[string]interface{} `yaml:"settings"`
	Analysis map[string]interface{} `yaml:"analysis"`
}

// TypeSpec declares a document type. Extractors are dot paths into the document.
type TypeSpec struct {
	// Index is the logical index name; empty places the type in the instance's default store.
	Index             string                 `yaml:"index"`
	ID                string                 `yaml:"id"`
	Weight            string                 `yaml:"weight"`
	Lang              string                 `yaml:"lang"`
	DefaultLang       string                 `yaml:"default_lang"`
	TokenIndexEnabled *bool                  `yaml:"token_index_enabled"`
	Transform         []TransformSpec        `yaml:"transform"`
	Filter            []PredicateSpec        `yaml:"filter"`
	Measures          []measure.Spec         `yaml:"measures"`
	Mapping           map[string]interface{} `yaml:"mapping"`
	DynamicTemplates  []interface{}          `yaml:"dynamic_templates"`
}

// AggregatorSpec declares how documents of a source type feed aggregates.
type AggregatorSpec struct {
	Filter     []PredicateSpec          `yaml:"filter"`
	Measures   []measure.Spec           `yaml:"measures"`
	Aggregates map[string]AggregateSpec `yaml:"aggregates"`
}

// AggregateSpec groups source documents by the values of Field. Each value
// yields a partial aggregate document of type Type (defaults to the map key).
type AggregateSpec struct {
	Type  string `yaml:"type"`
	Field string `yaml:"field"`
	// Key is the aggregate field receiving a scalar group value. Defaults to "key".
	Key string `yaml:"key"`
	// Copy lists source fields copied onto the partial aggregate.
	Copy     []string       `yaml:"copy"`
	Measures []measure.Spec `yaml:"measures"`
}

// PredicateSpec is one filter condition; a filter passes when all hold.
type PredicateSpec struct {
	Field  string        `yaml:"field"`
	Op     string        `yaml:"op"`
	Value  interface{}   `yaml:"value"`
	Values []interface{} `yaml:"values"`
}

// TransformSpec is one in-place rewrite step applied before indexing.
type TransformSpec struct {
	Op    string      `yaml:"op"`
	Field string      `yaml:"field"`
	To    string      `yaml:"to"`
	Value interface{} `yaml:"value"`
}
