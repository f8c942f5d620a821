package registry

import (
	"fmt"
	"sort"

	"github.com/aevon-lab/aggindex/internal/core/measure"
)

// Builder accumulates type files and resolves them into a Registry.
// Built-in types may be redeclared once by a file; any other duplicate is an error.
type Builder struct {
	instance     string
	indices      map[string]IndexSpec
	types        map[string]TypeSpec
	aggregators  map[string]AggregatorSpec
	builtins     map[string]bool
	fingerprints map[string]string
}

// NewBuilder starts an empty registry for the given instance name.
func NewBuilder(instance string) *Builder {
	return &Builder{
		instance:     instance,
		indices:      map[string]IndexSpec{},
		types:        map[string]TypeSpec{},
		aggregators:  map[string]AggregatorSpec{},
		builtins:     map[string]bool{},
		fingerprints: map[string]string{},
	}
}

// WithDefaults registers the built-in types.
func (b *Builder) WithDefaults() *Builder {
	for name, spec := range DefaultTypes() {
		b.types[name] = spec
		b.builtins[name] = true
	}
	return b
}

// AddFile merges one parsed type file.
func (b *Builder) AddFile(f File, fingerprint string) error {
	for name, spec := range f.Indices {
		if _, exists := b.indices[name]; exists {
			return fmt.Errorf("index %q: declared twice", name)
		}
		b.indices[name] = spec
	}
	for name, spec := range f.Types {
		if err := b.AddType(name, spec); err != nil {
			return err
		}
		b.fingerprints[name] = fingerprint
	}
	for source, spec := range f.Aggregators {
		if err := b.AddAggregator(source, spec); err != nil {
			return err
		}
	}
	return nil
}

// AddType declares a type.
func (b *Builder) AddType(name string, spec TypeSpec) error {
	if name == "" {
		return fmt.Errorf("type name must not be empty")
	}
	if _, exists := b.types[name]; exists && !b.builtins[name] {
		return fmt.Errorf("type %q: declared twice", name)
	}
	delete(b.builtins, name)
	b.types[name] = spec
	return nil
}

// AddAggregator declares the aggregates fed by source.
func (b *Builder) AddAggregator(source string, spec AggregatorSpec) error {
	if _, exists := b.aggregators[source]; exists {
		return fmt.Errorf("aggregator for %q: declared twice", source)
	}
	b.aggregators[source] = spec
	return nil
}

// Build resolves types, indices and aggregators, validating every reference.
func (b *Builder) Build() (*Registry, error) {
	r := &Registry{
		instance:    b.instance,
		types:       make(map[string]*Type, len(b.types)),
		indices:     map[string]*Index{},
		aggregators: make(map[string]*Aggregator, len(b.aggregators)),
	}

	names := make([]string, 0, len(b.types))
	for name := range b.types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t, err := b.buildType(r, name, b.types[name])
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", name, err)
		}
		r.types[name] = t
	}

	for name := range b.indices {
		if _, ok := r.indices[StoreName(b.instance, name)]; !ok {
			return nil, fmt.Errorf("index %q: no type is stored in it", name)
		}
	}

	for source, spec := range b.aggregators {
		agg, err := b.buildAggregator(r, source, spec)
		if err != nil {
			return nil, fmt.Errorf("aggregator %q: %w", source, err)
		}
		r.aggregators[source] = agg
	}
	return r, nil
}

func (b *Builder) buildType(r *Registry, name string, spec TypeSpec) (*Type, error) {
	store := StoreName(b.instance, spec.Index)
	ix, ok := r.indices[store]
	if !ok {
		ix = &Index{Name: spec.Index, Store: store, Settings: map[string]interface{}{}}
		if is, declared := b.indices[spec.Index]; declared {
			for k, v := range is.Settings {
				ix.Settings[k] = v
			}
			ix.Analysis = is.Analysis
		}
		if spec.TokenIndexEnabled != nil {
			if _, set := ix.Settings["token_index_enabled"]; !set {
				ix.Settings["token_index_enabled"] = *spec.TokenIndexEnabled
			}
		}
		r.indices[store] = ix
	}

	measures, err := measure.BuildSet(spec.Measures)
	if err != nil {
		return nil, err
	}
	filter, err := CompileFilter(spec.Filter)
	if err != nil {
		return nil, err
	}
	transform, err := compileTransform(spec.Transform)
	if err != nil {
		return nil, err
	}
	props, err := resolveProperties(spec.Mapping)
	if err != nil {
		return nil, err
	}
	templates := spec.DynamicTemplates
	if len(templates) == 0 {
		templates = statsDynamicTemplates()
	}

	t := &Type{
		Name:             name,
		Index:            ix,
		Transform:        transform,
		Filter:           filter,
		Measures:         measures,
		Properties:       props,
		DynamicTemplates: templates,
		Fingerprint:      b.fingerprints[name],
		idField:          spec.ID,
		weightField:      spec.Weight,
		langField:        spec.Lang,
		defaultLang:      spec.DefaultLang,
	}
	if t.idField == "" {
		t.idField = defaultIDField
	}
	if t.defaultLang == "" {
		t.defaultLang = defaultLang
	}
	ix.Types = append(ix.Types, t)
	return t, nil
}

func (b *Builder) buildAggregator(r *Registry, source string, spec AggregatorSpec) (*Aggregator, error) {
	if _, ok := r.types[source]; !ok {
		return nil, fmt.Errorf("source type is not declared")
	}
	measures, err := measure.BuildSet(spec.Measures)
	if err != nil {
		return nil, err
	}
	filter, err := CompileFilter(spec.Filter)
	if err != nil {
		return nil, err
	}
	agg := &Aggregator{Source: source, Filter: filter, Measures: measures}

	names := make([]string, 0, len(spec.Aggregates))
	for name := range spec.Aggregates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		as := spec.Aggregates[name]
		typeName := as.Type
		if typeName == "" {
			typeName = name
		}
		t, ok := r.types[typeName]
		if !ok {
			return nil, fmt.Errorf("aggregate %q: type %q is not declared", name, typeName)
		}
		if as.Field == "" {
			return nil, fmt.Errorf("aggregate %q: field is required", name)
		}
		own := measures
		if len(as.Measures) > 0 {
			if own, err = measure.BuildSet(as.Measures); err != nil {
				return nil, fmt.Errorf("aggregate %q: %w", name, err)
			}
		}
		if len(own) == 0 {
			return nil, fmt.Errorf("aggregate %q: no measures declared", name)
		}
		key := as.Key
		if key == "" {
			key = defaultKey
		}
		agg.Aggregates = append(agg.Aggregates, &Aggregate{
			Name:     name,
			Type:     t,
			Field:    as.Field,
			Measures: own,
			key:      key,
			copy:     as.Copy,
		})
	}
	return agg, nil
}
