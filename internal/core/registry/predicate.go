package registry

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aevon-lab/aggindex/internal/core/document"
)

// FilterFunc decides whether doc is eligible. existing is the stored document
// (nil when absent); isMerge is set for partial updates.
type FilterFunc func(doc, existing document.Document, isMerge bool) bool

// TransformFunc rewrites a document before it is indexed.
type TransformFunc func(doc document.Document) document.Document

const (
	PredExists  = "exists"
	PredMissing = "missing"
	PredEq      = "eq"
	PredNe      = "ne"
	PredGt      = "gt"
	PredGte     = "gte"
	PredLt      = "lt"
	PredLte     = "lte"
	PredIn      = "in"
)

const (
	TransformLowercase = "lowercase"
	TransformTrim      = "trim"
	TransformDefault   = "default"
	TransformRename    = "rename"
	TransformRemove    = "remove"
)

type predicate func(doc document.Document) bool

func compilePredicate(p PredicateSpec) (predicate, error) {
	if p.Field == "" {
		return nil, fmt.Errorf("filter predicate requires a field")
	}
	field := p.Field
	present := func(doc document.Document) (interface{}, bool) {
		v, ok := doc.Get(field)
		return v, ok && v != nil
	}
	compare := func(cmp func(c int) bool) predicate {
		want := document.Decimal(p.Value)
		return func(doc document.Document) bool {
			v, ok := present(doc)
			if !ok || !document.IsNumber(v) {
				return false
			}
			return cmp(document.Decimal(v).Cmp(want))
		}
	}

	switch p.Op {
	case PredExists, "":
		return func(doc document.Document) bool {
			v, ok := present(doc)
			if !ok {
				return false
			}
			if s, isString := v.(string); isString {
				return s != ""
			}
			return true
		}, nil
	case PredMissing:
		return func(doc document.Document) bool {
			_, ok := present(doc)
			return !ok
		}, nil
	case PredEq:
		return func(doc document.Document) bool {
			v, _ := present(doc)
			return equal(v, p.Value)
		}, nil
	case PredNe:
		return func(doc document.Document) bool {
			v, _ := present(doc)
			return !equal(v, p.Value)
		}, nil
	case PredGt:
		return compare(func(c int) bool { return c > 0 }), nil
	case PredGte:
		return compare(func(c int) bool { return c >= 0 }), nil
	case PredLt:
		return compare(func(c int) bool { return c < 0 }), nil
	case PredLte:
		return compare(func(c int) bool { return c <= 0 }), nil
	case PredIn:
		if len(p.Values) == 0 {
			return nil, fmt.Errorf("filter %q: op in requires values", field)
		}
		return func(doc document.Document) bool {
			v, _ := present(doc)
			for _, candidate := range p.Values {
				if equal(v, candidate) {
					return true
				}
			}
			return false
		}, nil
	}
	return nil, fmt.Errorf("filter %q: unknown op %q", field, p.Op)
}

func equal(a, b interface{}) bool {
	if document.IsNumber(a) && document.IsNumber(b) {
		return document.Decimal(a).Equal(document.Decimal(b))
	}
	return reflect.DeepEqual(a, b)
}

// CompileFilter returns nil when no predicates are declared. Partial
// documents are judged against their merge with the stored document.
func CompileFilter(specs []PredicateSpec) (FilterFunc, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	preds := make([]predicate, 0, len(specs))
	for _, spec := range specs {
		p, err := compilePredicate(spec)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return func(doc, existing document.Document, isMerge bool) bool {
		if doc == nil {
			return false
		}
		effective := doc
		if isMerge && existing != nil {
			effective = document.Defaults(doc, existing)
		}
		for _, p := range preds {
			if !p(effective) {
				return false
			}
		}
		return true
	}, nil
}

func compileTransform(specs []TransformSpec) (TransformFunc, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	steps := make([]func(document.Document), 0, len(specs))
	for _, spec := range specs {
		spec := spec
		if spec.Field == "" {
			return nil, fmt.Errorf("transform %q requires a field", spec.Op)
		}
		switch spec.Op {
		case TransformLowercase, TransformTrim:
			fn := strings.ToLower
			if spec.Op == TransformTrim {
				fn = strings.TrimSpace
			}
			steps = append(steps, func(doc document.Document) {
				if s, ok := doc[spec.Field].(string); ok {
					doc[spec.Field] = fn(s)
				}
			})
		case TransformDefault:
			steps = append(steps, func(doc document.Document) {
				if v, ok := doc[spec.Field]; !ok || v == nil {
					doc[spec.Field] = spec.Value
				}
			})
		case TransformRename:
			if spec.To == "" {
				return nil, fmt.Errorf("transform rename of %q requires to", spec.Field)
			}
			steps = append(steps, func(doc document.Document) {
				if v, ok := doc[spec.Field]; ok {
					doc[spec.To] = v
					delete(doc, spec.Field)
				}
			})
		case TransformRemove:
			steps = append(steps, func(doc document.Document) { delete(doc, spec.Field) })
		default:
			return nil, fmt.Errorf("transform %q: unknown op %q", spec.Field, spec.Op)
		}
	}
	return func(doc document.Document) document.Document {
		out := doc.Clone()
		if out == nil {
			out = document.Document{}
		}
		for _, step := range steps {
			step(out)
		}
		return out
	}, nil
}
