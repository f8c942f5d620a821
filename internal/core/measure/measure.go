package measure

import (
	"fmt"
	"math"
	"sort"

	"github.com/aevon-lab/aggindex/internal/core/document"
	"github.com/shopspring/decimal"
)

// Op is the kind of contribution change a recompute applies.
type Op string

const (
	OpAdd    Op = "ADD"
	OpUpdate Op = "UPDATE"
	OpRemove Op = "REMOVE"
)

// Measure types accepted in Spec.Type.
const (
	TypeSum             = "sum"
	TypeCount           = "count"
	TypeAverage         = "average"
	TypeWeightedAverage = "weighted_average"
	TypeMin             = "min"
	TypeMax             = "max"
	TypeRange           = "range"
	TypeList            = "list"
)

// ModifierLog1p is the only built-in modifier.
const ModifierLog1p = "log1p"

// Measure is an incremental aggregation over contributing documents.
// Implementations read the aggregate and contributing documents and return
// the next value of Field(); they never mutate their arguments.
type Measure interface {
	// Field is the aggregate field the measure writes.
	Field() string
	// AggregateFields lists the aggregate fields the measure reads back.
	AggregateFields() []string

	OnAdd(aggregate, added document.Document) interface{}
	OnRemove(aggregate, removed document.Document) interface{}
	OnUpdate(aggregate, previous, updated document.Document) interface{}
}

// Spec is the declarative form of a measure, as found in type files.
type Spec struct {
	Type            string `yaml:"type" json:"type"`
	Field           string `yaml:"field" json:"field"`
	Source          string `yaml:"source" json:"source,omitempty"`
	Count           string `yaml:"count" json:"count,omitempty"`
	Weight          string `yaml:"weight" json:"weight,omitempty"`
	SourceIsAverage bool   `yaml:"source_is_average" json:"sourceIsAverage,omitempty"`
	Identity        string `yaml:"identity" json:"identity,omitempty"`
	Modifier        string `yaml:"modifier" json:"modifier,omitempty"`
	RoundOff        *int32 `yaml:"round_off" json:"roundOff,omitempty"`
}

// builder constructs a measure from a spec whose Field/Source are resolved.
type builder func(spec Spec) (Measure, error)

// Operators is the registry of all supported measure types.
// To add a new measure: implement Measure and add an entry here.
var Operators = map[string]builder{
	TypeSum:   func(s Spec) (Measure, error) { return Sum(s.Field, s.Source), nil },
	TypeCount: func(s Spec) (Measure, error) { return Count(s.Field), nil },
	TypeAverage: func(s Spec) (Measure, error) {
		return Average(s.Field, s.Source, s.Count), nil
	},
	TypeWeightedAverage: func(s Spec) (Measure, error) {
		if s.Weight == "" {
			return nil, fmt.Errorf("weighted_average measure %q requires a weight field", s.Field)
		}
		return WeightedAverage(s.Field, s.Source, s.Weight, s.SourceIsAverage), nil
	},
	TypeMin:   func(s Spec) (Measure, error) { return Min(s.Field, s.Source), nil },
	TypeMax:   func(s Spec) (Measure, error) { return Max(s.Field, s.Source), nil },
	TypeRange: func(s Spec) (Measure, error) { return Range(s.Field, s.Source), nil },
	TypeList:  func(s Spec) (Measure, error) { return List(s.Field, s.Source, s.Identity), nil },
}

// ValidType reports whether t is a registered measure type.
func ValidType(t string) bool {
	_, ok := Operators[t]
	return ok
}

// defaultRoundOff applies to averages when the spec leaves RoundOff unset.
var defaultRoundOff = map[string]int32{
	TypeAverage:         3,
	TypeWeightedAverage: 3,
}

// Build turns a declarative spec into a Measure, wrapping it with the
// requested modifier and rounding.
func Build(spec Spec) (Measure, error) {
	if spec.Field == "" {
		return nil, fmt.Errorf("measure field is required")
	}
	if spec.Type == "" {
		spec.Type = TypeSum
	}
	build, ok := Operators[spec.Type]
	if !ok {
		return nil, fmt.Errorf("unknown measure type %q for field %q", spec.Type, spec.Field)
	}
	if spec.Source == "" {
		spec.Source = spec.Field
	}

	m, err := build(spec)
	if err != nil {
		return nil, err
	}

	var post shaped
	switch spec.Modifier {
	case "":
	case ModifierLog1p:
		post.modifier = math.Log1p
	default:
		return nil, fmt.Errorf("unknown modifier %q for measure %q", spec.Modifier, spec.Field)
	}
	if spec.RoundOff != nil {
		places := *spec.RoundOff
		post.roundOff = &places
	} else if places, ok := defaultRoundOff[spec.Type]; ok {
		post.roundOff = &places
	}
	if post.modifier == nil && post.roundOff == nil {
		return m, nil
	}
	post.Measure = m
	return post, nil
}

// shaped applies the modifier then the rounding to numeric results.
type shaped struct {
	Measure
	modifier func(float64) float64
	roundOff *int32
}

func (s shaped) OnAdd(agg, added document.Document) interface{} {
	return s.finish(s.Measure.OnAdd(agg, added))
}

func (s shaped) OnRemove(agg, removed document.Document) interface{} {
	return s.finish(s.Measure.OnRemove(agg, removed))
}

func (s shaped) OnUpdate(agg, previous, updated document.Document) interface{} {
	return s.finish(s.Measure.OnUpdate(agg, previous, updated))
}

func (s shaped) finish(v interface{}) interface{} {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	if s.modifier != nil {
		// log1p is undefined at or below -1.
		f = document.Finite(s.modifier(f))
	}
	if s.roundOff != nil {
		f = decimal.NewFromFloat(f).Round(*s.roundOff).InexactFloat64()
	}
	return f
}

// Set is an ordered collection of measures declared on a type or aggregate.
type Set []Measure

// BuildSet builds every spec, failing on the first invalid one.
func BuildSet(specs []Spec) (Set, error) {
	set := make(Set, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		m, err := Build(spec)
		if err != nil {
			return nil, err
		}
		if seen[m.Field()] {
			return nil, fmt.Errorf("measure field %q declared twice", m.Field())
		}
		seen[m.Field()] = true
		set = append(set, m)
	}
	return set, nil
}

// AggregateFields is the sorted union of fields the set reads from an aggregate.
func (s Set) AggregateFields() []string {
	seen := map[string]bool{}
	var fields []string
	for _, m := range s {
		for _, f := range m.AggregateFields() {
			if f != "" && !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// Execute runs every measure for op against the pre-change aggregate and
// writes results into target. All measures read the same pre-change state.
// A nil aggregate is treated as empty.
func (s Set) Execute(op Op, aggregate, target, previous, updated document.Document) {
	if aggregate == nil {
		aggregate = document.Document{}
	}
	for _, m := range s {
		var v interface{}
		switch op {
		case OpAdd:
			v = m.OnAdd(aggregate, updated)
		case OpRemove:
			v = m.OnRemove(aggregate, previous)
		case OpUpdate:
			v = m.OnUpdate(aggregate, previous, updated)
		default:
			continue
		}
		target.Set(m.Field(), v)
	}
}

// field pairs the aggregate field a measure writes with the source field it reads.
type field struct {
	name   string
	source string
}

func (f field) Field() string { return f.name }

func (f field) current(agg document.Document) decimal.Decimal {
	return document.ExtractDecimal(agg, f.name)
}

func (f field) value(doc document.Document) decimal.Decimal {
	return document.ExtractDecimal(doc, f.source)
}

// quotient divides, defining division by zero as zero.
func quotient(total, count decimal.Decimal) float64 {
	if count.IsZero() {
		return 0
	}
	return total.Div(count).InexactFloat64()
}
