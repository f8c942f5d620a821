package measure

import (
	"github.com/shopspring/decimal"

	"github.com/aevon-lab/aggindex/internal/core/document"
)

// Sum accumulates source values. Missing fields count as zero.
func Sum(name, source string) Measure {
	if source == "" {
		source = name
	}
	return sumMeasure{field{name, source}}
}

type sumMeasure struct{ field }

func (m sumMeasure) AggregateFields() []string { return []string{m.name} }

func (m sumMeasure) OnAdd(agg, added document.Document) interface{} {
	return m.current(agg).Add(m.value(added)).InexactFloat64()
}

func (m sumMeasure) OnRemove(agg, removed document.Document) interface{} {
	return m.current(agg).Sub(m.value(removed)).InexactFloat64()
}

func (m sumMeasure) OnUpdate(agg, previous, updated document.Document) interface{} {
	return m.current(agg).Sub(m.value(previous)).Add(m.value(updated)).InexactFloat64()
}

// Count tracks the number of contributing documents. name defaults to "count".
func Count(name string) Measure {
	if name == "" {
		name = "count"
	}
	return countMeasure{field{name: name}}
}

type countMeasure struct{ field }

var one = decimal.NewFromInt(1)

func (m countMeasure) AggregateFields() []string { return []string{m.name} }

func (m countMeasure) OnAdd(agg, _ document.Document) interface{} {
	return m.current(agg).Add(one).InexactFloat64()
}

func (m countMeasure) OnRemove(agg, _ document.Document) interface{} {
	return m.current(agg).Sub(one).InexactFloat64()
}

func (m countMeasure) OnUpdate(agg, _, _ document.Document) interface{} {
	return m.current(agg).InexactFloat64()
}

// Average keeps a running mean of source values. The count field on the
// aggregate must be maintained by a separate count measure; it is read in its
// pre-change state.
func Average(name, source, count string) Measure {
	if source == "" {
		source = name
	}
	if count == "" {
		count = "count"
	}
	return averageMeasure{field: field{name, source}, count: count}
}

type averageMeasure struct {
	field
	count string
}

func (m averageMeasure) AggregateFields() []string { return []string{m.name, m.count} }

func (m averageMeasure) total(agg document.Document) (decimal.Decimal, decimal.Decimal) {
	n := document.ExtractDecimal(agg, m.count)
	return m.current(agg).Mul(n), n
}

func (m averageMeasure) OnAdd(agg, added document.Document) interface{} {
	total, n := m.total(agg)
	return quotient(total.Add(m.value(added)), n.Add(one))
}

func (m averageMeasure) OnRemove(agg, removed document.Document) interface{} {
	total, n := m.total(agg)
	return quotient(total.Sub(m.value(removed)), n.Sub(one))
}

func (m averageMeasure) OnUpdate(agg, previous, updated document.Document) interface{} {
	total, n := m.total(agg)
	return quotient(total.Sub(m.value(previous)).Add(m.value(updated)), n)
}

// WeightedAverage keeps a mean weighted by the weight field. The aggregate's
// weight field holds the accumulated weight and must be maintained by a
// separate sum measure. When sourceIsAverage is set, each contributing value
// is scaled by its own weight before being folded in.
func WeightedAverage(name, source, weight string, sourceIsAverage bool) Measure {
	if source == "" {
		source = name
	}
	return weightedAverageMeasure{field: field{name, source}, weight: weight, sourceIsAverage: sourceIsAverage}
}

type weightedAverageMeasure struct {
	field
	weight          string
	sourceIsAverage bool
}

func (m weightedAverageMeasure) AggregateFields() []string { return []string{m.name, m.weight} }

func (m weightedAverageMeasure) contribution(doc document.Document) (decimal.Decimal, decimal.Decimal) {
	w := document.ExtractDecimal(doc, m.weight)
	v := m.value(doc)
	if m.sourceIsAverage {
		v = v.Mul(w)
	}
	return v, w
}

func (m weightedAverageMeasure) total(agg document.Document) (decimal.Decimal, decimal.Decimal) {
	w := document.ExtractDecimal(agg, m.weight)
	return m.current(agg).Mul(w), w
}

func (m weightedAverageMeasure) OnAdd(agg, added document.Document) interface{} {
	total, w := m.total(agg)
	v, dw := m.contribution(added)
	return quotient(total.Add(v), w.Add(dw))
}

func (m weightedAverageMeasure) OnRemove(agg, removed document.Document) interface{} {
	total, w := m.total(agg)
	v, dw := m.contribution(removed)
	return quotient(total.Sub(v), w.Sub(dw))
}

func (m weightedAverageMeasure) OnUpdate(agg, previous, updated document.Document) interface{} {
	total, w := m.total(agg)
	ov, ow := m.contribution(previous)
	nv, nw := m.contribution(updated)
	return quotient(total.Sub(ov).Add(nv), w.Sub(ow).Add(nw))
}

// Min tracks the smallest source value seen. Removal keeps the current
// extremum; use Range when removals must restore earlier extremes.
func Min(name, source string) Measure {
	if source == "" {
		source = name
	}
	return extremumMeasure{field: field{name, source}, keep: decimal.Decimal.LessThan}
}

// Max tracks the largest source value seen, with the same removal caveat as Min.
func Max(name, source string) Measure {
	if source == "" {
		source = name
	}
	return extremumMeasure{field: field{name, source}, keep: decimal.Decimal.GreaterThan}
}

type extremumMeasure struct {
	field
	// keep reports whether the candidate replaces the current extremum.
	keep func(candidate, current decimal.Decimal) bool
}

func (m extremumMeasure) AggregateFields() []string { return []string{m.name} }

func (m extremumMeasure) fold(agg, doc document.Document) interface{} {
	cur, hasCur := agg.Get(m.name)
	in, hasIn := doc.Get(m.source)
	hasCur = hasCur && cur != nil
	hasIn = hasIn && in != nil
	switch {
	case !hasCur && !hasIn:
		return nil
	case !hasCur:
		return document.Decimal(in).InexactFloat64()
	case !hasIn:
		return document.Decimal(cur).InexactFloat64()
	}
	c, v := document.Decimal(cur), document.Decimal(in)
	if m.keep(v, c) {
		return v.InexactFloat64()
	}
	return c.InexactFloat64()
}

func (m extremumMeasure) OnAdd(agg, added document.Document) interface{} {
	return m.fold(agg, added)
}

func (m extremumMeasure) OnRemove(agg, _ document.Document) interface{} {
	cur, ok := agg.Get(m.name)
	if !ok || cur == nil {
		return nil
	}
	return document.Decimal(cur).InexactFloat64()
}

func (m extremumMeasure) OnUpdate(agg, _, updated document.Document) interface{} {
	return m.fold(agg, updated)
}
