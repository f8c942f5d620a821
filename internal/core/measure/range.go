package measure

import (
	"github.com/shopspring/decimal"

	"github.com/aevon-lab/aggindex/internal/core/document"
)

const (
	rangeMin    = "min"
	rangeMax    = "max"
	rangeValues = "__values_internal__"
	rangeKey    = "key"
	rangeCount  = "count"
)

// Range keeps {min, max} over the source values plus a multiset of observed
// values, so removals restore the true extremes of what remains.
func Range(name, source string) Measure {
	if source == "" {
		source = name
	}
	return rangeMeasure{field{name, source}}
}

type rangeMeasure struct{ field }

type bucket struct {
	key   decimal.Decimal
	count int64
}

func (m rangeMeasure) AggregateFields() []string { return []string{m.name} }

func (m rangeMeasure) read(agg document.Document) []bucket {
	raw, ok := agg.Get(m.name)
	if !ok {
		return nil
	}
	obj, ok := document.AsMap(raw)
	if !ok {
		return nil
	}
	entries, _ := obj[rangeValues].([]interface{})
	buckets := make([]bucket, 0, len(entries))
	for _, e := range entries {
		entry, ok := document.AsMap(e)
		if !ok {
			continue
		}
		buckets = append(buckets, bucket{
			key:   document.Decimal(entry[rangeKey]),
			count: document.Int64(entry[rangeCount]),
		})
	}
	return buckets
}

func (m rangeMeasure) sourceValue(doc document.Document) (decimal.Decimal, bool) {
	v, ok := doc.Get(m.field.source)
	if !ok || v == nil || !document.IsNumber(v) {
		return decimal.Zero, false
	}
	return document.Decimal(v), true
}

func adjust(buckets []bucket, key decimal.Decimal, delta int64) []bucket {
	for i := range buckets {
		if buckets[i].key.Equal(key) {
			buckets[i].count += delta
			if buckets[i].count <= 0 {
				return append(buckets[:i], buckets[i+1:]...)
			}
			return buckets
		}
	}
	if delta > 0 {
		buckets = append(buckets, bucket{key: key, count: delta})
	}
	return buckets
}

func render(buckets []bucket) map[string]interface{} {
	out := map[string]interface{}{rangeMin: nil, rangeMax: nil}
	values := make([]interface{}, 0, len(buckets))
	var lo, hi decimal.Decimal
	for i, b := range buckets {
		if i == 0 || b.key.LessThan(lo) {
			lo = b.key
		}
		if i == 0 || b.key.GreaterThan(hi) {
			hi = b.key
		}
		values = append(values, map[string]interface{}{
			rangeKey:   b.key.InexactFloat64(),
			rangeCount: b.count,
		})
	}
	if len(buckets) > 0 {
		out[rangeMin] = lo.InexactFloat64()
		out[rangeMax] = hi.InexactFloat64()
	}
	out[rangeValues] = values
	return out
}

func (m rangeMeasure) OnAdd(agg, added document.Document) interface{} {
	buckets := m.read(agg)
	if v, ok := m.sourceValue(added); ok {
		buckets = adjust(buckets, v, 1)
	}
	return render(buckets)
}

func (m rangeMeasure) OnRemove(agg, removed document.Document) interface{} {
	buckets := m.read(agg)
	if v, ok := m.sourceValue(removed); ok {
		buckets = adjust(buckets, v, -1)
	}
	return render(buckets)
}

func (m rangeMeasure) OnUpdate(agg, previous, updated document.Document) interface{} {
	buckets := m.read(agg)
	if v, ok := m.sourceValue(previous); ok {
		buckets = adjust(buckets, v, -1)
	}
	if v, ok := m.sourceValue(updated); ok {
		buckets = adjust(buckets, v, 1)
	}
	return render(buckets)
}
