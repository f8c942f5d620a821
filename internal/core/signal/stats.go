package signal

import (
	"sort"
	"time"

	"github.com/aevon-lab/aggindex/internal/core/document"
	"github.com/shopspring/decimal"
)

// Fields of a single stats entry.
const (
	FieldTimeInUnit     = "timeInUnit"
	FieldLastUpdateTime = "lastUpdateTime"
	FieldValue          = "value"
	FieldLastNStats     = "lastNStats"
)

type periodValue struct {
	period int64
	value  decimal.Decimal
}

type stat struct {
	period  int64
	updated int64
	value   decimal.Decimal
	history []periodValue
}

func readStat(group map[string]interface{}, name string) (stat, bool) {
	raw, ok := document.AsMap(group[name])
	if !ok {
		return stat{}, false
	}
	s := stat{
		period:  document.Int64(raw[FieldTimeInUnit]),
		updated: document.Int64(raw[FieldLastUpdateTime]),
		value:   document.Decimal(raw[FieldValue]),
	}
	if s.period == 0 {
		return stat{}, false
	}
	items, _ := raw[FieldLastNStats].([]interface{})
	for _, item := range items {
		entry, ok := document.AsMap(item)
		if !ok {
			continue
		}
		s.history = append(s.history, periodValue{
			period: document.Int64(entry[FieldTimeInUnit]),
			value:  document.Decimal(entry[FieldValue]),
		})
	}
	return s, true
}

func (s stat) render() map[string]interface{} {
	sort.SliceStable(s.history, func(i, j int) bool { return s.history[i].period < s.history[j].period })
	history := make([]interface{}, 0, len(s.history))
	for _, pv := range s.history {
		history = append(history, map[string]interface{}{
			FieldTimeInUnit: pv.period,
			FieldValue:      pv.value.InexactFloat64(),
		})
	}
	return map[string]interface{}{
		FieldTimeInUnit:     s.period,
		FieldLastUpdateTime: s.updated,
		FieldValue:          s.value.InexactFloat64(),
		FieldLastNStats:     history,
	}
}

// put sets (or, with add, accumulates into) the history entry for period.
func (s *stat) put(period int64, v decimal.Decimal, add bool) {
	for i := range s.history {
		if s.history[i].period == period {
			if add {
				s.history[i].value = s.history[i].value.Add(v)
			} else {
				s.history[i].value = v
			}
			return
		}
	}
	s.history = append(s.history, periodValue{period: period, value: v})
}

func group(doc document.Document, name string) map[string]interface{} {
	g, ok := document.AsMap(doc[name])
	if !ok {
		g = map[string]interface{}{}
		doc[name] = g
	}
	return g
}

// ApplyPeriod folds value for the named signal into period p of g's stats
// group on doc. Depending on where p sits relative to the currently tracked
// period, the value accumulates into the current bucket, rolls the current
// bucket into history, resets history, folds into a past bucket, or is
// dropped because it is older than the retained window.
func ApplyPeriod(doc document.Document, g Granularity, p int64, name string, value float64, now time.Time) error {
	inputStart, err := g.WindowStart(p)
	if err != nil {
		return err
	}
	stats := group(doc, g.Group)
	v := decimal.NewFromFloat(value)
	updated := now.UnixMilli()

	cur, ok := readStat(stats, name)
	switch {
	case !ok:
		cur = stat{period: p, value: v}
		cur.put(p, v, false)

	case cur.period == p:
		cur.value = cur.value.Add(v)
		cur.put(p, cur.value, false)

	case cur.period < inputStart:
		cur = stat{period: p, value: v}
		cur.put(p, v, false)

	case cur.period < p:
		kept := cur.history[:0]
		for _, pv := range cur.history {
			if pv.period >= inputStart {
				kept = append(kept, pv)
			}
		}
		cur.history = kept
		cur.put(cur.period, cur.value, false)
		cur.put(p, v, false)
		cur.period = p
		cur.value = v

	default:
		oldStart, err := g.WindowStart(cur.period)
		if err != nil || p < oldStart {
			// older than anything retained
			return nil
		}
		cur.put(p, v, true)
		stats[name] = cur.render()
		return nil
	}

	cur.updated = updated
	stats[name] = cur.render()
	return nil
}

// applyOverall adds value to the all-time total for name.
func applyOverall(doc document.Document, name string, value float64, now time.Time) {
	stats := group(doc, GroupOverall)
	total := decimal.NewFromFloat(value)
	if raw, ok := document.AsMap(stats[name]); ok {
		total = total.Add(document.Decimal(raw[FieldValue]))
	}
	stats[name] = map[string]interface{}{
		FieldLastUpdateTime: now.UnixMilli(),
		FieldValue:          total.InexactFloat64(),
	}
}
