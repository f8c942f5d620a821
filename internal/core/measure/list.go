package measure

import (
	"encoding/json"
	"fmt"

	"github.com/aevon-lab/aggindex/internal/core/document"
)

const (
	listCount = "__count_internal__"
	listValue = "value"
)

// List keeps the distinct source values seen across contributors, each with
// an occurrence counter. Entries are dropped when their counter reaches zero.
// identity is a dot path into object values; empty compares whole values.
//
// Object values carry their counter inline; scalar values are stored as
// {"value": v, "__count_internal__": n}.
func List(name, source, identity string) Measure {
	if source == "" {
		source = name
	}
	return listMeasure{field: field{name, source}, identity: identity}
}

type listMeasure struct {
	field
	identity string
}

type listEntry struct {
	id    string
	value interface{}
	count int64
}

func (m listMeasure) AggregateFields() []string { return []string{m.name} }

// key derives the identity of a raw source value or a stored entry value.
func (m listMeasure) key(v interface{}) string {
	if obj, ok := document.AsMap(v); ok {
		if m.identity != "" {
			if id, ok := document.Document(obj).Get(m.identity); ok {
				return canonical(id)
			}
		}
		stripped := make(map[string]interface{}, len(obj))
		for k, item := range obj {
			if k != listCount {
				stripped[k] = item
			}
		}
		return canonical(stripped)
	}
	return canonical(v)
}

func canonical(v interface{}) string {
	if document.IsNumber(v) {
		return "n:" + document.Decimal(v).String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}

func (m listMeasure) read(agg document.Document) []listEntry {
	raw, ok := agg.Get(m.name)
	if !ok {
		return nil
	}
	items, _ := raw.([]interface{})
	entries := make([]listEntry, 0, len(items))
	for _, item := range items {
		obj, ok := document.AsMap(item)
		if !ok {
			entries = append(entries, listEntry{id: m.key(item), value: item, count: 1})
			continue
		}
		count := document.Int64(obj[listCount])
		if count <= 0 {
			count = 1
		}
		value := interface{}(obj)
		if inner, wrapped := obj[listValue]; wrapped && len(obj) == 2 {
			if _, counted := obj[listCount]; counted {
				value = inner
			}
		}
		entries = append(entries, listEntry{id: m.key(value), value: value, count: count})
	}
	return entries
}

func (m listMeasure) values(doc document.Document) []interface{} {
	raw, ok := doc.Get(m.field.source)
	if !ok || raw == nil {
		return nil
	}
	if items, ok := raw.([]interface{}); ok {
		return items
	}
	return []interface{}{raw}
}

func (m listMeasure) increment(entries []listEntry, v interface{}) []listEntry {
	id := m.key(v)
	for i := range entries {
		if entries[i].id == id {
			entries[i].count++
			return entries
		}
	}
	return append(entries, listEntry{id: id, value: document.DeepCopy(v), count: 1})
}

func (m listMeasure) decrement(entries []listEntry, v interface{}) []listEntry {
	id := m.key(v)
	for i := range entries {
		if entries[i].id == id {
			entries[i].count--
			if entries[i].count <= 0 {
				return append(entries[:i], entries[i+1:]...)
			}
			return entries
		}
	}
	return entries
}

func renderList(entries []listEntry) []interface{} {
	out := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		if obj, ok := document.AsMap(e.value); ok {
			item := make(map[string]interface{}, len(obj)+1)
			for k, v := range obj {
				item[k] = v
			}
			item[listCount] = e.count
			out = append(out, item)
			continue
		}
		out = append(out, map[string]interface{}{listValue: e.value, listCount: e.count})
	}
	return out
}

func (m listMeasure) OnAdd(agg, added document.Document) interface{} {
	entries := m.read(agg)
	for _, v := range m.values(added) {
		entries = m.increment(entries, v)
	}
	return renderList(entries)
}

func (m listMeasure) OnRemove(agg, removed document.Document) interface{} {
	entries := m.read(agg)
	for _, v := range m.values(removed) {
		entries = m.decrement(entries, v)
	}
	return renderList(entries)
}

// OnUpdate runs the full decrement pass before the increment pass.
func (m listMeasure) OnUpdate(agg, previous, updated document.Document) interface{} {
	entries := m.read(agg)
	for _, v := range m.values(previous) {
		entries = m.decrement(entries, v)
	}
	for _, v := range m.values(updated) {
		entries = m.increment(entries, v)
	}
	return renderList(entries)
}
