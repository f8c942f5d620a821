package store

import (
	"context"
	"net/http"
	"sync"

	"github.com/aevon-lab/aggindex/internal/core/document"
)

// Memory is an in-process Store. Indices are created implicitly on first
// write, as the engine does with dynamic index creation enabled.
type Memory struct {
	mu      sync.RWMutex
	indices map[string]*memoryIndex
}

type memoryIndex struct {
	body map[string]interface{}
	docs map[string]memoryDoc
}

type memoryDoc struct {
	source  document.Document
	version int64
}

func NewMemory() *Memory {
	return &Memory{indices: make(map[string]*memoryIndex)}
}

func docKey(typ, id string) string { return typ + "/" + id }

func (m *Memory) lookup(index, typ, id string) (memoryDoc, bool) {
	ix, ok := m.indices[index]
	if !ok {
		return memoryDoc{}, false
	}
	d, ok := ix.docs[docKey(typ, id)]
	return d, ok
}

func (m *Memory) index(name string) *memoryIndex {
	ix, ok := m.indices[name]
	if !ok {
		ix = &memoryIndex{docs: make(map[string]memoryDoc)}
		m.indices[name] = ix
	}
	return ix
}

func (m *Memory) Get(_ context.Context, index, typ, id string) (document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.lookup(index, typ, id)
	if !ok {
		return nil, nil
	}
	return d.source.Clone(), nil
}

func (m *Memory) GetFields(_ context.Context, index, typ, id string, fields []string) (document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.lookup(index, typ, id)
	if !ok {
		return nil, nil
	}
	if len(fields) == 0 {
		return d.source.Clone(), nil
	}
	out := document.Document{}
	for _, f := range fields {
		if v, ok := d.source[f]; ok {
			out[f] = document.DeepCopy(v)
		}
	}
	return out, nil
}

func (m *Memory) Exists(_ context.Context, index, typ, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.lookup(index, typ, id)
	return ok, nil
}

func (m *Memory) Put(_ context.Context, index, typ, id string, doc document.Document) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ix := m.index(index)
	prev, existed := ix.docs[docKey(typ, id)]
	d := memoryDoc{source: doc.Clone(), version: prev.version + 1}
	if d.source == nil {
		d.source = document.Document{}
	}
	ix.docs[docKey(typ, id)] = d

	result, status := "created", http.StatusCreated
	if existed {
		result, status = "updated", http.StatusOK
	}
	return &Response{StatusCode: status, Index: index, Type: typ, ID: id, Version: d.version, Result: result}, nil
}

func (m *Memory) Update(_ context.Context, index, typ, id string, partial document.Document) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.lookup(index, typ, id)
	if !ok {
		return &Response{StatusCode: http.StatusNotFound, Index: index, Type: typ, ID: id}, nil
	}
	merged := d.source.Clone()
	mergeInto(merged, partial)
	d = memoryDoc{source: merged, version: d.version + 1}
	m.indices[index].docs[docKey(typ, id)] = d
	return &Response{StatusCode: http.StatusOK, Index: index, Type: typ, ID: id, Version: d.version, Result: "updated"}, nil
}

func (m *Memory) Delete(_ context.Context, index, typ, id string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.lookup(index, typ, id)
	if !ok {
		return &Response{StatusCode: http.StatusNotFound, Index: index, Type: typ, ID: id, Result: "not_found"}, nil
	}
	delete(m.indices[index].docs, docKey(typ, id))
	return &Response{StatusCode: http.StatusOK, Index: index, Type: typ, ID: id, Version: d.version + 1, Found: true, Result: "deleted"}, nil
}

func (m *Memory) CreateIndex(_ context.Context, name string, body map[string]interface{}) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ix := m.index(name)
	ix.body = document.DeepCopy(body).(map[string]interface{})
	return &Response{StatusCode: http.StatusOK, Index: name, Result: "created"}, nil
}

func (m *Memory) DeleteIndex(_ context.Context, name string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indices[name]; !ok {
		return &Response{StatusCode: http.StatusNotFound, Index: name}, nil
	}
	delete(m.indices, name)
	return &Response{StatusCode: http.StatusOK, Index: name, Result: "deleted"}, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// IndexBody returns the body an index was created with, or nil.
func (m *Memory) IndexBody(name string) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ix, ok := m.indices[name]
	if !ok || ix.body == nil {
		return nil
	}
	return document.DeepCopy(ix.body).(map[string]interface{})
}

var _ Store = (*Memory)(nil)
