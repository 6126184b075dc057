package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

// UpdateCall records one Update or BatchUpdate invocation.
type UpdateCall struct {
	Collection string
	IDs        []string
	Fields     map[string]any
}

// Mock is an in-memory Store with error injection and call tracking.
type Mock struct {
	mu sync.Mutex

	collections map[string][]record.Record

	// Error injection
	ListErr        error
	QueryErr       error
	UpdateErrors   map[string]error // keyed by document id
	BatchUpdateErr error

	// Call tracking
	ListCalls        []string
	QueryCalls       []string
	UpdateCalls      []UpdateCall
	BatchUpdateCalls []UpdateCall

	// Hook called before each batch update is applied
	BeforeBatchUpdate func(collection string, ids []string) error
}

// NewMock creates an empty mock store.
func NewMock() *Mock {
	return &Mock{
		collections:  make(map[string][]record.Record),
		UpdateErrors: make(map[string]error),
	}
}

// Add appends documents to collection.
func (m *Mock) Add(collection string, records ...record.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.collections[collection] = append(m.collections[collection], r.Clone())
	}
}

// Doc returns a copy of one document.
func (m *Mock) Doc(collection, id string) (record.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(collection, id)
	if i < 0 {
		return record.Record{}, false
	}
	return m.collections[collection][i].Clone(), true
}

// UpdatedIDs returns every id written through Update or BatchUpdate, in
// call order.
func (m *Mock) UpdatedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, c := range m.UpdateCalls {
		ids = append(ids, c.IDs...)
	}
	for _, c := range m.BatchUpdateCalls {
		ids = append(ids, c.IDs...)
	}
	return ids
}

// TotalWriteCalls counts Update and BatchUpdate calls.
func (m *Mock) TotalWriteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.UpdateCalls) + len(m.BatchUpdateCalls)
}

func (m *Mock) indexOf(collection, id string) int {
	for i, r := range m.collections[collection] {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (m *Mock) List(ctx context.Context, collection string) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls = append(m.ListCalls, collection)
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]record.Record, 0, len(m.collections[collection]))
	for _, r := range m.collections[collection] {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *Mock) Query(ctx context.Context, collection, field string, value any) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCalls = append(m.QueryCalls, collection+"."+field)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []record.Record
	for _, r := range m.collections[collection] {
		if reflect.DeepEqual(r.Fields[field], value) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *Mock) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{Collection: collection, IDs: []string{id}, Fields: fields})
	if err := m.UpdateErrors[id]; err != nil {
		return err
	}
	i := m.indexOf(collection, id)
	if i < 0 {
		return &NotFoundError{Path: collection + "/" + id}
	}
	for k, v := range fields {
		m.collections[collection][i].Fields[k] = v
	}
	return nil
}

// BatchUpdate applies all writes or none.
func (m *Mock) BatchUpdate(ctx context.Context, collection string, ids []string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchUpdateCalls = append(m.BatchUpdateCalls, UpdateCall{
		Collection: collection,
		IDs:        append([]string(nil), ids...),
		Fields:     fields,
	})
	if m.BeforeBatchUpdate != nil {
		if err := m.BeforeBatchUpdate(collection, ids); err != nil {
			return err
		}
	}
	if m.BatchUpdateErr != nil {
		return m.BatchUpdateErr
	}

	idx := make([]int, len(ids))
	for n, id := range ids {
		if err := m.UpdateErrors[id]; err != nil {
			return fmt.Errorf("batch update %s: %w", id, err)
		}
		i := m.indexOf(collection, id)
		if i < 0 {
			return &NotFoundError{Path: collection + "/" + id}
		}
		idx[n] = i
	}
	for _, i := range idx {
		for k, v := range fields {
			m.collections[collection][i].Fields[k] = v
		}
	}
	return nil
}
