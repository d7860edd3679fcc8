// Package storetest provides an in-memory record backend for tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smallbiznis/payrelay/internal/recordstore/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

// Memory is a thread-safe Backend that counts calls and can be told to fail.
type Memory struct {
	mu      sync.Mutex
	kind    tenantdomain.RecordBackend
	data    map[string]map[string]map[string]any
	nextID  int
	now     time.Time
	failOps map[string]error

	Gets    int
	Inserts int
	Updates int
	Queries int
}

func NewMemory(kind tenantdomain.RecordBackend) *Memory {
	return &Memory{
		kind:    kind,
		data:    make(map[string]map[string]map[string]any),
		now:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		failOps: make(map[string]error),
	}
}

// FailOn makes every subsequent call to op ("get", "insert", "update", "query") return err.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOps[op] = err
}

// Seed stores a record verbatim.
func (m *Memory) Seed(collection, id string, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(collection)[id] = clone(fields)
}

// Records returns a snapshot of a collection keyed by id.
func (m *Memory) Records(collection string) map[string]map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]map[string]any)
	for id, doc := range m.data[collection] {
		out[id] = clone(doc)
	}
	return out
}

// Calls returns the total number of backend calls.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Gets + m.Inserts + m.Updates + m.Queries
}

func (m *Memory) Kind() tenantdomain.RecordBackend { return m.kind }

func (m *Memory) Get(_ context.Context, collection, id string) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if err := m.failOps["get"]; err != nil {
		return nil, err
	}
	doc, ok := m.data[collection][id]
	if !ok {
		return nil, nil
	}
	return &domain.Record{ID: id, Fields: clone(doc)}, nil
}

func (m *Memory) Insert(_ context.Context, collection string, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inserts++
	if err := m.failOps["insert"]; err != nil {
		return "", err
	}
	m.nextID++
	id := fmt.Sprintf("%s_%d", collection, m.nextID)
	m.bucket(collection)[id] = domain.ResolveServerTime(fields, domain.FormatServerTime(m.now))
	return id, nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates++
	if err := m.failOps["update"]; err != nil {
		return err
	}
	doc, ok := m.data[collection][id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	for k, v := range domain.ResolveServerTime(fields, domain.FormatServerTime(m.now)) {
		doc[k] = v
	}
	return nil
}

func (m *Memory) Query(_ context.Context, collection, field string, value any) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries++
	if err := m.failOps["query"]; err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0)
	for id, doc := range m.data[collection] {
		if domain.FieldEquals(doc[field], value) {
			out = append(out, domain.Record{ID: id, Fields: clone(doc)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) bucket(collection string) map[string]map[string]any {
	b, ok := m.data[collection]
	if !ok {
		b = make(map[string]map[string]any)
		m.data[collection] = b
	}
	return b
}

func clone(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ domain.Backend = (*Memory)(nil)
