package store

import (
	"context"
	"sync"
)

// MemoryStore keeps tables in process memory. It backs local development and
// tests; all operations are serialized by a single mutex so PutIfAbsent is
// atomic.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]*memoryTable
}

type memoryTable struct {
	items map[string]Item
	order []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*memoryTable)}
}

func (m *MemoryStore) table(name string) *memoryTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memoryTable{items: make(map[string]Item)}
		m.tables[name] = t
	}
	return t
}

// Scan returns matching items in insertion order.
func (m *MemoryStore) Scan(ctx context.Context, table string, filter Filter) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	result := make([]Item, 0)
	for _, key := range t.order {
		item := t.items[key]
		if filter.Matches(item) {
			result = append(result, item.clone())
		}
	}
	return result, nil
}

func (m *MemoryStore) Get(ctx context.Context, table, key string) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.table(table).items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return item.clone(), nil
}

func (m *MemoryStore) PutIfAbsent(ctx context.Context, table string, item Item, uniqueAttr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := item.Key()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	if _, exists := t.items[key]; exists {
		return ErrConditionFailed
	}
	if value, ok := uniqueValue(item, uniqueAttr); ok {
		for _, existing := range t.items {
			if existing.String(uniqueAttr) == value {
				return ErrConditionFailed
			}
		}
	}
	t.items[key] = item.clone()
	t.order = append(t.order, key)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, table, key string, fields Item) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkUpdateFields(fields); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	item, ok := t.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	updated := item.clone()
	for k, v := range fields {
		updated[k] = v
	}
	t.items[key] = updated
	return updated.clone(), nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
