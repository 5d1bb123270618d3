// Package store is the document store adapter: CRUD over named tables of
// JSON-like items keyed by their "id" attribute.
package store

import (
	"context"
	"errors"
	"fmt"
)

// KeyAttribute is the storage key of every item.
const KeyAttribute = "id"

var (
	// ErrNotFound is returned by Get and Update when no item has the key.
	ErrNotFound = errors.New("store: item not found")
	// ErrConditionFailed is returned by PutIfAbsent when the key or the
	// unique attribute value is already taken.
	ErrConditionFailed = errors.New("store: conditional check failed")
	// ErrKeyImmutable is returned by Update when fields contain the key.
	ErrKeyImmutable = errors.New("store: key attribute cannot be updated")
)

// Item is one stored document. Values are JSON primitives (string, bool,
// float64, nil).
type Item map[string]any

// Key returns the item's storage key.
func (i Item) Key() (string, error) {
	key, ok := i[KeyAttribute].(string)
	if !ok || key == "" {
		return "", fmt.Errorf("store: item has no %q attribute", KeyAttribute)
	}
	return key, nil
}

// String returns attr as a string, or "" when absent or not a string.
func (i Item) String(attr string) string {
	s, _ := i[attr].(string)
	return s
}

func (i Item) clone() Item {
	out := make(Item, len(i))
	for k, v := range i {
		out[k] = v
	}
	return out
}

// Filter selects items whose string attributes equal every given value.
// An empty filter matches all items.
type Filter map[string]string

// Matches reports whether item satisfies every condition of f.
func (f Filter) Matches(item Item) bool {
	for attr, want := range f {
		got, ok := item[attr].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// DocumentStore is the persistence collaborator consumed by the repositories.
type DocumentStore interface {
	// Scan returns every item of table matching filter.
	Scan(ctx context.Context, table string, filter Filter) ([]Item, error)
	// Get returns the item stored under key, or ErrNotFound.
	Get(ctx context.Context, table, key string) (Item, error)
	// PutIfAbsent writes item only if its key is unused and, when uniqueAttr
	// is set, no other item carries the same uniqueAttr value.
	PutIfAbsent(ctx context.Context, table string, item Item, uniqueAttr string) error
	// Update merges fields into the stored item and returns the result.
	Update(ctx context.Context, table, key string, fields Item) (Item, error)
	// Ping checks backend reachability.
	Ping(ctx context.Context) error
}

func checkUpdateFields(fields Item) error {
	if _, ok := fields[KeyAttribute]; ok {
		return ErrKeyImmutable
	}
	return nil
}

func uniqueValue(item Item, uniqueAttr string) (string, bool) {
	if uniqueAttr == "" || uniqueAttr == KeyAttribute {
		return "", false
	}
	v, ok := item[uniqueAttr].(string)
	return v, ok
}
