package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps collections in process. Commits are all-or-nothing and
// an Update on a missing document fails the whole batch, as in Firestore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	closed      bool
	commits     int

	// Now stamps ServerTimestamp values.
	Now func() time.Time
	// BeforeCommit, when set, may reject a batch before it is applied.
	BeforeCommit func(ops []Op) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]interface{}),
		Now:         time.Now,
	}
}

// Seed inserts documents directly, bypassing sentinels and hooks.
func (s *MemoryStore) Seed(collection string, docs ...Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(collection)
	for _, d := range docs {
		coll[d.ID] = CloneMap(d.Data)
	}
}

func (s *MemoryStore) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

func (s *MemoryStore) collection(name string) map[string]map[string]interface{} {
	coll, ok := s.collections[name]
	if !ok {
		coll = make(map[string]map[string]interface{})
		s.collections[name] = coll
	}
	return coll
}

func (s *MemoryStore) Collection(ctx context.Context, name string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	coll := s.collections[name]
	docs := make([]Document, 0, len(coll))
	for id, data := range coll {
		docs = append(docs, Document{ID: id, Data: CloneMap(data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Document{}, ErrStoreClosed
	}
	data, ok := s.collections[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return Document{ID: id, Data: CloneMap(data)}, nil
}

func (s *MemoryStore) Commit(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.BeforeCommit != nil {
		if err := s.BeforeCommit(ops); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	// Stage changes on copies of the touched documents, then swap them in.
	type key struct{ coll, id string }
	staged := make(map[key]map[string]interface{})
	now := s.Now()

	current := func(k key) (map[string]interface{}, bool) {
		if d, ok := staged[k]; ok {
			return d, d != nil
		}
		d, ok := s.collections[k.coll][k.id]
		if !ok {
			return nil, false
		}
		return CloneMap(d), true
	}

	for _, op := range ops {
		if op.Collection == "" || op.ID == "" {
			return fmt.Errorf("%w: empty collection or id", ErrInvalidBatch)
		}
		k := key{op.Collection, op.ID}
		switch op.Kind {
		case OpSet:
			doc := make(map[string]interface{}, len(op.Data))
			for field, v := range op.Data {
				if IsDeleteField(v) {
					continue
				}
				doc[field] = resolveValue(v, nil, now)
			}
			staged[k] = doc
		case OpUpdate:
			doc, ok := current(k)
			if !ok {
				return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, ErrNotFound)
			}
			for _, path := range SortedFieldPaths(op.Data) {
				if err := applyUpdate(doc, path, op.Data[path], now); err != nil {
					return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, err)
				}
			}
			staged[k] = doc
		case OpDelete:
			staged[k] = nil
		default:
			return fmt.Errorf("%w: unknown op kind %d", ErrInvalidBatch, op.Kind)
		}
	}

	for k, doc := range staged {
		if doc == nil {
			delete(s.collection(k.coll), k.id)
			continue
		}
		s.collection(k.coll)[k.id] = doc
	}
	s.commits++
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func applyUpdate(doc map[string]interface{}, path string, value interface{}, now time.Time) error {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	parent := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := AsMap(parent[p])
		if !ok {
			if IsDeleteField(value) {
				return nil
			}
			next = make(map[string]interface{})
			parent[p] = next
		}
		parent = next
	}
	leaf := parts[len(parts)-1]
	if IsDeleteField(value) {
		delete(parent, leaf)
		return nil
	}
	parent[leaf] = resolveValue(value, parent[leaf], now)
	return nil
}

func resolveValue(v, existing interface{}, now time.Time) interface{} {
	switch t := v.(type) {
	case serverTimestamp:
		return now
	case ArrayUnionValue:
		items, _ := AsSlice(existing)
		out := make([]interface{}, 0, len(items)+len(t.Values))
		out = append(out, items...)
		for _, val := range t.Values {
			found := false
			for _, it := range out {
				if Equal(it, val) {
					found = true
					break
				}
			}
			if !found {
				out = append(out, val)
			}
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, x := range t {
			if IsDeleteField(x) {
				continue
			}
			out[k] = resolveValue(x, nil, now)
		}
		return out
	}
	return Clone(v)
}
