// Package docstore is the narrow document-store contract the reconciler
// talks to. Firestore implements it in production and MemoryStore in tests.
package docstore

import (
	"context"
	"sort"
)

// Document is one record of a collection. Data holds the raw field tree
// exactly as the store returned it.
type Document struct {
	ID   string                 `json:"id"`
	Data map[string]interface{} `json:"data"`
}

type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Op is a single write. For OpUpdate the keys of Data are dotted field
// paths ("battleConfig.enemyId"); for OpSet Data replaces the document.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Data       map[string]interface{}
}

func Set(collection, id string, data map[string]interface{}) Op {
	return Op{Kind: OpSet, Collection: collection, ID: id, Data: data}
}

func Update(collection, id string, fields map[string]interface{}) Op {
	return Op{Kind: OpUpdate, Collection: collection, ID: id, Data: fields}
}

func Delete(collection, id string) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id}
}

// Store reads whole collections and commits groups of writes atomically.
// Collection names may address subcollections ("user_achievements/u1/achievements").
type Store interface {
	Collection(ctx context.Context, name string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Commit(ctx context.Context, ops []Op) error
	Close() error
}

type deleteField struct{}

type serverTimestamp struct{}

// DeleteField removes the field when used as an update value.
var DeleteField interface{} = deleteField{}

// ServerTimestamp is replaced by the commit time of the store.
var ServerTimestamp interface{} = serverTimestamp{}

// ArrayUnionValue appends the values that are not yet present in the
// target array field.
type ArrayUnionValue struct {
	Values []interface{}
}

func ArrayUnion(values ...interface{}) ArrayUnionValue {
	return ArrayUnionValue{Values: values}
}

func IsDeleteField(v interface{}) bool {
	_, ok := v.(deleteField)
	return ok
}

func IsServerTimestamp(v interface{}) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// SortedFieldPaths returns the keys of an update map in a stable order.
func SortedFieldPaths(fields map[string]interface{}) []string {
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
