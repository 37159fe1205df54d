package database

import (
	"codequest_admin/internal/config"
	"codequest_admin/pkg/docstore"
	"codequest_admin/pkg/logger"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// FirestoreStore adapts a Firestore client to docstore.Store.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// InitFirestore opens the configured document store. The memory driver
// is seeded from cfg.SeedDir when set.
func InitFirestore(ctx context.Context, cfg *config.FirestoreConfig) (docstore.Store, error) {
	if cfg.Driver == "memory" {
		store := docstore.NewMemoryStore()
		if cfg.SeedDir != "" {
			n, err := SeedFromDir(store, cfg.SeedDir)
			if err != nil {
				return nil, err
			}
			logger.Log.Info("memory store seeded", zap.String("dir", cfg.SeedDir), zap.Int("collections", n))
		}
		return store, nil
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}

	logger.Log.Info("Firestore connection established", zap.String("project", cfg.ProjectID))
	return NewFirestoreStore(client), nil
}

func (s *FirestoreStore) Collection(ctx context.Context, name string) ([]docstore.Document, error) {
	iter := s.client.Collection(name).Documents(ctx)
	defer iter.Stop()

	var docs []docstore.Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		docs = append(docs, docstore.Document{ID: snap.Ref.ID, Data: fromFirestore(snap.Data())})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if docstore.IsNotFound(err) {
			return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
		}
		return docstore.Document{}, err
	}
	return docstore.Document{ID: snap.Ref.ID, Data: fromFirestore(snap.Data())}, nil
}

// Commit writes ops in a single WriteBatch.
func (s *FirestoreStore) Commit(ctx context.Context, ops []docstore.Op) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > docstore.MaxBatchOps {
		return fmt.Errorf("%d ops: %w", len(ops), docstore.ErrInvalidBatch)
	}

	batch := s.client.Batch()
	for _, op := range ops {
		if op.Collection == "" || op.ID == "" {
			return fmt.Errorf("%s %q/%q: %w", op.Kind, op.Collection, op.ID, docstore.ErrInvalidPath)
		}
		ref := s.client.Collection(op.Collection).Doc(op.ID)
		switch op.Kind {
		case docstore.OpSet:
			batch.Set(ref, toFirestoreMap(op.Data))
		case docstore.OpUpdate:
			paths := docstore.SortedFieldPaths(op.Data)
			updates := make([]firestore.Update, 0, len(paths))
			for _, p := range paths {
				updates = append(updates, firestore.Update{Path: p, Value: toFirestore(op.Data[p])})
			}
			batch.Update(ref, updates)
		case docstore.OpDelete:
			batch.Delete(ref)
		default:
			return fmt.Errorf("op kind %d: %w", op.Kind, docstore.ErrInvalidBatch)
		}
	}

	_, err := batch.Commit(ctx)
	if docstore.IsNotFound(err) {
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	}
	return err
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func toFirestoreMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = toFirestore(v)
	}
	return out
}

func toFirestore(v interface{}) interface{} {
	switch t := v.(type) {
	case docstore.ArrayUnionValue:
		return firestore.ArrayUnion(t.Values...)
	case map[string]interface{}:
		return toFirestoreMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, x := range t {
			out[i] = toFirestore(x)
		}
		return out
	}
	switch {
	case docstore.IsDeleteField(v):
		return firestore.Delete
	case docstore.IsServerTimestamp(v):
		return firestore.ServerTimestamp
	}
	return v
}

// fromFirestore flattens document references to their ids.
func fromFirestore(v interface{}) map[string]interface{} {
	m, _ := plainValue(v).(map[string]interface{})
	return m
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *firestore.DocumentRef:
		if t == nil {
			return nil
		}
		return t.ID
	case map[string]interface{}:
		for k, x := range t {
			t[k] = plainValue(x)
		}
		return t
	case []interface{}:
		for i, x := range t {
			t[i] = plainValue(x)
		}
		return t
	}
	return v
}

// SeedFromDir loads every <collection>.json file of dir into the store
// and returns the number of collections read.
func SeedFromDir(store *docstore.MemoryStore, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read seed dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		collection, ok := docstore.CollectionFromFile(e.Name())
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, err
		}
		records, err := docstore.DecodeRecords(data, docstore.FormatJSON)
		if err != nil {
			return n, fmt.Errorf("%s: %w", e.Name(), err)
		}
		docs := make([]docstore.Document, 0, len(records))
		for _, r := range records {
			if d, ok := docstore.SplitID(r); ok {
				docs = append(docs, d)
			}
		}
		store.Seed(collection, docs...)
		n++
	}
	return n, nil
}
