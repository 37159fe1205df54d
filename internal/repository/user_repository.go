package repository

import (
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"context"
	"fmt"
)

type UserRepository struct {
	Store docstore.Store
}

func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{Store: store}
}

func (r *UserRepository) List(ctx context.Context) ([]docstore.Document, error) {
	docs, err := r.Store.Collection(ctx, util.CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return docs, nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (docstore.Document, error) {
	doc, err := r.Store.Get(ctx, util.CollectionUsers, id)
	if docstore.IsNotFound(err) {
		return docstore.Document{}, fmt.Errorf("%s: %w", id, util.ErrUserNotFound)
	}
	return doc, err
}

// UnlockRecordIDs returns the achievement ids that already have an unlock
// record in the user's subcollection.
func (r *UserRepository) UnlockRecordIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	docs, err := r.Store.Collection(ctx, util.UnlocksCollection(userID))
	if err != nil {
		return nil, fmt.Errorf("load unlocks of %s: %w", userID, err)
	}
	ids := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		ids[d.ID] = struct{}{}
	}
	return ids, nil
}
