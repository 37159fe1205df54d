package repository

import (
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"context"
	"fmt"
)

type LeaderboardRepository struct {
	Store docstore.Store
}

func NewLeaderboardRepository(store docstore.Store) *LeaderboardRepository {
	return &LeaderboardRepository{Store: store}
}

// Entries indexes leaderboard documents by the user they belong to.
func (r *LeaderboardRepository) Entries(ctx context.Context) (map[string]docstore.Document, error) {
	byUser, _, err := r.Index(ctx)
	return byUser, err
}

// Index is Entries plus the documents it had to pass over. Older entries
// were keyed by random ids, so userId wins over the doc id and a doc keyed
// by the user id wins over any auto-id doc for the same user. Every other
// doc for that user is returned as a duplicate.
func (r *LeaderboardRepository) Index(ctx context.Context) (map[string]docstore.Document, []docstore.Document, error) {
	docs, err := r.Store.Collection(ctx, util.CollectionLeaderboard)
	if err != nil {
		return nil, nil, fmt.Errorf("load leaderboard: %w", err)
	}
	byUser := make(map[string]docstore.Document, len(docs))
	var duplicates []docstore.Document
	for _, d := range docs {
		uid, _ := docstore.AsString(d.Data["userId"])
		if uid == "" {
			uid = d.ID
		}
		existing, ok := byUser[uid]
		switch {
		case !ok:
			byUser[uid] = d
		case existing.ID != uid && d.ID == uid:
			duplicates = append(duplicates, existing)
			byUser[uid] = d
		default:
			duplicates = append(duplicates, d)
		}
	}
	return byUser, duplicates, nil
}

// Usernames indexes the usernames collection by its lowercase key.
func (r *LeaderboardRepository) Usernames(ctx context.Context) (map[string]docstore.Document, error) {
	docs, err := r.Store.Collection(ctx, util.CollectionUsernames)
	if err != nil {
		return nil, fmt.Errorf("load usernames: %w", err)
	}
	byKey := make(map[string]docstore.Document, len(docs))
	for _, d := range docs {
		byKey[d.ID] = d
	}
	return byKey, nil
}
