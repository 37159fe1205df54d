package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/repository"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLeaderboardService(store docstore.Store, cache *repository.LeaderboardCache) *LeaderboardService {
	return NewLeaderboardService(
		repository.NewUserRepository(store),
		repository.NewLeaderboardRepository(store),
		cache,
		store,
		testWrites(),
		"",
	)
}

func TestLeaderboardSyncCreatesEntriesAndUsernames(t *testing.T) {
	ctx := context.Background()
	store := seedWorld()
	svc := newLeaderboardService(store, nil)

	report, err := svc.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Users)
	assert.Equal(t, 3, report.EntriesWritten)
	assert.Equal(t, 3, report.ScoresUpdated)
	assert.Equal(t, 2, report.UsernamesCreated)

	u1, err := store.Get(ctx, util.CollectionLeaderboard, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2400, u1.Data["score"])
	assert.Equal(t, "Ana", u1.Data["username"])
	assert.Equal(t, "ana@example.com", u1.Data["displayName"])
	assert.Equal(t, fixedNow, u1.Data["lastUpdated"])

	u3, err := store.Get(ctx, util.CollectionLeaderboard, "u3")
	require.NoError(t, err)
	assert.Equal(t, "Usuario", u3.Data["username"])
	assert.Equal(t, "u3", u3.Data["displayName"])

	name, err := store.Get(ctx, util.CollectionUsernames, "ana")
	require.NoError(t, err)
	assert.Equal(t, "u1", name.Data["uid"])

	again, err := svc.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.EntriesWritten)
}

func TestLeaderboardSyncRekeysAutoIDEntries(t *testing.T) {
	ctx := context.Background()
	store := seedWorld()
	store.Seed(util.CollectionLeaderboard, docstore.Document{ID: "Xy12auto", Data: map[string]interface{}{
		"userId": "u2", "username": "beto", "score": 10,
	}})

	report, err := newLeaderboardService(store, nil).Sync(ctx, false)
	require.NoError(t, err)

	_, err = store.Get(ctx, util.CollectionLeaderboard, "Xy12auto")
	assert.True(t, docstore.IsNotFound(err))
	entry, err := store.Get(ctx, util.CollectionLeaderboard, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1000+400, entry.Data["score"])

	var change *ScoreChange
	for i := range report.Changes {
		if report.Changes[i].UserID == "u2" {
			change = &report.Changes[i]
		}
	}
	require.NotNil(t, change)
	require.NotNil(t, change.Previous)
	assert.Equal(t, 10, *change.Previous)
}

func TestLeaderboardTopUsesCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := seedWorld()
	cache := repository.NewLeaderboardCache(rdb, "test:lb")
	svc := newLeaderboardService(store, cache)

	report, err := svc.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Cached)

	top, err := svc.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "u1", top[0].UserID)
	assert.Equal(t, 2400, top[0].Score)
	assert.Equal(t, "u2", top[1].UserID)

	// Without Redis the same order comes from Firestore.
	fromStore, err := newLeaderboardService(store, nil).Top(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, top[0].UserID, fromStore[0].UserID)
	assert.Equal(t, top[1].Score, fromStore[1].Score)
}

func TestLeaderboardDryRun(t *testing.T) {
	store := seedWorld()
	report, err := newLeaderboardService(store, nil).Sync(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, report.EntriesWritten)
	assert.Equal(t, 0, store.Commits())
}

func TestLeaderboardSyncRemovesDuplicateEntries(t *testing.T) {
	ctx := context.Background()
	store := seedWorld()
	store.Seed(util.CollectionLeaderboard,
		docstore.Document{ID: "u2", Data: map[string]interface{}{"userId": "u2", "username": "beto", "score": 1400}},
		docstore.Document{ID: "Xy12auto", Data: map[string]interface{}{"userId": "u2", "username": "beto", "score": 10}},
	)
	svc := newLeaderboardService(store, nil)

	report, err := svc.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DuplicatesFound)
	assert.Equal(t, 1, report.DuplicatesRemoved)

	_, err = store.Get(ctx, util.CollectionLeaderboard, "Xy12auto")
	assert.True(t, docstore.IsNotFound(err))
	_, err = store.Get(ctx, util.CollectionLeaderboard, "u2")
	require.NoError(t, err)

	again, err := svc.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.DuplicatesFound)
}

func TestLeaderboardSyncUsernameCaseCollision(t *testing.T) {
	ctx := context.Background()
	store := seedWorld()
	store.Seed(util.CollectionUsers, docstore.Document{ID: "u4", Data: map[string]interface{}{
		"username": "ANA", "level": 1,
	}})

	report, err := newLeaderboardService(store, nil).Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.UsernamesCreated)

	name, err := store.Get(ctx, util.CollectionUsernames, "ana")
	require.NoError(t, err)
	assert.Equal(t, "u1", name.Data["uid"])

	var conflicts []model.Issue
	for _, is := range report.Issues {
		if is.Kind == model.UsernameConflict {
			conflicts = append(conflicts, is)
		}
	}
	require.Len(t, conflicts, 1)
	assert.Equal(t, "u4", conflicts[0].RecordID)
	assert.Equal(t, model.SeverityWarning, conflicts[0].Severity)
}
