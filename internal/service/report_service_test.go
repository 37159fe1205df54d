package service

import (
	"codequest_admin/internal/repository"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissionReportGroupsByType(t *testing.T) {
	store := seedWorld()
	store.Seed(util.CollectionMissions, docstore.Document{ID: "m4", Data: map[string]interface{}{"name": "Sin tipo"}})
	svc := NewMissionReportService(repository.NewCatalogRepository(store), repository.NewUserRepository(store))

	report, err := svc.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, []string{"m4"}, report.MissingOrder)
	assert.Equal(t, []string{"m1"}, report.Battle)

	counts := make(map[string]int)
	for _, g := range report.ByType {
		counts[g.Type] = g.Count
	}
	assert.Equal(t, map[string]int{"batalla": 1, "teoria": 2, "unspecified": 1}, counts)
	assert.Equal(t, "teoria", report.ByType[0].Type)
}

func TestAvailabilityExplainsLockedMissions(t *testing.T) {
	store := seedWorld()
	store.Seed(util.CollectionMissions, docstore.Document{ID: "m5", Data: map[string]interface{}{
		"name": "Avanzada", "order": 5, "levelRequired": 3,
		"requirements": map[string]interface{}{"completedMissionId": "m2"},
	}})
	svc := NewMissionReportService(repository.NewCatalogRepository(store), repository.NewUserRepository(store))

	report, err := svc.Availability(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Level)

	byID := make(map[string]MissionAvailability)
	for _, m := range report.Missions {
		byID[m.ID] = m
	}
	assert.True(t, byID["m1"].Unlocked)
	assert.True(t, byID["m1"].Completed)
	assert.True(t, byID["m2"].Unlocked)
	assert.False(t, byID["m5"].Unlocked)
	assert.Equal(t, []string{"level 2 below required 3", "requires mission m2"}, byID["m5"].Reasons)
}

func TestConsistencyReport(t *testing.T) {
	ctx := context.Background()
	store := seedWorld()
	store.Seed(util.CollectionLeaderboard,
		docstore.Document{ID: "u1", Data: map[string]interface{}{"userId": "u1", "score": 2400}},
		docstore.Document{ID: "u2", Data: map[string]interface{}{"userId": "u2", "score": 1}},
		docstore.Document{ID: "gone", Data: map[string]interface{}{"userId": "gone", "score": 5}},
		docstore.Document{ID: "Old1auto", Data: map[string]interface{}{"userId": "u1", "score": 7}},
	)
	store.Seed(util.CollectionUsernames, docstore.Document{ID: "ana", Data: map[string]interface{}{"uid": "u1", "username": "Ana"}})

	svc := NewConsistencyService(repository.NewUserRepository(store), repository.NewLeaderboardRepository(store))
	report, err := svc.Check(ctx)
	require.NoError(t, err)

	assert.False(t, report.Consistent())
	assert.Equal(t, []string{"u3"}, report.UsersWithoutLeaderboard)
	assert.Equal(t, []string{"gone"}, report.LeaderboardWithoutUser)
	assert.Equal(t, []string{"u2"}, report.UsersWithoutUsernameEntry)
	require.Len(t, report.StaleScores, 1)
	assert.Equal(t, "u2", report.StaleScores[0].UserID)
	assert.Equal(t, 1400, report.StaleScores[0].Score)
	assert.Equal(t, []string{"Old1auto"}, report.DuplicateEntries)

	_, err = newLeaderboardService(store, nil).Sync(ctx, false)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, []docstore.Op{docstore.Delete(util.CollectionLeaderboard, "gone")}))

	report, err = svc.Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}
