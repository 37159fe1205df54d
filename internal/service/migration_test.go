package service

import (
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(store docstore.Store) *MigrationRunner {
	return NewMigrationRunner(store, testWrites(), DefaultMigrations(NewBattleNormalizer(nil)))
}

func TestMigrationRegistry(t *testing.T) {
	r := newRunner(docstore.NewMemoryStore())
	names := make([]string, 0, 3)
	for _, m := range r.List() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{MigrationBattleConfig, MigrationAchievementType, MigrationUserStats}, names)

	_, err := r.Run(context.Background(), "drop-everything", false)
	assert.True(t, errors.Is(err, util.ErrUnknownMigration))
}

func TestBattleConfigMigrationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := seedWorld()
	r := newRunner(store)

	report, err := r.Run(ctx, MigrationBattleConfig, false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, []string{"objectives"}, report.Changes[0].Fields)

	m1, err := store.Get(ctx, util.CollectionMissions, "m1")
	require.NoError(t, err)
	want := map[string]interface{}{
		"enemyId":     "e1",
		"questionIds": []interface{}{"q_basic_1", "q_basic_2", "q_basic_3"},
	}
	obj := m1.Data["objectives"].([]interface{})[0].(map[string]interface{})
	if diff := cmp.Diff(want, obj["battleConfig"]); diff != "" {
		t.Errorf("battleConfig mismatch (-want +got):\n%s", diff)
	}

	again, err := r.Run(ctx, MigrationBattleConfig, false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Changed)
}

func TestAchievementTypeMigration(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	store.Seed(util.CollectionAchievements,
		docstore.Document{ID: "legacy", Data: map[string]interface{}{"category": "battle", "achievementType": "battle"}},
		docstore.Document{ID: "no_ids", Data: map[string]interface{}{"category": "battle", "achievementType": "mission"}},
		docstore.Document{ID: "fine", Data: map[string]interface{}{"category": "battle", "achievementType": "mission", "requiredMissionIds": []interface{}{"m1"}}},
		docstore.Document{ID: "other", Data: map[string]interface{}{"category": "progress"}},
	)

	report, err := newRunner(store).Run(ctx, MigrationAchievementType, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Changed)

	legacy, _ := store.Get(ctx, util.CollectionAchievements, "legacy")
	assert.Equal(t, "mission", legacy.Data["achievementType"])
	assert.Equal(t, []interface{}{}, legacy.Data["requiredMissionIds"])

	noIDs, _ := store.Get(ctx, util.CollectionAchievements, "no_ids")
	assert.Equal(t, []interface{}{}, noIDs.Data["requiredMissionIds"])

	fine, _ := store.Get(ctx, util.CollectionAchievements, "fine")
	assert.Equal(t, []interface{}{"m1"}, fine.Data["requiredMissionIds"])
}

func TestUserStatsMigrationKeepsLargerValue(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	store.Seed(util.CollectionUsers,
		docstore.Document{ID: "u1", Data: map[string]interface{}{
			"battlesWon":     4,
			"correctAnswers": int64(2),
			"stats":          map[string]interface{}{"correctAnswers": 9},
		}},
		docstore.Document{ID: "u2", Data: map[string]interface{}{"questionsAnswered": 7}},
		docstore.Document{ID: "u3", Data: map[string]interface{}{"stats": map[string]interface{}{"battlesWon": 1}}},
	)
	r := newRunner(store)

	dry, err := r.Run(ctx, MigrationUserStats, true)
	require.NoError(t, err)
	assert.Equal(t, 2, dry.Changed)
	assert.Equal(t, 0, store.Commits())

	report, err := r.Run(ctx, MigrationUserStats, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)

	u1, _ := store.Get(ctx, util.CollectionUsers, "u1")
	assert.Equal(t, map[string]interface{}{"battlesWon": 4, "correctAnswers": 9}, u1.Data["stats"])
	_, hasRoot := u1.Data["battlesWon"]
	assert.False(t, hasRoot)

	u2, _ := store.Get(ctx, util.CollectionUsers, "u2")
	assert.Equal(t, map[string]interface{}{"questionsAnswered": 7}, u2.Data["stats"])

	again, err := r.Run(ctx, MigrationUserStats, false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Changed)
}
