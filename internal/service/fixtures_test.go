package service

import (
	"codequest_admin/internal/repository"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testWrites() WriteSettings {
	return WriteSettings{
		BatchSize: docstore.MaxBatchOps,
		Retry:     docstore.RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}
}

// seedWorld builds a small game: a battle mission with a legacy enemy
// list, a theory mission that depends on it, a broken mission, three
// achievements and three players.
func seedWorld() *docstore.MemoryStore {
	store := docstore.NewMemoryStore()
	store.Now = func() time.Time { return fixedNow }

	store.Seed(util.CollectionMissions,
		docstore.Document{ID: "m1", Data: map[string]interface{}{
			"name": "Primera batalla", "description": "Derrota al bug", "type": "batalla", "order": 1,
			"objectives": []interface{}{
				map[string]interface{}{
					"type": "batalla", "description": "Gana",
					"battleConfig": map[string]interface{}{"enemyIds": []interface{}{"e1", "e2"}},
				},
			},
			"rewards": map[string]interface{}{"experience": 100},
		}},
		docstore.Document{ID: "m2", Data: map[string]interface{}{
			"name": "Teoría", "description": "Lee", "type": "teoria", "order": 2,
			"requirements": map[string]interface{}{"completedMissionId": "m1"},
			"objectives": []interface{}{
				map[string]interface{}{"type": "leer", "description": "Lee todo"},
			},
			"rewards": map[string]interface{}{"experience": 50},
		}},
		docstore.Document{ID: "m3", Data: map[string]interface{}{
			"name": "Rota", "description": "Sin objetivos", "type": "teoria", "order": 3,
			"rewards": map[string]interface{}{"experience": 10},
		}},
	)
	store.Seed(util.CollectionEnemies,
		docstore.Document{ID: "e1", Data: map[string]interface{}{"name": "Bug"}},
		docstore.Document{ID: "e2", Data: map[string]interface{}{"name": "Glitch"}},
	)
	store.Seed(util.CollectionAchievements,
		docstore.Document{ID: "a_first_battle", Data: map[string]interface{}{
			"name": "Primera victoria", "category": "battle", "achievementType": "mission",
			"requiredMissionIds": []interface{}{}, "points": 10,
		}},
		docstore.Document{ID: "a_m2", Data: map[string]interface{}{
			"name": "Estudioso", "category": "progress", "achievementType": "mission",
			"requiredMissionIds": []interface{}{"m2"}, "points": 20,
		}},
		docstore.Document{ID: "a_code", Data: map[string]interface{}{
			"name": "Hola mundo", "category": "code_exercise", "achievementType": "code_exercise",
			"conditions": map[string]interface{}{"exerciseId": "ex1"}, "points": 5,
		}},
	)
	store.Seed(util.CollectionUsers,
		docstore.Document{ID: "u1", Data: map[string]interface{}{
			"username": "Ana", "email": "ana@example.com", "level": 2, "experience": 100,
			"stats":             map[string]interface{}{"battlesWon": 1, "correctAnswers": 5},
			"completedMissions": []interface{}{"m1"},
		}},
		docstore.Document{ID: "u2", Data: map[string]interface{}{
			"username": "beto", "displayName": "Beto", "level": 1,
			"completedMissions":    []interface{}{"m1", "m2"},
			"completedExercises":   []interface{}{"ex1"},
			"unlockedAchievements": []interface{}{"a_first_battle"},
		}},
		docstore.Document{ID: "u3", Data: map[string]interface{}{"level": 1}},
	)
	return store
}

func newAchievementService(store docstore.Store, writes WriteSettings) *AchievementService {
	return NewAchievementService(repository.NewCatalogRepository(store), repository.NewUserRepository(store), store, writes)
}

func userDoc(t *testing.T, store docstore.Store, id string) docstore.Document {
	t.Helper()
	doc, err := store.Get(context.Background(), util.CollectionUsers, id)
	require.NoError(t, err)
	return doc
}
