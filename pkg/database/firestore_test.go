package database

import (
	"codequest_admin/internal/config"
	"codequest_admin/pkg/docstore"
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFirestoreMapsSentinels(t *testing.T) {
	in := map[string]interface{}{
		"enemyIds":     docstore.DeleteField,
		"unlockedDate": docstore.ServerTimestamp,
		"nested": map[string]interface{}{
			"completed": docstore.ArrayUnion("m1"),
		},
		"plain": "x",
	}
	out := toFirestoreMap(in)

	assert.Equal(t, firestore.Delete, out["enemyIds"])
	assert.Equal(t, firestore.ServerTimestamp, out["unlockedDate"])
	assert.Equal(t, "x", out["plain"])
	nested := out["nested"].(map[string]interface{})
	_, isDocstore := nested["completed"].(docstore.ArrayUnionValue)
	assert.False(t, isDocstore)
}

func TestInitFirestoreMemoryDriverSeedsFromDir(t *testing.T) {
	dir := t.TempDir()
	missions := `[{"id": "m1", "name": "Intro", "order": 1}, {"name": "no id"}]`
	unlocks := `[{"id": "a1", "achievementId": "a1"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "missions.json"), []byte(missions), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, docstore.FileName("user_achievements/u1/achievements")), []byte(unlocks), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	store, err := InitFirestore(context.Background(), &config.FirestoreConfig{Driver: "memory", SeedDir: dir})
	require.NoError(t, err)
	defer store.Close()

	docs, err := store.Collection(context.Background(), "missions")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Intro", docs[0].Data["name"])
	assert.Equal(t, int64(1), docs[0].Data["order"])
	_, hasID := docs[0].Data["id"]
	assert.False(t, hasID)

	unlockDocs, err := store.Collection(context.Background(), "user_achievements/u1/achievements")
	require.NoError(t, err)
	assert.Len(t, unlockDocs, 1)
}
