package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CODEQUEST_STORAGE_LOCAL_PATH", filepath.Join(t.TempDir(), "backups"))

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, "firestore", cfg.Firestore.Driver)
	assert.Equal(t, 500, cfg.Reconcile.BatchSize)
	assert.Equal(t, "client", cfg.Reconcile.ValidationProfile)
	assert.Equal(t, []string{"name", "description", "type", "order"}, cfg.Reconcile.Profiles["client"])
	assert.Equal(t, []string{"zone", "levelRequired", "objectives", "rewards"}, cfg.Reconcile.Profiles["catalog"])
	assert.Equal(t, []string{"q_basic_1", "q_basic_2", "q_basic_3"}, cfg.Reconcile.DefaultQuestionIDs)
	assert.Equal(t, 200*time.Millisecond, cfg.Reconcile.Retry.InitialInterval)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, "Usuario", cfg.Leaderboard.DefaultUsername)

	_, err = os.Stat(cfg.Storage.LocalPath)
	assert.NoError(t, err)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CODEQUEST_STORAGE_LOCAL_PATH", filepath.Join(dir, "backups"))
	t.Setenv("FIREBASE_PROJECT_ID", "codequest-test")

	yaml := `
server:
  port: "9090"
reconcile:
  batch_size: 100
  validation_profile: catalog
  default_question_ids: [q1]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.File)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 100, cfg.Reconcile.BatchSize)
	assert.Equal(t, "catalog", cfg.Reconcile.ValidationProfile)
	assert.Equal(t, []string{"q1"}, cfg.Reconcile.DefaultQuestionIDs)
	assert.Equal(t, "codequest-test", cfg.Firestore.ProjectID)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Server:    ServerConfig{Mode: "debug"},
			Firestore: FirestoreConfig{Driver: "memory"},
			Reconcile: ReconcileConfig{
				BatchSize:         500,
				ValidationProfile: "client",
				Profiles:          map[string][]string{"client": {"name"}},
			},
		}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Server.Mode = "release"
	cfg.JWT.Secret = "short"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Reconcile.ValidationProfile = "missing"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Reconcile.BatchSize = 501
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Firestore.Driver = "mongo"
	assert.Error(t, cfg.Validate())
}
