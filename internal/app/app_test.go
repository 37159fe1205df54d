package app

import (
	"bytes"
	"codequest_admin/internal/config"
	"codequest_admin/internal/model"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-secret"

func testConfig(t *testing.T, extra string) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	body := "jwt:\n  secret: " + testSecret + "\n" +
		"storage:\n  local_path: " + filepath.Join(dir, "backups") + "\n" +
		"log:\n  file: " + filepath.Join(dir, "app.log") + "\n" + extra
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	cfg, err := config.LoadConfig(dir)
	require.NoError(t, err)
	return cfg, dir
}

func seedStore() *docstore.MemoryStore {
	store := docstore.NewMemoryStore()
	store.Seed(util.CollectionMissions,
		docstore.Document{ID: "m1", Data: map[string]interface{}{
			"name": "Batalla", "description": "Gana", "type": "batalla", "order": 1,
			"objectives": []interface{}{
				map[string]interface{}{
					"type": "batalla", "description": "Derrota al bug",
					"battleConfig": map[string]interface{}{"enemyId": "e1", "questionIds": []interface{}{"q1"}},
				},
			},
			"rewards": map[string]interface{}{"experience": 100},
		}},
		docstore.Document{ID: "m2", Data: map[string]interface{}{"name": "Rota", "order": 2}},
	)
	store.Seed(util.CollectionEnemies, docstore.Document{ID: "e1", Data: map[string]interface{}{"name": "Bug"}})
	store.Seed(util.CollectionAchievements, docstore.Document{ID: "a1", Data: map[string]interface{}{
		"name": "Primera", "category": "battle", "achievementType": "mission", "requiredMissionIds": []interface{}{},
	}})
	store.Seed(util.CollectionUsers, docstore.Document{ID: "u1", Data: map[string]interface{}{
		"username": "Ana", "level": 3, "experience": 50, "completedMissions": []interface{}{"m1"},
	}})
	return store
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, router http.Handler, method, path, token, body string) (int, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func token(t *testing.T, role model.UserRole) string {
	t.Helper()
	tok, err := util.GenerateJWT("tester", role, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAdminAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, _ := testConfig(t, "")
	a := NewWithStore(cfg, seedStore(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := a.setupRouter(ctx)
	admin := token(t, model.Admin)

	code, resp := do(t, router, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"status":"ok"`)

	code, _ = do(t, router, http.MethodGet, "/api/leaderboard", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/reconcile"`)
	assert.Contains(t, w.Body.String(), `"basePath": "/api"`)

	code, _ = do(t, router, http.MethodGet, "/api/leaderboard", token(t, model.Viewer), "")
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = do(t, router, http.MethodGet, "/api/missions/validation", admin, "")
	require.Equal(t, http.StatusOK, code)
	var validation struct {
		Validated         int      `json:"validated"`
		Invalid           int      `json:"invalid"`
		InvalidMissionIDs []string `json:"invalidMissionIds"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &validation))
	assert.Equal(t, 1, validation.Validated)
	assert.Equal(t, []string{"m2"}, validation.InvalidMissionIDs)

	code, resp = do(t, router, http.MethodPost, "/api/reconcile", admin, `{"syncLeaderboard":true}`)
	require.Equal(t, http.StatusOK, code)
	var summary struct {
		Granted       int `json:"granted"`
		ScoresUpdated int `json:"scoresUpdated"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, 1, summary.Granted)
	assert.Equal(t, 1, summary.ScoresUpdated)

	code, resp = do(t, router, http.MethodGet, "/api/users/u1/score", admin, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"score":3250`)

	code, resp = do(t, router, http.MethodGet, "/api/leaderboard?limit=5", admin, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"total":1`)

	code, _ = do(t, router, http.MethodGet, "/api/leaderboard?limit=0", admin, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, http.MethodGet, "/api/users/ghost/availability", admin, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, router, http.MethodPost, "/api/migrations/nope", admin, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = do(t, router, http.MethodGet, "/api/migrations", admin, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"total":3`)

	code, _ = do(t, router, http.MethodGet, "/api/runs", admin, "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, resp = do(t, router, http.MethodGet, "/api/consistency", admin, "")
	require.Equal(t, http.StatusOK, code)
	// The reconcile above synced the leaderboard and usernames.
	assert.Contains(t, string(resp.Data), `"consistent":true`)
}

func TestApplyConfigUpdatesServices(t *testing.T) {
	cfg, _ := testConfig(t, "")
	a := NewWithStore(cfg, seedStore(), nil, nil)

	next := *cfg
	next.Reconcile.BatchSize = 50
	next.Leaderboard.DefaultUsername = "Jugador"
	a.ApplyConfig(&next)

	assert.Equal(t, 50, a.Config().Reconcile.BatchSize)
	assert.Equal(t, 50, a.services.achievements.Writes.BatchSize)
	assert.Equal(t, "Jugador", a.services.leaderboard.DefaultUsername)
}

func writeSeed(t *testing.T, dir string) {
	t.Helper()
	seed := filepath.Join(dir, "seed")
	require.NoError(t, os.MkdirAll(seed, 0o755))
	store := seedStore()
	for _, coll := range []string{util.CollectionMissions, util.CollectionEnemies, util.CollectionAchievements, util.CollectionUsers} {
		docs, err := store.Collection(context.Background(), coll)
		require.NoError(t, err)
		data, err := docstore.EncodeDocuments(docs)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(seed, docstore.FileName(coll)), data, 0o644))
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLIAgainstMemoryDriver(t *testing.T) {
	_, dir := testConfig(t, "")
	writeSeed(t, dir)
	// Rewrite the config with the offline driver pointing at the seed.
	body, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	body = append(body, []byte("firestore:\n  driver: memory\n  seed_dir: "+filepath.Join(dir, "seed")+"\n")...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o644))

	out, err := runCLI(t, "--config", dir, "validate")
	require.NoError(t, err)
	var report struct {
		Validated int `json:"validated"`
		Invalid   int `json:"invalid"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Validated)
	assert.Equal(t, 1, report.Invalid)

	_, err = runCLI(t, "--config", dir, "validate", "--strict")
	assert.True(t, errors.Is(err, errIssuesFound))

	out, err = runCLI(t, "--config", dir, "reconcile", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, `"granted": 1`)
	assert.Contains(t, out, `"dryRun": true`)

	out, err = runCLI(t, "--config", dir, "score", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, `"score": 3250`)

	_, err = runCLI(t, "--config", dir, "clean", "--collections", "missions")
	assert.True(t, errors.Is(err, util.ErrConfirmRequired))

	out, err = runCLI(t, "--config", dir, "backup", "--collections", "missions,enemies")
	require.NoError(t, err)
	assert.Contains(t, out, `"documents": 3`)

	out, err = runCLI(t, "--config", dir, "token", "--subject", "ops", "--ttl", "10m")
	require.NoError(t, err)
	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &issued))
	claims, err := util.ParseJWT(issued.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, model.Admin, claims.Role)
	assert.Equal(t, "ops", claims.Subject)
}
