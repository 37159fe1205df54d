package service

import (
	"codequest_admin/pkg/docstore"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultQuestions = []interface{}{"q_basic_1", "q_basic_2", "q_basic_3"}

func TestNormalizeConfigLegacyEnemyList(t *testing.T) {
	n := NewBattleNormalizer(nil)
	in := map[string]interface{}{"enemyIds": []interface{}{"e1", "e2"}}

	out, changed := n.NormalizeConfig(in)
	require.True(t, changed)

	want := map[string]interface{}{"enemyId": "e1", "questionIds": defaultQuestions}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("normalized config mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, in, "enemyIds", "input must not be mutated")
}

func TestNormalizeConfigKeepsExistingEnemy(t *testing.T) {
	n := NewBattleNormalizer(nil)
	out, changed := n.NormalizeConfig(map[string]interface{}{
		"enemyId":     "e0",
		"enemyIds":    []interface{}{"e1"},
		"questionIds": []interface{}{"q9"},
		"environment": "cueva",
	})

	require.True(t, changed)
	assert.Equal(t, "e0", out["enemyId"])
	assert.NotContains(t, out, "enemyIds")
	assert.Equal(t, []interface{}{"q9"}, out["questionIds"])
	assert.Equal(t, "cueva", out["environment"])
}

func TestNormalizeConfigIsIdempotent(t *testing.T) {
	n := NewBattleNormalizer([]string{"q1"})
	inputs := []map[string]interface{}{
		{"enemyIds": []interface{}{"e1", "e2"}},
		{"enemyId": "", "enemyIds": []string{"e3"}},
		{"enemyId": "e0", "enemyIds": []interface{}{"e1"}},
		{"enemyIds": []interface{}{}},
		{"enemyId": "e5", "questionIds": []interface{}{"q2"}},
		{},
	}
	for _, in := range inputs {
		once, _ := n.NormalizeConfig(in)
		twice, changed := n.NormalizeConfig(once)

		assert.False(t, changed, "second pass changed %v", in)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("not idempotent for %v:\n%s", in, diff)
		}
		if id, _ := twice["enemyId"].(string); id != "" {
			assert.NotContains(t, twice, "enemyIds", "enemyId and enemyIds coexist for %v", in)
		}
	}
}

func TestNormalizeConfigEmptyEnemyListLeftForValidation(t *testing.T) {
	out, changed := NewBattleNormalizer(nil).NormalizeConfig(map[string]interface{}{"enemyIds": []interface{}{}})

	assert.True(t, changed, "question defaults still apply")
	assert.NotContains(t, out, "enemyId")
	assert.Equal(t, []interface{}{}, out["enemyIds"])
}

func TestNormalizeMissionObjectivesIndependently(t *testing.T) {
	n := NewBattleNormalizer(nil)
	doc := docstore.Document{ID: "mision_batalla_1", Data: map[string]interface{}{
		"type": "batalla",
		"battleConfig": map[string]interface{}{
			"enemyId":     "slime",
			"questionIds": []interface{}{"q1"},
		},
		"objectives": []interface{}{
			map[string]interface{}{"type": "leer", "description": "teoría"},
			map[string]interface{}{
				"type":         "batalla",
				"description":  "vence al slime",
				"battleConfig": map[string]interface{}{"enemyIds": []interface{}{"slime", "orc"}},
			},
		},
	}}

	updates, res := n.NormalizeMission(doc)
	require.True(t, res.Changed)
	assert.False(t, res.MissionConfig)
	assert.Equal(t, []int{1}, res.ObjectiveConfigs)
	assert.Equal(t, 1, res.EnemyIDsCollapsed)
	require.Contains(t, updates, "objectives")
	assert.NotContains(t, updates, "battleConfig")

	objectives := updates["objectives"].([]interface{})
	require.Len(t, objectives, 2)
	assert.Equal(t, doc.Data["objectives"].([]interface{})[0], objectives[0])
	want := map[string]interface{}{"enemyId": "slime", "questionIds": defaultQuestions}
	if diff := cmp.Diff(want, objectives[1].(map[string]interface{})["battleConfig"]); diff != "" {
		t.Errorf("objective config mismatch (-want +got):\n%s", diff)
	}

	// Applying the updates and normalizing again yields nothing to do.
	for k, v := range updates {
		doc.Data[k] = v
	}
	again, res := n.NormalizeMission(doc)
	assert.Nil(t, again)
	assert.False(t, res.Changed)
}

func TestNormalizeMissionWithoutBattleConfig(t *testing.T) {
	updates, res := NewBattleNormalizer(nil).NormalizeMission(validMission("m1"))
	assert.Nil(t, updates)
	assert.False(t, res.Changed)
}
