package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/pkg/docstore"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientValidator() *MissionValidator {
	return NewMissionValidator("client", []string{"name", "description", "type", "order"})
}

func validMission(id string) docstore.Document {
	return docstore.Document{ID: id, Data: map[string]interface{}{
		"name":        "Primeros pasos",
		"description": "Aprende lo básico",
		"type":        "teoria",
		"order":       1,
		"objectives": []interface{}{
			map[string]interface{}{"type": "leer", "description": "Lee la teoría"},
		},
		"rewards": map[string]interface{}{"experience": 100, "coins": 50},
	}}
}

func issueFields(issues []model.Issue) []string {
	fields := make([]string, len(issues))
	for i, is := range issues {
		fields[i] = is.Field
	}
	return fields
}

func TestValidateAcceptsCanonicalMission(t *testing.T) {
	res := clientValidator().Validate(validMission("m1"))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Issues)
	assert.Empty(t, res.Warnings)
}

func TestValidateMissingObjectivesAlwaysCited(t *testing.T) {
	profiles := map[string][]string{
		"client":  {"name", "description", "type", "order"},
		"catalog": {"zone", "levelRequired", "objectives", "rewards"},
		"empty":   nil,
	}
	for name, required := range profiles {
		t.Run(name, func(t *testing.T) {
			doc := validMission("m1")
			doc.Data["zone"] = "bosque"
			doc.Data["levelRequired"] = 1
			delete(doc.Data, "objectives")

			res := NewMissionValidator(name, required).Validate(doc)
			require.False(t, res.Valid)
			assert.Equal(t, 1, res.FailedStep)
			require.Len(t, res.Issues, 1)
			assert.Equal(t, model.MissingRequiredField, res.Issues[0].Kind)
			assert.Equal(t, "objectives", res.Issues[0].Field)
		})
	}
}

func TestValidateReportsEveryMissingField(t *testing.T) {
	doc := docstore.Document{ID: "m2", Data: map[string]interface{}{
		"description": nil,
		"objectives":  []interface{}{},
	}}
	res := clientValidator().Validate(doc)

	require.False(t, res.Valid)
	assert.Equal(t, 1, res.FailedStep)
	assert.Equal(t, []string{"name", "description", "type", "order"}, issueFields(res.Issues))
}

func TestValidateTitleSatisfiesName(t *testing.T) {
	doc := validMission("m1")
	delete(doc.Data, "name")
	doc.Data["title"] = "Título heredado"

	assert.True(t, clientValidator().Validate(doc).Valid)
}

func TestValidateStepOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		step   int
		kind   model.IssueKind
		fields []string
	}{
		{
			name:   "objectives not an array",
			mutate: func(d map[string]interface{}) { d["objectives"] = map[string]interface{}{"type": "batalla"} },
			step:   2,
			kind:   model.InvalidFieldShape,
			fields: []string{"objectives"},
		},
		{
			name:   "empty objectives",
			mutate: func(d map[string]interface{}) { d["objectives"] = []interface{}{} },
			step:   2,
			kind:   model.MissingRequiredField,
			fields: []string{"objectives"},
		},
		{
			name: "objective without type and description",
			mutate: func(d map[string]interface{}) {
				d["objectives"] = []interface{}{
					map[string]interface{}{"type": "leer", "description": "ok"},
					map[string]interface{}{"target": 3},
				}
			},
			step:   3,
			kind:   model.MissingRequiredField,
			fields: []string{"objectives[1].type", "objectives[1].description"},
		},
		{
			name: "battle without enemy",
			mutate: func(d map[string]interface{}) {
				d["type"] = "batalla"
				d["battleConfig"] = map[string]interface{}{"enemyIds": []interface{}{}}
			},
			step:   4,
			kind:   model.MissingRequiredField,
			fields: []string{"battleConfig.enemyId"},
		},
		{
			name:   "battle without config",
			mutate: func(d map[string]interface{}) { d["type"] = "batalla" },
			step:   4,
			kind:   model.MissingRequiredField,
			fields: []string{"battleConfig"},
		},
		{
			name:   "rewards missing",
			mutate: func(d map[string]interface{}) { delete(d, "rewards") },
			step:   5,
			kind:   model.MissingRequiredField,
			fields: []string{"rewards"},
		},
		{
			name:   "rewards scalar",
			mutate: func(d map[string]interface{}) { d["rewards"] = 100 },
			step:   5,
			kind:   model.InvalidFieldShape,
			fields: []string{"rewards"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validMission("m1")
			tt.mutate(doc.Data)
			res := clientValidator().Validate(doc)

			require.False(t, res.Valid)
			assert.Equal(t, tt.step, res.FailedStep)
			assert.Equal(t, tt.fields, issueFields(res.Issues))
			for _, is := range res.Issues {
				assert.Equal(t, tt.kind, is.Kind)
				assert.Equal(t, model.SeverityError, is.Severity)
			}
		})
	}
}

func TestValidateLegacyShapesAreWarnings(t *testing.T) {
	doc := validMission("m1")
	doc.Data["type"] = "batalla"
	doc.Data["battleConfig"] = map[string]interface{}{"enemyIds": []interface{}{"goblin"}}
	doc.Data["rewards"] = []interface{}{"ach_1"}

	res := clientValidator().Validate(doc)
	require.True(t, res.Valid)
	assert.Equal(t, []string{"battleConfig.enemyIds", "rewards"}, issueFields(res.Warnings))
	for _, w := range res.Warnings {
		assert.Equal(t, model.LegacyShapeDetected, w.Kind)
	}
}

func battleMissionDoc(objectiveConfig interface{}) docstore.Document {
	doc := validMission("mb")
	doc.Data["type"] = "batalla"
	objective := map[string]interface{}{"type": "batalla", "description": "Derrota al goblin"}
	if objectiveConfig != nil {
		objective["battleConfig"] = objectiveConfig
	}
	doc.Data["objectives"] = []interface{}{objective}
	return doc
}

func TestValidateBattleObjectiveConfig(t *testing.T) {
	t.Run("enemy on the objective only", func(t *testing.T) {
		res := clientValidator().Validate(battleMissionDoc(map[string]interface{}{"enemyId": "goblin"}))
		assert.True(t, res.Valid, "%v", res.Issues)
	})

	t.Run("legacy enemyIds on the objective", func(t *testing.T) {
		res := clientValidator().Validate(battleMissionDoc(map[string]interface{}{"enemyIds": []interface{}{"goblin"}}))
		require.True(t, res.Valid, "%v", res.Issues)
		assert.Equal(t, []string{"objectives[0].battleConfig.enemyIds"}, issueFields(res.Warnings))
	})

	t.Run("objective config without enemy is not rescued by the mission", func(t *testing.T) {
		doc := battleMissionDoc(map[string]interface{}{"questionIds": []interface{}{"q1"}})
		doc.Data["battleConfig"] = map[string]interface{}{"enemyId": "goblin"}

		res := clientValidator().Validate(doc)
		require.False(t, res.Valid)
		assert.Equal(t, 4, res.FailedStep)
		assert.Equal(t, []string{"objectives[0].battleConfig.enemyId"}, issueFields(res.Issues))
	})

	t.Run("objective without config falls back to the mission", func(t *testing.T) {
		doc := battleMissionDoc(nil)
		doc.Data["battleConfig"] = map[string]interface{}{"enemyId": "goblin"}
		assert.True(t, clientValidator().Validate(doc).Valid)

		delete(doc.Data, "battleConfig")
		res := clientValidator().Validate(doc)
		require.False(t, res.Valid)
		assert.Equal(t, []string{"battleConfig"}, issueFields(res.Issues))
	})

	t.Run("every battle objective is checked", func(t *testing.T) {
		doc := battleMissionDoc(map[string]interface{}{"enemyId": "goblin"})
		objectives := doc.Data["objectives"].([]interface{})
		doc.Data["objectives"] = append(objectives,
			map[string]interface{}{"type": "leer", "description": "Lee"},
			map[string]interface{}{"type": "battle", "description": "Jefe", "battleConfig": "dragon"},
		)
		res := clientValidator().Validate(doc)
		require.False(t, res.Valid)
		require.Len(t, res.Issues, 1)
		assert.Equal(t, model.InvalidFieldShape, res.Issues[0].Kind)
		assert.Equal(t, "objectives[2].battleConfig", res.Issues[0].Field)
	})
}

func TestValidateProfileAcceptsZeroValues(t *testing.T) {
	doc := validMission("m0")
	doc.Data["order"] = 0
	doc.Data["description"] = ""
	assert.True(t, clientValidator().Validate(doc).Valid)

	doc.Data["order"] = nil
	res := clientValidator().Validate(doc)
	require.False(t, res.Valid)
	assert.Equal(t, []string{"order"}, issueFields(res.Issues))
}

func TestMissingTypeIsAnError(t *testing.T) {
	doc := validMission("batalla_final")
	delete(doc.Data, "type")

	res := clientValidator().Validate(doc)
	require.False(t, res.Valid)
	assert.Equal(t, []string{"type"}, issueFields(res.Issues))
}

func TestDanglingReferenceDoesNotBlockCatalog(t *testing.T) {
	broken := validMission("m2")
	broken.Data["requirements"] = map[string]interface{}{"completedMissionId": "ghost"}
	invalid := validMission("m3")
	delete(invalid.Data, "rewards")

	catalog := &model.Catalog{Missions: []docstore.Document{validMission("m1"), broken, invalid}}
	report := clientValidator().ValidateCatalog(catalog)

	assert.Equal(t, 2, report.Validated)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, []string{"m3"}, report.InvalidMissionIDs)

	var dangling []model.Issue
	for _, is := range report.Issues {
		if is.Kind == model.DanglingReference {
			dangling = append(dangling, is)
		}
	}
	require.Len(t, dangling, 1)
	assert.Equal(t, "m2", dangling[0].RecordID)
	assert.Equal(t, "requirements.completedMissionId", dangling[0].Field)
	assert.Equal(t, model.SeverityWarning, dangling[0].Severity)
}

func TestCheckReferences(t *testing.T) {
	doc := validMission("m1")
	doc.Data["unlocks"] = []interface{}{"m2", "m9"}
	doc.Data["rewards"] = map[string]interface{}{"unlocks": []interface{}{"m8"}}
	doc.Data["battleConfig"] = map[string]interface{}{"enemyId": "dragon", "questionIds": []interface{}{"q1", "q404"}}
	doc.Data["objectives"] = []interface{}{
		map[string]interface{}{"type": "batalla", "description": "x", "battleConfig": map[string]interface{}{"enemyIds": []interface{}{"slime"}}},
	}

	catalog := &model.Catalog{
		Missions:        []docstore.Document{{ID: "m1"}, {ID: "m2"}},
		Enemies:         []docstore.Document{{ID: "slime"}},
		Questions:       []docstore.Document{{ID: "q1"}},
		QuestionsLoaded: true,
	}
	issues := CheckReferences(doc, catalog.Index())
	assert.Equal(t, []string{
		"unlocks",
		"rewards.unlocks",
		"battleConfig.enemyId",
		"battleConfig.questionIds",
	}, issueFields(issues))

	catalog.QuestionsLoaded = false
	assert.Len(t, CheckReferences(doc, catalog.Index()), 3)
}

func TestCheckDuplicateOrders(t *testing.T) {
	a, b, c := validMission("a"), validMission("b"), validMission("c")
	c.Data["order"] = int64(2)

	issues := CheckDuplicateOrders([]docstore.Document{c, b, a})
	require.Len(t, issues, 2)
	assert.Equal(t, "a", issues[0].RecordID)
	assert.Equal(t, "b", issues[1].RecordID)
	assert.Equal(t, model.DuplicateOrder, issues[0].Kind)
}

func TestValidateAchievement(t *testing.T) {
	idx := (&model.Catalog{Missions: []docstore.Document{{ID: "mision_batalla_final"}}}).Index()

	ok := docstore.Document{ID: "victoria_final", Data: map[string]interface{}{
		"name": "Victoria final", "category": "battle", "achievementType": "mission",
		"requiredMissionIds": []interface{}{"mision_batalla_final"},
	}}
	assert.Empty(t, ValidateAchievement(ok, idx))

	code := docstore.Document{ID: "hola_mundo", Data: map[string]interface{}{
		"name": "Hola mundo", "category": "code_exercise", "achievementType": "code_exercise",
	}}
	issues := ValidateAchievement(code, idx)
	require.Len(t, issues, 1)
	assert.Equal(t, "conditions.exerciseId", issues[0].Field)

	legacy := docstore.Document{ID: "primera_victoria", Data: map[string]interface{}{
		"name": "Primera victoria", "category": "battle", "achievementType": "battle",
		"requiredMissionIds": []interface{}{"ghost"},
	}}
	issues = ValidateAchievement(legacy, idx)
	assert.Equal(t, []string{"requiredMissionIds", "achievementType"}, issueFields(issues))
	errs, warnings := model.CountBySeverity(issues)
	assert.Equal(t, 0, errs)
	assert.Equal(t, 2, warnings)
}
