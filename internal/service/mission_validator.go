package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationResult is the outcome of the ordered field checks for one
// mission. Issues hold every error of the step that failed; Warnings hold
// non-fatal findings of the steps that ran.
type ValidationResult struct {
	RecordID   string        `json:"recordId"`
	Valid      bool          `json:"valid"`
	FailedStep int           `json:"failedStep,omitempty"`
	Issues     []model.Issue `json:"issues,omitempty"`
	Warnings   []model.Issue `json:"warnings,omitempty"`
}

// presenceTag rejects only missing or null fields. Zero values such as
// order 0 are accepted.
const presenceTag = "present"

var profileValidate = newProfileValidate()

func newProfileValidate() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation(presenceTag, func(validator.FieldLevel) bool { return true }); err != nil {
		panic(err)
	}
	return v
}

// MissionValidator checks mission documents against a named profile of
// required fields. objectives is always required.
type MissionValidator struct {
	Profile  string
	required []string
	rules    map[string]interface{}
}

func NewMissionValidator(profile string, required []string) *MissionValidator {
	fields := make([]string, 0, len(required)+1)
	seen := make(map[string]bool)
	for _, f := range append(append([]string{}, required...), "objectives") {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	rules := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		rules[f] = presenceTag
	}
	return &MissionValidator{Profile: profile, required: fields, rules: rules}
}

func (v *MissionValidator) RequiredFields() []string {
	return append([]string(nil), v.required...)
}

type validationStep func(doc docstore.Document) (errs, warnings []model.Issue)

// Validate runs the checks in order and stops at the first step that
// reports an error.
func (v *MissionValidator) Validate(doc docstore.Document) ValidationResult {
	res := ValidationResult{RecordID: doc.ID}
	steps := []validationStep{
		v.checkRequired,
		checkObjectivesShape,
		checkObjectiveFields,
		checkBattleConfig,
		checkRewards,
	}
	for i, step := range steps {
		errs, warnings := step(doc)
		res.Warnings = append(res.Warnings, warnings...)
		if len(errs) > 0 {
			res.FailedStep = i + 1
			res.Issues = errs
			return res
		}
	}
	res.Valid = true
	return res
}

func (v *MissionValidator) checkRequired(doc docstore.Document) (errs, _ []model.Issue) {
	failed := profileValidate.ValidateMap(doc.Data, v.rules)
	if _, ok := failed["name"]; ok && docstore.Present(doc.Data, "title") {
		delete(failed, "name")
	}
	// Report in profile order.
	for _, field := range v.required {
		if _, ok := failed[field]; ok {
			errs = append(errs, model.NewError(model.MissingRequiredField, util.CollectionMissions, doc.ID, field,
				fmt.Sprintf("required by profile %q", v.Profile)))
		}
	}
	return errs, nil
}

func checkObjectivesShape(doc docstore.Document) (errs, _ []model.Issue) {
	items, ok := docstore.AsSlice(doc.Data["objectives"])
	if !ok {
		return []model.Issue{model.NewError(model.InvalidFieldShape, util.CollectionMissions, doc.ID, "objectives",
			"objectives must be an array")}, nil
	}
	if len(items) == 0 {
		return []model.Issue{model.NewError(model.MissingRequiredField, util.CollectionMissions, doc.ID, "objectives",
			"objectives must not be empty")}, nil
	}
	return nil, nil
}

func checkObjectiveFields(doc docstore.Document) (errs, _ []model.Issue) {
	items, _ := docstore.AsSlice(doc.Data["objectives"])
	for i, it := range items {
		prefix := fmt.Sprintf("objectives[%d]", i)
		obj, ok := docstore.AsMap(it)
		if !ok {
			errs = append(errs, model.NewError(model.InvalidFieldShape, util.CollectionMissions, doc.ID, prefix,
				"objective must be an object"))
			continue
		}
		for _, field := range []string{"type", "description"} {
			if s, _ := docstore.AsString(obj[field]); strings.TrimSpace(s) == "" {
				errs = append(errs, model.NewError(model.MissingRequiredField, util.CollectionMissions, doc.ID,
					prefix+"."+field, ""))
			}
		}
	}
	return errs, nil
}

// checkBattleConfig requires an enemy on every battle objective of a battle
// mission. An objective without its own config falls back to the
// mission-level one. Missions with no battle objective need the
// mission-level config.
func checkBattleConfig(doc docstore.Document) (errs, warnings []model.Issue) {
	warnings = legacyEnemyWarnings(doc)

	missionType, _ := docstore.AsString(doc.Data["type"])
	if !model.IsBattleType(missionType) {
		return nil, warnings
	}

	battleObjectives := 0
	items, _ := docstore.AsSlice(doc.Data["objectives"])
	for i, it := range items {
		obj, _ := docstore.AsMap(it)
		if t, _ := docstore.AsString(obj["type"]); !model.IsBattleType(t) {
			continue
		}
		battleObjectives++
		field, raw := fmt.Sprintf("objectives[%d].battleConfig", i), obj["battleConfig"]
		if !docstore.Present(obj, "battleConfig") {
			field, raw = "battleConfig", doc.Data["battleConfig"]
		}
		if issue, ok := checkEnemyRef(doc.ID, field, raw); !ok {
			errs = append(errs, issue)
		}
	}
	if battleObjectives == 0 {
		if issue, ok := checkEnemyRef(doc.ID, "battleConfig", doc.Data["battleConfig"]); !ok {
			errs = append(errs, issue)
		}
	}
	return errs, warnings
}

func checkEnemyRef(recordID, field string, raw interface{}) (model.Issue, bool) {
	if raw == nil {
		return model.NewError(model.MissingRequiredField, util.CollectionMissions, recordID, field,
			"battle missions need a battle configuration"), false
	}
	bc, ok := docstore.AsMap(raw)
	if !ok {
		return model.NewError(model.InvalidFieldShape, util.CollectionMissions, recordID, field,
			"battle configuration must be an object"), false
	}
	if id, _ := docstore.AsString(bc["enemyId"]); id != "" {
		return model.Issue{}, true
	}
	if len(docstore.AsStrings(bc["enemyIds"])) > 0 {
		return model.Issue{}, true
	}
	return model.NewError(model.MissingRequiredField, util.CollectionMissions, recordID,
		field+".enemyId", "battle configuration names no enemy"), false
}

// legacyEnemyWarnings flags every battle configuration still carrying enemyIds.
func legacyEnemyWarnings(doc docstore.Document) []model.Issue {
	var warnings []model.Issue
	check := func(field string, v interface{}) {
		bc, ok := docstore.AsMap(v)
		if !ok {
			return
		}
		if _, legacy := bc["enemyIds"]; legacy {
			warnings = append(warnings, model.NewWarning(model.LegacyShapeDetected, util.CollectionMissions, doc.ID,
				field+".enemyIds", "enemyIds is superseded by enemyId"))
		}
	}
	check("battleConfig", doc.Data["battleConfig"])
	items, _ := docstore.AsSlice(doc.Data["objectives"])
	for i, it := range items {
		if obj, ok := docstore.AsMap(it); ok {
			check(fmt.Sprintf("objectives[%d].battleConfig", i), obj["battleConfig"])
		}
	}
	return warnings
}

func checkRewards(doc docstore.Document) (errs, warnings []model.Issue) {
	v, ok := doc.Data["rewards"]
	if !ok || v == nil {
		return []model.Issue{model.NewError(model.MissingRequiredField, util.CollectionMissions, doc.ID, "rewards", "")}, nil
	}
	if _, ok := docstore.AsMap(v); ok {
		return nil, nil
	}
	if _, ok := docstore.AsSlice(v); ok {
		return nil, []model.Issue{model.NewWarning(model.LegacyShapeDetected, util.CollectionMissions, doc.ID, "rewards",
			"rewards stored as an array")}
	}
	return []model.Issue{model.NewError(model.InvalidFieldShape, util.CollectionMissions, doc.ID, "rewards",
		"rewards must be an object")}, nil
}

// CheckReferences reports ids a mission points at that the catalog does
// not contain. Dangling references are warnings.
func CheckReferences(doc docstore.Document, idx model.CatalogIndex) []model.Issue {
	var issues []model.Issue
	dangling := func(field, id, target string) {
		issues = append(issues, model.NewWarning(model.DanglingReference, util.CollectionMissions, doc.ID, field,
			fmt.Sprintf("%s %q does not exist", target, id)))
	}

	if id, _ := docstore.AsString(lookup(doc.Data, "requirements.completedMissionId")); id != "" && !idx.HasMission(id) {
		dangling("requirements.completedMissionId", id, "mission")
	}
	for _, id := range docstore.AsStrings(doc.Data["unlocks"]) {
		if !idx.HasMission(id) {
			dangling("unlocks", id, "mission")
		}
	}
	for _, id := range docstore.AsStrings(lookup(doc.Data, "rewards.unlocks")) {
		if !idx.HasMission(id) {
			dangling("rewards.unlocks", id, "mission")
		}
	}

	checkConfig := func(field string, v interface{}) {
		bc, ok := docstore.AsMap(v)
		if !ok {
			return
		}
		if id, _ := docstore.AsString(bc["enemyId"]); id != "" && !idx.HasEnemy(id) {
			dangling(field+".enemyId", id, "enemy")
		}
		for _, id := range docstore.AsStrings(bc["enemyIds"]) {
			if !idx.HasEnemy(id) {
				dangling(field+".enemyIds", id, "enemy")
			}
		}
		checkQuestions(idx, field+".questionIds", bc["questionIds"], dangling)
	}
	checkConfig("battleConfig", doc.Data["battleConfig"])

	items, _ := docstore.AsSlice(doc.Data["objectives"])
	for i, it := range items {
		obj, ok := docstore.AsMap(it)
		if !ok {
			continue
		}
		prefix := fmt.Sprintf("objectives[%d]", i)
		checkQuestions(idx, prefix+".questionIds", obj["questionIds"], dangling)
		checkConfig(prefix+".battleConfig", obj["battleConfig"])
	}
	return issues
}

func checkQuestions(idx model.CatalogIndex, field string, v interface{}, dangling func(field, id, target string)) {
	if !idx.QuestionsLoaded {
		return
	}
	for _, id := range docstore.AsStrings(v) {
		if !idx.HasQuestion(id) {
			dangling(field, id, "question")
		}
	}
}

// CheckDuplicateOrders warns about missions sharing an order value.
func CheckDuplicateOrders(missions []docstore.Document) []model.Issue {
	byOrder := make(map[int][]string)
	for _, m := range missions {
		if n, ok := docstore.AsInt(m.Data["order"]); ok {
			byOrder[n] = append(byOrder[n], m.ID)
		}
	}
	orders := make([]int, 0, len(byOrder))
	for n := range byOrder {
		orders = append(orders, n)
	}
	sort.Ints(orders)

	var issues []model.Issue
	for _, n := range orders {
		ids := byOrder[n]
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		for _, id := range ids {
			issues = append(issues, model.NewWarning(model.DuplicateOrder, util.CollectionMissions, id, "order",
				fmt.Sprintf("order %d shared with %s", n, strings.Join(ids, ", "))))
		}
	}
	return issues
}

// ValidateAchievement checks the fields the eligibility rules read.
func ValidateAchievement(doc docstore.Document, idx model.CatalogIndex) []model.Issue {
	var issues []model.Issue
	coll := util.CollectionAchievements
	for _, field := range []string{"name", "category", "achievementType"} {
		if s, _ := docstore.AsString(doc.Data[field]); strings.TrimSpace(s) == "" {
			issues = append(issues, model.NewError(model.MissingRequiredField, coll, doc.ID, field, ""))
		}
	}

	required, present := doc.Data["requiredMissionIds"]
	if present && required != nil {
		if _, ok := docstore.AsSlice(required); !ok {
			issues = append(issues, model.NewError(model.InvalidFieldShape, coll, doc.ID, "requiredMissionIds",
				"requiredMissionIds must be an array"))
		}
	}
	for _, id := range docstore.AsStrings(required) {
		if !idx.HasMission(id) {
			issues = append(issues, model.NewWarning(model.DanglingReference, coll, doc.ID, "requiredMissionIds",
				fmt.Sprintf("mission %q does not exist", id)))
		}
	}

	if category, _ := docstore.AsString(doc.Data["category"]); category == model.CategoryCodeExercise {
		exercise, _ := docstore.AsString(lookup(doc.Data, "conditions.exerciseId"))
		if exercise == "" && len(docstore.AsStrings(required)) == 0 {
			issues = append(issues, model.NewError(model.MissingRequiredField, coll, doc.ID, "conditions.exerciseId",
				"code exercise achievements need an exercise id"))
		}
	}
	if t, _ := docstore.AsString(doc.Data["achievementType"]); t == model.AchievementTypeBattle {
		issues = append(issues, model.NewWarning(model.LegacyShapeDetected, coll, doc.ID, "achievementType",
			"achievementType battle is superseded by mission"))
	}
	return issues
}

// CatalogReport aggregates validation over a whole catalog snapshot.
type CatalogReport struct {
	Profile               string             `json:"profile"`
	Validated             int                `json:"validated"`
	Invalid               int                `json:"invalid"`
	AchievementsChecked   int                `json:"achievementsChecked"`
	InvalidAchievements   int                `json:"invalidAchievements"`
	Errors                int                `json:"errors"`
	Warnings              int                `json:"warnings"`
	InvalidMissionIDs     []string           `json:"invalidMissionIds,omitempty"`
	InvalidAchievementIDs []string           `json:"invalidAchievementIds,omitempty"`
	Missions              []ValidationResult `json:"missions"`
	Issues                []model.Issue      `json:"issues"`
}

// ValidateCatalog never stops on a bad record.
func (v *MissionValidator) ValidateCatalog(c *model.Catalog) CatalogReport {
	idx := c.Index()
	report := CatalogReport{Profile: v.Profile}

	for _, doc := range c.Missions {
		res := v.Validate(doc)
		res.Warnings = append(res.Warnings, CheckReferences(doc, idx)...)
		report.Missions = append(report.Missions, res)
		report.Issues = append(report.Issues, res.Issues...)
		report.Issues = append(report.Issues, res.Warnings...)
		if res.Valid {
			report.Validated++
		} else {
			report.Invalid++
			report.InvalidMissionIDs = append(report.InvalidMissionIDs, doc.ID)
		}
	}
	report.Issues = append(report.Issues, CheckDuplicateOrders(c.Missions)...)

	for _, doc := range c.Achievements {
		report.AchievementsChecked++
		issues := ValidateAchievement(doc, idx)
		if errs, _ := model.CountBySeverity(issues); errs > 0 {
			report.InvalidAchievements++
			report.InvalidAchievementIDs = append(report.InvalidAchievementIDs, doc.ID)
		}
		report.Issues = append(report.Issues, issues...)
	}

	report.Errors, report.Warnings = model.CountBySeverity(report.Issues)
	return report
}

func lookup(data map[string]interface{}, path string) interface{} {
	v, _ := docstore.Lookup(data, path)
	return v
}
