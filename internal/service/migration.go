package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"codequest_admin/pkg/logger"
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// PlanFunc returns the field updates one document needs, or nil when it is
// already in shape.
type PlanFunc func(doc docstore.Document) (map[string]interface{}, []model.Issue)

// Migration is a named, repeatable data fix over one collection. Running a
// migration twice leaves the data as running it once.
type Migration struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Collection  string   `json:"collection"`
	Plan        PlanFunc `json:"-"`
}

const (
	MigrationBattleConfig    = "battle-config-canonical-enemy"
	MigrationAchievementType = "achievement-type-mission"
	MigrationUserStats       = "user-stats-nested"
)

// DefaultMigrations returns the registered migrations in run order.
func DefaultMigrations(normalizer *BattleNormalizer) []Migration {
	return []Migration{
		{
			Name:        MigrationBattleConfig,
			Description: "collapse legacy battleConfig.enemyIds into enemyId and default questionIds",
			Collection:  util.CollectionMissions,
			Plan: func(doc docstore.Document) (map[string]interface{}, []model.Issue) {
				updates, _ := normalizer.NormalizeMission(doc)
				return updates, nil
			},
		},
		{
			Name:        MigrationAchievementType,
			Description: "rename achievementType battle to mission and default requiredMissionIds",
			Collection:  util.CollectionAchievements,
			Plan:        planAchievementType,
		},
		{
			Name:        MigrationUserStats,
			Description: "move root questionsAnswered, correctAnswers and battlesWon into stats",
			Collection:  util.CollectionUsers,
			Plan:        planUserStats,
		},
	}
}

func planAchievementType(doc docstore.Document) (map[string]interface{}, []model.Issue) {
	updates := make(map[string]interface{})
	typ, _ := docstore.AsString(doc.Data["achievementType"])
	category, _ := docstore.AsString(doc.Data["category"])

	if typ == model.AchievementTypeBattle {
		updates["achievementType"] = model.AchievementTypeMission
	}
	if category == model.CategoryBattle || typ == model.AchievementTypeBattle {
		if !docstore.Present(doc.Data, "requiredMissionIds") {
			updates["requiredMissionIds"] = []interface{}{}
		}
	}
	if len(updates) == 0 {
		return nil, nil
	}
	return updates, nil
}

var legacyStatFields = []string{"questionsAnswered", "correctAnswers", "battlesWon"}

func planUserStats(doc docstore.Document) (map[string]interface{}, []model.Issue) {
	updates := make(map[string]interface{})
	var issues []model.Issue
	stats, _ := docstore.AsMap(doc.Data["stats"])

	for _, field := range legacyStatFields {
		raw, ok := doc.Data[field]
		if !ok {
			continue
		}
		root, ok := docstore.AsInt(raw)
		if !ok && raw != nil {
			issues = append(issues, model.NewWarning(model.InvalidFieldShape, util.CollectionUsers, doc.ID, field,
				fmt.Sprintf("root %s is %T, left in place", field, raw)))
			continue
		}
		value := root
		if nested, ok := docstore.AsInt(stats[field]); ok && nested > value {
			value = nested
		}
		updates["stats."+field] = value
		updates[field] = docstore.DeleteField
		issues = append(issues, model.NewWarning(model.LegacyShapeDetected, util.CollectionUsers, doc.ID, field,
			"root-level stat moved into stats"))
	}
	if len(updates) == 0 {
		return nil, issues
	}
	return updates, issues
}

type DocumentChange struct {
	ID     string   `json:"id"`
	Fields []string `json:"fields"`
	Error  string   `json:"error,omitempty"`
}

type MigrationReport struct {
	Name       string              `json:"name"`
	Collection string              `json:"collection"`
	DryRun     bool                `json:"dryRun"`
	Scanned    int                 `json:"scanned"`
	Changed    int                 `json:"changed"`
	Written    int                 `json:"written"`
	Changes    []*DocumentChange   `json:"changes"`
	Issues     []model.Issue       `json:"issues"`
	Writes     docstore.WriteStats `json:"writes"`
}

type MigrationRunner struct {
	Store      docstore.Store
	Writes     WriteSettings
	migrations []Migration
	byName     map[string]Migration
}

func NewMigrationRunner(store docstore.Store, writes WriteSettings, migrations []Migration) *MigrationRunner {
	r := &MigrationRunner{Store: store, Writes: writes, byName: make(map[string]Migration, len(migrations))}
	for _, m := range migrations {
		r.migrations = append(r.migrations, m)
		r.byName[m.Name] = m
	}
	return r
}

func (r *MigrationRunner) List() []Migration {
	return r.migrations
}

func (r *MigrationRunner) Get(name string) (Migration, error) {
	m, ok := r.byName[name]
	if !ok {
		return Migration{}, fmt.Errorf("%q: %w", name, util.ErrUnknownMigration)
	}
	return m, nil
}

// Run applies one migration. Each document's updates are one group, so a
// document is either fully migrated or untouched.
func (r *MigrationRunner) Run(ctx context.Context, name string, dryRun bool) (*MigrationReport, error) {
	m, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	docs, err := r.Store.Collection(ctx, m.Collection)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", m.Collection, err)
	}
	return r.apply(ctx, m, docs, dryRun)
}

func (r *MigrationRunner) apply(ctx context.Context, m Migration, docs []docstore.Document, dryRun bool) (*MigrationReport, error) {
	report := &MigrationReport{Name: m.Name, Collection: m.Collection, DryRun: dryRun, Scanned: len(docs)}
	w := r.Writes.NewWriter(r.Store, dryRun)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		updates, issues := m.Plan(doc)
		report.Issues = append(report.Issues, issues...)
		if len(updates) == 0 {
			continue
		}
		report.Changed++

		fields := make([]string, 0, len(updates))
		for f := range updates {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		change := &DocumentChange{ID: doc.ID, Fields: fields}
		report.Changes = append(report.Changes, change)

		op := docstore.Update(m.Collection, doc.ID, updates)
		if err := w.Add(ctx, []docstore.Op{op}, func(err error) {
			if err != nil {
				change.Error = err.Error()
				return
			}
			report.Written++
		}); err != nil {
			change.Error = err.Error()
		}
	}

	stats, err := w.Close(ctx)
	report.Writes = stats
	if err != nil {
		logger.Log.Warn("migration finished with failed batches", zap.String("migration", m.Name), zap.Error(err))
	}
	recordIssues(report.Issues)
	logger.Log.Info("migration finished",
		zap.String("migration", m.Name),
		zap.Bool("dryRun", dryRun),
		zap.Int("scanned", report.Scanned),
		zap.Int("changed", report.Changed),
		zap.Int("written", report.Written),
	)
	return report, nil
}
