package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/repository"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"codequest_admin/pkg/logger"
	"codequest_admin/pkg/monitoring"
	"context"
	"fmt"

	"go.uber.org/zap"
)

type AchievementService struct {
	CatalogRepo *repository.CatalogRepository
	UserRepo    *repository.UserRepository
	Store       docstore.Store
	Writes      WriteSettings
}

func NewAchievementService(
	catalogRepo *repository.CatalogRepository,
	userRepo *repository.UserRepository,
	store docstore.Store,
	writes WriteSettings,
) *AchievementService {
	return &AchievementService{
		CatalogRepo: catalogRepo,
		UserRepo:    userRepo,
		Store:       store,
		Writes:      writes,
	}
}

// UserGrant is the outcome for one user. Granted lists ids whose write
// committed (or would have, on a dry run).
type UserGrant struct {
	UserID        string   `json:"userId"`
	Granted       []string `json:"granted"`
	UnlockRecords int      `json:"unlockRecords"`
	Error         string   `json:"error,omitempty"`
}

type GrantReport struct {
	DryRun       bool                `json:"dryRun"`
	UsersScanned int                 `json:"usersScanned"`
	UsersUpdated int                 `json:"usersUpdated"`
	Granted      int                 `json:"granted"`
	Users        []*UserGrant        `json:"users"`
	Issues       []model.Issue       `json:"issues"`
	Writes       docstore.WriteStats `json:"writes"`
}

// grantRules is the decoded catalog the grant pass evaluates against.
type grantRules struct {
	achievements []model.Achievement
	eligibility  EligibilityContext
	issues       []model.Issue
}

func (s *AchievementService) loadRules(ctx context.Context) (*grantRules, error) {
	missionDocs, err := s.CatalogRepo.Missions(ctx)
	if err != nil {
		return nil, err
	}
	achievementDocs, err := s.CatalogRepo.Store.Collection(ctx, util.CollectionAchievements)
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	return buildGrantRules(missionDocs, achievementDocs), nil
}

func buildGrantRules(missionDocs, achievementDocs []docstore.Document) *grantRules {
	missions, missionIssues := decodeMissions(missionDocs)
	achievements, achievementIssues := decodeAchievements(achievementDocs)

	ec := NewEligibilityContext(missions)
	// A mission that failed to decode still exists; requirements naming it
	// are not dangling.
	for _, d := range missionDocs {
		ec.KnownMissions[d.ID] = struct{}{}
	}

	r := &grantRules{achievements: achievements, eligibility: ec}
	r.issues = append(r.issues, missionIssues...)
	r.issues = append(r.issues, achievementIssues...)
	r.issues = append(r.issues, DanglingRequirements(achievements, ec)...)
	return r
}

// GrantForUser evaluates one user and writes the new unlocks.
func (s *AchievementService) GrantForUser(ctx context.Context, userID string, dryRun bool) (*GrantReport, error) {
	rules, err := s.loadRules(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.UserRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.grant(ctx, rules, []docstore.Document{doc}, dryRun)
}

// GrantAll evaluates every user. One user's failure never stops the pass.
func (s *AchievementService) GrantAll(ctx context.Context, dryRun bool) (*GrantReport, error) {
	rules, err := s.loadRules(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.UserRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.grant(ctx, rules, docs, dryRun)
}

func (s *AchievementService) grant(ctx context.Context, rules *grantRules, userDocs []docstore.Document, dryRun bool) (*GrantReport, error) {
	report := &GrantReport{DryRun: dryRun, UsersScanned: len(userDocs)}
	report.Issues = append(report.Issues, rules.issues...)

	users, issues := decodeUsers(userDocs)
	report.Issues = append(report.Issues, issues...)

	w := s.Writes.NewWriter(s.Store, dryRun)
	for i := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		u := &users[i]
		plan := PlanGrants(u, rules.achievements, rules.eligibility)
		if plan.Empty() {
			continue
		}

		existing, err := s.UserRepo.UnlockRecordIDs(ctx, u.ID)
		if err != nil {
			report.Users = append(report.Users, &UserGrant{UserID: u.ID, Error: err.Error()})
			logger.Log.Error("read unlock records", zap.String("user", u.ID), zap.Error(err))
			continue
		}

		ops, records := GrantOps(plan, existing)
		ug := &UserGrant{UserID: u.ID}
		report.Users = append(report.Users, ug)
		ids := plan.IDs()
		err = w.Add(ctx, ops, func(err error) {
			if err != nil {
				ug.Error = err.Error()
				return
			}
			ug.Granted = ids
			ug.UnlockRecords = records
			report.UsersUpdated++
			report.Granted += len(ids)
			if !dryRun {
				monitoring.AchievementsGranted.Add(float64(len(ids)))
			}
		})
		if err != nil {
			ug.Error = err.Error()
			logger.Log.Error("queue grant", zap.String("user", u.ID), zap.Error(err))
		}
	}

	stats, err := w.Close(ctx)
	report.Writes = stats
	if err != nil {
		logger.Log.Warn("grant pass finished with failed batches", zap.Int("failedBatches", stats.FailedBatches), zap.Error(err))
	}
	recordIssues(report.Issues)
	return report, nil
}

// GrantOps builds the atomic write group for one user: an arrayUnion of
// the new ids on the user plus an unlock record for every id that has
// none yet. It returns the ops and the number of records created.
func GrantOps(plan GrantPlan, existingRecords map[string]struct{}) ([]docstore.Op, int) {
	ids := make([]interface{}, 0, len(plan.Achievements))
	for _, a := range plan.Achievements {
		ids = append(ids, a.ID)
	}
	ops := []docstore.Op{
		docstore.Update(util.CollectionUsers, plan.UserID, map[string]interface{}{
			"unlockedAchievements": docstore.ArrayUnion(ids...),
		}),
	}

	records := 0
	for i := range plan.Achievements {
		a := &plan.Achievements[i]
		if _, ok := existingRecords[a.ID]; ok {
			continue
		}
		fields := model.NewUnlockRecordFields(a)
		fields["unlockedDate"] = docstore.ServerTimestamp
		ops = append(ops, docstore.Set(util.UnlocksCollection(plan.UserID), a.ID, fields))
		records++
	}
	return ops, records
}
