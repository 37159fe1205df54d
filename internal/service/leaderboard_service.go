package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/repository"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"codequest_admin/pkg/logger"
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

type LeaderboardService struct {
	UserRepo        *repository.UserRepository
	LeaderboardRepo *repository.LeaderboardRepository
	// Cache is optional; without Redis, Top reads Firestore.
	Cache           *repository.LeaderboardCache
	Store           docstore.Store
	Writes          WriteSettings
	DefaultUsername string
}

func NewLeaderboardService(
	userRepo *repository.UserRepository,
	leaderboardRepo *repository.LeaderboardRepository,
	cache *repository.LeaderboardCache,
	store docstore.Store,
	writes WriteSettings,
	defaultUsername string,
) *LeaderboardService {
	if defaultUsername == "" {
		defaultUsername = "Usuario"
	}
	return &LeaderboardService{
		UserRepo:        userRepo,
		LeaderboardRepo: leaderboardRepo,
		Cache:           cache,
		Store:           store,
		Writes:          writes,
		DefaultUsername: defaultUsername,
	}
}

type ScoreChange struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Previous *int   `json:"previous,omitempty"`
	Score    int    `json:"score"`
}

type LeaderboardSyncReport struct {
	DryRun            bool                `json:"dryRun"`
	Users             int                 `json:"users"`
	EntriesWritten    int                 `json:"entriesWritten"`
	ScoresUpdated     int                 `json:"scoresUpdated"`
	NamesFixed        int                 `json:"namesFixed"`
	UsernamesCreated  int                 `json:"usernamesCreated"`
	DuplicatesFound   int                 `json:"duplicatesFound"`
	DuplicatesRemoved int                 `json:"duplicatesRemoved"`
	Cached            int                 `json:"cached"`
	Changes           []ScoreChange       `json:"changes"`
	Issues            []model.Issue       `json:"issues"`
	Writes            docstore.WriteStats `json:"writes"`
}

// Sync recomputes every user's score and brings leaderboard entries and
// the usernames index in line with the users collection. Leftover auto-id
// entries for a user that already has one are deleted.
func (s *LeaderboardService) Sync(ctx context.Context, dryRun bool) (*LeaderboardSyncReport, error) {
	userDocs, err := s.UserRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	entries, duplicates, err := s.LeaderboardRepo.Index(ctx)
	if err != nil {
		return nil, err
	}
	usernames, err := s.LeaderboardRepo.Usernames(ctx)
	if err != nil {
		return nil, err
	}

	report := &LeaderboardSyncReport{DryRun: dryRun, Users: len(userDocs), DuplicatesFound: len(duplicates)}
	users, issues := decodeUsers(userDocs)
	report.Issues = append(report.Issues, issues...)

	var synced []model.LeaderboardEntry
	w := s.Writes.NewWriter(s.Store, dryRun)
	for i := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		u := &users[i]
		existing, hasEntry := entries[u.ID]
		ops, change, plan := s.planUser(u, existing, hasEntry, usernames)
		synced = append(synced, plan.entry)
		if plan.conflict != nil {
			report.Issues = append(report.Issues, *plan.conflict)
		}
		if len(ops) == 0 {
			continue
		}

		if err := w.Add(ctx, ops, func(err error) {
			if err != nil {
				return
			}
			report.EntriesWritten++
			if change != nil {
				report.ScoresUpdated++
				report.Changes = append(report.Changes, *change)
			}
			if plan.nameFixed {
				report.NamesFixed++
			}
			if plan.usernameCreated {
				report.UsernamesCreated++
			}
		}); err != nil {
			logger.Log.Error("queue leaderboard entry", zap.String("user", u.ID), zap.Error(err))
		}
	}

	for _, d := range duplicates {
		if err := w.Add(ctx, []docstore.Op{docstore.Delete(util.CollectionLeaderboard, d.ID)}, func(err error) {
			if err == nil {
				report.DuplicatesRemoved++
			}
		}); err != nil {
			logger.Log.Error("queue duplicate leaderboard delete", zap.String("id", d.ID), zap.Error(err))
		}
	}

	stats, err := w.Close(ctx)
	report.Writes = stats
	if err != nil {
		logger.Log.Warn("leaderboard sync finished with failed batches", zap.Error(err))
	}

	if !dryRun && s.Cache != nil {
		for _, e := range synced {
			if err := s.Cache.Upsert(ctx, e); err != nil {
				logger.Log.Warn("leaderboard cache update failed", zap.String("user", e.UserID), zap.Error(err))
				continue
			}
			report.Cached++
		}
	}
	recordIssues(report.Issues)
	return report, nil
}

type userPlan struct {
	entry           model.LeaderboardEntry
	nameFixed       bool
	usernameCreated bool
	conflict        *model.Issue
}

func (s *LeaderboardService) planUser(u *model.User, existing docstore.Document, hasEntry bool, usernames map[string]docstore.Document) ([]docstore.Op, *ScoreChange, userPlan) {
	score := Score(u)
	username := strings.TrimSpace(u.Username)
	if username == "" && hasEntry {
		username, _ = docstore.AsString(existing.Data["username"])
	}
	if username == "" {
		username = s.DefaultUsername
	}
	plan := userPlan{entry: model.LeaderboardEntry{
		UserID:      u.ID,
		Username:    username,
		DisplayName: u.PublicName(),
		Score:       score,
	}}

	fields := map[string]interface{}{
		"userId":      u.ID,
		"username":    username,
		"displayName": plan.entry.DisplayName,
		"score":       score,
		"lastUpdated": docstore.ServerTimestamp,
	}

	var ops []docstore.Op
	var change *ScoreChange
	switch {
	case !hasEntry:
		ops = append(ops, docstore.Set(util.CollectionLeaderboard, u.ID, fields))
		change = &ScoreChange{UserID: u.ID, Username: username, Score: score}
	case existing.ID != u.ID:
		// Entry keyed by an auto id: rewrite it under the user id.
		ops = append(ops,
			docstore.Set(util.CollectionLeaderboard, u.ID, fields),
			docstore.Delete(util.CollectionLeaderboard, existing.ID),
		)
		change = scoreChange(u.ID, username, existing, score)
	default:
		oldScore, scoreOK := docstore.AsInt(existing.Data["score"])
		oldName, _ := docstore.AsString(existing.Data["username"])
		oldDisplay, _ := docstore.AsString(existing.Data["displayName"])
		if !scoreOK || oldScore != score {
			change = scoreChange(u.ID, username, existing, score)
		}
		if oldDisplay != plan.entry.DisplayName || oldName != username {
			plan.nameFixed = true
		}
		if change != nil || plan.nameFixed {
			ops = append(ops, docstore.Update(util.CollectionLeaderboard, u.ID, fields))
		}
	}

	if name := strings.TrimSpace(u.Username); name != "" {
		key := strings.ToLower(name)
		if taken, ok := usernames[key]; !ok {
			ops = append(ops, docstore.Set(util.CollectionUsernames, key, map[string]interface{}{
				"uid":       u.ID,
				"username":  name,
				"createdAt": docstore.ServerTimestamp,
			}))
			plan.usernameCreated = true
			// Later users in the same run must see the key as taken.
			usernames[key] = docstore.Document{ID: key, Data: map[string]interface{}{"uid": u.ID, "username": name}}
		} else if uid, _ := docstore.AsString(taken.Data["uid"]); uid != "" && uid != u.ID {
			issue := model.NewWarning(model.UsernameConflict, util.CollectionUsers, u.ID, "username",
				fmt.Sprintf("username %q is held by %q", key, uid))
			plan.conflict = &issue
		}
	}
	return ops, change, plan
}

func scoreChange(userID, username string, existing docstore.Document, score int) *ScoreChange {
	c := &ScoreChange{UserID: userID, Username: username, Score: score}
	if old, ok := docstore.AsInt(existing.Data["score"]); ok {
		if old == score {
			return nil
		}
		c.Previous = &old
	}
	return c
}

// Top returns the n highest entries. Redis is used when configured and
// populated, Firestore otherwise.
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	if s.Cache != nil {
		top, err := s.Cache.Top(ctx, n)
		if err == nil && len(top) > 0 {
			return top, nil
		}
		if err != nil {
			logger.Log.Warn("leaderboard cache unavailable, reading Firestore", zap.Error(err))
		}
	}

	entries, err := s.LeaderboardRepo.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.LeaderboardEntry, 0, len(entries))
	for _, doc := range entries {
		e, err := model.DecodeLeaderboardEntry(doc)
		if err != nil {
			logger.Log.Warn("skip leaderboard entry", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// UserScore computes the canonical score of one user.
func (s *LeaderboardService) UserScore(ctx context.Context, userID string) (int, *model.User, error) {
	doc, err := s.UserRepo.Get(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	u, err := model.DecodeUser(doc)
	if err != nil {
		return 0, nil, err
	}
	return Score(&u), &u, nil
}
