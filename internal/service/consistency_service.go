package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/repository"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"context"
	"fmt"
	"sort"
)

type ConsistencyService struct {
	UserRepo        *repository.UserRepository
	LeaderboardRepo *repository.LeaderboardRepository
}

func NewConsistencyService(userRepo *repository.UserRepository, leaderboardRepo *repository.LeaderboardRepository) *ConsistencyService {
	return &ConsistencyService{UserRepo: userRepo, LeaderboardRepo: leaderboardRepo}
}

type ConsistencyReport struct {
	Users                     int           `json:"users"`
	LeaderboardEntries        int           `json:"leaderboardEntries"`
	Usernames                 int           `json:"usernames"`
	UsersWithoutLeaderboard   []string      `json:"usersWithoutLeaderboard"`
	LeaderboardWithoutUser    []string      `json:"leaderboardWithoutUser"`
	UsersWithoutUsernameEntry []string      `json:"usersWithoutUsernameEntry"`
	StaleScores               []ScoreChange `json:"staleScores"`
	DuplicateEntries          []string      `json:"duplicateEntries"`
	Issues                    []model.Issue `json:"issues"`
}

func (r *ConsistencyReport) Consistent() bool {
	return len(r.UsersWithoutLeaderboard) == 0 &&
		len(r.LeaderboardWithoutUser) == 0 &&
		len(r.UsersWithoutUsernameEntry) == 0 &&
		len(r.StaleScores) == 0 &&
		len(r.DuplicateEntries) == 0
}

// Check cross-references users, leaderboard and usernames. It only reads.
func (s *ConsistencyService) Check(ctx context.Context) (*ConsistencyReport, error) {
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
	return BuildConsistencyReport(userDocs, entries, duplicates, usernames), nil
}

// BuildConsistencyReport compares users against leaderboard entries and the
// usernames index. duplicates are leaderboard docs shadowed by another entry
// for the same user.
func BuildConsistencyReport(userDocs []docstore.Document, entries map[string]docstore.Document, duplicates []docstore.Document, usernames map[string]docstore.Document) *ConsistencyReport {
	users, issues := decodeUsers(userDocs)
	report := &ConsistencyReport{
		Users:              len(userDocs),
		LeaderboardEntries: len(entries),
		Usernames:          len(usernames),
		Issues:             issues,
	}

	known := make(map[string]struct{}, len(userDocs))
	for _, d := range userDocs {
		known[d.ID] = struct{}{}
	}
	uidsWithName := make(map[string]struct{}, len(usernames))
	for _, d := range usernames {
		if uid, ok := docstore.AsString(d.Data["uid"]); ok {
			uidsWithName[uid] = struct{}{}
		}
	}

	for i := range users {
		u := &users[i]
		entry, ok := entries[u.ID]
		if !ok {
			report.UsersWithoutLeaderboard = append(report.UsersWithoutLeaderboard, u.ID)
		} else if c := scoreChange(u.ID, u.Username, entry, Score(u)); c != nil {
			report.StaleScores = append(report.StaleScores, *c)
		}
		if u.Username != "" {
			if _, ok := uidsWithName[u.ID]; !ok {
				report.UsersWithoutUsernameEntry = append(report.UsersWithoutUsernameEntry, u.ID)
			}
		}
	}
	for uid := range entries {
		if _, ok := known[uid]; !ok {
			report.LeaderboardWithoutUser = append(report.LeaderboardWithoutUser, uid)
			report.Issues = append(report.Issues, model.NewWarning(model.DanglingReference, util.CollectionLeaderboard, uid,
				"userId", fmt.Sprintf("user %q does not exist", uid)))
		}
	}
	for _, d := range duplicates {
		uid, _ := docstore.AsString(d.Data["userId"])
		report.DuplicateEntries = append(report.DuplicateEntries, d.ID)
		report.Issues = append(report.Issues, model.NewWarning(model.DuplicateEntry, util.CollectionLeaderboard, d.ID,
			"userId", fmt.Sprintf("user %q already has entry %q", uid, entries[uid].ID)))
	}
	sort.Strings(report.LeaderboardWithoutUser)
	sort.Strings(report.DuplicateEntries)
	sort.Slice(report.Issues, func(i, j int) bool { return report.Issues[i].RecordID < report.Issues[j].RecordID })
	return report
}
