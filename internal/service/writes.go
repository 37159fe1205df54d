package service

import (
	"codequest_admin/internal/config"
	"codequest_admin/internal/model"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"codequest_admin/pkg/logger"
	"codequest_admin/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

// WriteSettings carries the batching knobs every writing service shares.
type WriteSettings struct {
	BatchSize       int
	Retry           docstore.RetryPolicy
	WritesPerSecond float64
}

func DefaultWriteSettings() WriteSettings {
	return WriteSettings{BatchSize: docstore.MaxBatchOps, Retry: docstore.DefaultRetryPolicy()}
}

func WriteSettingsFromConfig(cfg *config.ReconcileConfig) WriteSettings {
	return WriteSettings{
		BatchSize: cfg.BatchSize,
		Retry: docstore.RetryPolicy{
			MaxTries:        cfg.Retry.MaxTries,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			MaxElapsed:      cfg.Retry.MaxElapsed,
		},
		WritesPerSecond: cfg.WritesPerSecond,
	}
}

// NewWriter returns a batch writer that logs retries and feeds the commit
// metrics.
func (s WriteSettings) NewWriter(store docstore.Store, dryRun bool) *docstore.Writer {
	w := docstore.NewWriter(store, s.BatchSize, s.Retry).DryRun(dryRun).Throttle(s.WritesPerSecond)
	w.OnRetry = func(err error, wait time.Duration) {
		monitoring.CommitRetries.Inc()
		logger.Log.Warn("batch commit failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}
	w.OnCommit = func(ops int, err error) {
		if dryRun {
			return
		}
		monitoring.ObserveCommit(ops, err)
		if err != nil {
			logger.Log.Error("batch commit failed", zap.Int("ops", ops), zap.Error(err))
			return
		}
		logger.Log.Debug("batch committed", zap.Int("ops", ops))
	}
	return w
}

func decodeMissions(docs []docstore.Document) ([]model.Mission, []model.Issue) {
	missions := make([]model.Mission, 0, len(docs))
	var issues []model.Issue
	for _, d := range docs {
		m, err := model.DecodeMission(d)
		if err != nil {
			issues = append(issues, model.NewError(model.InvalidFieldShape, util.CollectionMissions, d.ID, "", err.Error()))
			continue
		}
		missions = append(missions, m)
	}
	return missions, issues
}

func decodeAchievements(docs []docstore.Document) ([]model.Achievement, []model.Issue) {
	achievements := make([]model.Achievement, 0, len(docs))
	var issues []model.Issue
	for _, d := range docs {
		a, err := model.DecodeAchievement(d)
		if err != nil {
			issues = append(issues, model.NewError(model.InvalidFieldShape, util.CollectionAchievements, d.ID, "", err.Error()))
			continue
		}
		achievements = append(achievements, a)
	}
	return achievements, issues
}

func decodeUsers(docs []docstore.Document) ([]model.User, []model.Issue) {
	users := make([]model.User, 0, len(docs))
	var issues []model.Issue
	for _, d := range docs {
		u, err := model.DecodeUser(d)
		if err != nil {
			issues = append(issues, model.NewError(model.InvalidFieldShape, util.CollectionUsers, d.ID, "", err.Error()))
			continue
		}
		users = append(users, u)
	}
	return users, issues
}

// recordIssues feeds the issue counter.
func recordIssues(issues []model.Issue) {
	for _, i := range issues {
		monitoring.IssuesFound.WithLabelValues(string(i.Kind), string(i.Severity)).Inc()
	}
}
