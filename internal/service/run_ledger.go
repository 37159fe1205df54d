package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/repository"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/logger"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// RunLedger records maintenance runs in MySQL. A ledger without a
// repository is a no-op, so the tools work without a database.
type RunLedger struct {
	Repo *repository.RunRepository
}

func NewRunLedger(repo *repository.RunRepository) *RunLedger {
	return &RunLedger{Repo: repo}
}

func (l *RunLedger) Enabled() bool {
	return l != nil && l.Repo != nil
}

func (l *RunLedger) Start(command string, dryRun bool) *model.ReconcileRun {
	run := &model.ReconcileRun{
		Command:   command,
		DryRun:    dryRun,
		Status:    model.RunRunning,
		StartedAt: time.Now(),
	}
	if !l.Enabled() {
		return run
	}
	if err := l.Repo.Create(run); err != nil {
		logger.Log.Warn("run ledger unavailable", zap.String("command", command), zap.Error(err))
	}
	return run
}

// Finish stores the counts and outcome. detail is marshalled to JSON.
func (l *RunLedger) Finish(run *model.ReconcileRun, detail interface{}, err error) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = model.RunSucceeded
	if err != nil {
		run.Status = model.RunFailed
	}
	if detail != nil {
		if b, mErr := json.Marshal(detail); mErr == nil {
			run.Detail = string(b)
		}
	}
	if err != nil && run.Detail == "" {
		run.Detail = err.Error()
	}
	if !l.Enabled() || run.ID == "" {
		return
	}
	if uErr := l.Repo.Update(run); uErr != nil {
		logger.Log.Warn("run ledger update failed", zap.String("run", run.ID), zap.Error(uErr))
	}
}

func (l *RunLedger) Recent(command string, limit int) ([]model.ReconcileRun, error) {
	if !l.Enabled() {
		return nil, util.ErrLedgerDisabled
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return l.Repo.ListRecent(command, limit)
}
