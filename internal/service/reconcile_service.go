package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/repository"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/logger"
	"codequest_admin/pkg/monitoring"
	"codequest_admin/pkg/tracing"
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ReconcileOptions struct {
	DryRun          bool `json:"dryRun"`
	SkipGrants      bool `json:"skipGrants"`
	SyncLeaderboard bool `json:"syncLeaderboard"`
	WithQuestions   bool `json:"withQuestions"`
}

type ReconcileSummary struct {
	RunID             string        `json:"runId,omitempty"`
	DryRun            bool          `json:"dryRun"`
	Profile           string        `json:"profile"`
	Validated         int           `json:"validated"`
	Invalid           int           `json:"invalid"`
	Normalized        int           `json:"normalized"`
	Granted           int           `json:"granted"`
	ScoresUpdated     int           `json:"scoresUpdated"`
	Warnings          int           `json:"warnings"`
	Errors            int           `json:"errors"`
	InvalidMissionIDs []string      `json:"invalidMissionIds,omitempty"`
	Failures          []string      `json:"failures,omitempty"`
	Issues            []model.Issue `json:"issues"`
	StartedAt         time.Time     `json:"startedAt"`
	Duration          string        `json:"duration"`
}

// Reconciler runs the full pass: validate, normalize, grant and optionally
// refresh the leaderboard. One run at a time per process.
type Reconciler struct {
	CatalogRepo  *repository.CatalogRepository
	UserRepo     *repository.UserRepository
	Validator    *MissionValidator
	Migrations   *MigrationRunner
	Achievements *AchievementService
	Leaderboard  *LeaderboardService
	Ledger       *RunLedger

	mu      sync.Mutex
	running bool
}

func NewReconciler(
	catalogRepo *repository.CatalogRepository,
	userRepo *repository.UserRepository,
	validator *MissionValidator,
	migrations *MigrationRunner,
	achievements *AchievementService,
	leaderboard *LeaderboardService,
	ledger *RunLedger,
) *Reconciler {
	return &Reconciler{
		CatalogRepo:  catalogRepo,
		UserRepo:     userRepo,
		Validator:    validator,
		Migrations:   migrations,
		Achievements: achievements,
		Leaderboard:  leaderboard,
		Ledger:       ledger,
	}
}

func (r *Reconciler) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *Reconciler) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// Validate checks a catalog snapshot without writing anything.
func (r *Reconciler) Validate(ctx context.Context, withQuestions bool) (*CatalogReport, error) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "validate.catalog")
	catalog, err := r.CatalogRepo.Load(ctx, withQuestions)
	if err != nil {
		tracing.EndSpan(span, err)
		monitoring.ObserveRun("validate", started, err)
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	report := r.Validator.ValidateCatalog(catalog)
	recordIssues(report.Issues)
	span.SetAttributes(attribute.Int("invalid", report.Invalid))
	tracing.EndSpan(span, nil)
	monitoring.ObserveRun("validate", started, nil)
	logger.Log.Info("validation finished",
		zap.String("profile", report.Profile),
		zap.Int("validated", report.Validated),
		zap.Int("invalid", report.Invalid),
		zap.Int("errors", report.Errors),
		zap.Int("warnings", report.Warnings),
	)
	return &report, nil
}

// Run always completes once the catalog is loaded: step failures are
// listed in Failures and the remaining steps still run.
func (r *Reconciler) Run(ctx context.Context, opts ReconcileOptions) (summary *ReconcileSummary, err error) {
	if !r.acquire() {
		return nil, util.ErrReconcileInProcess
	}
	defer r.release()

	started := time.Now()
	run := r.Ledger.Start("reconcile", opts.DryRun)
	ctx, span := tracing.StartSpan(ctx, "reconcile.run", attribute.Bool("dry_run", opts.DryRun))
	defer func() {
		monitoring.ObserveRun("reconcile", started, err)
		if summary != nil {
			summary.Duration = time.Since(started).Round(time.Millisecond).String()
			fillRun(run, summary)
		}
		r.Ledger.Finish(run, summary, err)
		tracing.EndSpan(span, err)
	}()

	summary = &ReconcileSummary{RunID: run.ID, DryRun: opts.DryRun, Profile: r.Validator.Profile, StartedAt: started}

	loadCtx, loadSpan := tracing.StartSpan(ctx, "reconcile.load_catalog")
	catalog, err := r.CatalogRepo.Load(loadCtx, opts.WithQuestions)
	tracing.EndSpan(loadSpan, err)
	if err != nil {
		return summary, fmt.Errorf("load catalog: %w", err)
	}

	_, valSpan := tracing.StartSpan(ctx, "reconcile.validate")
	report := r.Validator.ValidateCatalog(catalog)
	valSpan.SetAttributes(attribute.Int("invalid", report.Invalid))
	tracing.EndSpan(valSpan, nil)
	summary.Validated = report.Validated
	summary.Invalid = report.Invalid
	summary.InvalidMissionIDs = report.InvalidMissionIDs
	summary.Issues = append(summary.Issues, report.Issues...)
	recordIssues(report.Issues)

	normCtx, normSpan := tracing.StartSpan(ctx, "reconcile.normalize")
	migration, mErr := r.Migrations.Get(MigrationBattleConfig)
	if mErr == nil {
		var mReport *MigrationReport
		mReport, mErr = r.Migrations.apply(normCtx, migration, catalog.Missions, opts.DryRun)
		if mReport != nil {
			summary.Normalized = mReport.Written
			summary.Issues = append(summary.Issues, mReport.Issues...)
			summary.Failures = append(summary.Failures, changeFailures(mReport.Changes)...)
		}
	}
	tracing.EndSpan(normSpan, mErr)
	if mErr != nil {
		summary.Failures = append(summary.Failures, "normalize: "+mErr.Error())
	}

	if !opts.SkipGrants {
		grantCtx, grantSpan := tracing.StartSpan(ctx, "reconcile.grant")
		gErr := r.grant(grantCtx, catalog, opts.DryRun, summary)
		tracing.EndSpan(grantSpan, gErr)
		if gErr != nil {
			summary.Failures = append(summary.Failures, "grant: "+gErr.Error())
		}
	}

	if opts.SyncLeaderboard && r.Leaderboard != nil {
		lbCtx, lbSpan := tracing.StartSpan(ctx, "reconcile.leaderboard")
		lb, lErr := r.Leaderboard.Sync(lbCtx, opts.DryRun)
		tracing.EndSpan(lbSpan, lErr)
		if lb != nil {
			summary.ScoresUpdated = lb.ScoresUpdated
			summary.Issues = append(summary.Issues, lb.Issues...)
		}
		if lErr != nil {
			summary.Failures = append(summary.Failures, "leaderboard: "+lErr.Error())
		}
	}

	summary.Errors, summary.Warnings = model.CountBySeverity(summary.Issues)
	logger.Log.Info("reconcile finished",
		zap.Bool("dryRun", opts.DryRun),
		zap.Int("validated", summary.Validated),
		zap.Int("invalid", summary.Invalid),
		zap.Int("normalized", summary.Normalized),
		zap.Int("granted", summary.Granted),
		zap.Int("scoresUpdated", summary.ScoresUpdated),
		zap.Int("warnings", summary.Warnings),
		zap.Int("errors", summary.Errors),
		zap.Int("failures", len(summary.Failures)),
	)
	return summary, nil
}

func (r *Reconciler) grant(ctx context.Context, catalog *model.Catalog, dryRun bool, summary *ReconcileSummary) error {
	users, err := r.UserRepo.List(ctx)
	if err != nil {
		return err
	}
	rules := buildGrantRules(catalog.Missions, catalog.Achievements)
	// Catalog problems were already reported by validation.
	rules.issues = nil
	report, err := r.Achievements.grant(ctx, rules, users, dryRun)
	if report != nil {
		summary.Granted = report.Granted
		summary.Issues = append(summary.Issues, report.Issues...)
		for _, u := range report.Users {
			if u.Error != "" {
				summary.Failures = append(summary.Failures, fmt.Sprintf("grant %s: %s", u.UserID, u.Error))
			}
		}
	}
	return err
}

func changeFailures(changes []*DocumentChange) []string {
	var out []string
	for _, c := range changes {
		if c.Error != "" {
			out = append(out, fmt.Sprintf("normalize %s: %s", c.ID, c.Error))
		}
	}
	return out
}

func fillRun(run *model.ReconcileRun, s *ReconcileSummary) {
	run.Validated = s.Validated
	run.Invalid = s.Invalid
	run.Normalized = s.Normalized
	run.Granted = s.Granted
	run.ScoresUpdated = s.ScoresUpdated
	run.Warnings = s.Warnings
	run.Errors = s.Errors
}
