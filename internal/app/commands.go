package app

import (
	"codequest_admin/internal/config"
	"codequest_admin/internal/model"
	"codequest_admin/internal/service"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"codequest_admin/pkg/logger"
	"codequest_admin/pkg/monitoring"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errIssuesFound = errors.New("issues found")

// cli holds the state shared by every subcommand.
type cli struct {
	configDir string
	verbose   bool
	push      bool

	cfg *config.Config
	// open builds the App for a command; tests replace it.
	open func(ctx context.Context, cfg *config.Config) (*App, error)
}

// Execute runs the CLI until the command finishes or the process is
// interrupted.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		logger.Log.Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the codequest-admin command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{open: New}
	return c.root()
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "codequest-admin",
		Short:         "Consistency checks and repairs for the CodeQuest Firestore data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(c.configDir)
			if err != nil {
				return err
			}
			if c.verbose {
				cfg.Log.Verbose = true
			}
			c.cfg = cfg
			logger.InitLogger(cfg)
			logger.Log.Debug("config loaded", zap.String("file", cfg.File), zap.String("driver", cfg.Firestore.Driver))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Log.Sync()
		},
	}
	root.PersistentFlags().StringVar(&c.configDir, "config", "configs", "directory holding config.yaml")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&c.push, "push-metrics", false, "push run metrics to the configured Pushgateway")

	root.AddCommand(
		c.validateCmd(),
		c.reconcileCmd(),
		c.migrateCmd(),
		c.grantCmd(),
		c.leaderboardCmd(),
		c.scoreCmd(),
		c.missionsCmd(),
		c.consistencyCmd(),
		c.backupCmd(),
		c.restoreCmd(),
		c.importCmd(),
		c.cleanCmd(),
		c.runsCmd(),
		c.tokenCmd(),
		c.serveCmd(),
	)
	return root
}

// run opens the App, runs fn and prints its result as indented JSON.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, a *App) (interface{}, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := c.open(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	result, err := fn(ctx, a)
	if !isNil(result) {
		if pErr := printJSON(cmd.OutOrStdout(), result); pErr != nil && err == nil {
			err = pErr
		}
	}
	c.pushMetrics(cmd.Name())
	return err
}

func (c *cli) pushMetrics(command string) {
	if !c.push || c.cfg.Monitoring.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := monitoring.Push(ctx, c.cfg.Monitoring.PushgatewayURL, c.cfg.Monitoring.Job); err != nil {
		logger.Log.Warn("metrics push failed", zap.String("command", command), zap.Error(err))
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map:
		return rv.IsNil()
	}
	return false
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) validateCmd() *cobra.Command {
	var withQuestions, strict bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check missions and achievements against the validation profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				report, err := a.services.reconciler.Validate(ctx, withQuestions)
				if err != nil {
					return nil, err
				}
				if strict && report.Errors > 0 {
					return report, fmt.Errorf("%d invalid missions, %d errors: %w", report.Invalid, report.Errors, errIssuesFound)
				}
				return report, nil
			})
		},
	}
	cmd.Flags().BoolVar(&withQuestions, "questions", false, "also load the questions catalog and check question references")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any error is found")
	return cmd
}

func (c *cli) reconcileCmd() *cobra.Command {
	var opts service.ReconcileOptions
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Validate, normalize battle configs, grant achievements and optionally sync the leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				return a.services.reconciler.Run(ctx, opts)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report without writing")
	cmd.Flags().BoolVar(&opts.SkipGrants, "skip-grants", false, "do not grant achievements")
	cmd.Flags().BoolVar(&opts.SyncLeaderboard, "sync-leaderboard", false, "recompute scores and refresh leaderboard entries")
	cmd.Flags().BoolVar(&opts.WithQuestions, "questions", false, "also check question references")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "List or run named data migrations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				out := make([]map[string]string, 0)
				for _, m := range a.services.migrations.List() {
					out = append(out, map[string]string{"name": m.Name, "collection": m.Collection, "description": m.Description})
				}
				return out, nil
			})
		},
	}

	var dryRun bool
	run := &cobra.Command{
		Use:   "run NAME",
		Short: "Apply one migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				started := time.Now()
				ledger := a.services.ledger
				entry := ledger.Start("migrate:"+args[0], dryRun)
				report, err := a.services.migrations.Run(ctx, args[0], dryRun)
				monitoring.ObserveRun("migrate", started, err)
				if report != nil {
					entry.Normalized = report.Written
				}
				ledger.Finish(entry, report, err)
				return report, err
			})
		},
	}
	run.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")

	cmd.AddCommand(list, run)
	return cmd
}

func (c *cli) grantCmd() *cobra.Command {
	var userID string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "grant-achievements",
		Short: "Grant every achievement users are eligible for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				started := time.Now()
				var report *service.GrantReport
				var err error
				if userID != "" {
					report, err = a.services.achievements.GrantForUser(ctx, userID, dryRun)
				} else {
					report, err = a.services.achievements.GrantAll(ctx, dryRun)
				}
				monitoring.ObserveRun("grant-achievements", started, err)
				return report, err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only this user id")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	return cmd
}

func (c *cli) leaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Maintain the leaderboard collection",
	}

	var dryRun bool
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Recompute scores and upsert leaderboard and usernames entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				started := time.Now()
				report, err := a.services.leaderboard.Sync(ctx, dryRun)
				monitoring.ObserveRun("leaderboard-sync", started, err)
				return report, err
			})
		},
	}
	sync.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")

	var limit int
	top := &cobra.Command{
		Use:   "top",
		Short: "Show the highest scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				return a.services.leaderboard.Top(ctx, limit)
			})
		},
	}
	top.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries")

	cmd.AddCommand(sync, top)
	return cmd
}

func (c *cli) scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score UID",
		Short: "Compute one user's canonical score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				score, user, err := a.services.leaderboard.UserScore(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"userId":     user.ID,
					"username":   user.Username,
					"level":      user.EffectiveLevel(),
					"experience": user.Experience,
					"stats":      user.Stats,
					"score":      score,
				}, nil
			})
		},
	}
}

func (c *cli) missionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missions",
		Short: "Mission catalog reports",
	}
	report := &cobra.Command{
		Use:   "report",
		Short: "Missions grouped by type, missing order fields and battle missions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				return a.services.reports.Report(ctx)
			})
		},
	}
	availability := &cobra.Command{
		Use:   "availability UID",
		Short: "Explain which missions a user can start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				return a.services.reports.Availability(ctx, args[0])
			})
		},
	}
	cmd.AddCommand(report, availability)
	return cmd
}

func (c *cli) consistencyCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "consistency",
		Short: "Cross-check users, leaderboard and usernames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				report, err := a.services.consistency.Check(ctx)
				if err != nil {
					return nil, err
				}
				if strict && !report.Consistent() {
					return report, fmt.Errorf("collections disagree: %w", errIssuesFound)
				}
				return report, nil
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when anything disagrees")
	return cmd
}

func (c *cli) backupCmd() *cobra.Command {
	var collections []string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Dump collections as JSON files into object storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				started := time.Now()
				report, err := a.services.backup.Backup(ctx, collections)
				monitoring.ObserveRun("backup", started, err)
				return report, err
			})
		},
	}
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "collections to dump (default: catalog and user data)")
	return cmd
}

func (c *cli) restoreCmd() *cobra.Command {
	var opts service.ImportOptions
	cmd := &cobra.Command{
		Use:   "restore PREFIX",
		Short: "Import every collection file under a backup prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				started := time.Now()
				reports, err := a.services.importer.Restore(ctx, args[0], opts)
				monitoring.ObserveRun("restore", started, err)
				return reports, err
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report without writing")
	cmd.Flags().BoolVar(&opts.AllowUserData, "include-user-data", false, "also restore users, leaderboard and usernames")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	var opts service.ImportOptions
	var format string
	cmd := &cobra.Command{
		Use:   "import COLLECTION FILE",
		Short: "Load a JSON or YAML array of documents with an id field into a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, file := args[0], args[1]
			if format == "" {
				f, err := docstore.FormatFromName(file)
				if err != nil {
					return err
				}
				format = f
			}
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				f, err := os.Open(file)
				if err != nil {
					return nil, err
				}
				defer f.Close()
				return a.services.importer.Import(ctx, collection, f, format, opts)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default: from the file extension)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report without writing")
	cmd.Flags().BoolVar(&opts.AllowUserData, "include-user-data", false, "allow importing into user data collections")
	return cmd
}

func (c *cli) cleanCmd() *cobra.Command {
	var collections []string
	var opts service.CleanOptions
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete every document of the given collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				started := time.Now()
				report, err := a.services.cleanup.Clean(ctx, collections, opts)
				monitoring.ObserveRun("clean", started, err)
				return report, err
			})
		},
	}
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "collections to wipe (default: catalog collections)")
	cmd.Flags().BoolVar(&opts.Confirm, "yes", false, "confirm the deletion")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "count without deleting")
	cmd.Flags().BoolVar(&opts.AllowUserData, "include-user-data", false, "allow wiping user data collections")
	return cmd
}

func (c *cli) runsCmd() *cobra.Command {
	var command string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) (interface{}, error) {
				return a.services.ledger.Recent(command, limit)
			})
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "only runs of this command")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs")
	return cmd
}

// tokenCmd issues an admin token for the HTTP API. It needs no backend.
func (c *cli) tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin JWT for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(c.cfg.JWT.Secret) == "" {
				return errors.New("jwt.secret is not configured")
			}
			if ttl <= 0 {
				ttl = c.cfg.JWT.ExpireTime
			}
			token, err := util.GenerateJWT(subject, model.Admin, c.cfg.JWT.Secret, ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"token":     token,
				"subject":   subject,
				"expiresIn": ttl.String(),
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: jwt.expire_hours)")
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := c.open(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return a.Serve(ctx)
		},
	}
}
