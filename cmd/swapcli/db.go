package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/repository"
	"github.com/hxuan190/swap-engine/internal/services/recorder"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:       "migrate <up|down>",
	Short:     "Apply or roll back database migrations",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

var (
	reconcileMinAge time.Duration
	reconcileExpire time.Duration
	reconcileLimit  int
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Resolve pending transactions against the network",
	Long: `Look up every pending transaction older than --min-age on chain and mark it
confirmed or failed. Transactions the network never saw are failed after
--expire-after.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(migrateCmd, reconcileCmd)
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "Migrations to roll back with down")

	defaults := recorder.DefaultReconcileOptions()
	reconcileCmd.Flags().DurationVar(&reconcileMinAge, "min-age", defaults.MinAge, "Skip records younger than this")
	reconcileCmd.Flags().DurationVar(&reconcileExpire, "expire-after", defaults.ExpireAfter, "Fail unseen records older than this")
	reconcileCmd.Flags().IntVar(&reconcileLimit, "limit", defaults.Limit, "Records per run")
}

func runMigrate(_ *cobra.Command, args []string) error {
	conf := &config.DatabaseConfig{}
	if err := conf.Load(); err != nil {
		printError(err)
		return err
	}
	conf.SkipMigrations = true
	db, err := repository.Open(conf)
	if err != nil {
		printError(err)
		return err
	}
	defer db.Close()

	switch args[0] {
	case "up":
		err = db.Migrate(conf)
	case "down":
		err = db.MigrateDown(conf, migrateSteps)
	default:
		err = fmt.Errorf("unknown direction %q, want up or down", args[0])
	}
	if err != nil {
		printError(err)
		return err
	}
	color.Green("Migrations %s done.", args[0])
	return nil
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	p, err := newPipeline()
	if err != nil {
		printError(err)
		return err
	}
	rec, db, err := openRecorder()
	if err != nil {
		printError(err)
		return err
	}
	defer db.Close()

	s := startSpinner(" Checking pending transactions...")
	report, err := rec.Reconcile(cmd.Context(), p.pool, recorder.ReconcileOptions{
		MinAge:      reconcileMinAge,
		ExpireAfter: reconcileExpire,
		Limit:       reconcileLimit,
	})
	s.Stop()
	if err != nil {
		printError(err)
		return err
	}
	if jsonOutput() {
		return printJSON(report)
	}
	fmt.Printf("Checked %d: %s confirmed, %s failed, %s expired, %d still pending\n",
		report.Checked,
		color.GreenString("%d", report.Confirmed),
		color.RedString("%d", report.Failed),
		color.YellowString("%d", report.Expired),
		report.Pending)
	return nil
}
