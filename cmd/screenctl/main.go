// Command screenctl ingests screening workbooks and manages submissions.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mind-engage/emoscreen/internal/config"
	"github.com/mind-engage/emoscreen/internal/db"
	"github.com/mind-engage/emoscreen/internal/grading"
	"github.com/mind-engage/emoscreen/internal/logger"
	"github.com/mind-engage/emoscreen/internal/metrics"
	"github.com/mind-engage/emoscreen/internal/schema"
	"github.com/mind-engage/emoscreen/internal/scoring"
	"github.com/mind-engage/emoscreen/internal/storage"
	"github.com/mind-engage/emoscreen/internal/submission"
	syncx "github.com/mind-engage/emoscreen/internal/sync"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

// app holds the wiring shared by every subcommand. Fields are filled by
// setup; commands that never touch the database skip openDB.
type app struct {
	envFiles []string

	cfg     config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	blobs   storage.BlobStore

	db      *sql.DB
	events  *syncx.EventRepo
	schemas *schema.Cache
	drafts  *submission.Service
	scorer  *scoring.Service
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "screenctl",
		Short:         "Screening configuration ingestion and submission scoring",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "dotenv file(s) to load before the environment (default .env)")

	root.AddCommand(newIngestCmd(a), newValidateCmd(a), newSubmissionCmd(a))
	return root
}

func (a *app) setup(ctx context.Context) error {
	a.cfg = config.Load(a.envFiles...)
	log, err := logger.New(a.cfg.LogMode)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.log = log
	a.metrics = metrics.New()
	blobs, err := storage.Open(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	a.blobs = blobs
	return nil
}

// openDB connects to the configured store and builds the services on top.
func (a *app) openDB(ctx context.Context) error {
	driver, err := db.ParseDriver(a.cfg.DBDriver)
	if err != nil {
		return err
	}
	sqlDB, err := db.Open(ctx, driver, a.cfg.DBDSN, workbook.Screening())
	if err != nil {
		return err
	}
	a.db = sqlDB
	a.events = syncx.NewEventRepo(a.cfg.SiteID)
	a.schemas = schema.NewCache(schema.StoreLoader(sqlDB, workbook.Screening()))
	store := submission.NewSQLStore(sqlDB, a.events)
	a.drafts = submission.NewService(store, a.schemas, grading.NewDefaultResolver(), a.log)
	a.scorer = scoring.NewService(store, a.schemas,
		scoring.WithLogger(a.log),
		scoring.WithMetrics(a.metrics),
		scoring.WithConcurrency(a.cfg.ScoringConcurrency))
	a.log.Debug("database ready", "driver", driver)
	return nil
}

func (a *app) close() error {
	var err error
	if a.metrics != nil {
		if werr := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); werr != nil {
			a.log.Warn("metrics textfile", "path", a.cfg.MetricsTextfile, "err", werr)
		}
	}
	if a.db != nil {
		err = a.db.Close()
	}
	if a.log != nil {
		a.log.Sync()
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
