// Package cli implements the gepetto command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/gepetto/pkg/config"
	"github.com/ekaya-inc/gepetto/pkg/database"
	"github.com/ekaya-inc/gepetto/pkg/llm"
	"github.com/ekaya-inc/gepetto/pkg/logging"
	"github.com/ekaya-inc/gepetto/pkg/pricing"
	"github.com/ekaya-inc/gepetto/pkg/repositories"
)

// app holds state shared by all subcommands for one invocation.
type app struct {
	version string

	// Global flag values.
	configPath string
	verbose    bool
	noColor    bool

	cfg     *config.Config
	logger  *zap.Logger
	table   *pricing.Table
	factory llm.LLMClientFactory

	usageRepo repositories.UsageRepository
	recorder  *llm.AsyncUsageRecorder
	db        *database.DB

	// Injected by tests; when set, the corresponding setup step is skipped.
	presetConfig  *config.Config
	presetFactory llm.LLMClientFactory
	presetUsage   repositories.UsageRepository
}

// Option customizes the command tree, mainly for tests.
type Option func(*app)

// WithConfig uses cfg instead of loading configuration from file and environment.
func WithConfig(cfg *config.Config) Option {
	return func(a *app) { a.presetConfig = cfg }
}

// WithClientFactory uses f to create model clients.
func WithClientFactory(f llm.LLMClientFactory) Option {
	return func(a *app) { a.presetFactory = f }
}

// WithUsageRepository reads the usage ledger from repo instead of opening a database.
func WithUsageRepository(repo repositories.UsageRepository) Option {
	return func(a *app) { a.presetUsage = repo }
}

// Execute runs the command line with args and always releases the usage
// ledger afterwards, so queued records are flushed even when a command fails.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer, opts ...Option) error {
	a := &app{version: version}
	for _, opt := range opts {
		opt(a)
	}
	defer a.teardown()

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "gepetto",
		Short: "Metered chat and function calls against OpenAI-compatible endpoints",
		Long: `Gepetto sends chat and forced function-call requests to an OpenAI-compatible
endpoint and reports the token usage and dollar cost of every call, priced from
a built-in per-model table.`,
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file (default gepetto.yaml if present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newModelsCmd(a),
		newPriceCmd(a),
		newChatCmd(a),
		newCallCmd(a),
		newBatchCmd(a),
		newPingCmd(a),
		newUsageCmd(a),
	)

	return root
}

// setup loads configuration and builds the shared logger, price table, and
// client factory. Usage recording is wired when enabled.
func (a *app) setup(ctx context.Context) error {
	if a.noColor {
		color.NoColor = true
	}

	if a.presetConfig != nil {
		a.cfg = a.presetConfig
	} else {
		cfg, err := config.Load(a.configPath, a.version)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	level := a.cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(level, a.cfg.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger

	table, err := a.cfg.PriceTable()
	if err != nil {
		return err
	}
	a.table = table

	if a.presetUsage != nil {
		a.usageRepo = a.presetUsage
	} else if a.cfg.Usage.Enabled {
		if err := a.openUsageLedger(ctx); err != nil {
			return err
		}
	}

	if a.presetFactory != nil {
		a.factory = a.presetFactory
		return nil
	}

	factory := llm.NewClientFactory(a.table, a.logger)
	if a.usageRepo != nil {
		a.recorder = llm.NewAsyncUsageRecorder(a.usageRepo, a.logger, a.cfg.Usage.QueueSize)
		factory.SetRecorder(a.recorder)
	}
	a.factory = factory

	return nil
}

func (a *app) openUsageLedger(ctx context.Context) error {
	db, err := database.NewConnection(ctx, a.cfg.DatabaseConfig())
	if err != nil {
		return fmt.Errorf("open usage database: %s", logging.SanitizeError(err))
	}

	if err := database.RunMigrations(db, a.logger); err != nil {
		db.Close()
		return fmt.Errorf("migrate usage database: %w", err)
	}

	a.logger.Debug("Usage ledger enabled",
		zap.String("database", logging.SanitizeConnectionString(a.cfg.Usage.DatabaseURL)))

	a.db = db
	a.usageRepo = repositories.NewUsageRepository(db.Pool)
	return nil
}

// teardown flushes queued usage records before the database is closed.
func (a *app) teardown() {
	if a.recorder != nil {
		a.recorder.Close()
		a.recorder = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) client() (llm.LLMClient, error) {
	return a.factory.Create(a.cfg.LLMConfig())
}
