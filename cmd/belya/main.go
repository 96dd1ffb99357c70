// belya is the voice-driven supervisor CLI: it routes intents to
// specialist agents, keeps durable session history, and tracks quota
// usage for the code-generation service.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ahmedaymanzekry/codex-belya/internal/config"
	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
	"github.com/ahmedaymanzekry/codex-belya/internal/policy"
	"github.com/ahmedaymanzekry/codex-belya/internal/quota"
	"github.com/ahmedaymanzekry/codex-belya/internal/registry"
	"github.com/ahmedaymanzekry/codex-belya/internal/specialists"
	"github.com/ahmedaymanzekry/codex-belya/internal/store"
	"github.com/ahmedaymanzekry/codex-belya/internal/supervisor"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "belya",
	Short: "Belya - voice supervisor for coding sessions",
	Long: `Belya routes spoken intents to specialist agents: code generation,
git branch operations, repository research, and session control.

Session history, branch context, and quota windows persist in SQLite
under .belya/ so a conversation survives restarts.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspace == "" {
			workspace, _ = os.Getwd()
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("debug logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// app bundles the wired supervisor components for a CLI invocation.
type app struct {
	cfg     *config.Config
	store   *store.Store
	tracker *quota.Tracker
	reg     *registry.Registry
	router  *supervisor.Router
}

// openApp loads config and wires the store, quota tracker, specialist
// registry, approval gate, and router.
func openApp() (*app, error) {
	cfg, err := config.Load(config.DefaultPath(workspace))
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Store.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, dbPath)
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	st.SetCompactionPolicy(cfg.Compaction.MaxRecords, cfg.Compaction.RetainRecords)

	tracker, err := quota.NewTracker(st, map[quota.Kind]quota.WindowConfig{
		quota.KindShort: {Label: "5-hour", Duration: cfg.ShortWindowDuration(), Capacity: cfg.Quota.Short.Capacity},
		quota.KindLong:  {Label: "weekly", Duration: cfg.LongWindowDuration(), Capacity: cfg.Quota.Long.Capacity},
	}, cfg.Quota.Thresholds)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	deps := specialists.Deps{
		Git:    specialists.NewExecGitClient(workspace),
		Search: specialists.NewExecSearchClient(workspace),
		Store:  st,
	}
	var codegen *specialists.GenAIClient
	if cfg.LLM.APIKey != "" {
		codegen, err = specialists.NewGenAIClient(cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		deps.Codegen = codegen
	} else {
		logger.Warn("no API key configured; code-generation specialist disabled")
	}

	reg := registry.NewRegistry()
	if err := specialists.RegisterAll(reg, deps); err != nil {
		_ = st.Close()
		return nil, err
	}

	router := supervisor.NewRouter(st, reg, policy.NewGate(), tracker)
	if codegen != nil {
		router.SetClassifier(codegen)
	}

	return &app{cfg: cfg, store: st, tracker: tracker, reg: reg, router: router}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: cwd)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
