package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/hydrochem-cli/internal/config"
	"github.com/KaramelBytes/hydrochem-cli/internal/metrics"
	"github.com/KaramelBytes/hydrochem-cli/internal/store"
	"github.com/KaramelBytes/hydrochem-cli/internal/utils"
)

var (
	// Global flags
	cfgFile         string
	debug           bool
	flagDBPath      string
	flagMetricsFile string

	// Loaded configuration
	cfg *cfgpkg.Global

	cmdStart time.Time
)

var rootCmd = &cobra.Command{
	Use:   "hydrochem",
	Short: "hydrochem: ionic equivalence, charge balance and hydrochemical diagrams",
	Long: `hydrochem turns long-format laboratory exports into wide mg/L and meq/L tables,
checks the ionic charge balance, filters records with a small expression language and
projects them onto Piper, Stiff, Gibbs and Mifflin diagrams.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdStart = time.Now()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		metrics.CommandDuration.WithLabelValues(cmd.Name()).Observe(time.Since(cmdStart).Seconds())
		path := flagMetricsFile
		if path == "" && cfg != nil {
			path = cfg.MetricsFile
		}
		if path == "" {
			return nil
		}
		path, err := utils.ExpandHome(path)
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(path); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
		debugf("writing metrics to %s", path)
		return metrics.WriteTextfile(path)
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.hydrochem/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite run store (overrides config db_path)")
	rootCmd.PersistentFlags().StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus textfile metrics here after the command")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{
			ParameterColumn: "Parametro",
			ValueColumn:     "Valor",
			PointColumn:     "Punto",
			DateColumn:      "Fecha",
			DateFormat:      "02/01/2006",
			ErrorThreshold:  10,
		}
	}
	cfg = c
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}
}

func debugf(format string, args ...any) {
	if debug {
		fmt.Fprintf(os.Stderr, "[debug] "+format+"\n", args...)
	}
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "⚠ "+format+"\n", args...)
}

// openStore opens and migrates the configured run store.
func openStore(ctx context.Context) (*store.Store, *sql.DB, error) {
	if cfg.DBPath == "" {
		return nil, nil, fmt.Errorf("no run store configured (set db_path or pass --db)")
	}
	path, err := utils.ExpandHome(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	debugf("opening run store %s", path)
	db, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	s := store.New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate run store: %w", err)
	}
	return s, db, nil
}
