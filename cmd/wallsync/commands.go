package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/wallsync/internal/adapters/logfiles"
	"github.com/okian/wallsync/internal/adapters/repository"
	service "github.com/okian/wallsync/internal/app"
	"github.com/okian/wallsync/internal/config"
	"github.com/okian/wallsync/internal/synth"
	"github.com/okian/wallsync/pkg/logger"
)

// options are shared by every subcommand.
type options struct {
	configPath string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "wallsync",
		Short:         "Fuse interactive wall session logs into per-user datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", os.Getenv(config.EnvConfig),
		"YAML config file (env "+config.EnvConfig+")")

	root.AddCommand(newRunCommand(o), newMigrateCommand(o), newSynthCommand(o))
	return root
}

// load reads the configuration and initializes logging.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.LoadFile(cmd.Context(), o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWithWriter(cmd.ErrOrStderr(), logger.Format(strings.ToLower(cfg.LogFormat))); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	o.cfg = cfg
	return nil
}

func newRunCommand(o *options) *cobra.Command {
	var (
		sessions []string
		workers  int
		noDB     bool
	)
	command := &cobra.Command{
		Use:   "run",
		Short: "Fuse sessions and write their datasets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *o.cfg
			if len(sessions) > 0 {
				cfg.Sessions = sessions
			}
			if workers > 0 {
				cfg.WorkerCount = workers
			}
			if noDB {
				cfg.DBPath = ""
			}
			opts, err := service.FromConfig(&cfg)
			if err != nil {
				return err
			}
			svc := service.New(append(opts, service.WithLogger(logger.Get()))...)

			rep, err := svc.Run(cmd.Context())
			printReport(cmd, rep)
			return err
		},
	}
	command.Flags().StringSliceVar(&sessions, "session", nil, "Session ids to process (default: all in data_dir)") // --session=1,2 --session=3
	command.Flags().IntVar(&workers, "workers", 0, "Sessions processed in parallel (default: worker_count)")
	command.Flags().BoolVar(&noDB, "no-db", false, "Skip the SQLite store")
	return command
}

func printReport(cmd *cobra.Command, rep service.Report) {
	out := cmd.OutOrStdout()
	if rep.RunID == "" {
		return
	}
	fmt.Fprintf(out, "run %s: %d succeeded, %d failed in %s\n",
		rep.RunID, len(rep.Succeeded), len(rep.Failed), rep.Took.Round(time.Millisecond))
	failed := make([]string, 0, len(rep.Failed))
	for id := range rep.Failed {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		fmt.Fprintf(out, "  session %s: %v\n", id, rep.Failed[id])
	}
}

func newMigrateCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Manage the SQLite schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.cfg.DBPath == "" {
				return fmt.Errorf("%w: db_path is empty", config.ErrInvalidConfig)
			}
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			// Open applies pending migrations, so "down" and "version"
			// operate on an up-to-date schema.
			store, err := repository.Open(cmd.Context(), o.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if action == "down" {
				if err := store.MigrateDown(); err != nil {
					return err
				}
			}
			version, dirty, err := store.MigrateVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
}

func newSynthCommand(o *options) *cobra.Command {
	var (
		out string
		ids []string
		sc  = synth.DefaultConfig()
	)
	command := &cobra.Command{
		Use:   "synth",
		Short: "Generate scripted session logs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = o.cfg.DataDir
			}
			for i, id := range ids {
				c := sc
				c.Session = id
				c.Seed = sc.Seed + int64(i)
				s, err := synth.Generate(c)
				if err != nil {
					return err
				}
				if err := logfiles.Write(out, s.ID, s.Logs); err != nil {
					return err
				}
				logger.Get().Info(cmd.Context(), "session generated",
					logger.String("session", s.ID),
					logger.String("dir", logfiles.Dir(out, s.ID)),
					logger.Int("finger_touches", s.FingerTouches),
					logger.Int("injected_touches", s.InjectedTouches))
			}
			return nil
		},
	}
	command.Flags().StringVar(&out, "out", "", "Data directory to write into (default: data_dir)")
	command.Flags().StringSliceVar(&ids, "session", []string{sc.Session}, "Session ids to generate")
	command.Flags().DurationVar(&sc.Duration, "duration", sc.Duration, "Recorded time per session")
	command.Flags().Float64Var(&sc.Rate, "rate", sc.Rate, "Tracker sampling rate in Hz")
	command.Flags().Int64Var(&sc.Seed, "seed", sc.Seed, "Random seed of the first session")
	command.Flags().IntVar(&sc.Gestures, "gestures", sc.Gestures, "Touch gestures per user")
	return command
}
