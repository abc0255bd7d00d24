package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"MediaTrend/internal/app"
	"MediaTrend/internal/config"
	"MediaTrend/internal/logging"
)

var (
	okColor   = color.New(color.FgHiGreen)
	errColor  = color.New(color.FgHiRed)
	dimColor  = color.New(color.FgWhite, color.Faint)
	headColor = color.New(color.Bold)
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "mediatrend",
		Short:         "Sync streaming top 10 lists into Radarr and Sonarr",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file (default $MEDIATREND_CONFIG or settings.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler and the dashboard until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd, configPath)
			},
		},
		&cobra.Command{
			Use:   "run <job>",
			Short: "Execute one job now, e.g. netflix_movies",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runJob(cmd, configPath, args[0])
			},
		},
		&cobra.Command{
			Use:   "jobs",
			Short: "List job keys with their schedule",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _ := config.Load(config.ResolvePath(configPath))
				printJobs(cmd.OutOrStdout(), cfg)
				return nil
			},
		},
		&cobra.Command{
			Use:   "platforms",
			Short: "List supported streaming platforms",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				printPlatforms(cmd.OutOrStdout())
				return nil
			},
		},
	)
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func serve(cmd *cobra.Command, configPath string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	store := config.Open(config.ResolvePath(configPath))
	cfg := store.Current()
	level := logging.NewLevelVar(cfg.Logging.Level)
	logs := logging.NewBuffer(0, level)
	logger := logging.NewWithLevel(os.Stdout, level, logs.Handler())
	logger.Info("settings loaded", "path", store.Path())

	if err := app.New(store, logger, logs, level).Serve(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	logger.Info("application stopped")
	return nil
}

func runJob(cmd *cobra.Command, configPath, key string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	store := config.Open(config.ResolvePath(configPath))
	logger := logging.New(store.Current().Logging.Level)

	outcome, err := app.New(store, logger, nil, nil).RunJob(ctx, key)
	out := cmd.OutOrStdout()
	if err != nil {
		errColor.Fprintf(out, "%s failed: %v\n", key, err)
		if outcome.RunID != "" {
			dimColor.Fprintln(out, outcome.Summary())
		}
		return err
	}
	okColor.Fprintf(out, "%s done in %s\n", key, outcome.Duration.Round(time.Millisecond))
	fmt.Fprintln(out, outcome.Summary())
	return nil
}

func printJobs(w io.Writer, cfg config.Config) {
	keys := make([]string, 0, len(cfg.Scheduler.Jobs))
	for key := range cfg.Scheduler.Jobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	headColor.Fprintf(w, "%-24s %-6s %s\n", "JOB", "TIME", "STATE")
	for _, key := range keys {
		job := cfg.Scheduler.Jobs[key]
		state, c := "disabled", dimColor
		if job.Enabled {
			state, c = "enabled", okColor
		}
		fmt.Fprintf(w, "%-24s %-6s ", key, job.Time)
		c.Fprintln(w, state)
	}
	dimColor.Fprintf(w, "timezone %s\n", cfg.Scheduler.Location())
}

func printPlatforms(w io.Writer) {
	headColor.Fprintf(w, "%-12s %-14s %-16s %s\n", "ID", "NAME", "SLUG", "SOURCE")
	for _, p := range config.Platforms() {
		fmt.Fprintf(w, "%-12s %-14s %-16s %s\n", p.ID, p.Name, p.Slug, p.Scanner)
	}
}
