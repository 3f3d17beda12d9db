package main

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/subs-ai/internal/config"
	"github.com/MimeLyc/subs-ai/internal/service"
	"github.com/MimeLyc/subs-ai/pkg/file"
	"github.com/MimeLyc/subs-ai/pkg/log"
)

type flags struct {
	debug          bool
	local          bool
	sync           bool
	ignoreExisting bool
	stateDir       string
}

func (f *flags) options() []config.Option {
	opts := []config.Option{
		config.WithDebug(f.debug),
		config.WithSync(f.sync),
		config.WithLocal(f.local),
		config.WithIgnoreExisting(f.ignoreExisting),
	}
	if f.stateDir != "" {
		opts = append(opts, config.WithStateDir(f.stateDir))
	}
	return opts
}

func loadConfig(f *flags) (*config.Config, error) {
	if err := config.LoadEnvFile(); err != nil {
		return nil, err
	}
	cfg, err := config.NewFromEnv(f.options()...)
	if err != nil {
		return nil, service.WrapError(err, service.ErrConfig, "load configuration")
	}
	log.InitLogger(log.ParseLevel(cfg.Runtime.LogLevel))
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           "subs-ai",
		Short:         "Translate media subtitles with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&f.stateDir, "state-dir", "", "Override STATE_DIR")

	rootCmd.AddCommand(newRunCommand(f))
	rootCmd.AddCommand(newWatchCommand(f))
	rootCmd.AddCommand(newStatusCommand(f))
	return rootCmd
}

func addTranslateFlags(cmd *cobra.Command, f *flags) {
	cmd.Flags().BoolVar(&f.local, "local", false, "Use the local translation server")
	cmd.Flags().BoolVar(&f.sync, "sync", false, "Translate with direct requests instead of the batch API")
	cmd.Flags().BoolVar(&f.ignoreExisting, "ignore-existing-translation", false, "Translate even when a target language subtitle exists")
}

func newRunCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pattern>",
		Short: "Translate the media files matching a glob pattern; a trailing / scans a directory recursively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			paths, err := file.FindMedia(args[0])
			if err != nil {
				return fmt.Errorf("find media for %q: %w", args[0], err)
			}
			if len(paths) == 0 {
				log.Warn("No files found for pattern %s", args[0])
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.pipeline.Run(ctx, paths); err != nil {
				service.NewDefaultErrorHandler().Handle(err)
				return err
			}
			return nil
		},
	}
	addTranslateFlags(cmd, f)
	return cmd
}

func newWatchCommand(f *flags) *cobra.Command {
	var cronExpr string
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Rescan directories on a cron schedule and translate new media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			if cronExpr == "" {
				cronExpr = cfg.Runtime.CronExpr
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			c := cron.New(cron.WithLogger(cron.DiscardLogger))
			if _, err := a.pipeline.Schedule(ctx, c, cronExpr, args); err != nil {
				return err
			}
			log.Info("Watching %d directories with schedule %q", len(args), cronExpr)
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		},
	}
	addTranslateFlags(cmd, f)
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Override CRON_EXPR")
	return cmd
}

func newStatusCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List the batch jobs that are still pending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.local = true // status never calls the provider
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			st, closeState, err := openState(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeState()

			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(st.Jobs.Pending(), st.Translations.Len()))
			return nil
		},
	}
}
