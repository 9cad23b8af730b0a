package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/runner"
	"github.com/harunnryd/voxa/pkg/voxa"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	noBanner   bool

	cfg    voxa.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "voxa",
		Short: "Voice assistant with tool calling",
		Long: `voxa answers spoken or typed requests with a language model that can
call local tools (time, weather, web search, calculator, system info).

Speech input is read from recorded audio files and replies are written
as audio files, so any recorder and player can be plugged in.`,
		Version:       runner.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to config file (yaml, json or toml)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before the config")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format override (text, json)")
	flags.BoolVar(&opts.noBanner, "no-banner", false, "Skip the startup banner")

	cmd.AddCommand(
		newChatCmd(opts),
		newVoiceCmd(opts),
		newAskCmd(opts),
		newToolsCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	cfg, err := voxa.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	o.cfg = cfg
	o.logger = logging.NewLogger(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel), cfg.LogFormat).
		With("environment", cfg.Environment)
	slog.SetDefault(o.logger)
	return nil
}

// run builds the app and supervises service until it returns or the
// process is interrupted.
func (o *rootOptions) run(cmd *cobra.Command, cfg voxa.Config, service func(ctx context.Context, app *voxa.App) error) error {
	app, err := voxa.Build(cfg, nil, o.logger)
	if err != nil {
		return err
	}
	bannerOut := cmd.ErrOrStderr()
	if o.noBanner {
		bannerOut = nil
	}
	r := runner.NewLifecycleRunner(func(ctx context.Context) error {
		return service(ctx, app)
	}, runner.Options{
		Drainer: app,
		Banner:  bannerOut,
		Hooks: runner.Hooks{
			OnStart: app.ServeMetrics,
			OnStop:  func() { o.logger.Info("voxa_stopped") },
		},
	})
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Run(ctx)
}
