// Package sitectl implements the operator command line: schema bootstrap,
// seeding bundled locale strings and YAML content export/import.
package sitectl

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/bootstrap"
	"github.com/almarpuit/site/internal/platform/config"
	"github.com/almarpuit/site/internal/platform/observability"
	"github.com/almarpuit/site/internal/repositories"
)

// Opener opens the content store for a command.
type Opener func(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Registry, error)

// Options customises the command tree. Zero values select the production wiring.
type Options struct {
	Out    io.Writer
	Open   Opener
	Config func(ctx context.Context, logger *zap.Logger, opts ...config.Option) (config.Config, error)
}

type app struct {
	opts   Options
	flags  *viper.Viper
	logger *zap.Logger
	cfg    config.Config
}

// NewRootCommand builds the sitectl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Open == nil {
		opts.Open = bootstrap.OpenRegistry
	}
	if opts.Config == nil {
		opts.Config = loadConfig
	}
	a := &app{opts: opts, flags: viper.New()}
	a.flags.SetEnvPrefix("ALMAR")
	a.flags.AutomaticEnv()

	root := &cobra.Command{
		Use:           "sitectl",
		Short:         "Operate the Almar Puit content store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	if opts.Out != nil {
		root.SetOut(opts.Out)
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "path to a YAML config file")
	pf.String("env-file", ".env", "path to an optional .env file")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	_ = a.flags.BindPFlag("config_file", pf.Lookup("config"))
	_ = a.flags.BindPFlag("env_file", pf.Lookup("env-file"))
	_ = a.flags.BindPFlag("log_level", pf.Lookup("log-level"))

	root.AddCommand(
		a.schemaCommand(),
		a.seedCommand(),
		a.exportCommand(),
		a.importCommand(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	logger, err := observability.NewLogger(a.flags.GetString("log_level"))
	if err != nil {
		return err
	}
	a.logger = logger.Named("sitectl")

	var opts []config.Option
	if path := a.flags.GetString("env_file"); path != "" {
		opts = append(opts, config.WithEnvFile(path))
	}
	if path := a.flags.GetString("config_file"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg, err := a.opts.Config(ctx, a.logger, opts...)
	if err != nil {
		return fmt.Errorf("sitectl: load config: %w", err)
	}
	a.cfg = cfg
	return nil
}

// withRegistry opens the store, runs fn and closes the store.
func (a *app) withRegistry(ctx context.Context, fn func(repositories.Registry) error) (err error) {
	registry, err := a.opts.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("sitectl: open store: %w", err)
	}
	defer func() {
		if cerr := registry.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(registry)
}

func loadConfig(ctx context.Context, logger *zap.Logger, opts ...config.Option) (config.Config, error) {
	cfg, fetcher, err := bootstrap.LoadConfig(ctx, logger, opts...)
	if err != nil {
		return config.Config{}, err
	}
	if err := fetcher.Close(); err != nil {
		logger.Warn("secret fetcher close error", zap.Error(err))
	}
	return cfg, nil
}
