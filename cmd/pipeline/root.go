package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/restaurant-pipeline/internal/app"
	"github.com/JakeFAU/restaurant-pipeline/internal/config"
	"github.com/JakeFAU/restaurant-pipeline/internal/logging"
)

// cli carries state shared by the subcommands of one invocation.
type cli struct {
	cfgFile string
	v       *viper.Viper
	cfg     config.Config
	logger  *zap.Logger
	app     *app.App
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Batch pipeline that discovers and archives restaurant web pages.",
		SilenceUsage:  true,
		SilenceErrors: true,

		// Subcommands find the services on c; close releases them even when
		// RunE fails.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWith(c.v, c.cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return err
			}
			c.cfg, c.logger = cfg, logger

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			c.app = a
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "YAML config file (env PIPELINE_* always applies)")
	cmd.AddCommand(newRunCmd(c), newMigrateCmd(c), newFrontierCmd(c))
	return cmd
}

// execute runs one invocation and always releases the application services.
func execute(ctx context.Context, args []string, configure func(*cobra.Command)) error {
	c := &cli{v: viper.New()}
	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	if configure != nil {
		configure(cmd)
	}
	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, c.close(context.WithoutCancel(ctx)))
}

func (c *cli) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	defer c.logger.Sync() //nolint:errcheck // best-effort flush
	return c.app.Close(ctx)
}

func (c *cli) services() (*app.App, error) {
	if c.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return c.app, nil
}
