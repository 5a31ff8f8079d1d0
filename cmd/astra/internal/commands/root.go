// Package commands implements the astra command tree.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/astra/config"
	"github.com/hupe1980/astra/logging"
)

// env is the state shared by all subcommands, populated before they run.
type env struct {
	settings config.Settings
	logger   *logging.AstraLogger

	logLevel  string
	logFormat string
}

// NewRoot builds the astra root command.
func NewRoot() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "astra",
		Short:         "Run teams of LLM agents",
		Long:          "astra runs agent applications: agents with roles and goals that complete tasks in order using local or remote LLMs and tools.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "log level: debug, info, warn, error (default $ASTRA_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&e.logFormat, "log-format", "", "log format: text or json (default $ASTRA_LOG_FORMAT)")

	root.AddCommand(
		newRunCmd(e),
		newServeCmd(e),
		newToolsCmd(e),
		newToolCmd(e),
	)
	return root
}

func (e *env) init(cmd *cobra.Command) error {
	settings, err := config.LoadSettings(cmd.Context())
	if err != nil {
		return err
	}
	e.settings = settings

	level := settings.LogLevel
	if e.logLevel != "" {
		level = e.logLevel
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	format := settings.LogFormat
	if e.logFormat != "" {
		format = e.logFormat
	}

	e.logger = logging.NewLogger(&logging.LoggerConfig{
		Level:     lvl,
		Format:    format,
		Output:    cmd.ErrOrStderr(),
		Component: "cli",
	})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, e.logger))
	return nil
}

func loadApp(path string) (*config.AppFile, error) {
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("app file: %w", err)
	}
	return config.LoadAppFile(path)
}
