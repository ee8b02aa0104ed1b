package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Cyclone1070/sidecar/internal/app"
	"github.com/Cyclone1070/sidecar/internal/config"
	"github.com/spf13/cobra"
)

// globalFlags holds flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "sidecar",
		Short:         "Local LLM sidecar with tool calling",
		Long:          "sidecar runs a multi-provider chat orchestrator with built-in and external tools behind a local HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usage(err)
	})

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file path (.json or .toml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override: debug|info|warn|error")

	root.AddCommand(
		newServeCmd(flags),
		newChatCmd(flags),
		newToolsCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the explicit config file when given and the default
// location otherwise.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = loader.LoadFile(f.configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, usage(fmt.Errorf("load config: %w", err))
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, nil
}

// newApp builds the application and connects the configured tool servers.
func newApp(ctx context.Context, cfg *config.Config, logOutput io.Writer) (*app.App, error) {
	if logOutput == nil {
		logOutput = os.Stderr
	}
	a, err := app.New(ctx, cfg, app.Options{Version: version, LogOutput: logOutput})
	if err != nil {
		return nil, err
	}
	a.ConnectServers(ctx)
	return a, nil
}
