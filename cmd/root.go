package cmd

import (
	"log/slog"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/postboard/apiserver/config"
	"github.com/postboard/apiserver/internal/logger"
)

const envFileFlag = "env-file"

// rootFlags are shared by every runnable subcommand.
var rootFlags = map[string]cobraflags.Flag{
	envFileFlag: &cobraflags.StringFlag{
		Name:  envFileFlag,
		Value: "",
		Usage: "Optional dotenv file loaded before the environment (defaults to .env when ENV=dev)",
	},
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "postboard",
	Short:         "Postboard API server",
	Long:          `Postboard serves users, posts and likes over HTTP and archives activity events.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(rootFlags[envFileFlag].GetString())
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)
	return cfg, log, nil
}
