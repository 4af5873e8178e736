package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/postboard/apiserver/internal/events"
	"github.com/postboard/apiserver/internal/mq"
	"github.com/postboard/apiserver/internal/storage"
)

// workerCmd archives activity events from the broker into object storage.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Archive activity events into object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.MQ.Backend == "" {
			return errors.New("MQ_BACKEND is required for the worker")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
		}

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer broker.Close()

		err = events.NewArchiver(objects, log).Run(ctx, broker)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	cobraflags.RegisterMap(workerCmd, rootFlags)
	rootCmd.AddCommand(workerCmd)
}
