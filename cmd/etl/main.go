// Command notas-etl extracts brokerage notes from PDF into CSV files and a database.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/notas-etl/pkg/config"
	"github.com/FACorreiaa/notas-etl/pkg/cron"
)

// scheduledRunTimeout bounds a single sweep started by the schedule command
const scheduledRunTimeout = 30 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "notas-etl",
		Short:         "Extract brokerage notes from PDF",
		Long:          `Extract brokerage notes (notas de corretagem) from PDF into CSV files and a relational database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newBrokeragesCmd(), newScheduleCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <brokerage>",
		Short: "Process every PDF in the brokerage input folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			deps, err := InitDependencies(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("failed to initialize dependencies", slog.Any("error", err))
				return err
			}
			defer deps.Cleanup()
			defer deps.FlushMetrics()

			summary, err := deps.Pipeline.Run(cmd.Context(), args[0])
			if err != nil {
				logger.Error("run failed", slog.Any("error", err))
				return err
			}
			if summary.Failed > 0 {
				logger.Warn("some documents failed", slog.Int("failed", summary.Failed))
			}
			return nil
		},
	}
}

func newBrokeragesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "brokerages",
		Short: "List the configured brokerages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			deps, err := InitRegistry(cfg, logger)
			if err != nil {
				logger.Error("failed to load brokerage rules", slog.Any("error", err))
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFLAVOR\tPAGES")
			for _, id := range deps.Registry.IDs() {
				b, err := deps.Registry.Get(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Flavor, b.Pages)
			}
			return w.Flush()
		},
	}
}

func newScheduleCmd() *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule <brokerage>",
		Short: "Process the brokerage input folder on a cron schedule until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if spec != "" {
				cfg.ETL.Schedule = spec
			}

			deps, err := InitDependencies(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("failed to initialize dependencies", slog.Any("error", err))
				return err
			}
			defer deps.Cleanup()

			brokerage := args[0]
			if _, err := deps.Registry.Get(brokerage); err != nil {
				logger.Error("unknown brokerage", slog.Any("error", err))
				return err
			}

			scheduler := cron.NewScheduler("notas-etl "+brokerage, cfg.ETL.Schedule, scheduledRunTimeout,
				func(ctx context.Context) error {
					defer deps.FlushMetrics()
					_, err := deps.Pipeline.Run(ctx, brokerage)
					return err
				}, logger)

			if err := scheduler.Start(); err != nil {
				return err
			}
			logger.Info("waiting for next run", slog.Time("next", scheduler.Next()))

			<-cmd.Context().Done()
			<-scheduler.Stop().Done()
			logger.Info("scheduler stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "cron spec overriding ETL_SCHEDULE")
	return cmd
}

func setup(out io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(out, "failed to load config: %v\n", err)
		return nil, nil, err
	}
	return cfg, newLogger(out, cfg.Log), nil
}

func newLogger(out io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
