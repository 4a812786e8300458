package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/UCL-RITS/Submitty/internal/server"
)

// NewServeCommand serves NDJSON JSON-RPC requests on stdin/stdout until the
// client shuts the session down or closes stdin.
func NewServeCommand(path SettingsPath) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve JSON-RPC grading requests on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, path, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			s := server.NewWithConcurrency(cmd.InOrStdin(), cmd.OutOrStdout(), rt.logger, rt.settings.Server.MaxConcurrent)
			s.SetRateLimit(rt.settings.Server.RequestsPerSecond, rt.settings.Server.Burst)
			server.RegisterBuiltinHandlers(s, server.Deps{
				Grader:  rt.grader,
				Batch:   rt.batch,
				History: rt.history,
			})

			rt.logger.Info("serving",
				"version", server.EngineVersion,
				"max_concurrent", rt.settings.Server.MaxConcurrent,
				"requests_per_second", rt.settings.Server.RequestsPerSecond,
				"history", rt.history != nil)

			err = s.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
