package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"releasewatch/internal/app"
)

const shutdownTimeout = 45 * time.Second

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the release page and notify until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			a, err := app.New(ctx.appOptions())
			if err != nil {
				return err
			}
			if err := a.Start(cmd.Context()); err != nil {
				_ = a.Close()
				return err
			}

			var reason app.StopReason
			select {
			case sig := <-sigCh:
				reason = app.StopSIGTERM
				if sig == os.Interrupt {
					reason = app.StopSIGINT
				}
			case <-a.Done():
				reason = app.StopFatalError
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = a.Stop(stopCtx, reason)

			if reason == app.StopFatalError {
				if err := a.Err(); err != nil {
					return err
				}
				return errors.New("stopped unexpectedly")
			}
			return nil
		},
	}
}
