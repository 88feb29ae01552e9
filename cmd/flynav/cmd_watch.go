package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys, closeFn, err := openSystem(logger)
	if err != nil {
		return err
	}
	defer closeFn()

	logger.Info("flynav: watching", "path", args[0])
	return sys.WatchScene(ctx, args[0])
}
