package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/milk9111/gravnav/navsys"
	"github.com/milk9111/gravnav/server"
	"github.com/milk9111/gravnav/telemetry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := telemetry.DefaultConfig()
	if traceExp != "" {
		tcfg.Exporter = traceExp
	}
	tp, shutdownTracing, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flynav: flush traces", "err", err)
		}
	}()

	sys, closeFn, err := openSystem(logger, navsys.WithTracerProvider(tp))
	if err != nil {
		return err
	}
	defer closeFn()

	if watchPath != "" {
		go func() {
			if err := sys.WatchScene(ctx, watchPath); err != nil {
				logger.Error("flynav: watch stopped", "path", watchPath, "err", err)
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           server.NewRouter(sys, logger, otelgin.WithTracerProvider(tp)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("flynav: listening", "addr", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("flynav: shutting down")
	return srv.Shutdown(shutdownCtx)
}
