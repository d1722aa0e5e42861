package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/observability"
	"github.com/xkilldash9x/shelfcheck/internal/orchestrator"
	"github.com/xkilldash9x/shelfcheck/internal/results"
	"github.com/xkilldash9x/shelfcheck/internal/server"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves runs over HTTP",
		Long: `Starts an HTTP server. POST a run configuration to /api/v1/runs to execute
a run and receive a condensed summary. Only one run executes at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			driver := a.newDriver(logger)
			o, err := orchestrator.New(driver, logger)
			if err != nil {
				return err
			}
			srv := server.New(cfg.Server, localRunner{o: o, chromePath: cfg.Run.ChromePath}, logger)
			return serve(ctx, srv, driver, cfg.Server.ShutdownTimeout, logger)
		},
	}

	serveCmd.Flags().String("listen", "", "Address to listen on (default 127.0.0.1:8088)")
	if err := a.v.BindPFlag("server.listen_addr", serveCmd.Flags().Lookup("listen")); err != nil {
		panic(fmt.Sprintf("binding flag listen: %v", err))
	}
	return serveCmd
}

// localRunner applies settings that belong to the host rather than to the
// HTTP client before handing a run to the orchestrator.
type localRunner struct {
	o          *orchestrator.Orchestrator
	chromePath string
}

func (r localRunner) Run(ctx context.Context, run config.TestConfiguration) (*results.RunReport, error) {
	run.ChromePath = r.chromePath
	return r.o.Run(ctx, run)
}

// serve runs srv until ctx is canceled, then shuts it down and closes any
// browser a run left behind.
func serve(ctx context.Context, srv *server.Server, driver browser.Driver, shutdownTimeout time.Duration, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(browser.Detach(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return driver.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("HTTP server stopped.")
	return nil
}
