package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/handlers"
	"github.com/ekaya-inc/discograph/pkg/mcp"
	"github.com/ekaya-inc/discograph/pkg/mcp/tools"
	"github.com/ekaya-inc/discograph/pkg/middleware"
	"github.com/ekaya-inc/discograph/pkg/services"
)

const shutdownTimeout = 10 * time.Second

var (
	serveMigrate bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the network, search and random APIs over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true,
		"Apply pending schema migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveMigrate {
		if err := a.migrate(); err != nil {
			return err
		}
	}

	service, err := a.newDiscographService(ctx)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.BindAddr, a.cfg.Port),
		Handler:           middleware.RequestLogger(a.logger)(newRouter(a, service)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting discograph",
			zap.String("addr", srv.Addr),
			zap.String("version", a.cfg.Version),
			zap.String("env", a.cfg.Env),
			zap.String("store", a.store.Driver()),
			zap.Bool("mcp", a.cfg.MCP.Enabled))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter registers every HTTP route, including /mcp when enabled.
func newRouter(a *app, service services.DiscographService) *http.ServeMux {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(a.cfg, a.store, a.logger).RegisterRoutes(mux)
	handlers.NewConfigHandler(a.cfg, a.logger).RegisterRoutes(mux)
	handlers.NewDiscographHandler(service, handlers.DefaultRetryConfig(), a.logger).RegisterRoutes(mux)
	handlers.RegisterMetricsRoute(mux)

	if a.cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(a.cfg.Version, a.logger)
		tools.RegisterHealthTool(mcpServer.MCP(), a.cfg.Version, a.store)
		tools.RegisterDiscographTools(mcpServer.MCP(), &tools.DiscographToolDeps{
			Service: service,
			Logger:  a.logger,
		})
		mux.Handle("/mcp", mcpServer.Handler())
	}

	return mux
}
