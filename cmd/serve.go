package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/api"
	"github.com/JakeFAU/catalog-crawler/internal/app"
)

// newServeCmd creates the 'serve' subcommand: the operator HTTP server, with
// optional scheduled runs.
func newServeCmd() *cobra.Command {
	var (
		addr     string
		interval time.Duration
		onStart  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves health, metrics and the run trigger over HTTP",
		Long: `Starts the operator HTTP server. Runs are started with POST /v1/runs,
on startup with --run-on-start, or every --interval.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if addr != "" {
				a.Config.Server.Addr = addr
			}
			if a.Config.Server.Addr == "" {
				return errors.New("server.addr or --addr is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := startServer(a)
			var serveErr error
			watched := make(chan struct{})
			go func() {
				defer close(watched)
				if err := <-srv.errc; err != nil {
					serveErr = err
					stop()
				}
			}()

			if onStart {
				srv.api.Trigger()
			}
			schedule(ctx, srv.api, interval, a.Logger)
			a.Logger.Info("shutdown initiated")
			srv.shutdown()
			<-watched
			if serveErr != nil {
				return fmt.Errorf("http server: %w", serveErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	cmd.Flags().DurationVar(&interval, "interval", 0, "start a run on this period (0 disables)")
	cmd.Flags().BoolVar(&onStart, "run-on-start", false, "start a run as soon as the server is up")
	return cmd
}

// schedule triggers a run every interval until ctx ends. A tick that finds a
// run in progress is skipped.
func schedule(ctx context.Context, s *api.Server, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Trigger() {
				logger.Info("scheduled run skipped; previous run still in progress")
			}
		}
	}
}

type runningServer struct {
	api    *api.Server
	http   *http.Server
	errc   chan error
	logger *zap.Logger
}

func startServer(a *app.App) *runningServer {
	apiServer := api.NewServer(a.Coordinator, a.Store, api.Options{
		APIKey:  a.Config.Server.APIKey,
		Timeout: time.Duration(a.Config.Server.TimeoutSeconds) * time.Second,
	}, a.Logger.Named("api"))
	srv := &runningServer{
		api: apiServer,
		http: &http.Server{
			Addr:              a.Config.Server.Addr,
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		errc:   make(chan error, 1),
		logger: a.Logger,
	}
	go func() {
		srv.logger.Info("http server started", zap.String("addr", srv.http.Addr))
		err := srv.http.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Error("http server error", zap.Error(err))
			srv.errc <- err
			return
		}
		srv.errc <- nil
	}()
	return srv
}

func (s *runningServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
	}
	s.api.Close()
	s.logger.Info("http server stopped")
}
