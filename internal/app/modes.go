package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyedge/internal/server"
	"github.com/alanyoungcy/polyedge/internal/server/handler"
	"github.com/alanyoungcy/polyedge/internal/server/ws"
	"github.com/alanyoungcy/polyedge/internal/service"
)

// shutdownTimeout bounds how long in-flight requests get on shutdown.
const shutdownTimeout = 5 * time.Second

// ServerMode serves the HTTP API and the WebSocket event stream.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, svcs *Services) error {
	a.logger.InfoContext(ctx, "app: starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svcs)
	return g.Wait()
}

// SweepMode only runs the expiry sweeper. Run one instance of it next to
// any number of server-mode replicas.
func (a *App) SweepMode(ctx context.Context, svcs *Services) error {
	a.logger.InfoContext(ctx, "app: starting sweep mode")
	return a.newSweeper(svcs).Run(ctx)
}

// FullMode runs the server and the sweeper in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, svcs *Services) error {
	a.logger.InfoContext(ctx, "app: starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	sweeper := a.newSweeper(svcs)
	g.Go(func() error { return sweeper.Run(ctx) })
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	}
	return g.Wait()
}

func (a *App) newSweeper(svcs *Services) *service.ExpirySweeper {
	return service.NewExpirySweeper(svcs.Evaluations, a.cfg.Evaluation.SweepInterval.Duration, a.logger)
}

// startHTTPServer adds the hub, the HTTP server and its shutdown watcher to
// g. The server stops gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *Services) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.Checks, a.logger),
		Evaluations: handler.NewEvaluationHandler(svcs.Evaluations, svcs.Selection, a.logger),
		Markets:     handler.NewMarketHandler(svcs.Markets, a.logger),
		Analytics:   handler.NewAnalyticsHandler(svcs.Analytics, svcs.Leaderboard, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateLimitWin.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
