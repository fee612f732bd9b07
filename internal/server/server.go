package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	scheduledomain "github.com/smallbiznis/recurra/internal/billingschedule/domain"
	"github.com/smallbiznis/recurra/internal/config"
	dunningdomain "github.com/smallbiznis/recurra/internal/dunning/domain"
	"github.com/smallbiznis/recurra/internal/job/runner"
	"github.com/smallbiznis/recurra/internal/jobs"
	obslogger "github.com/smallbiznis/recurra/internal/observability/logger"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// Server wires the execute callback and the commerce platform webhooks onto
// the engine.
type Server struct {
	engine   *gin.Engine
	log      *zap.Logger
	runner   *runner.Runner
	enqueuer *jobs.Enqueuer
	schedule scheduledomain.Service
	dunning  dunningdomain.Service
}

type Params struct {
	fx.In

	Engine   *gin.Engine
	Log      *zap.Logger
	Runner   *runner.Runner
	Enqueuer *jobs.Enqueuer
	Schedule scheduledomain.Service
	Dunning  dunningdomain.Service
}

func NewServer(p Params) *Server {
	s := &Server{
		engine:   p.Engine,
		log:      p.Log.Named("http.server"),
		runner:   p.Runner,
		enqueuer: p.Enqueuer,
		schedule: p.Schedule,
		dunning:  p.Dunning,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.POST("/internal/jobs/execute", s.executeJob)

	webhooks := s.engine.Group("/webhooks")
	webhooks.POST("/billing-attempt-failure", s.billingAttemptFailure)
	webhooks.POST("/billing-attempt-success", s.billingAttemptSuccess)
	webhooks.POST("/app-uninstalled", s.appUninstalled)
	webhooks.POST("/shop-update", s.shopUpdate)
}
