// Package server wires the HTTP transport around the parser.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/eventsense/internal/observability"
	"github.com/hrygo/eventsense/internal/profile"
	"github.com/hrygo/eventsense/plugin/ai/router"
	"github.com/hrygo/eventsense/plugin/ai/timeout"
	"github.com/hrygo/eventsense/server/middleware"
	apiv1 "github.com/hrygo/eventsense/server/router/api/v1"
)

// limiterCleanupInterval is how often idle client limiters are dropped.
const limiterCleanupInterval = time.Minute

type Server struct {
	Profile *profile.Profile
	Parser  router.EventParser
	Metrics *observability.Metrics

	echoServer  *echo.Echo
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
	cancel      context.CancelFunc
}

// NewServer builds the echo instance with /healthz, /metrics and the v1 API.
// metrics may be nil, in which case /metrics is not served.
func NewServer(ctx context.Context, profile *profile.Profile, parser router.EventParser, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if parser == nil {
		return nil, errors.New("server requires a parser")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Profile:     profile,
		Parser:      parser,
		Metrics:     metrics,
		logger:      logger,
		rateLimiter: middleware.NewRateLimiter(profile.Server.RatePerSecond, profile.Server.Burst),
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomw.Recover())
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	if metrics != nil {
		echoServer.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	}

	apiV1Service := apiv1.NewAPIV1Service(profile, parser)
	apiV1Service.RegisterRoutes(echoServer,
		middleware.RequestContext(logger),
		middleware.RateLimit(s.rateLimiter),
	)

	runnerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.cleanupLimiters(runnerCtx)

	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	slog.Info("server listening", "address", listener.Addr().String())
	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, timeout.ShutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	slog.Info("server stopped properly")
}

func (s *Server) cleanupLimiters(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.rateLimiter.Cleanup(); n > 0 {
				s.logger.Debug("dropped idle rate limiters", "count", n)
			}
		}
	}
}
