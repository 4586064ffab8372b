package server

import (
	"fmt"
	"net/http"

	"VibeHealth_V0.1/internal/admin"
	"VibeHealth_V0.1/internal/auth"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(LoggerMiddleware)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger := zerolog.Ctx(c.Request().Context())
			event := logger.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Leave headroom above the upload limit for the other multipart fields.
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", s.cfg.MaxUploadBytes/1024+1024)))

	e.GET("/", s.welcomeHandler)
	e.GET("/health", s.healthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/admin/server-health", admin.GetServerHealthHandler)

	jwt := auth.JwtAuthMiddleware(s.auth)
	limited := s.aiLimiter.Middleware()

	e.GET("/recommendations", s.handler.DailyRecommendationsHandler, jwt, limited)

	// Protected routes
	api := e.Group("/api/v1", jwt)

	api.POST("/diet/analyze", s.handler.AnalyzeDietHandler, limited)
	api.POST("/diet/confirm", s.handler.ConfirmDietHandler)
	api.GET("/diet/history", s.handler.DietHistoryHandler)

	api.POST("/exercise/analyze", s.handler.AnalyzeExerciseHandler, limited)
	api.POST("/exercise/confirm", s.handler.ConfirmExerciseHandler)
	api.GET("/exercise/history", s.handler.ExerciseHistoryHandler)

	api.GET("/dashboard/summary", s.handler.SummaryHandler)
	api.POST("/dashboard/evaluate-plan", s.handler.EvaluatePlanHandler, limited)
	api.GET("/dashboard/daily-recommendations", s.handler.DailyRecommendationsHandler, limited)

	return e
}

func (s *Server) welcomeHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to VibeHealth API"})
}

func (s *Server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.db.Health())
}

// LoggerMiddleware tags every request with an X-Request-ID and attaches a
// request-scoped logger to the request context.
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		req := c.Request()
		c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

		return next(c)
	}
}
