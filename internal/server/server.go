/*
Package server implements the application's network transport layer.
It builds the echo router, configures timeouts and wires the handlers
to their dependencies.
*/
package server

import (
	"fmt"
	"net/http"
	"time"

	"VibeHealth_V0.1/internal/auth"
	"VibeHealth_V0.1/internal/config"
	"VibeHealth_V0.1/internal/health"
	"VibeHealth_V0.1/internal/utility"
)

// HealthChecker reports database status. database.Service implements it.
type HealthChecker interface {
	Health() map[string]string
}

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	cfg config.Config

	// db provides the connection pool status for /health.
	db HealthChecker

	handler *health.Handler

	// aiLimiter throttles the routes that call the model.
	aiLimiter *utility.IPRateLimiter

	auth auth.Config
}

// NewServer returns a configured *http.Server with production network timeouts.
func NewServer(cfg config.Config, db HealthChecker, handler *health.Handler) (*http.Server, error) {
	limiter, err := utility.NewIPRateLimiter(cfg.AIRateLimitPerMin, cfg.AIRateLimitBurst, 0)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	newApp := &Server{
		port:      cfg.Port,
		cfg:       cfg,
		db:        db,
		handler:   handler,
		aiLimiter: limiter,
		auth:      auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		// Regeneration waits on the model for up to a minute.
		WriteTimeout: cfg.AIRequestTimeout + 30*time.Second,
	}

	return server, nil
}
