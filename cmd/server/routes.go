package main

import (
	"github.com/gin-gonic/gin"

	"drone-dispatch/internal/middleware"
)

func (a *AppContext) setupRoutes() {
	r := a.Router

	// ── Global Middleware (outermost → innermost) ──
	r.Use(middleware.Logger())                 // 1. Request logging
	r.Use(middleware.Recovery())               // 2. Panic recovery
	r.Use(middleware.RateLimit(a.RateLimiter, middleware.RateBudget{ // 3. Per-IP rate limiting
		Reads:     a.Config.RateLimiter.MaxRequests,
		Mutations: a.Config.RateLimiter.MutationMaxRequests,
		Window:    a.Config.RateLimiter.Window,
	}))

	// ── Liveness ──
	r.GET("/ping", a.ping)
	r.GET("/health", a.healthCheck)

	api := r.Group(a.Config.Server.APIPrefix)
	api.Use(middleware.CircuitBreaker(a.Config.Breaker.Threshold, a.Config.Breaker.Cooldown)) // 4. Per-route breaker

	// Mutations share one bulkhead pool and honour Idempotency-Key.
	mutations := []gin.HandlerFunc{
		middleware.Bulkhead(a.Config.Bulkhead.MutationPool, a.Config.Bulkhead.QueueTimeout),
		middleware.Idempotency(a.IdempotencyStore),
	}

	a.DroneHandler.RegisterRoutes(api, mutations...)
	a.MedicationHandler.RegisterRoutes(api, mutations...)
	a.OrderHandler.RegisterRoutes(api, mutations...)
}
