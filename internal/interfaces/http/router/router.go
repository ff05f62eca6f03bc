package router

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/fuelerp/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar is implemented by handlers that register their own
// routes on a group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// HealthRegistrar is implemented by the handler serving the unauthenticated
// health endpoint
type HealthRegistrar interface {
	Health(c *gin.Context)
}

// Router wires handlers onto the gin engine
type Router struct {
	engine           *gin.Engine
	apiVersion       string
	registrars       []RouteRegistrar
	systemRegistrars []RouteRegistrar
	health           HealthRegistrar
}

// Option configures the router
type Option func(*Router)

// WithAPIVersion sets the API version segment, default v1
func WithAPIVersion(version string) Option {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithHealth registers the health endpoint handler
func WithHealth(h HealthRegistrar) Option {
	return func(r *Router) {
		r.health = h
	}
}

// NewRouter creates a router for the given engine
func NewRouter(engine *gin.Engine, opts ...Option) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds handlers whose routes are set up on Setup
func (r *Router) Register(registrars ...RouteRegistrar) {
	r.registrars = append(r.registrars, registrars...)
}

// RegisterSystem adds handlers whose routes skip tenant resolution,
// such as scheduler administration
func (r *Router) RegisterSystem(registrars ...RouteRegistrar) {
	r.systemRegistrars = append(r.systemRegistrars, registrars...)
}

// Setup registers all routes. The health endpoint and system routes
// stay outside the tenant middleware so probes and operators do not
// need tenant headers.
func (r *Router) Setup() {
	if r.health != nil {
		r.engine.GET("/health", r.health.Health)
	}

	base := fmt.Sprintf("/api/%s", r.apiVersion)

	system := r.engine.Group(base)
	for _, registrar := range r.systemRegistrars {
		registrar.RegisterRoutes(system)
	}

	api := r.engine.Group(base)
	api.Use(middleware.TenantRequired())
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}
