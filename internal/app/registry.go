package app

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouteModule mounts HTTP routes under the API group.
type RouteModule interface {
	RegisterRoutes(router *gin.RouterGroup)
}

// BackgroundModule is a long-running component started after the routes are
// mounted and stopped on shutdown.
type BackgroundModule interface {
	Name() string
	Start()
	Stop()
}

type closer struct {
	name string
	fn   func()
}

// Registry holds the modules of the process. Modules are registered
// explicitly in main; there is no init-time self registration.
//
// StartAll starts background modules in registration order. StopAll stops
// them in reverse order and then runs the closers, also in reverse order.
type Registry struct {
	logger zerolog.Logger

	mu         sync.Mutex
	routes     []RouteModule
	background []BackgroundModule
	closers    []closer
	started    int
	stopped    bool
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{logger: logger}
}

func (r *Registry) AddRoutes(modules ...RouteModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, modules...)
}

func (r *Registry) AddBackground(modules ...BackgroundModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.background = append(r.background, modules...)
}

// AddCloser registers a stop-only resource such as a debouncer or a client.
func (r *Registry) AddCloser(name string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

// RegisterRoutes mounts every route module on router.
func (r *Registry) RegisterRoutes(router *gin.RouterGroup) {
	r.mu.Lock()
	routes := append([]RouteModule(nil), r.routes...)
	r.mu.Unlock()

	for _, m := range routes {
		m.RegisterRoutes(router)
	}
}

func (r *Registry) StartAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	for ; r.started < len(r.background); r.started++ {
		m := r.background[r.started]
		m.Start()
		r.logger.Info().Str("module", m.Name()).Msg("Background module started")
	}
}

// StopAll is idempotent. Only started modules are stopped.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true

	for i := r.started - 1; i >= 0; i-- {
		m := r.background[i]
		m.Stop()
		r.logger.Info().Str("module", m.Name()).Msg("Background module stopped")
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i].fn()
		r.logger.Debug().Str("closer", r.closers[i].name).Msg("Resource closed")
	}
}
