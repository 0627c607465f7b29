package app

import (
	"fmt"

	"github.com/albumly/billing-svc/internal/shared/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// App is the assembled billing limits service.
type App struct {
	config  *config.Config
	router  *gin.Engine
	logger  *zap.Logger
	cleanup func()
}

// New builds the application from cfg. Stop releases what New acquired.
func New(cfg *config.Config) (*App, error) {
	deps, cleanup, err := InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("init dependencies: %w", err)
	}

	return &App{
		config:  cfg,
		router:  deps.Router,
		logger:  deps.Logger,
		cleanup: cleanup,
	}, nil
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Stop releases the database and Redis connections and flushes the logger.
func (a *App) Stop() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
