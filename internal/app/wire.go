//go:build wireinject
// +build wireinject

package app

import (
	"github.com/albumly/billing-svc/internal/shared/config"
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"go.uber.org/zap"
)

// Dependencies holds all injected dependencies.
type Dependencies struct {
	Logger *zap.Logger
	Router *gin.Engine
}

// InitializeDependencies creates all dependencies using Wire.
func InitializeDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	wire.Build(
		AppSet,
		wire.Struct(new(Dependencies), "*"),
	)
	return nil, nil, nil
}
