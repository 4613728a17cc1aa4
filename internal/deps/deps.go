package deps

import (
	"github.com/and161185/servicecenter/internal/auth"
	"github.com/and161185/servicecenter/internal/config"
	"github.com/and161185/servicecenter/internal/metrics"
	"go.uber.org/zap"
)

type Deps struct {
	Logger       *zap.SugaredLogger
	TokenManager *auth.TokenManager
	Metrics      *metrics.ServerMetrics
}

func NewDependencies(cfg *config.Config) *Deps {
	deps := Deps{
		Logger:       cfg.Logger,
		TokenManager: auth.NewTokenManager(cfg.Key, cfg.TokenTTL),
		Metrics:      metrics.NewServerMetrics(),
	}

	return &deps
}
