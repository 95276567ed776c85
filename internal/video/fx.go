package video

import (
	"github.com/promoreel/promoreel/internal/config"
	"github.com/promoreel/promoreel/internal/video/adapters"
	"github.com/promoreel/promoreel/internal/video/adapters/kie"
	"github.com/promoreel/promoreel/internal/video/adapters/phaya"
	"github.com/promoreel/promoreel/internal/video/adapters/veo3"
	"github.com/promoreel/promoreel/internal/video/repository"
	"github.com/promoreel/promoreel/internal/video/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("video.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewRegistry),
	fx.Provide(service.NewService),
)

// NewRegistry wires one adapter per supported provider. Phaya and kie run
// the sora2 image-to-video APIs; veo3 runs the kie.ai Veo3 API.
func NewRegistry(cfg config.Config, log *zap.Logger) *adapters.Registry {
	return adapters.NewRegistry(
		phaya.New(phaya.Config{BaseURL: cfg.PhayaAPIURL, APIKey: cfg.PhayaAPIKey}, log),
		kie.New(kie.Config{BaseURL: cfg.KieAPIURL, APIKey: cfg.KieAPIKey}, log),
		veo3.New(veo3.Config{BaseURL: cfg.KieAPIURL, APIKey: cfg.KieAPIKey, Model: cfg.Veo3Model}, log),
	)
}
