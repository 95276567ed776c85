package product

import (
	"github.com/promoreel/promoreel/internal/product/repository"
	"github.com/promoreel/promoreel/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
