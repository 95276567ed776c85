package user

import (
	"github.com/promoreel/promoreel/internal/user/repository"
	"github.com/promoreel/promoreel/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
