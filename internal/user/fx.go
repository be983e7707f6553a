package user

import (
	"github.com/smallbiznis/fieldops/internal/user/repository"
	"github.com/smallbiznis/fieldops/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
