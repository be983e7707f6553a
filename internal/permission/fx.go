package permission

import (
	"github.com/smallbiznis/fieldops/internal/permission/repository"
	"github.com/smallbiznis/fieldops/internal/permission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("permission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
