package vault

import (
	"github.com/smallbiznis/fieldops/internal/vault/repository"
	"github.com/smallbiznis/fieldops/internal/vault/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vault.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
