package audit

import (
	"github.com/smallbiznis/kitstock/internal/audit/repository"
	"github.com/smallbiznis/kitstock/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
