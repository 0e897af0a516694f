package kit

import (
	"github.com/smallbiznis/kitstock/internal/kit/repository"
	"github.com/smallbiznis/kitstock/internal/kit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("kit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
