package supplier

import (
	"github.com/smallbiznis/kitstock/internal/supplier/domain"
	"github.com/smallbiznis/kitstock/internal/supplier/service"
	"github.com/smallbiznis/kitstock/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("supplier.service",
	fx.Provide(repository.ProvideStore[domain.Supplier]),
	fx.Provide(service.New),
)
