package customer

import (
	"github.com/smallbiznis/kitstock/internal/customer/domain"
	"github.com/smallbiznis/kitstock/internal/customer/service"
	"github.com/smallbiznis/kitstock/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.ProvideStore[domain.Customer]),
	fx.Provide(service.New),
)
