package payment

import (
	"github.com/smallbiznis/paybridge/internal/payment/domain"
	"github.com/smallbiznis/paybridge/internal/payment/processor/stripe"
	"github.com/smallbiznis/paybridge/internal/payment/repository"
	paymentservice "github.com/smallbiznis/paybridge/internal/payment/service"
	"github.com/smallbiznis/paybridge/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(repository.Provide),
	fx.Provide(func() domain.ClientFactory { return stripe.Factory }),
	fx.Provide(func() *webhook.Registry {
		return webhook.NewRegistry(stripe.NewAdapter())
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
