package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/promoreel/promoreel/internal/config"
	ledgerdomain "github.com/promoreel/promoreel/internal/ledger/domain"
	"github.com/promoreel/promoreel/internal/observability/metrics"
	paymentdomain "github.com/promoreel/promoreel/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Ledger  ledgerdomain.Service
	Pricing *config.PricingConfigHolder
	Metrics *metrics.Recorder `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	ledger  ledgerdomain.Service
	pricing *config.PricingConfigHolder
	metrics *metrics.Recorder
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		log:     p.Log.Named("payment.service"),
		ledger:  p.Ledger,
		pricing: p.Pricing,
		metrics: p.Metrics,
	}
}

// Confirm settles a payment confirmation. The external payment id rides
// the credit as its idempotency reference, so redelivered confirmations
// collapse into the first one.
func (s *Service) Confirm(ctx context.Context, userID snowflake.ID, req paymentdomain.ConfirmRequest) (*paymentdomain.ConfirmResult, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	paymentID := strings.TrimSpace(req.ExternalPaymentID)
	if provider == "" || paymentID == "" {
		return nil, paymentdomain.ErrInvalidConfirmation
	}

	plan, ok := s.pricing.Get().Plan(req.PlanID)
	if !ok {
		return nil, paymentdomain.ErrUnknownPlan
	}

	reference := provider + ":" + paymentID
	result := &paymentdomain.ConfirmResult{PlanID: plan.ID}

	_, err := s.ledger.Credit(ctx, ledgerdomain.CreditRequest{
		UserID:            userID,
		Amount:            plan.Coins,
		Kind:              ledgerdomain.KindPurchase,
		Description:       fmt.Sprintf("coin purchase: %s plan", plan.ID),
		ExternalReference: reference,
	})
	switch {
	case errors.Is(err, ledgerdomain.ErrDuplicateReference):
		result.AlreadyProcessed = true
		s.log.Info("payment already settled",
			zap.String("reference", reference),
			zap.String("user_id", userID.String()),
		)
		if s.metrics != nil {
			s.metrics.RecordPaymentEvent(ctx, provider, "duplicate")
		}
	case err != nil:
		if s.metrics != nil {
			s.metrics.RecordPaymentEvent(ctx, provider, "error")
		}
		return nil, err
	default:
		result.CoinsCredited = plan.Coins
		s.log.Info("payment settled",
			zap.String("reference", reference),
			zap.String("plan_id", plan.ID),
			zap.Int64("coins", plan.Coins),
			zap.String("user_id", userID.String()),
		)
		if s.metrics != nil {
			s.metrics.RecordPaymentEvent(ctx, provider, "settled")
		}
	}

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.Balance = balance
	return result, nil
}
