package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidConfirmation = errors.New("invalid_confirmation")
	ErrUnknownPlan         = errors.New("unknown_plan")
)

// ConfirmRequest is an inbound payment confirmation. Checkout itself runs
// on the payment provider's side; this service only settles the coins.
type ConfirmRequest struct {
	Provider          string `json:"provider"`
	ExternalPaymentID string `json:"external_payment_id"`
	PlanID            string `json:"plan_id"`
}

// ConfirmResult reports what the confirmation did. AlreadyProcessed means
// the same payment id was settled before; the coins were not credited
// again.
type ConfirmResult struct {
	PlanID           string `json:"plan_id"`
	CoinsCredited    int64  `json:"coins_credited"`
	AlreadyProcessed bool   `json:"already_processed"`
	Balance          int64  `json:"balance"`
}

type Service interface {
	// Confirm credits the plan's coins exactly once per external payment
	// id, no matter how often the confirmation is delivered.
	Confirm(ctx context.Context, userID snowflake.ID, req ConfirmRequest) (*ConfirmResult, error)
}
