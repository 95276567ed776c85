package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/promoreel/promoreel/internal/config"
	ledgerservice "github.com/promoreel/promoreel/internal/ledger/service"
	paymentdomain "github.com/promoreel/promoreel/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	stmts := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL,
			coins INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE coin_transactions (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			amount INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			external_reference TEXT,
			created_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX idx_coin_transactions_external_reference
			ON coin_transactions (external_reference)
			WHERE external_reference IS NOT NULL`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func newTestService(t *testing.T, dbName string) (paymentdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db := newTestDB(t, dbName)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	ledger := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: zap.NewNop(), GenID: node})
	svc := NewService(Params{
		Log:     zap.NewNop(),
		Ledger:  ledger,
		Pricing: config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
	})
	return svc, db, node
}

func seedUser(t *testing.T, db *gorm.DB, node *snowflake.Node, coins int64) snowflake.ID {
	t.Helper()
	id := node.Generate()
	if err := db.Exec(
		`INSERT INTO users (id, email, coins) VALUES (?, ?, ?)`,
		id, id.String()+"@example.com", coins,
	).Error; err != nil {
		t.Fatal(err)
	}
	return id
}

func TestConfirm_CreditsPlanCoins(t *testing.T) {
	svc, db, node := newTestService(t, "payment_confirm")
	userID := seedUser(t, db, node, 10)

	result, err := svc.Confirm(context.Background(), userID, paymentdomain.ConfirmRequest{
		Provider:          "lemonsqueezy",
		ExternalPaymentID: "pay_123",
		PlanID:            "starter",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.AlreadyProcessed {
		t.Fatal("first confirmation flagged as already processed")
	}
	if result.CoinsCredited != 50 {
		t.Fatalf("credited = %d, want 50", result.CoinsCredited)
	}
	if result.Balance != 60 {
		t.Fatalf("balance = %d, want 60", result.Balance)
	}
}

func TestConfirm_RedeliveryCreditsOnce(t *testing.T) {
	svc, db, node := newTestService(t, "payment_redelivery")
	userID := seedUser(t, db, node, 0)

	req := paymentdomain.ConfirmRequest{
		Provider:          "lemonsqueezy",
		ExternalPaymentID: "pay_456",
		PlanID:            "creator",
	}

	first, err := svc.Confirm(context.Background(), userID, req)
	if err != nil {
		t.Fatal(err)
	}
	if first.CoinsCredited != 150 || first.Balance != 150 {
		t.Fatalf("first = %+v", first)
	}

	second, err := svc.Confirm(context.Background(), userID, req)
	if err != nil {
		t.Fatal(err)
	}
	if !second.AlreadyProcessed {
		t.Fatal("redelivery not flagged as already processed")
	}
	if second.CoinsCredited != 0 {
		t.Fatalf("redelivery credited %d coins", second.CoinsCredited)
	}
	if second.Balance != 150 {
		t.Fatalf("balance = %d, want 150", second.Balance)
	}
}

func TestConfirm_DistinctPaymentsBothSettle(t *testing.T) {
	svc, db, node := newTestService(t, "payment_distinct")
	userID := seedUser(t, db, node, 0)

	for _, paymentID := range []string{"pay_a", "pay_b"} {
		if _, err := svc.Confirm(context.Background(), userID, paymentdomain.ConfirmRequest{
			Provider:          "lemonsqueezy",
			ExternalPaymentID: paymentID,
			PlanID:            "starter",
		}); err != nil {
			t.Fatal(err)
		}
	}

	var coins int64
	if err := db.Raw(`SELECT coins FROM users WHERE id = ?`, userID).Scan(&coins).Error; err != nil {
		t.Fatal(err)
	}
	if coins != 100 {
		t.Fatalf("balance = %d, want 100", coins)
	}
}

func TestConfirm_Validation(t *testing.T) {
	svc, _, node := newTestService(t, "payment_validation")
	userID := node.Generate()

	tests := []struct {
		name string
		req  paymentdomain.ConfirmRequest
		want error
	}{{
		name: "missing provider",
		req:  paymentdomain.ConfirmRequest{ExternalPaymentID: "pay_1", PlanID: "starter"},
		want: paymentdomain.ErrInvalidConfirmation,
	}, {
		name: "missing payment id",
		req:  paymentdomain.ConfirmRequest{Provider: "lemonsqueezy", PlanID: "starter"},
		want: paymentdomain.ErrInvalidConfirmation,
	}, {
		name: "unknown plan",
		req:  paymentdomain.ConfirmRequest{Provider: "lemonsqueezy", ExternalPaymentID: "pay_1", PlanID: "mega"},
		want: paymentdomain.ErrUnknownPlan,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Confirm(context.Background(), userID, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
