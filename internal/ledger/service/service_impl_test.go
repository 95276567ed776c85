package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	ledgerdomain "github.com/promoreel/promoreel/internal/ledger/domain"
	"github.com/promoreel/promoreel/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// One connection keeps concurrent writers off sqlite's busy errors.
	sqlDB.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			coins INTEGER NOT NULL DEFAULT 0,
			coins_expire_at TIMESTAMP,
			session_token TEXT,
			created_at TIMESTAMP,
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

func newTestService(t *testing.T, db *gorm.DB) (*Service, *snowflake.Node) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node}).(*Service)
	return svc, node
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

func balanceOf(t *testing.T, db *gorm.DB, userID snowflake.ID) int64 {
	t.Helper()
	var coins int64
	if err := db.Raw(`SELECT coins FROM users WHERE id = ?`, userID).Scan(&coins).Error; err != nil {
		t.Fatal(err)
	}
	return coins
}

func TestDebit_InsufficientBalance(t *testing.T) {
	db := newTestDB(t, "ledger_debit_insufficient")
	svc, node := newTestService(t, db)
	userID := seedUser(t, db, node, 10)

	_, err := svc.Debit(context.Background(), ledgerdomain.DebitRequest{
		UserID:      userID,
		Amount:      15,
		Kind:        ledgerdomain.KindGeneration,
		Description: "video generation",
	})
	if !errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if got := balanceOf(t, db, userID); got != 10 {
		t.Fatalf("balance mutated on failed debit: %d", got)
	}

	var count int64
	db.Model(&ledgerdomain.CoinTransaction{}).Where("user_id = ?", userID).Count(&count)
	if count != 0 {
		t.Fatalf("expected no ledger entries, got %d", count)
	}
}

func TestDebit_ExactBalanceDrainsToZero(t *testing.T) {
	db := newTestDB(t, "ledger_debit_exact")
	svc, node := newTestService(t, db)
	userID := seedUser(t, db, node, 15)

	entry, err := svc.Debit(context.Background(), ledgerdomain.DebitRequest{
		UserID:      userID,
		Amount:      15,
		Kind:        ledgerdomain.KindGeneration,
		Description: "video generation",
	})
	if err != nil {
		t.Fatal(err)
	}
	if entry.Amount != -15 {
		t.Fatalf("expected signed amount -15, got %d", entry.Amount)
	}
	if got := balanceOf(t, db, userID); got != 0 {
		t.Fatalf("expected zero balance, got %d", got)
	}

	// Second debit against the drained balance must lose the guard.
	_, err = svc.Debit(context.Background(), ledgerdomain.DebitRequest{
		UserID:      userID,
		Amount:      15,
		Kind:        ledgerdomain.KindGeneration,
		Description: "video generation",
	})
	if !errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestCredit_DuplicateExternalReference(t *testing.T) {
	db := newTestDB(t, "ledger_credit_dup")
	svc, node := newTestService(t, db)
	userID := seedUser(t, db, node, 0)

	req := ledgerdomain.CreditRequest{
		UserID:            userID,
		Amount:            100,
		Kind:              ledgerdomain.KindPurchase,
		Description:       "coin purchase",
		ExternalReference: "stripe:cs_test_123",
	}

	if _, err := svc.Credit(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Credit(context.Background(), req)
	if !errors.Is(err, ledgerdomain.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}

	if got := balanceOf(t, db, userID); got != 100 {
		t.Fatalf("duplicate credit mutated balance: %d", got)
	}

	ok, err := svc.HasExternalReference(context.Background(), "stripe:cs_test_123")
	if err != nil || !ok {
		t.Fatalf("expected recorded reference, got ok=%v err=%v", ok, err)
	}
}

func TestCredit_WithoutReferenceAlwaysAppends(t *testing.T) {
	db := newTestDB(t, "ledger_credit_plain")
	svc, node := newTestService(t, db)
	userID := seedUser(t, db, node, 0)

	for i := 0; i < 2; i++ {
		if _, err := svc.Credit(context.Background(), ledgerdomain.CreditRequest{
			UserID:      userID,
			Amount:      15,
			Kind:        ledgerdomain.KindRefund,
			Description: "generation refund",
		}); err != nil {
			t.Fatal(err)
		}
	}

	if got := balanceOf(t, db, userID); got != 30 {
		t.Fatalf("expected 30 coins, got %d", got)
	}
}

func TestLedger_EntriesSumToBalance(t *testing.T) {
	db := newTestDB(t, "ledger_sum")
	svc, node := newTestService(t, db)
	userID := seedUser(t, db, node, 0)

	ctx := context.Background()
	if _, err := svc.Credit(ctx, ledgerdomain.CreditRequest{
		UserID: userID, Amount: 40, Kind: ledgerdomain.KindBonus, Description: "welcome bonus",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Debit(ctx, ledgerdomain.DebitRequest{
		UserID: userID, Amount: 15, Kind: ledgerdomain.KindGeneration, Description: "video generation",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Credit(ctx, ledgerdomain.CreditRequest{
		UserID: userID, Amount: 15, Kind: ledgerdomain.KindRefund, Description: "generation refund",
	}); err != nil {
		t.Fatal(err)
	}

	var sum int64
	if err := db.Raw(`SELECT COALESCE(SUM(amount), 0) FROM coin_transactions WHERE user_id = ?`, userID).Scan(&sum).Error; err != nil {
		t.Fatal(err)
	}
	balance := balanceOf(t, db, userID)
	if sum != balance {
		t.Fatalf("entry sum %d != cached balance %d", sum, balance)
	}
	if balance != 40 {
		t.Fatalf("expected 40 coins, got %d", balance)
	}

	entries, err := svc.ListEntries(ctx, userID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Kind != ledgerdomain.KindRefund {
		t.Fatalf("expected newest entry first, got %s", entries[0].Kind)
	}
}

func TestValidation(t *testing.T) {
	db := newTestDB(t, "ledger_validation")
	svc, node := newTestService(t, db)
	userID := seedUser(t, db, node, 100)

	ctx := context.Background()
	if _, err := svc.Credit(ctx, ledgerdomain.CreditRequest{UserID: userID, Amount: 0, Kind: ledgerdomain.KindBonus}); !errors.Is(err, ledgerdomain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Debit(ctx, ledgerdomain.DebitRequest{UserID: userID, Amount: -5, Kind: ledgerdomain.KindGeneration}); !errors.Is(err, ledgerdomain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Credit(ctx, ledgerdomain.CreditRequest{UserID: 0, Amount: 5, Kind: ledgerdomain.KindBonus}); !errors.Is(err, ledgerdomain.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	if _, err := svc.Credit(ctx, ledgerdomain.CreditRequest{UserID: userID, Amount: 5, Kind: "mystery"}); !errors.Is(err, ledgerdomain.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestDebit_ConcurrentSpendersSingleWinner(t *testing.T) {
	db := newTestDB(t, "ledger_debit_concurrent")
	svc, node := newTestService(t, db)
	userID := seedUser(t, db, node, 15)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Debit(context.Background(), ledgerdomain.DebitRequest{
				UserID:      userID,
				Amount:      15,
				Kind:        ledgerdomain.KindGeneration,
				Description: "video generation",
			})
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("winners = %d, losers = %d, want exactly one of each", won, lost)
	}
	if got := balanceOf(t, db, userID); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}

	var entries int64
	if err := db.Raw(`SELECT COUNT(*) FROM coin_transactions WHERE user_id = ?`, userID).Scan(&entries).Error; err != nil {
		t.Fatal(err)
	}
	if entries != 1 {
		t.Fatalf("entries = %d, want 1", entries)
	}
}

func TestListEntriesPage_Keyset(t *testing.T) {
	db := newTestDB(t, "ledger_list_page")
	svc, node := newTestService(t, db)
	userID := seedUser(t, db, node, 0)

	for i := 0; i < 5; i++ {
		if _, err := svc.Credit(context.Background(), ledgerdomain.CreditRequest{
			UserID: userID, Amount: int64(i + 1), Kind: ledgerdomain.KindBonus,
		}); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[snowflake.ID]bool{}
	page := pagination.Pagination{PageSize: 2}
	var pages int
	for {
		entries, info, err := svc.ListEntriesPage(context.Background(), userID, page)
		if err != nil {
			t.Fatal(err)
		}
		pages++
		for i, entry := range entries {
			if seen[entry.ID] {
				t.Fatalf("entry %s served twice", entry.ID)
			}
			seen[entry.ID] = true
			if i > 0 && entries[i-1].ID < entry.ID {
				t.Fatal("expected descending id order")
			}
		}
		if !info.HasMore {
			break
		}
		page.PageToken = info.NextPageToken
	}

	if pages != 3 {
		t.Fatalf("pages = %d, want 3", pages)
	}
	if len(seen) != 5 {
		t.Fatalf("entries served = %d, want 5", len(seen))
	}
}

func TestListEntriesPage_BadToken(t *testing.T) {
	db := newTestDB(t, "ledger_list_page_bad_token")
	svc, node := newTestService(t, db)
	userID := seedUser(t, db, node, 0)

	_, _, err := svc.ListEntriesPage(context.Background(), userID, pagination.Pagination{PageToken: "%%%"})
	if !errors.Is(err, pagination.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}
