package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/promoreel/promoreel/pkg/db/pagination"
	"gorm.io/gorm"
)

// TransactionKind classifies coin movements.
type TransactionKind string

const (
	KindBonus      TransactionKind = "bonus"
	KindPurchase   TransactionKind = "purchase"
	KindGeneration TransactionKind = "generation"
	KindRefund     TransactionKind = "refund"
)

// CoinTransaction is an append-only ledger entry. The signed amount keeps
// the sum per user equal to the cached users.coins projection.
type CoinTransaction struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID            snowflake.ID    `gorm:"not null;index" json:"user_id"`
	Kind              TransactionKind `gorm:"type:text;not null" json:"kind"`
	Amount            int64           `gorm:"not null" json:"amount"`
	Description       string          `gorm:"type:text;not null" json:"description"`
	ExternalReference *string         `gorm:"type:text" json:"external_reference,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (CoinTransaction) TableName() string { return "coin_transactions" }

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidKind         = errors.New("invalid_kind")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrDuplicateReference  = errors.New("duplicate_external_reference")
)

// CreditRequest adds coins to a user balance. ExternalReference, when set,
// makes the credit idempotent across redeliveries.
type CreditRequest struct {
	UserID            snowflake.ID
	Amount            int64
	Kind              TransactionKind
	Description       string
	ExternalReference string
}

// DebitRequest removes coins from a user balance. The debit fails with
// ErrInsufficientBalance rather than driving the balance negative.
type DebitRequest struct {
	UserID      snowflake.ID
	Amount      int64
	Kind        TransactionKind
	Description string
}

// Service posts coin movements and answers balance questions. CreditTx and
// DebitTx run inside a caller-owned transaction so a refund can ride the
// same commit as the state change that earned it.
type Service interface {
	Credit(ctx context.Context, req CreditRequest) (*CoinTransaction, error)
	CreditTx(ctx context.Context, tx *gorm.DB, req CreditRequest) (*CoinTransaction, error)
	Debit(ctx context.Context, req DebitRequest) (*CoinTransaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, req DebitRequest) (*CoinTransaction, error)
	HasExternalReference(ctx context.Context, ref string) (bool, error)
	ListEntries(ctx context.Context, userID snowflake.ID, limit int) ([]CoinTransaction, error)
	ListEntriesPage(ctx context.Context, userID snowflake.ID, page pagination.Pagination) ([]CoinTransaction, *pagination.PageInfo, error)
	Balance(ctx context.Context, userID snowflake.ID) (int64, error)
}
