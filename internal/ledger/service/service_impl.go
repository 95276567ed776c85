package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/promoreel/promoreel/internal/ledger/domain"
	"github.com/promoreel/promoreel/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

// Credit posts a positive entry and bumps the cached balance in one
// transaction.
func (s *Service) Credit(ctx context.Context, req ledgerdomain.CreditRequest) (*ledgerdomain.CoinTransaction, error) {
	var entry *ledgerdomain.CoinTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.CreditTx(ctx, tx, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreditTx posts a credit inside a caller-owned transaction. A non-empty
// ExternalReference makes the insert idempotent: the unique index on
// external_reference absorbs redeliveries and the balance is only bumped
// when the entry row actually landed.
func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.CreditRequest) (*ledgerdomain.CoinTransaction, error) {
	if err := validateCredit(req); err != nil {
		return nil, err
	}

	entry := ledgerdomain.CoinTransaction{
		ID:          s.genID.Generate(),
		UserID:      req.UserID,
		Kind:        req.Kind,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   time.Now().UTC(),
	}

	ref := strings.TrimSpace(req.ExternalReference)
	if ref != "" {
		entry.ExternalReference = &ref
		result := tx.WithContext(ctx).Exec(
			`INSERT INTO coin_transactions (id, user_id, kind, amount, description, external_reference, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (external_reference) WHERE external_reference IS NOT NULL DO NOTHING`,
			entry.ID, entry.UserID, string(entry.Kind), entry.Amount, entry.Description, ref, entry.CreatedAt,
		)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ledgerdomain.ErrDuplicateReference
		}
	} else {
		if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
			return nil, err
		}
	}

	result := tx.WithContext(ctx).Exec(
		`UPDATE users SET coins = coins + ?, updated_at = ? WHERE id = ?`,
		req.Amount, time.Now().UTC(), req.UserID,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}

	s.log.Info("coins credited",
		zap.String("user_id", req.UserID.String()),
		zap.Int64("amount", req.Amount),
		zap.String("kind", string(req.Kind)),
	)
	return &entry, nil
}

// Debit posts a negative entry behind the conditional balance update.
func (s *Service) Debit(ctx context.Context, req ledgerdomain.DebitRequest) (*ledgerdomain.CoinTransaction, error) {
	var entry *ledgerdomain.CoinTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.DebitTx(ctx, tx, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DebitTx removes coins inside a caller-owned transaction. The conditional
// update is the per-user serialization point: of two concurrent debits
// against the same remaining balance, at most one passes the coins >= ?
// guard.
func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.DebitRequest) (*ledgerdomain.CoinTransaction, error) {
	if err := validateDebit(req); err != nil {
		return nil, err
	}

	result := tx.WithContext(ctx).Exec(
		`UPDATE users SET coins = coins - ?, updated_at = ? WHERE id = ? AND coins >= ?`,
		req.Amount, time.Now().UTC(), req.UserID, req.Amount,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ledgerdomain.ErrInsufficientBalance
	}

	entry := ledgerdomain.CoinTransaction{
		ID:          s.genID.Generate(),
		UserID:      req.UserID,
		Kind:        req.Kind,
		Amount:      -req.Amount,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}

	s.log.Info("coins debited",
		zap.String("user_id", req.UserID.String()),
		zap.Int64("amount", req.Amount),
		zap.String("kind", string(req.Kind)),
	)
	return &entry, nil
}

// HasExternalReference reports whether a credit with this idempotency key
// was already recorded.
func (s *Service) HasExternalReference(ctx context.Context, ref string) (bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&ledgerdomain.CoinTransaction{}).
		Where("external_reference = ?", ref).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListEntries returns the newest entries for a user.
func (s *Service) ListEntries(ctx context.Context, userID snowflake.ID, limit int) ([]ledgerdomain.CoinTransaction, error) {
	if userID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if limit <= 0 || limit > 250 {
		limit = 50
	}

	var entries []ledgerdomain.CoinTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListEntriesPage returns one keyset page of a user's history, newest
// first. The cursor rides the snowflake id of the last row served.
func (s *Service) ListEntriesPage(ctx context.Context, userID snowflake.ID, page pagination.Pagination) ([]ledgerdomain.CoinTransaction, *pagination.PageInfo, error) {
	if userID == 0 {
		return nil, nil, ledgerdomain.ErrInvalidUser
	}
	cursor, err := page.Cursor()
	if err != nil {
		return nil, nil, err
	}
	limit := page.Limit()

	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		before, parseErr := snowflake.ParseString(cursor.ID)
		if parseErr != nil {
			return nil, nil, pagination.ErrInvalidPageToken
		}
		q = q.Where("id < ?", before)
	}

	var entries []ledgerdomain.CoinTransaction
	if err := q.Order("id DESC").Limit(limit + 1).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	trimmed, info := pagination.Trim(entries, limit, func(e ledgerdomain.CoinTransaction) pagination.Cursor {
		return pagination.Cursor{ID: e.ID.String()}
	})
	return trimmed, info, nil
}

// Balance reads the cached coin balance.
func (s *Service) Balance(ctx context.Context, userID snowflake.ID) (int64, error) {
	if userID == 0 {
		return 0, ledgerdomain.ErrInvalidUser
	}

	var coins int64
	err := s.db.WithContext(ctx).
		Raw(`SELECT coins FROM users WHERE id = ?`, userID).
		Scan(&coins).Error
	if err != nil {
		return 0, err
	}
	return coins, nil
}

func validateCredit(req ledgerdomain.CreditRequest) error {
	if req.UserID == 0 {
		return ledgerdomain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return ledgerdomain.ErrInvalidAmount
	}
	return validateKind(req.Kind)
}

func validateDebit(req ledgerdomain.DebitRequest) error {
	if req.UserID == 0 {
		return ledgerdomain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return ledgerdomain.ErrInvalidAmount
	}
	return validateKind(req.Kind)
}

func validateKind(kind ledgerdomain.TransactionKind) error {
	switch kind {
	case ledgerdomain.KindBonus, ledgerdomain.KindPurchase, ledgerdomain.KindGeneration, ledgerdomain.KindRefund:
		return nil
	default:
		return ledgerdomain.ErrInvalidKind
	}
}
