package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/promoreel/promoreel/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, email, display_name, coins, coins_expire_at, session_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.DisplayName,
		user.Coins,
		user.CoinsExpireAt,
		user.SessionToken,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, display_name, coins, coins_expire_at, session_token, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, display_name, coins, coins_expire_at, session_token, created_at, updated_at
		 FROM users WHERE email = ?`,
		email,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindBySessionToken(ctx context.Context, db *gorm.DB, token string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, display_name, coins, coins_expire_at, session_token, created_at, updated_at
		 FROM users WHERE session_token = ?`,
		token,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) UpdateSessionToken(ctx context.Context, db *gorm.DB, id snowflake.ID, token string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET session_token = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		token,
		id,
	).Error
}
