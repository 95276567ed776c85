package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindBySessionToken(ctx context.Context, db *gorm.DB, token string) (*User, error)
	UpdateSessionToken(ctx context.Context, db *gorm.DB, id snowflake.ID, token string) error
}
