package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Product, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]Product, error)
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error
}
