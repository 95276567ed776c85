package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/promoreel/promoreel/internal/product/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, user_id, name, slug, image_url, features, concept, target_audience, caption, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.UserID,
		product.Name,
		product.Slug,
		product.ImageURL,
		product.Features,
		product.Concept,
		product.TargetAudience,
		product.Caption,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET name = ?, slug = ?, image_url = ?, features = ?, concept = ?, target_audience = ?, caption = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		product.Name,
		product.Slug,
		product.ImageURL,
		product.Features,
		product.Concept,
		product.TargetAudience,
		product.Caption,
		product.UpdatedAt,
		product.ID,
		product.UserID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, slug, image_url, features, concept, target_audience, caption, created_at, updated_at
		 FROM products WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]domain.Product, error) {
	var products []domain.Product
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM products WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Error
}
