package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Product is a user-owned catalog entry. Products are saved during video
// generation so later regenerations can reuse the image and copy.
type Product struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID         snowflake.ID `gorm:"not null;index" json:"user_id"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	Slug           string       `gorm:"type:text;not null" json:"slug"`
	ImageURL       string       `gorm:"type:text;not null" json:"image_url"`
	Features       string       `gorm:"type:text;not null" json:"features"`
	Concept        string       `gorm:"type:text;not null" json:"concept"`
	TargetAudience string       `gorm:"type:text;not null" json:"target_audience"`
	Caption        string       `gorm:"type:text;not null" json:"caption"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }
