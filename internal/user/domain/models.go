package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an account holder. Accounts are created on first sign-in and
// never deleted.
type User struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Email         string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	DisplayName   string       `gorm:"type:text;not null" json:"display_name"`
	Coins         int64        `gorm:"not null;default:0" json:"coins"`
	CoinsExpireAt *time.Time   `json:"coins_expire_at,omitempty"`
	SessionToken  *string      `gorm:"type:text" json:"-"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
