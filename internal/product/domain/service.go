package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidName     = errors.New("invalid_product_name")
	ErrProductNotFound = errors.New("product_not_found")
)

type SaveRequest struct {
	ID             snowflake.ID `json:"id,omitempty"`
	Name           string       `json:"name"`
	ImageURL       string       `json:"image_url"`
	Features       string       `json:"features"`
	Concept        string       `json:"concept"`
	TargetAudience string       `json:"target_audience"`
	Caption        string       `json:"caption"`
}

type Service interface {
	// Save creates the product, or updates it when ID is set.
	Save(ctx context.Context, userID snowflake.ID, req SaveRequest) (*Product, error)
	Get(ctx context.Context, userID, id snowflake.ID) (*Product, error)
	List(ctx context.Context, userID snowflake.ID, limit int) ([]Product, error)
	Delete(ctx context.Context, userID, id snowflake.ID) error
}
