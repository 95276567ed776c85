package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/promoreel/promoreel/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Save(ctx context.Context, userID snowflake.ID, req domain.SaveRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	if req.ID != 0 {
		existing, err := s.repo.FindByID(ctx, s.db, userID, req.ID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, domain.ErrProductNotFound
		}

		existing.Name = name
		existing.Slug = slug.Make(name)
		existing.ImageURL = strings.TrimSpace(req.ImageURL)
		existing.Features = strings.TrimSpace(req.Features)
		existing.Concept = strings.TrimSpace(req.Concept)
		existing.TargetAudience = strings.TrimSpace(req.TargetAudience)
		existing.Caption = strings.TrimSpace(req.Caption)
		existing.UpdatedAt = now
		if err := s.repo.Update(ctx, s.db, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	product := &domain.Product{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Name:           name,
		Slug:           slug.Make(name),
		ImageURL:       strings.TrimSpace(req.ImageURL),
		Features:       strings.TrimSpace(req.Features),
		Concept:        strings.TrimSpace(req.Concept),
		TargetAudience: strings.TrimSpace(req.TargetAudience),
		Caption:        strings.TrimSpace(req.Caption),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, product); err != nil {
		return nil, err
	}

	s.log.Info("product saved",
		zap.String("product_id", product.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return product, nil
}

func (s *Service) Get(ctx context.Context, userID, id snowflake.ID) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, limit int) ([]domain.Product, error) {
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	return s.repo.List(ctx, s.db, userID, limit)
}

func (s *Service) Delete(ctx context.Context, userID, id snowflake.ID) error {
	product, err := s.repo.FindByID(ctx, s.db, userID, id)
	if err != nil {
		return err
	}
	if product == nil {
		return domain.ErrProductNotFound
	}
	return s.repo.Delete(ctx, s.db, userID, id)
}
