package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/promoreel/promoreel/internal/config"
	ledgerdomain "github.com/promoreel/promoreel/internal/ledger/domain"
	userdomain "github.com/promoreel/promoreel/internal/user/domain"
	"github.com/promoreel/promoreel/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    userdomain.Repository
	Ledger  ledgerdomain.Service
	Pricing *config.PricingConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    userdomain.Repository
	ledger  ledgerdomain.Service
	pricing *config.PricingConfigHolder
}

func NewService(p Params) userdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("user.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		ledger:  p.Ledger,
		pricing: p.Pricing,
	}
}

func (s *Service) SignIn(ctx context.Context, email, displayName string) (*userdomain.SignInResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, userdomain.ErrInvalidEmail
	}
	displayName = strings.TrimSpace(displayName)

	user, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}

	created := false
	if user == nil {
		user, err = s.provision(ctx, email, displayName)
		if err != nil {
			return nil, err
		}
		created = true
	}

	token := ulid.Make().String()
	if err := s.repo.UpdateSessionToken(ctx, s.db, user.ID, token); err != nil {
		return nil, err
	}
	user.SessionToken = &token

	s.log.Info("user signed in",
		zap.String("user_id", user.ID.String()),
		zap.Bool("created", created),
	)
	return &userdomain.SignInResult{User: user, Token: token, Created: created}, nil
}

// provision creates the account and credits the welcome bonus in one
// transaction. A concurrent first sign-in loses on the unique email index
// and falls back to the winner's row, so the bonus lands exactly once.
func (s *Service) provision(ctx context.Context, email, displayName string) (*userdomain.User, error) {
	pricing := s.pricing.Get()
	now := time.Now().UTC()

	user := &userdomain.User{
		ID:          s.genID.Generate(),
		Email:       email,
		DisplayName: displayName,
		Coins:       0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if pricing.WelcomeBonusCoins > 0 && pricing.WelcomeBonusTTLDays > 0 {
		expires := now.AddDate(0, 0, pricing.WelcomeBonusTTLDays)
		user.CoinsExpireAt = &expires
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, user); err != nil {
			return err
		}
		if pricing.WelcomeBonusCoins > 0 {
			entry, err := s.ledger.CreditTx(ctx, tx, ledgerdomain.CreditRequest{
				UserID:      user.ID,
				Amount:      pricing.WelcomeBonusCoins,
				Kind:        ledgerdomain.KindBonus,
				Description: "welcome bonus",
			})
			if err != nil {
				return err
			}
			user.Coins = entry.Amount
		}
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.repo.FindByEmail(ctx, s.db, email)
		}
		return nil, err
	}

	s.log.Info("user provisioned",
		zap.String("user_id", user.ID.String()),
		zap.Int64("welcome_bonus", pricing.WelcomeBonusCoins),
	)
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*userdomain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, userdomain.ErrUnauthorized
	}

	user, err := s.repo.FindBySessionToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrUnauthorized
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*userdomain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrUserNotFound
	}
	return user, nil
}
