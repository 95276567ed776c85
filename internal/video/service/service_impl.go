package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/promoreel/promoreel/internal/caption"
	"github.com/promoreel/promoreel/internal/config"
	ledgerdomain "github.com/promoreel/promoreel/internal/ledger/domain"
	"github.com/promoreel/promoreel/internal/observability/metrics"
	productdomain "github.com/promoreel/promoreel/internal/product/domain"
	"github.com/promoreel/promoreel/internal/video/adapters"
	videodomain "github.com/promoreel/promoreel/internal/video/domain"
	"github.com/promoreel/promoreel/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     videodomain.Repository
	Registry *adapters.Registry
	Ledger   ledgerdomain.Service
	Products productdomain.Service
	Caption  caption.Generator
	Pricing  *config.PricingConfigHolder
	Config   config.Config
	Metrics  *metrics.Recorder `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     videodomain.Repository
	registry *adapters.Registry
	ledger   ledgerdomain.Service
	products productdomain.Service
	caption  caption.Generator
	pricing  *config.PricingConfigHolder
	cfg      config.Config
	metrics  *metrics.Recorder
}

func NewService(p Params) videodomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("video.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		registry: p.Registry,
		ledger:   p.Ledger,
		products: p.Products,
		caption:  p.Caption,
		pricing:  p.Pricing,
		cfg:      p.Config,
		metrics:  p.Metrics,
	}
}

const defaultProvider = "veo3"

func (s *Service) Generate(ctx context.Context, userID snowflake.ID, req videodomain.GenerateRequest) (*videodomain.GenerationJob, error) {
	name := strings.TrimSpace(req.Name)
	imageURL := strings.TrimSpace(req.ImageURL)
	features := strings.TrimSpace(req.Features)
	concept := strings.TrimSpace(req.Concept)
	audience := strings.TrimSpace(req.TargetAudience)
	if name == "" || imageURL == "" || features == "" || concept == "" || audience == "" {
		return nil, videodomain.ErrInvalidInput
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = defaultProvider
	}
	adapter, err := s.registry.Adapter(provider)
	if err != nil {
		return nil, videodomain.ErrUnknownProvider
	}

	price := s.pricing.Get().CoinsPerVideo

	// Fast-fail before any side effects. The authoritative check is the
	// conditional debit after submission.
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < price {
		return nil, ledgerdomain.ErrInsufficientBalance
	}

	finalCaption := strings.TrimSpace(req.Caption)
	if finalCaption == "" {
		generated, capErr := s.caption.Generate(ctx, caption.Request{
			ProductName:    name,
			Features:       features,
			TargetAudience: audience,
		})
		if capErr != nil {
			s.log.Warn("caption generation failed, using fallback", zap.Error(capErr))
			generated = caption.Fallback(name)
		}
		finalCaption = generated
	}

	var productID *snowflake.ID
	if req.ProductID != 0 {
		productID = &req.ProductID
	}
	if req.SaveProduct {
		saved, saveErr := s.products.Save(ctx, userID, productdomain.SaveRequest{
			ID:             req.ProductID,
			Name:           name,
			ImageURL:       imageURL,
			Features:       features,
			Concept:        concept,
			TargetAudience: audience,
			Caption:        finalCaption,
		})
		if saveErr != nil {
			return nil, saveErr
		}
		productID = &saved.ID
	}

	prompt := buildPrompt(name, features, concept, audience, imageURL)

	// Submit before charging: a provider failure here costs the user
	// nothing.
	submitted, err := adapter.Submit(ctx, videodomain.SubmitRequest{
		Prompt:      prompt,
		ImageURLs:   []string{imageURL},
		AspectRatio: "portrait",
		CallbackURL: s.cfg.CallbackURL(provider),
	})
	if err != nil {
		return nil, err
	}

	job, err := s.insertCharged(ctx, userID, productID, provider, submitted.IDs, prompt, finalCaption, imageURL, price, name)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordJobSubmitted(ctx, provider)
	}
	s.log.Info("generation dispatched",
		zap.String("job_id", job.ID.String()),
		zap.String("provider", provider),
		zap.String("user_id", userID.String()),
	)
	return job, nil
}

func (s *Service) Regenerate(ctx context.Context, userID, jobID snowflake.ID) (*videodomain.GenerationJob, error) {
	prior, err := s.repo.FindByID(ctx, s.db, userID, jobID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, videodomain.ErrJobNotFound
	}
	if prior.Prompt == "" || prior.ImageURL == "" {
		return nil, videodomain.ErrInvalidInput
	}

	adapter, err := s.registry.Adapter(prior.Provider)
	if err != nil {
		return nil, videodomain.ErrUnknownProvider
	}

	price := s.pricing.Get().CoinsPerVideo
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < price {
		return nil, ledgerdomain.ErrInsufficientBalance
	}

	submitted, err := adapter.Submit(ctx, videodomain.SubmitRequest{
		Prompt:      prior.Prompt,
		ImageURLs:   []string{prior.ImageURL},
		AspectRatio: prior.AspectRatio,
		CallbackURL: s.cfg.CallbackURL(prior.Provider),
	})
	if err != nil {
		return nil, err
	}

	job, err := s.insertCharged(ctx, userID, prior.ProductID, prior.Provider, submitted.IDs, prior.Prompt, prior.Caption, prior.ImageURL, price, "regeneration")
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordJobSubmitted(ctx, prior.Provider)
	}
	s.log.Info("regeneration dispatched",
		zap.String("job_id", job.ID.String()),
		zap.String("prior_job_id", prior.ID.String()),
	)
	return job, nil
}

// insertCharged performs the debit and the job insert in one transaction.
// If either fails nothing is persisted; the remote job becomes an orphan on
// the provider side, which is the accepted failure mode.
func (s *Service) insertCharged(
	ctx context.Context,
	userID snowflake.ID,
	productID *snowflake.ID,
	provider string,
	ids videodomain.ExternalIDs,
	prompt, finalCaption, imageURL string,
	price int64,
	label string,
) (*videodomain.GenerationJob, error) {
	now := time.Now().UTC()
	job := &videodomain.GenerationJob{
		ID:          s.genID.Generate(),
		UserID:      userID,
		ProductID:   productID,
		Provider:    provider,
		State:       videodomain.StateProcessing,
		Prompt:      prompt,
		Caption:     finalCaption,
		ImageURL:    imageURL,
		AspectRatio: "portrait",
		CoinCost:    price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ids.JobID != "" {
		job.ExternalJobID = &ids.JobID
	}
	if ids.TaskID != "" {
		job.ExternalTaskID = &ids.TaskID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, debitErr := s.ledger.DebitTx(ctx, tx, ledgerdomain.DebitRequest{
			UserID:      userID,
			Amount:      price,
			Kind:        ledgerdomain.KindGeneration,
			Description: fmt.Sprintf("video generation (%s): %s", provider, label),
		}); debitErr != nil {
			return debitErr
		}
		return s.repo.Insert(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) Reconcile(ctx context.Context, userID, jobID snowflake.ID) (*videodomain.StatusReport, error) {
	job, err := s.repo.FindByID(ctx, s.db, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, videodomain.ErrJobNotFound
	}
	if job.State.Terminal() {
		return report(job), nil
	}

	adapter, err := s.registry.Adapter(job.Provider)
	if err != nil {
		return nil, videodomain.ErrUnknownProvider
	}

	externalIDs := idsOf(job)
	status, err := adapter.PollStatus(ctx, externalIDs)
	if err != nil {
		// A poll failure never fails the job: surface the last
		// persisted state and let a later signal settle it.
		s.log.Warn("poll failed, reporting last state",
			zap.String("job_id", job.ID.String()),
			zap.String("provider", job.Provider),
			zap.Error(err),
		)
		return report(job), nil
	}

	updated, err := s.applyStatus(ctx, job, status)
	if err != nil {
		return nil, err
	}
	return report(updated), nil
}

func (s *Service) HandleCallback(ctx context.Context, provider string, payload []byte) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	event := &videodomain.ProviderCallbackEvent{
		ID:         s.genID.Generate(),
		Provider:   provider,
		Payload:    datatypes.JSON(payload),
		ReceivedAt: time.Now().UTC(),
	}

	adapter, err := s.registry.Adapter(provider)
	if err != nil {
		event.Outcome = videodomain.CallbackUnmatched
		s.recordCallback(ctx, event, "unknown_provider")
		return nil
	}

	parsed, err := adapter.ParseCallback(payload)
	if err != nil {
		event.Outcome = videodomain.CallbackUnparseable
		s.recordCallback(ctx, event, "unparseable")
		return nil
	}

	externalID := parsed.IDs.JobID
	if externalID == "" {
		externalID = parsed.IDs.TaskID
	}
	event.ExternalID = externalID

	job, err := s.repo.FindByExternalID(ctx, s.db, provider, externalID)
	if err != nil {
		return err
	}
	if job == nil {
		event.Outcome = videodomain.CallbackUnmatched
		s.recordCallback(ctx, event, "unmatched")
		return nil
	}

	event.JobID = &job.ID
	if job.State.Terminal() {
		event.Outcome = videodomain.CallbackDuplicate
		s.recordCallback(ctx, event, "duplicate")
		return nil
	}

	before := job.State
	updated, err := s.applyStatus(ctx, job, parsed.Status)
	if err != nil {
		return err
	}

	if updated.State != before {
		event.Outcome = videodomain.CallbackApplied
	} else if updated.State.Terminal() {
		event.Outcome = videodomain.CallbackDuplicate
	} else {
		event.Outcome = videodomain.CallbackApplied
	}
	s.recordCallback(ctx, event, string(event.Outcome))
	return nil
}

// applyStatus is the single convergence point for poll and callback
// signals. Terminal flips are conditional updates; the loser of a
// concurrent race sees zero rows and backs off without touching the
// ledger.
func (s *Service) applyStatus(ctx context.Context, job *videodomain.GenerationJob, status videodomain.NormalizedStatus) (*videodomain.GenerationJob, error) {
	if job.State.Terminal() {
		return job, nil
	}

	switch status.Phase {
	case videodomain.PhaseGenerating:
		if status.SubState != job.SubState {
			if err := s.repo.UpdateSubState(ctx, s.db, job.ID, status.SubState); err != nil {
				return nil, err
			}
			job.SubState = status.SubState
		}
		return job, nil

	case videodomain.PhaseSucceeded:
		if status.ResultURL == "" {
			// Defense in depth: adapters already map this to failed.
			return s.fail(ctx, job, "generation_failed")
		}
		resultURL := status.ResultURL
		flipped, err := s.repo.FlipTerminal(ctx, s.db, job.ID, videodomain.TerminalUpdate{
			State:     videodomain.StateCompleted,
			ResultURL: &resultURL,
		})
		if err != nil {
			return nil, err
		}
		if !flipped {
			return s.reload(ctx, job)
		}
		job.State = videodomain.StateCompleted
		job.SubState = ""
		job.ResultURL = &resultURL
		if s.metrics != nil {
			s.metrics.RecordJobTransition(ctx, job.Provider, string(videodomain.StateProcessing), string(videodomain.StateCompleted))
		}
		s.log.Info("job completed",
			zap.String("job_id", job.ID.String()),
			zap.String("provider", job.Provider),
		)
		return job, nil

	case videodomain.PhaseFailed:
		return s.fail(ctx, job, failureReason(status.FailureDetail))

	default:
		return job, nil
	}
}

// fail flips the job to failed and refunds the charge in the same
// transaction, so a crash between the two cannot strand a failed job
// without its refund.
func (s *Service) fail(ctx context.Context, job *videodomain.GenerationJob, reason string) (*videodomain.GenerationJob, error) {
	flipped := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, flipErr := s.repo.FlipTerminal(ctx, tx, job.ID, videodomain.TerminalUpdate{
			State:         videodomain.StateFailed,
			FailureReason: &reason,
		})
		if flipErr != nil {
			return flipErr
		}
		if !won {
			return nil
		}
		flipped = true
		if job.CoinCost > 0 {
			// The reference makes the refund idempotent on its own,
			// independent of winning the flip.
			_, creditErr := s.ledger.CreditTx(ctx, tx, ledgerdomain.CreditRequest{
				UserID:            job.UserID,
				Amount:            job.CoinCost,
				Kind:              ledgerdomain.KindRefund,
				Description:       "refund: " + reason,
				ExternalReference: "refund:" + job.ID.String(),
			})
			if creditErr != nil && !errors.Is(creditErr, ledgerdomain.ErrDuplicateReference) {
				return creditErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !flipped {
		return s.reload(ctx, job)
	}

	job.State = videodomain.StateFailed
	job.SubState = ""
	job.FailureReason = &reason
	if s.metrics != nil {
		s.metrics.RecordJobTransition(ctx, job.Provider, string(videodomain.StateProcessing), string(videodomain.StateFailed))
		s.metrics.RecordRefund(ctx, job.Provider)
	}
	s.log.Info("job failed and refunded",
		zap.String("job_id", job.ID.String()),
		zap.String("provider", job.Provider),
		zap.String("reason", reason),
		zap.Int64("refund", job.CoinCost),
	)
	return job, nil
}

func (s *Service) reload(ctx context.Context, job *videodomain.GenerationJob) (*videodomain.GenerationJob, error) {
	fresh, err := s.repo.FindByID(ctx, s.db, job.UserID, job.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, videodomain.ErrJobNotFound
	}
	return fresh, nil
}

func (s *Service) recordCallback(ctx context.Context, event *videodomain.ProviderCallbackEvent, outcome string) {
	if err := s.repo.InsertCallbackEvent(ctx, s.db, event); err != nil {
		s.log.Warn("failed to record callback event", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordWebhookDelivery(ctx, event.Provider, outcome)
	}
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, limit int) ([]videodomain.GenerationJob, error) {
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	return s.repo.List(ctx, s.db, userID, limit)
}

func (s *Service) ListPage(ctx context.Context, userID snowflake.ID, page pagination.Pagination) ([]videodomain.GenerationJob, *pagination.PageInfo, error) {
	cursor, err := page.Cursor()
	if err != nil {
		return nil, nil, err
	}
	var before snowflake.ID
	if cursor != nil {
		before, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, nil, pagination.ErrInvalidPageToken
		}
	}
	limit := page.Limit()

	jobs, err := s.repo.ListBefore(ctx, s.db, userID, before, limit+1)
	if err != nil {
		return nil, nil, err
	}
	trimmed, info := pagination.Trim(jobs, limit, func(j videodomain.GenerationJob) pagination.Cursor {
		return pagination.Cursor{ID: j.ID.String()}
	})
	return trimmed, info, nil
}

func (s *Service) Get(ctx context.Context, userID, jobID snowflake.ID) (*videodomain.GenerationJob, error) {
	job, err := s.repo.FindByID(ctx, s.db, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, videodomain.ErrJobNotFound
	}
	return job, nil
}

func idsOf(job *videodomain.GenerationJob) videodomain.ExternalIDs {
	ids := videodomain.ExternalIDs{}
	if job.ExternalJobID != nil {
		ids.JobID = *job.ExternalJobID
	}
	if job.ExternalTaskID != nil {
		ids.TaskID = *job.ExternalTaskID
	}
	return ids
}

func report(job *videodomain.GenerationJob) *videodomain.StatusReport {
	r := &videodomain.StatusReport{
		VideoID:  job.ID,
		State:    job.State,
		SubState: job.SubState,
	}
	if job.ResultURL != nil {
		r.ResultURL = *job.ResultURL
	}
	if job.FailureReason != nil {
		r.FailureReason = *job.FailureReason
	}
	return r
}

// failureReason maps raw provider error text onto the user-facing
// categories the clients display.
func failureReason(detail string) string {
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "minor"):
		return "image_policy_minor"
	case strings.Contains(lower, "unsafe"):
		return "image_policy_unsafe"
	case strings.Contains(lower, "fetch"):
		return "image_unreachable"
	default:
		return "generation_failed"
	}
}
