package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/promoreel/promoreel/internal/video/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *domain.GenerationJob) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO generation_jobs (
			id, user_id, product_id, provider, external_job_id, external_task_id,
			state, sub_state, prompt, caption, image_url, aspect_ratio,
			result_url, failure_reason, coin_cost, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.UserID,
		job.ProductID,
		job.Provider,
		job.ExternalJobID,
		job.ExternalTaskID,
		string(job.State),
		job.SubState,
		job.Prompt,
		job.Caption,
		job.ImageURL,
		job.AspectRatio,
		job.ResultURL,
		job.FailureReason,
		job.CoinCost,
		job.CreatedAt,
		job.UpdatedAt,
	).Error
}

const jobColumns = `id, user_id, product_id, provider, external_job_id, external_task_id,
	state, sub_state, prompt, caption, image_url, aspect_ratio,
	result_url, failure_reason, coin_cost, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	err := db.WithContext(ctx).Raw(
		`SELECT `+jobColumns+` FROM generation_jobs WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, provider, externalID string) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	err := db.WithContext(ctx).Raw(
		`SELECT `+jobColumns+` FROM generation_jobs
		 WHERE provider = ? AND (external_job_id = ? OR external_task_id = ?)
		 ORDER BY created_at DESC
		 LIMIT 1`,
		provider,
		externalID,
		externalID,
	).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]domain.GenerationJob, error) {
	var jobs []domain.GenerationJob
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) ListBefore(ctx context.Context, db *gorm.DB, userID, beforeID snowflake.ID, limit int) ([]domain.GenerationJob, error) {
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if beforeID != 0 {
		q = q.Where("id < ?", beforeID)
	}
	var jobs []domain.GenerationJob
	err := q.Order("id desc").Limit(limit).Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) ListStaleProcessing(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]domain.GenerationJob, error) {
	var jobs []domain.GenerationJob
	err := db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", string(domain.StateProcessing), olderThan).
		Order("updated_at asc").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) FlipTerminal(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.TerminalUpdate) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE generation_jobs
		 SET state = ?, sub_state = '', result_url = ?, failure_reason = ?, updated_at = ?
		 WHERE id = ? AND state = ?`,
		string(update.State),
		update.ResultURL,
		update.FailureReason,
		time.Now().UTC(),
		id,
		string(domain.StateProcessing),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateSubState(ctx context.Context, db *gorm.DB, id snowflake.ID, subState string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE generation_jobs
		 SET sub_state = ?, updated_at = ?
		 WHERE id = ? AND state = ?`,
		subState,
		time.Now().UTC(),
		id,
		string(domain.StateProcessing),
	).Error
}

func (r *repo) InsertCallbackEvent(ctx context.Context, db *gorm.DB, event *domain.ProviderCallbackEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO provider_callback_events (id, provider, external_id, job_id, outcome, payload, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Provider,
		event.ExternalID,
		event.JobID,
		string(event.Outcome),
		event.Payload,
		event.ReceivedAt,
	).Error
}
