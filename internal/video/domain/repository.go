package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TerminalUpdate is the payload of a conditional state flip.
type TerminalUpdate struct {
	State         JobState
	ResultURL     *string
	FailureReason *string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *GenerationJob) error
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*GenerationJob, error)
	// FindByExternalID matches on external_job_id OR external_task_id;
	// providers are inconsistent about which identifier they echo back.
	FindByExternalID(ctx context.Context, db *gorm.DB, provider, externalID string) (*GenerationJob, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]GenerationJob, error)
	// ListBefore returns jobs with ids strictly below beforeID, newest
	// first. beforeID zero means start from the newest row.
	ListBefore(ctx context.Context, db *gorm.DB, userID, beforeID snowflake.ID, limit int) ([]GenerationJob, error)
	ListStaleProcessing(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]GenerationJob, error)
	// FlipTerminal performs the conditional terminal transition:
	// UPDATE ... WHERE id = ? AND state = 'processing'. It reports whether
	// this caller won the flip; zero rows means another signal already
	// settled the job.
	FlipTerminal(ctx context.Context, db *gorm.DB, id snowflake.ID, update TerminalUpdate) (bool, error)
	UpdateSubState(ctx context.Context, db *gorm.DB, id snowflake.ID, subState string) error
	InsertCallbackEvent(ctx context.Context, db *gorm.DB, event *ProviderCallbackEvent) error
}
