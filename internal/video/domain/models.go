package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// JobState is the lifecycle state of a generation job. Transitions are
// monotonic: processing moves to exactly one of completed or failed, and
// terminal states never change again.
type JobState string

const (
	StateProcessing JobState = "processing"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// GenerationJob tracks one video generation at one provider.
type GenerationJob struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID         snowflake.ID  `gorm:"not null;index" json:"user_id"`
	ProductID      *snowflake.ID `gorm:"index" json:"product_id,omitempty"`
	Provider       string        `gorm:"type:text;not null" json:"provider"`
	ExternalJobID  *string       `gorm:"type:text" json:"external_job_id,omitempty"`
	ExternalTaskID *string       `gorm:"type:text" json:"external_task_id,omitempty"`
	State          JobState      `gorm:"type:text;not null" json:"state"`
	SubState       string        `gorm:"type:text;not null" json:"sub_state,omitempty"`
	Prompt         string        `gorm:"type:text;not null" json:"prompt"`
	Caption        string        `gorm:"type:text;not null" json:"caption"`
	ImageURL       string        `gorm:"type:text;not null" json:"image_url"`
	AspectRatio    string        `gorm:"type:text;not null" json:"aspect_ratio"`
	ResultURL      *string       `gorm:"type:text" json:"result_url,omitempty"`
	FailureReason  *string       `gorm:"type:text" json:"failure_reason,omitempty"`
	CoinCost       int64         `gorm:"not null" json:"coin_cost"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (GenerationJob) TableName() string { return "generation_jobs" }

// CallbackOutcome classifies what a provider webhook delivery did.
type CallbackOutcome string

const (
	CallbackApplied     CallbackOutcome = "applied"
	CallbackDuplicate   CallbackOutcome = "duplicate"
	CallbackUnmatched   CallbackOutcome = "unmatched"
	CallbackUnparseable CallbackOutcome = "unparseable"
)

// ProviderCallbackEvent is an append-only audit record of every inbound
// provider webhook. Business logic never reads it back.
type ProviderCallbackEvent struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	Provider   string          `gorm:"type:text;not null" json:"provider"`
	ExternalID string          `gorm:"type:text;not null" json:"external_id"`
	JobID      *snowflake.ID   `gorm:"index" json:"job_id,omitempty"`
	Outcome    CallbackOutcome `gorm:"type:text;not null" json:"outcome"`
	Payload    datatypes.JSON  `gorm:"type:jsonb" json:"payload"`
	ReceivedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"received_at"`
}

// TableName sets the database table name.
func (ProviderCallbackEvent) TableName() string { return "provider_callback_events" }
