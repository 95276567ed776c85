package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/promoreel/promoreel/pkg/db/pagination"
)

var (
	ErrJobNotFound      = errors.New("job_not_found")
	ErrInvalidInput     = errors.New("invalid_input")
	ErrUnknownProvider  = errors.New("unknown_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
)

// GenerateRequest is the dispatch input. Caption is optional; when empty a
// caption is generated (or templated if the generator is down).
type GenerateRequest struct {
	Name           string       `json:"name"`
	ImageURL       string       `json:"image_url"`
	Features       string       `json:"features"`
	Concept        string       `json:"concept"`
	TargetAudience string       `json:"target_audience"`
	Caption        string       `json:"caption"`
	Provider       string       `json:"provider"`
	SaveProduct    bool         `json:"save_product"`
	ProductID      snowflake.ID `json:"product_id,string,omitempty"`
}

// StatusReport is what the poll entry point returns to the client.
type StatusReport struct {
	VideoID       snowflake.ID `json:"video_id"`
	State         JobState     `json:"state"`
	SubState      string       `json:"sub_state,omitempty"`
	ResultURL     string       `json:"result_url,omitempty"`
	FailureReason string       `json:"failure_reason,omitempty"`
}

type Service interface {
	// Generate validates, charges, and dispatches a new job.
	Generate(ctx context.Context, userID snowflake.ID, req GenerateRequest) (*GenerationJob, error)
	// Regenerate re-submits an existing job's prompt and image as a new
	// job. The old row is never mutated.
	Regenerate(ctx context.Context, userID, jobID snowflake.ID) (*GenerationJob, error)
	// Reconcile polls the provider for a non-terminal job and converges
	// the stored state. Adapter outages surface the last persisted state.
	Reconcile(ctx context.Context, userID, jobID snowflake.ID) (*StatusReport, error)
	// HandleCallback ingests a provider webhook delivery. It never fails
	// on unmatched or unparseable payloads; the caller acknowledges so
	// the provider stops retrying.
	HandleCallback(ctx context.Context, provider string, payload []byte) error
	List(ctx context.Context, userID snowflake.ID, limit int) ([]GenerationJob, error)
	// ListPage is the cursor-paged variant backing the history endpoint.
	ListPage(ctx context.Context, userID snowflake.ID, page pagination.Pagination) ([]GenerationJob, *pagination.PageInfo, error)
	Get(ctx context.Context, userID, jobID snowflake.ID) (*GenerationJob, error)
}
