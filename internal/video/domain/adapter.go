package domain

import (
	"context"
	"errors"
)

// Phase is the provider-independent view of a remote job.
type Phase string

const (
	PhaseGenerating Phase = "generating"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

var (
	// ErrProviderUnavailable marks transport failures and provider 5xx
	// responses. Transient: the caller keeps the job in its last state.
	ErrProviderUnavailable = errors.New("provider_unavailable")
	// ErrProviderRejected marks a request the provider refused (4xx or a
	// semantic rejection in a 200 body). Not retryable as-is.
	ErrProviderRejected = errors.New("provider_rejected")
	// ErrUnparseablePayload marks a callback body that cannot be decoded.
	ErrUnparseablePayload = errors.New("unparseable_payload")
)

// ExternalIDs carries the provider-side identifiers of a job. Providers
// differ in which of the two they echo back, so lookups match either.
type ExternalIDs struct {
	JobID  string
	TaskID string
}

// SubmitRequest is the provider-independent submission input.
type SubmitRequest struct {
	Prompt      string
	ImageURLs   []string
	AspectRatio string
	CallbackURL string
}

// SubmitResult returns the identifiers the provider assigned.
type SubmitResult struct {
	IDs ExternalIDs
}

// NormalizedStatus is the converged status document every adapter maps its
// wire format onto.
type NormalizedStatus struct {
	Phase         Phase
	SubState      string
	ResultURL     string
	FailureDetail string
}

// CallbackResult is a parsed webhook delivery.
type CallbackResult struct {
	IDs    ExternalIDs
	Status NormalizedStatus
}

// Adapter is the uniform capability surface over heterogeneous
// video-generation providers. ParseCallback is pure and must tolerate
// malformed input; a recognizable payload that carries no usable result
// parses as failed rather than erroring, so the job can be settled and
// refunded instead of hanging.
type Adapter interface {
	Provider() string
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
	PollStatus(ctx context.Context, ids ExternalIDs) (NormalizedStatus, error)
	ParseCallback(payload []byte) (CallbackResult, error)
}
