package phaya

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promoreel/promoreel/internal/video/domain"
	"go.uber.org/zap"
)

// Adapter speaks the phaya.io sora2-video API. The wire status vocabulary
// (processing / completed / failed) already matches the normalized phases.
type Adapter struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

type Config struct {
	BaseURL string
	APIKey  string
}

func New(cfg Config, log *zap.Logger) *Adapter {
	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log.Named("adapter.phaya"),
	}
}

func (a *Adapter) Provider() string { return "phaya" }

type createRequest struct {
	Prompt          string   `json:"prompt"`
	ImageURLs       []string `json:"image_urls"`
	AspectRatio     string   `json:"aspect_ratio"`
	NFrames         string   `json:"n_frames"`
	RemoveWatermark bool     `json:"remove_watermark"`
}

type createResponse struct {
	JobID  string `json:"job_id"`
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type statusDocument struct {
	JobID    string `json:"job_id"`
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Message  string `json:"message"`
}

func (a *Adapter) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	body, err := json.Marshal(createRequest{
		Prompt:          req.Prompt,
		ImageURLs:       req.ImageURLs,
		AspectRatio:     aspectRatio(req.AspectRatio),
		NFrames:         "10",
		RemoveWatermark: true,
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	raw, status, err := a.do(ctx, http.MethodPost, a.baseURL+"/sora2-video/create", body)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if status >= 500 {
		return domain.SubmitResult{}, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, status)
	}
	if status >= 400 {
		return domain.SubmitResult{}, fmt.Errorf("%w: status %d", domain.ErrProviderRejected, status)
	}

	var parsed createResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("%w: %v", domain.ErrProviderRejected, err)
	}
	if parsed.JobID == "" {
		return domain.SubmitResult{}, fmt.Errorf("%w: missing job_id", domain.ErrProviderRejected)
	}

	return domain.SubmitResult{IDs: domain.ExternalIDs{JobID: parsed.JobID, TaskID: parsed.TaskID}}, nil
}

func (a *Adapter) PollStatus(ctx context.Context, ids domain.ExternalIDs) (domain.NormalizedStatus, error) {
	jobID := ids.JobID
	if jobID == "" {
		jobID = ids.TaskID
	}

	raw, status, err := a.do(ctx, http.MethodGet, a.baseURL+"/sora2-video/status/"+jobID, nil)
	if err != nil {
		return domain.NormalizedStatus{}, err
	}
	if status >= 500 {
		return domain.NormalizedStatus{}, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, status)
	}
	if status >= 400 {
		return domain.NormalizedStatus{}, fmt.Errorf("%w: status %d", domain.ErrProviderRejected, status)
	}

	var doc statusDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.NormalizedStatus{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return normalize(doc), nil
}

// ParseCallback handles webhook deliveries, which carry the same status
// document as the poll endpoint.
func (a *Adapter) ParseCallback(payload []byte) (domain.CallbackResult, error) {
	var doc statusDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.CallbackResult{}, domain.ErrUnparseablePayload
	}
	if doc.JobID == "" && doc.TaskID == "" {
		return domain.CallbackResult{}, domain.ErrUnparseablePayload
	}

	return domain.CallbackResult{
		IDs:    domain.ExternalIDs{JobID: doc.JobID, TaskID: doc.TaskID},
		Status: normalize(doc),
	}, nil
}

func normalize(doc statusDocument) domain.NormalizedStatus {
	switch strings.ToLower(strings.TrimSpace(doc.Status)) {
	case "completed":
		if doc.VideoURL == "" {
			// A completed job without a video is a failure from the
			// caller's perspective; settle it so the coins come back.
			return domain.NormalizedStatus{
				Phase:         domain.PhaseFailed,
				FailureDetail: "completed without video url",
			}
		}
		return domain.NormalizedStatus{Phase: domain.PhaseSucceeded, ResultURL: doc.VideoURL}
	case "failed":
		return domain.NormalizedStatus{Phase: domain.PhaseFailed, FailureDetail: doc.Message}
	default:
		return domain.NormalizedStatus{Phase: domain.PhaseGenerating, SubState: strings.TrimSpace(doc.Status)}
	}
}

func (a *Adapter) do(ctx context.Context, method, url string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		a.log.Warn("request failed", zap.String("url", url), zap.Error(err))
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return raw, resp.StatusCode, nil
}

func aspectRatio(ratio string) string {
	switch ratio {
	case "landscape", "portrait", "square":
		return ratio
	default:
		return "portrait"
	}
}
