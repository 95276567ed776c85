package kie

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

// Adapter speaks the kie.ai jobs API (sora-2-image-to-video model). The
// provider wraps everything in {code, message, data} envelopes and reports
// task state as waiting/queuing/generating/success/fail.
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
		log:     log.Named("adapter.kie"),
	}
}

func (a *Adapter) Provider() string { return "kie" }

type createTaskRequest struct {
	Model       string          `json:"model"`
	CallBackURL string          `json:"callBackUrl,omitempty"`
	Input       createTaskInput `json:"input"`
}

type createTaskInput struct {
	Prompt          string   `json:"prompt"`
	ImageURLs       []string `json:"image_urls"`
	AspectRatio     string   `json:"aspect_ratio"`
	NFrames         string   `json:"n_frames"`
	RemoveWatermark bool     `json:"remove_watermark"`
}

type createTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

type recordInfoResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID     string  `json:"taskId"`
		State      string  `json:"state"`
		ResultJSON *string `json:"resultJson"`
		FailCode   string  `json:"failCode"`
		FailMsg    string  `json:"failMsg"`
	} `json:"data"`
}

type resultJSON struct {
	ResultURLs []string `json:"resultUrls"`
}

func (a *Adapter) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	body, err := json.Marshal(createTaskRequest{
		Model:       "sora-2-image-to-video",
		CallBackURL: req.CallbackURL,
		Input: createTaskInput{
			Prompt:          req.Prompt,
			ImageURLs:       req.ImageURLs,
			AspectRatio:     aspectRatio(req.AspectRatio),
			NFrames:         "15",
			RemoveWatermark: true,
		},
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	raw, status, err := a.do(ctx, http.MethodPost, a.baseURL+"/jobs/createTask", body)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if status >= 500 {
		return domain.SubmitResult{}, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, status)
	}
	if status >= 400 {
		return domain.SubmitResult{}, fmt.Errorf("%w: status %d", domain.ErrProviderRejected, status)
	}

	var parsed createTaskResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("%w: %v", domain.ErrProviderRejected, err)
	}
	// The provider reports semantic rejection inside a 200 envelope.
	if parsed.Code != 200 {
		return domain.SubmitResult{}, fmt.Errorf("%w: code %d %s", domain.ErrProviderRejected, parsed.Code, parsed.Message)
	}
	if parsed.Data.TaskID == "" {
		return domain.SubmitResult{}, fmt.Errorf("%w: missing taskId", domain.ErrProviderRejected)
	}

	return domain.SubmitResult{IDs: domain.ExternalIDs{TaskID: parsed.Data.TaskID}}, nil
}

func (a *Adapter) PollStatus(ctx context.Context, ids domain.ExternalIDs) (domain.NormalizedStatus, error) {
	taskID := ids.TaskID
	if taskID == "" {
		taskID = ids.JobID
	}

	raw, status, err := a.do(ctx, http.MethodGet, a.baseURL+"/jobs/recordInfo?taskId="+taskID, nil)
	if err != nil {
		return domain.NormalizedStatus{}, err
	}
	if status >= 500 {
		return domain.NormalizedStatus{}, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, status)
	}
	if status >= 400 {
		return domain.NormalizedStatus{}, fmt.Errorf("%w: status %d", domain.ErrProviderRejected, status)
	}

	var parsed recordInfoResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.NormalizedStatus{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return normalize(parsed.Data.State, parsed.Data.ResultJSON, parsed.Data.FailMsg), nil
}

// ParseCallback handles webhook deliveries, which reuse the recordInfo
// document shape.
func (a *Adapter) ParseCallback(payload []byte) (domain.CallbackResult, error) {
	var parsed recordInfoResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return domain.CallbackResult{}, domain.ErrUnparseablePayload
	}
	if parsed.Data.TaskID == "" {
		return domain.CallbackResult{}, domain.ErrUnparseablePayload
	}

	return domain.CallbackResult{
		IDs:    domain.ExternalIDs{TaskID: parsed.Data.TaskID},
		Status: normalize(parsed.Data.State, parsed.Data.ResultJSON, parsed.Data.FailMsg),
	}, nil
}

func normalize(state string, result *string, failMsg string) domain.NormalizedStatus {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "success":
		url := extractResultURL(result)
		if url == "" {
			return domain.NormalizedStatus{
				Phase:         domain.PhaseFailed,
				FailureDetail: "success without result url",
			}
		}
		return domain.NormalizedStatus{Phase: domain.PhaseSucceeded, ResultURL: url}
	case "fail":
		return domain.NormalizedStatus{Phase: domain.PhaseFailed, FailureDetail: failMsg}
	case "waiting", "queuing", "generating":
		return domain.NormalizedStatus{Phase: domain.PhaseGenerating, SubState: strings.ToLower(strings.TrimSpace(state))}
	default:
		return domain.NormalizedStatus{Phase: domain.PhaseGenerating, SubState: strings.TrimSpace(state)}
	}
}

// extractResultURL unpacks the double-encoded resultJson field: a JSON
// string whose resultUrls array holds the video URL.
func extractResultURL(result *string) string {
	if result == nil || strings.TrimSpace(*result) == "" {
		return ""
	}
	var parsed resultJSON
	if err := json.Unmarshal([]byte(*result), &parsed); err != nil {
		return ""
	}
	if len(parsed.ResultURLs) == 0 {
		return ""
	}
	return strings.TrimSpace(parsed.ResultURLs[0])
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
