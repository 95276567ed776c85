package veo3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/promoreel/promoreel/internal/video/domain"
	"go.uber.org/zap"
)

// Adapter speaks the kie.ai Veo3 API. Veo3 deliveries are the messiest of
// the three providers: the task id sits at the root or under data, the
// result URL has appeared in three different fields across API revisions,
// and success is flagged by an integer (0 generating, 1 success, 2 and 3
// failed).
type Adapter struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	log     *zap.Logger
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

func New(cfg Config, log *zap.Logger) *Adapter {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "veo3_fast"
	}
	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log.Named("adapter.veo3"),
	}
}

func (a *Adapter) Provider() string { return "veo3" }

type generateRequest struct {
	Prompt            string   `json:"prompt"`
	ImageURLs         []string `json:"imageUrls"`
	Model             string   `json:"model"`
	AspectRatio       string   `json:"aspectRatio"`
	EnableTranslation bool     `json:"enableTranslation"`
	GenerationType    string   `json:"generationType"`
	CallBackURL       string   `json:"callBackUrl,omitempty"`
}

type generateResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

// statusDocument covers both the record-info shape and the looser callback
// shapes seen in the wild.
type statusDocument struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	TaskID string `json:"taskId"`
	Data   struct {
		TaskID       string   `json:"taskId"`
		SuccessFlag  *int     `json:"successFlag"`
		ErrorMessage string   `json:"errorMessage"`
		ResultURLs   []string `json:"resultUrls"`
		ResultUrls2  []string `json:"result_urls"`
		Response     struct {
			TaskID     string   `json:"taskId"`
			ResultURLs []string `json:"resultUrls"`
		} `json:"response"`
	} `json:"data"`
}

func (a *Adapter) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:            req.Prompt,
		ImageURLs:         req.ImageURLs,
		Model:             a.model,
		AspectRatio:       aspectRatio(req.AspectRatio),
		EnableTranslation: true,
		GenerationType:    "FIRST_AND_LAST_FRAMES_2_VIDEO",
		CallBackURL:       req.CallbackURL,
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	raw, status, err := a.do(ctx, http.MethodPost, a.baseURL+"/veo/generate", body)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if status >= 500 {
		return domain.SubmitResult{}, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, status)
	}
	if status >= 400 {
		return domain.SubmitResult{}, fmt.Errorf("%w: status %d", domain.ErrProviderRejected, status)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("%w: %v", domain.ErrProviderRejected, err)
	}
	if parsed.Code != 200 {
		return domain.SubmitResult{}, fmt.Errorf("%w: code %d %s", domain.ErrProviderRejected, parsed.Code, parsed.Msg)
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

	raw, status, err := a.do(ctx, http.MethodGet, a.baseURL+"/veo/record-info?taskId="+taskID, nil)
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
	return normalize(doc, raw), nil
}

func (a *Adapter) ParseCallback(payload []byte) (domain.CallbackResult, error) {
	var doc statusDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.CallbackResult{}, domain.ErrUnparseablePayload
	}

	taskID := taskIDOf(doc)
	if taskID == "" {
		return domain.CallbackResult{}, domain.ErrUnparseablePayload
	}

	return domain.CallbackResult{
		IDs:    domain.ExternalIDs{TaskID: taskID},
		Status: normalize(doc, payload),
	}, nil
}

// taskIDOf searches the known locations in order: root, data, and the
// nested response object.
func taskIDOf(doc statusDocument) string {
	if id := strings.TrimSpace(doc.TaskID); id != "" {
		return id
	}
	if id := strings.TrimSpace(doc.Data.TaskID); id != "" {
		return id
	}
	return strings.TrimSpace(doc.Data.Response.TaskID)
}

func normalize(doc statusDocument, raw []byte) domain.NormalizedStatus {
	url := extractResultURL(doc, raw)

	if doc.Data.SuccessFlag != nil {
		switch *doc.Data.SuccessFlag {
		case 1:
			if url == "" {
				return domain.NormalizedStatus{
					Phase:         domain.PhaseFailed,
					FailureDetail: "success without result url",
				}
			}
			return domain.NormalizedStatus{Phase: domain.PhaseSucceeded, ResultURL: url}
		case 2, 3:
			return domain.NormalizedStatus{Phase: domain.PhaseFailed, FailureDetail: failureDetail(doc)}
		default:
			return domain.NormalizedStatus{Phase: domain.PhaseGenerating, SubState: "generating"}
		}
	}

	// No successFlag: some callback variants signal success only through
	// code 200 plus a URL.
	if doc.Code == 200 && url != "" {
		return domain.NormalizedStatus{Phase: domain.PhaseSucceeded, ResultURL: url}
	}
	if doc.Code != 0 && doc.Code != 200 {
		return domain.NormalizedStatus{Phase: domain.PhaseFailed, FailureDetail: failureDetail(doc)}
	}
	return domain.NormalizedStatus{Phase: domain.PhaseGenerating, SubState: "generating"}
}

// videoURLPattern is the last-resort extractor for payload shapes none of
// the structured fields cover.
var videoURLPattern = regexp.MustCompile(`https://[^\s"']+\.(mp4|webm|mov)`)

// extractResultURL walks the known result locations in a fixed order:
// the official record-info field, the two legacy callback fields, then a
// regex scan of the raw payload.
func extractResultURL(doc statusDocument, raw []byte) string {
	if len(doc.Data.Response.ResultURLs) > 0 {
		return strings.TrimSpace(doc.Data.Response.ResultURLs[0])
	}
	if len(doc.Data.ResultUrls2) > 0 {
		return strings.TrimSpace(doc.Data.ResultUrls2[0])
	}
	if len(doc.Data.ResultURLs) > 0 {
		return strings.TrimSpace(doc.Data.ResultURLs[0])
	}
	return videoURLPattern.FindString(string(raw))
}

func failureDetail(doc statusDocument) string {
	if msg := strings.TrimSpace(doc.Data.ErrorMessage); msg != "" {
		return msg
	}
	return strings.TrimSpace(doc.Msg)
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
	case "portrait":
		return "9:16"
	case "landscape":
		return "16:9"
	default:
		return "9:16"
	}
}
