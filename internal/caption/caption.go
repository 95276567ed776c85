package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promoreel/promoreel/internal/config"
	"go.uber.org/zap"
)

// Generator produces a short marketing caption for a product. Callers treat
// any error as "use the fallback caption".
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Request struct {
	ProductName    string
	Features       string
	TargetAudience string
}

var ErrUnavailable = errors.New("caption_service_unavailable")

// Client talks to an OpenRouter-compatible chat completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) Generator {
	return &Client{
		baseURL: cfg.CaptionAPIURL,
		apiKey:  cfg.CaptionAPIKey,
		model:   cfg.CaptionModel,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.Named("caption.client"),
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrUnavailable
	}

	prompt := fmt.Sprintf(
		"Write one short, punchy social media caption (max 150 characters, no hashtags) for a promo video of %q.",
		strings.TrimSpace(req.ProductName),
	)
	if features := strings.TrimSpace(req.Features); features != "" {
		prompt += " Key features: " + features + "."
	}
	if audience := strings.TrimSpace(req.TargetAudience); audience != "" {
		prompt += " Target audience: " + audience + "."
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Warn("caption request failed", zap.Error(err))
		return "", ErrUnavailable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("caption request rejected",
			zap.Int("status", resp.StatusCode),
		)
		return "", ErrUnavailable
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", ErrUnavailable
	}
	if len(parsed.Choices) == 0 {
		return "", ErrUnavailable
	}

	caption := strings.TrimSpace(parsed.Choices[0].Message.Content)
	caption = strings.Trim(caption, `"`)
	if caption == "" {
		return "", ErrUnavailable
	}
	return caption, nil
}

// Fallback builds a templated caption when the generator is unreachable.
func Fallback(productName string) string {
	name := strings.TrimSpace(productName)
	if name == "" {
		name = "our product"
	}
	return fmt.Sprintf("Discover %s. Your new favorite is here.", name)
}
