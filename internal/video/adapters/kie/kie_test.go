package kie

import (
	"errors"
	"testing"

	"github.com/promoreel/promoreel/internal/video/domain"
	"go.uber.org/zap"
)

func testAdapter() *Adapter {
	return New(Config{BaseURL: "https://kie.test/api/v1", APIKey: "k"}, zap.NewNop())
}

func TestParseCallback(t *testing.T) {
	adapter := testAdapter()

	tests := []struct {
		name      string
		payload   string
		wantPhase domain.Phase
		wantURL   string
		wantSub   string
	}{{
		name:      "success with double-encoded result",
		payload:   `{"code":200,"data":{"taskId":"t1","state":"success","resultJson":"{\"resultUrls\":[\"https://cdn.kie.test/v.mp4\"]}"}}`,
		wantPhase: domain.PhaseSucceeded,
		wantURL:   "https://cdn.kie.test/v.mp4",
	}, {
		name:      "success with empty resultJson settles as failed",
		payload:   `{"code":200,"data":{"taskId":"t1","state":"success","resultJson":null}}`,
		wantPhase: domain.PhaseFailed,
	}, {
		name:      "success with corrupt resultJson settles as failed",
		payload:   `{"code":200,"data":{"taskId":"t1","state":"success","resultJson":"{broken"}}`,
		wantPhase: domain.PhaseFailed,
	}, {
		name:      "fail with message",
		payload:   `{"code":200,"data":{"taskId":"t1","state":"fail","failMsg":"content rejected"}}`,
		wantPhase: domain.PhaseFailed,
	}, {
		name:      "waiting maps to generating with sub-state",
		payload:   `{"code":200,"data":{"taskId":"t1","state":"waiting"}}`,
		wantPhase: domain.PhaseGenerating,
		wantSub:   "waiting",
	}, {
		name:      "queuing maps to generating with sub-state",
		payload:   `{"code":200,"data":{"taskId":"t1","state":"queuing"}}`,
		wantPhase: domain.PhaseGenerating,
		wantSub:   "queuing",
	}, {
		name:      "generating keeps sub-state",
		payload:   `{"code":200,"data":{"taskId":"t1","state":"generating"}}`,
		wantPhase: domain.PhaseGenerating,
		wantSub:   "generating",
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := adapter.ParseCallback([]byte(tc.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IDs.TaskID != "t1" {
				t.Fatalf("task id = %q", result.IDs.TaskID)
			}
			if result.Status.Phase != tc.wantPhase {
				t.Fatalf("phase = %s, want %s", result.Status.Phase, tc.wantPhase)
			}
			if result.Status.ResultURL != tc.wantURL {
				t.Fatalf("url = %q, want %q", result.Status.ResultURL, tc.wantURL)
			}
			if result.Status.SubState != tc.wantSub {
				t.Fatalf("sub_state = %q, want %q", result.Status.SubState, tc.wantSub)
			}
		})
	}
}

func TestParseCallback_Malformed(t *testing.T) {
	adapter := testAdapter()

	for _, payload := range []string{`not json`, `{}`, `{"code":200,"data":{}}`} {
		if _, err := adapter.ParseCallback([]byte(payload)); !errors.Is(err, domain.ErrUnparseablePayload) {
			t.Fatalf("payload %q: expected ErrUnparseablePayload, got %v", payload, err)
		}
	}
}
