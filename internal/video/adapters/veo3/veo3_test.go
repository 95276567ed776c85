package veo3

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
		name       string
		payload    string
		wantTaskID string
		wantPhase  domain.Phase
		wantURL    string
		wantDetail string
	}{{
		name:       "record-info shape with nested response urls",
		payload:    `{"code":200,"data":{"taskId":"t1","successFlag":1,"response":{"taskId":"t1","resultUrls":["https://cdn.kie.test/a.mp4"]}}}`,
		wantTaskID: "t1",
		wantPhase:  domain.PhaseSucceeded,
		wantURL:    "https://cdn.kie.test/a.mp4",
	}, {
		name:       "legacy snake_case result_urls",
		payload:    `{"code":200,"data":{"taskId":"t2","successFlag":1,"result_urls":["https://cdn.kie.test/b.mp4"]}}`,
		wantTaskID: "t2",
		wantPhase:  domain.PhaseSucceeded,
		wantURL:    "https://cdn.kie.test/b.mp4",
	}, {
		name:       "legacy camelCase resultUrls on data",
		payload:    `{"code":200,"data":{"taskId":"t3","successFlag":1,"resultUrls":["https://cdn.kie.test/c.mp4"]}}`,
		wantTaskID: "t3",
		wantPhase:  domain.PhaseSucceeded,
		wantURL:    "https://cdn.kie.test/c.mp4",
	}, {
		name:       "regex fallback finds a bare url",
		payload:    `{"code":200,"taskId":"t4","data":{"successFlag":1,"info":"done https://cdn.kie.test/d.mp4 enjoy"}}`,
		wantTaskID: "t4",
		wantPhase:  domain.PhaseSucceeded,
		wantURL:    "https://cdn.kie.test/d.mp4",
	}, {
		name:       "task id at the root",
		payload:    `{"code":200,"taskId":"t5","data":{"successFlag":0}}`,
		wantTaskID: "t5",
		wantPhase:  domain.PhaseGenerating,
	}, {
		name:       "success flag without url settles as failed",
		payload:    `{"code":200,"data":{"taskId":"t6","successFlag":1}}`,
		wantTaskID: "t6",
		wantPhase:  domain.PhaseFailed,
		wantDetail: "success without result url",
	}, {
		name:       "success flag 2 carries the error message",
		payload:    `{"code":200,"data":{"taskId":"t7","successFlag":2,"errorMessage":"content policy"}}`,
		wantTaskID: "t7",
		wantPhase:  domain.PhaseFailed,
		wantDetail: "content policy",
	}, {
		name:       "success flag 3 falls back to msg",
		payload:    `{"code":200,"msg":"internal failure","data":{"taskId":"t8","successFlag":3}}`,
		wantTaskID: "t8",
		wantPhase:  domain.PhaseFailed,
		wantDetail: "internal failure",
	}, {
		name:       "no flag but code 200 plus url means success",
		payload:    `{"code":200,"data":{"taskId":"t9","resultUrls":["https://cdn.kie.test/e.mp4"]}}`,
		wantTaskID: "t9",
		wantPhase:  domain.PhaseSucceeded,
		wantURL:    "https://cdn.kie.test/e.mp4",
	}, {
		name:       "no flag and non-200 code means failed",
		payload:    `{"code":500,"msg":"boom","data":{"taskId":"t10"}}`,
		wantTaskID: "t10",
		wantPhase:  domain.PhaseFailed,
		wantDetail: "boom",
	}, {
		name:       "no flag and no url keeps generating",
		payload:    `{"code":200,"data":{"taskId":"t11"}}`,
		wantTaskID: "t11",
		wantPhase:  domain.PhaseGenerating,
	}, {
		// A url alone, with neither successFlag nor code, is not a
		// completion signal; the next poll reads the authoritative
		// record-info document.
		name:       "url without flag or code keeps generating",
		payload:    `{"data":{"taskId":"t13","resultUrls":["https://cdn.kie.test/g.mp4"]}}`,
		wantTaskID: "t13",
		wantPhase:  domain.PhaseGenerating,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := adapter.ParseCallback([]byte(tc.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IDs.TaskID != tc.wantTaskID {
				t.Fatalf("task id = %q, want %q", result.IDs.TaskID, tc.wantTaskID)
			}
			if result.Status.Phase != tc.wantPhase {
				t.Fatalf("phase = %s, want %s", result.Status.Phase, tc.wantPhase)
			}
			if result.Status.ResultURL != tc.wantURL {
				t.Fatalf("url = %q, want %q", result.Status.ResultURL, tc.wantURL)
			}
			if result.Status.FailureDetail != tc.wantDetail {
				t.Fatalf("detail = %q, want %q", result.Status.FailureDetail, tc.wantDetail)
			}
		})
	}
}

func TestParseCallback_Malformed(t *testing.T) {
	adapter := testAdapter()

	for _, payload := range []string{`not json`, `{}`, `{"code":200,"data":{"successFlag":1}}`} {
		if _, err := adapter.ParseCallback([]byte(payload)); !errors.Is(err, domain.ErrUnparseablePayload) {
			t.Fatalf("payload %q: expected ErrUnparseablePayload, got %v", payload, err)
		}
	}
}

func TestParseCallback_TaskIDInNestedResponse(t *testing.T) {
	adapter := testAdapter()

	result, err := adapter.ParseCallback([]byte(`{"code":200,"data":{"response":{"taskId":"t12","resultUrls":["https://cdn.kie.test/f.mp4"]}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if result.IDs.TaskID != "t12" {
		t.Fatalf("task id = %q", result.IDs.TaskID)
	}
	if result.Status.Phase != domain.PhaseSucceeded {
		t.Fatalf("phase = %s", result.Status.Phase)
	}
}

func TestAspectRatio(t *testing.T) {
	for in, want := range map[string]string{"portrait": "9:16", "landscape": "16:9", "": "9:16", "square": "9:16"} {
		if got := aspectRatio(in); got != want {
			t.Fatalf("aspectRatio(%q) = %q, want %q", in, got, want)
		}
	}
}
