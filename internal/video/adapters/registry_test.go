package adapters

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/promoreel/promoreel/internal/video/domain"
)

type namedAdapter struct {
	name string
}

func (a namedAdapter) Provider() string { return a.name }

func (a namedAdapter) Submit(_ context.Context, _ domain.SubmitRequest) (domain.SubmitResult, error) {
	return domain.SubmitResult{}, nil
}

func (a namedAdapter) PollStatus(_ context.Context, _ domain.ExternalIDs) (domain.NormalizedStatus, error) {
	return domain.NormalizedStatus{}, nil
}

func (a namedAdapter) ParseCallback(_ []byte) (domain.CallbackResult, error) {
	return domain.CallbackResult{}, nil
}

func TestAdapter_NormalizesProviderName(t *testing.T) {
	r := NewRegistry(namedAdapter{name: "Phaya"})

	adapter, err := r.Adapter("  PHAYA ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter.Provider() != "Phaya" {
		t.Fatalf("provider = %q", adapter.Provider())
	}

	if _, err := r.Adapter("kie"); !errors.Is(err, domain.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestNewRegistry_SkipsUnusable(t *testing.T) {
	r := NewRegistry(nil, namedAdapter{name: "  "}, namedAdapter{name: "veo3"})

	if got := r.Providers(); len(got) != 1 || got[0] != "veo3" {
		t.Fatalf("providers = %v", got)
	}
}

func TestProviders_Sorted(t *testing.T) {
	r := NewRegistry(
		namedAdapter{name: "veo3"},
		namedAdapter{name: "kie"},
		namedAdapter{name: "phaya"},
	)

	want := []string{"kie", "phaya", "veo3"}
	if got := r.Providers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("providers = %v, want %v", got, want)
	}
}
