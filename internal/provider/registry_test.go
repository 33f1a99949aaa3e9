package provider_test

import (
	"testing"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/provider"
	"github.com/opensesh/sessionhub/testutil"
)

func newFake(id string, canHandle bool, confidence int) *testutil.FakeAdapter {
	return &testutil.FakeAdapter{
		ProviderID: id,
		Detection:  provider.DetectionScore{CanHandle: canHandle, Confidence: confidence},
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := provider.NewRegistry(nil)
	if err := r.Register(newFake("claude-code", true, 90)); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	if err := r.Register(newFake("claude-code", true, 10)); err == nil {
		t.Error("second Register() under the same id succeeded, want error")
	}
}

func TestRegistryGetAndTryGet(t *testing.T) {
	r := provider.NewRegistry(nil)
	if err := r.Register(newFake("cursor", true, 50)); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Get("cursor"); err != nil {
		t.Errorf("Get(cursor) failed: %v", err)
	}

	_, err := r.Get("gemini")
	if !apperr.Is(err, apperr.CodeProviderNotFound) {
		t.Errorf("Get(gemini) error = %v, want PROVIDER_NOT_FOUND", err)
	}

	if a := r.TryGet("gemini"); a != nil {
		t.Error("TryGet(gemini) returned an adapter, want nil")
	}
}

func TestRegistryInitializeIdempotent(t *testing.T) {
	r := provider.NewRegistry(nil)
	a := newFake("codex", true, 40)
	if err := r.Initialize(a); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	// Second call must not re-register (which would error on the dup id).
	if err := r.Initialize(a); err != nil {
		t.Errorf("second Initialize() failed: %v", err)
	}
	if got := len(r.IDs()); got != 1 {
		t.Errorf("len(IDs()) = %d, want 1", got)
	}
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name     string
		adapters []*testutil.FakeAdapter
		wantID   string
		wantErr  apperr.Code
	}{
		{
			name: "highest confidence wins",
			adapters: []*testutil.FakeAdapter{
				newFake("claude-code", true, 60),
				newFake("cursor", true, 90),
			},
			wantID: "cursor",
		},
		{
			name: "tie breaks to first registered",
			adapters: []*testutil.FakeAdapter{
				newFake("claude-code", true, 75),
				newFake("codex", true, 75),
			},
			wantID: "claude-code",
		},
		{
			name: "non-claimants excluded",
			adapters: []*testutil.FakeAdapter{
				newFake("claude-code", false, 0),
				newFake("cursor", true, 10),
			},
			wantID: "cursor",
		},
		{
			name: "no claimant is INVALID_FORMAT",
			adapters: []*testutil.FakeAdapter{
				newFake("claude-code", false, 0),
			},
			wantErr: apperr.CodeInvalidFormat,
		},
		{
			name: "zero-confidence claim is INVALID_FORMAT",
			adapters: []*testutil.FakeAdapter{
				newFake("claude-code", true, 0),
			},
			wantErr: apperr.CodeInvalidFormat,
		},
		{
			name: "zero-confidence claimant loses to a scored one",
			adapters: []*testutil.FakeAdapter{
				newFake("claude-code", true, 0),
				newFake("cursor", true, 10),
			},
			wantID: "cursor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := provider.NewRegistry(nil)
			for _, a := range tt.adapters {
				if err := r.Register(a); err != nil {
					t.Fatal(err)
				}
			}

			res, err := r.DetectProvider("/some/path")
			if tt.wantErr != "" {
				if !apperr.Is(err, tt.wantErr) {
					t.Fatalf("DetectProvider() error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectProvider() failed: %v", err)
			}
			if res.ProviderID != tt.wantID {
				t.Errorf("ProviderID = %q, want %q", res.ProviderID, tt.wantID)
			}
		})
	}
}

func TestDetectProviderDeterministic(t *testing.T) {
	r := provider.NewRegistry(nil)
	if err := r.Register(newFake("claude-code", true, 80)); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(newFake("cursor", true, 80)); err != nil {
		t.Fatal(err)
	}

	first, err := r.DetectProvider("/path")
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.DetectProvider("/path")
	if err != nil {
		t.Fatal(err)
	}
	if first.ProviderID != second.ProviderID || first.Score.Confidence != second.Score.Confidence {
		t.Errorf("detection not deterministic: %+v vs %+v", first, second)
	}
}
