package provider

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEvaluatePatterns(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "projects"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "settings.json"), []byte(`{"theme":"dark"}`), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name           string
		patterns       []Pattern
		wantCanHandle  bool
		wantConfidence int
	}{
		{
			name: "required dir present, all optional match",
			patterns: []Pattern{
				{Kind: PatternDir, Path: "projects", Required: true},
				{Kind: PatternFile, Path: "settings.json", Weight: 50},
			},
			wantCanHandle:  true,
			wantConfidence: 100,
		},
		{
			name: "required dir missing",
			patterns: []Pattern{
				{Kind: PatternDir, Path: "sessions", Required: true},
				{Kind: PatternFile, Path: "settings.json", Weight: 50},
			},
			wantCanHandle:  false,
			wantConfidence: 0,
		},
		{
			name: "partial optional match normalizes by weight",
			patterns: []Pattern{
				{Kind: PatternDir, Path: "projects", Required: true},
				{Kind: PatternFile, Path: "settings.json", Weight: 30},
				{Kind: PatternDir, Path: "todos", Weight: 70},
			},
			wantCanHandle:  true,
			wantConfidence: 30,
		},
		{
			name: "only required patterns scores full confidence",
			patterns: []Pattern{
				{Kind: PatternDir, Path: "projects", Required: true},
			},
			wantCanHandle:  true,
			wantConfidence: 100,
		},
		{
			name: "content pattern matches substring",
			patterns: []Pattern{
				{Kind: PatternContent, Path: "settings.json", Substr: "theme", Required: true},
			},
			wantCanHandle:  true,
			wantConfidence: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluatePatterns(root, tt.patterns)
			if got.CanHandle != tt.wantCanHandle {
				t.Errorf("CanHandle = %v, want %v", got.CanHandle, tt.wantCanHandle)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %d, want %d", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestEvaluatePatternsMissingRoot(t *testing.T) {
	got := EvaluatePatterns("/nonexistent/path", []Pattern{
		{Kind: PatternDir, Path: "projects", Required: true},
	})
	if got.CanHandle {
		t.Error("CanHandle = true for missing root, want false")
	}
	if len(got.MissingPatterns) != 1 {
		t.Errorf("MissingPatterns = %v, want one entry", got.MissingPatterns)
	}
}
