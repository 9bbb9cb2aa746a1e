package review

import (
	"testing"

	"github.com/corvid-labs/mrsentry/internal/provider"
)

func TestIsReviewableFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"main.go", true},
		{"./pkg/util.go", true},
		{"README.md", false},
		{"config.yaml", false},
		{"go.sum", false},
		{"bundle.min.js", false},
		{"types.d.ts", false},
		{"Dockerfile", false},
		{"scripts/deploy", true},
		{"schema.proto", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := isReviewableFile(tt.path); got != tt.want {
				t.Errorf("isReviewableFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFilterReviewableChanges(t *testing.T) {
	changes := []provider.ChangeMeta{
		{NewPath: "main.go"},
		{NewPath: "README.md"},
		{NewPath: "logo.png", IsBinary: true},
		{NewPath: "pkg/handler.go"},
	}

	got := filterReviewableChanges(changes)
	if len(got) != 2 {
		t.Fatalf("expected 2 reviewable changes, got %d", len(got))
	}
	if got[0].NewPath != "main.go" || got[1].NewPath != "pkg/handler.go" {
		t.Errorf("unexpected filtered changes: %+v", got)
	}
}
