package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corvid-labs/mrsentry/internal/config"
	"github.com/corvid-labs/mrsentry/internal/jobs"
)

type fakeDispatcher struct {
	dispatched []*jobs.Request
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req *jobs.Request) error {
	f.dispatched = append(f.dispatched, req)
	return nil
}

func (f *fakeDispatcher) Stop() {}

func newTestHandler(kind config.ProviderKind, secret string) (*WebhookHandler, *fakeDispatcher) {
	cfg := &config.Config{
		Provider: config.ProviderConfig{Kind: kind},
		Server:   config.ServerConfig{SharedSecret: secret},
	}
	d := &fakeDispatcher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &WebhookHandler{cfg: cfg, dispatcher: d, logger: logger}, d
}

func TestParseGitLab_TriggersOnNoteWithPhrase(t *testing.T) {
	h, _ := newTestHandler(config.ProviderGitLab, "s3cr3t")
	body := `{"object_kind":"note","user":{"username":"alice"},"object_attributes":{"note":"please /mrsentry review this"},"project":{"path_with_namespace":"group/proj"},"merge_request":{"iid":42}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewBufferString(body))
	r.Header.Set("X-Gitlab-Token", "s3cr3t")

	req, err := h.parseGitLab(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req == nil {
		t.Fatal("expected a request, got nil")
	}
	if req.ID != "group/proj!42" {
		t.Errorf("id = %q, want group/proj!42", req.ID)
	}
	if req.Commenter != "alice" {
		t.Errorf("commenter = %q, want alice", req.Commenter)
	}
}

func TestParseGitLab_RejectsBadToken(t *testing.T) {
	h, _ := newTestHandler(config.ProviderGitLab, "s3cr3t")
	r := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewBufferString(`{}`))
	r.Header.Set("X-Gitlab-Token", "wrong")

	if _, err := h.parseGitLab(r); err == nil {
		t.Fatal("expected an error for a bad token")
	}
}

func TestParseGitLab_IgnoresNonTriggerNote(t *testing.T) {
	h, _ := newTestHandler(config.ProviderGitLab, "s3cr3t")
	body := `{"object_kind":"note","object_attributes":{"note":"nice catch"},"merge_request":{"iid":42}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewBufferString(body))
	r.Header.Set("X-Gitlab-Token", "s3cr3t")

	req, err := h.parseGitLab(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req != nil {
		t.Errorf("expected nil request for a non-trigger comment, got %+v", req)
	}
}

func TestParseBitbucket_TriggersOnCommentCreated(t *testing.T) {
	h, _ := newTestHandler(config.ProviderBitbucket, "s3cr3t")
	body := `{"actor":{"username":"bob"},"pullrequest":{"id":7},"repository":{"full_name":"ws/repo"},"comment":{"content":{"raw":"/mrsentry review"}}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewBufferString(body))
	r.Header.Set("X-Mrsentry-Secret", "s3cr3t")
	r.Header.Set("X-Event-Key", "pullrequest:comment_created")

	req, err := h.parseBitbucket(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req == nil || req.ID != "ws/repo#7" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestHandle_DispatchesAcceptedRequest(t *testing.T) {
	h, d := newTestHandler(config.ProviderGitLab, "s3cr3t")
	body := `{"object_kind":"note","user":{"username":"alice"},"object_attributes":{"note":"/mrsentry review"},"project":{"path_with_namespace":"group/proj"},"merge_request":{"iid":5}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewBufferString(body))
	r.Header.Set("X-Gitlab-Token", "s3cr3t")
	w := httptest.NewRecorder()

	h.Handle(w, r)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if len(d.dispatched) != 1 {
		t.Fatalf("dispatched %d requests, want 1", len(d.dispatched))
	}
}
