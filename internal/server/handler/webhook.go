// Package handler provides HTTP handlers for the review service.
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v73/github"

	"github.com/corvid-labs/mrsentry/internal/config"
	"github.com/corvid-labs/mrsentry/internal/jobs"
)

// triggerPhrase is the comment text that starts a review, mirroring the
// teacher's issue-comment trigger convention but provider-neutral.
const triggerPhrase = "/mrsentry review"

// WebhookHandler processes incoming webhooks from whichever hosting
// provider cfg.Provider.Kind names. Each provider has its own signature
// scheme and event payload shape, so Handle dispatches to a per-kind
// parser rather than trying to unify them.
type WebhookHandler struct {
	cfg        *config.Config
	dispatcher jobs.Dispatcher
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler with the given configuration and dispatcher.
func NewWebhookHandler(cfg *config.Config, dispatcher jobs.Dispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, dispatcher: dispatcher, logger: logger}
}

// Handle verifies and parses the webhook for the configured provider, then
// dispatches a review job if the event is a recognized trigger comment.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req *jobs.Request
	var err error

	switch h.cfg.Provider.Kind {
	case config.ProviderGitHub:
		req, err = h.parseGitHub(r)
	case config.ProviderGitLab:
		req, err = h.parseGitLab(r)
	case config.ProviderBitbucket:
		req, err = h.parseBitbucket(r)
	default:
		http.Error(w, "provider not configured", http.StatusInternalServerError)
		return
	}
	if err != nil {
		h.logger.Error("webhook rejected", "error", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if req == nil {
		_, _ = fmt.Fprint(w, "event ignored")
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), req); err != nil {
		h.logger.Error("failed to dispatch review job", "error", err, "id", req.ID)
		http.Error(w, "failed to start review job", http.StatusInternalServerError)
		return
	}

	h.logger.Info("review job dispatched", "id", req.ID, "commenter", req.Commenter)
	w.WriteHeader(http.StatusAccepted)
	_, _ = fmt.Fprint(w, "review job accepted")
}

// parseGitHub validates the HMAC signature and looks for an issue_comment
// event on a pull request that contains the trigger phrase.
func (h *WebhookHandler) parseGitHub(r *http.Request) (*jobs.Request, error) {
	payload, err := github.ValidatePayload(r, []byte(h.cfg.Provider.GitHubWebhookSecret))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		return nil, fmt.Errorf("could not parse webhook: %w", err)
	}

	ic, ok := event.(*github.IssueCommentEvent)
	if !ok {
		return nil, nil
	}
	if ic.GetAction() != "created" || !ic.GetIssue().IsPullRequest() {
		return nil, nil
	}
	if !strings.Contains(ic.GetComment().GetBody(), triggerPhrase) {
		return nil, nil
	}

	return &jobs.Request{
		ID:          fmt.Sprintf("%s#%d", ic.GetRepo().GetFullName(), ic.GetIssue().GetNumber()),
		ProjectPath: ic.GetRepo().GetFullName(),
		Commenter:   ic.GetComment().GetUser().GetLogin(),
	}, nil
}

// gitLabNoteEvent is the subset of GitLab's "Note Hook" payload needed to
// recognize a merge-request review trigger comment.
type gitLabNoteEvent struct {
	ObjectKind string `json:"object_kind"`
	User       struct {
		Username string `json:"username"`
	} `json:"user"`
	ObjectAttributes struct {
		Note string `json:"note"`
	} `json:"object_attributes"`
	Project struct {
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	MergeRequest struct {
		IID int `json:"iid"`
	} `json:"merge_request"`
}

// parseGitLab validates the static token header and looks for a merge
// request note event containing the trigger phrase.
func (h *WebhookHandler) parseGitLab(r *http.Request) (*jobs.Request, error) {
	if r.Header.Get("X-Gitlab-Token") != h.cfg.Server.SharedSecret {
		return nil, fmt.Errorf("invalid webhook token")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook body: %w", err)
	}

	var ev gitLabNoteEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}

	if ev.ObjectKind != "note" || ev.MergeRequest.IID == 0 {
		return nil, nil
	}
	if !strings.Contains(ev.ObjectAttributes.Note, triggerPhrase) {
		return nil, nil
	}

	return &jobs.Request{
		ID:          fmt.Sprintf("%s!%d", ev.Project.PathWithNamespace, ev.MergeRequest.IID),
		ProjectPath: ev.Project.PathWithNamespace,
		Commenter:   ev.User.Username,
	}, nil
}

// bitbucketCommentEvent is the subset of Bitbucket's "pullrequest:comment_created"
// payload needed to recognize a review trigger comment.
type bitbucketCommentEvent struct {
	Actor struct {
		Username string `json:"username"`
	} `json:"actor"`
	PullRequest struct {
		ID int `json:"id"`
	} `json:"pullrequest"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Comment struct {
		Content struct {
			Raw string `json:"raw"`
		} `json:"content"`
	} `json:"comment"`
}

// parseBitbucket validates a shared-secret header (Bitbucket Cloud has no
// built-in HMAC signing) and looks for a pull request comment containing
// the trigger phrase.
func (h *WebhookHandler) parseBitbucket(r *http.Request) (*jobs.Request, error) {
	if r.Header.Get("X-Mrsentry-Secret") != h.cfg.Server.SharedSecret {
		return nil, fmt.Errorf("invalid webhook secret")
	}
	if r.Header.Get("X-Event-Key") != "pullrequest:comment_created" {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook body: %w", err)
	}

	var ev bitbucketCommentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}

	if !strings.Contains(ev.Comment.Content.Raw, triggerPhrase) {
		return nil, nil
	}

	return &jobs.Request{
		ID:          fmt.Sprintf("%s#%d", ev.Repository.FullName, ev.PullRequest.ID),
		ProjectPath: ev.Repository.FullName,
		Commenter:   ev.Actor.Username,
	}, nil
}
