// Package provider defines a uniform contract over GitLab, GitHub, and
// Bitbucket for fetching merge/pull request metadata, commits, diffs, raw
// file content at a ref, and posting inline review comments.
package provider

import (
	"context"

	"github.com/corvid-labs/mrsentry/internal/diffparse"
)

// DiffRefs anchors inline positions: base, optional start (three-dot merge
// base on some providers), and head.
type DiffRefs struct {
	BaseSHA  string
	StartSHA string // optional
	HeadSHA  string
}

// ChangeMeta describes one changed file in a change request.
type ChangeMeta struct {
	OldPath    string
	NewPath    string
	IsNew      bool
	IsDeleted  bool
	IsRenamed  bool
	IsBinary   bool
	RawUnidiff string
	Diff       *diffparse.FileDiff // set by FetchAll when the patch parses; review.Pipeline parses RawUnidiff when nil
}

// Commit is a minimal commit summary.
type Commit struct {
	SHA     string
	Message string
	Author  string
}

// CRMeta is the change-request metadata returned by fetch_all.
type CRMeta struct {
	ID           string
	ProjectPath  string // owner/repo or workspace/repo
	Number       int
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	DiffRefs     DiffRefs
	AuthorLogin  string
}

// Bundle is the full result of fetch_all: meta, commits, and per-file
// changes.
type Bundle struct {
	Meta    CRMeta
	Commits []Commit
	Changes []ChangeMeta
}

// InlineComment is a draft comment ready for provider-specific anchoring.
type InlineComment struct {
	Path        string
	NewLine     int // 0 if anchoring to the old side
	OldLine     int
	Body        string
	OnAddedSide bool // true => anchor to new_path/new_line, false => old_path/old_line
}

// PostResult records the outcome of attempting to post one inline comment.
type PostResult struct {
	Comment InlineComment
	Posted  bool
	Skipped bool
	Reason  string
	Err     error
}

// ExistingComment is a previously posted note/discussion body, used by the
// publish stage to recover idempotency markers.
type ExistingComment struct {
	ID   string
	Body string
}

// Client is the uniform capability interface every hosting provider
// implements.
type Client interface {
	// FetchAll retrieves meta, commits, and changes for the change request
	// identified by id (provider-specific encoding, e.g. "owner/repo#123").
	FetchAll(ctx context.Context, id string) (*Bundle, error)

	// FetchFileRawAtRef returns the raw bytes of path at ref, or nil if the
	// provider reports 404.
	FetchFileRawAtRef(ctx context.Context, projectPath, path, ref string) ([]byte, error)

	// ListExistingComments returns bodies of already-posted discussions or
	// notes on the change request, used for idempotency-marker recovery.
	ListExistingComments(ctx context.Context, id string) ([]ExistingComment, error)

	// PostInlineComments posts comments anchored per the provider's scheme
	// and reports each rejected comment in its PostResult.Err. The GitLab and
	// Bitbucket clients retry 429/5xx through RetryPolicy. GitLab reports a
	// rejected position as an errs.Validation error, which the publish stage
	// retries once on the alternate side; Bitbucket posts a general comment
	// instead.
	PostInlineComments(ctx context.Context, meta CRMeta, comments []InlineComment) ([]PostResult, error)
}
