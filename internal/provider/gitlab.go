package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/diffparse"
	"github.com/corvid-labs/mrsentry/internal/errs"
)

// gitLabClient is a hand-rolled REST v4 client built directly over
// net/http and encoding/json, shaped the same way as gitHubClient.
type gitLabClient struct {
	baseURL string
	token   string
	hc      *http.Client
	retry   RetryPolicy
	logger  *slog.Logger
}

// NewGitLabClient builds a client against baseURL (e.g. "https://gitlab.com")
// authenticated with a personal or project access token.
func NewGitLabClient(baseURL, token string, logger *slog.Logger) Client {
	return &gitLabClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{},
		retry:   DefaultRetryPolicy,
		logger:  logger,
	}
}

type glMRMeta struct {
	IID          int    `json:"iid"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	Author       struct {
		Username string `json:"username"`
	} `json:"author"`
	DiffRefs struct {
		BaseSHA  string `json:"base_sha"`
		StartSHA string `json:"start_sha"`
		HeadSHA  string `json:"head_sha"`
	} `json:"diff_refs"`
}

type glCommit struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	AuthorName string `json:"author_name"`
}

type glDiff struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	NewFile     bool   `json:"new_file"`
	DeletedFile bool   `json:"deleted_file"`
	RenamedFile bool   `json:"renamed_file"`
	Diff        string `json:"diff"`
}

func (c *gitLabClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.Parse, "provider.gitlab", "marshal request body", err)
		}
		payload = b
	}
	resp, err := c.retry.Do(ctx, "provider.gitlab", func() (*http.Response, error) {
		// a fresh reader per attempt so a retried request resends the body
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("PRIVATE-TOKEN", c.token)
		req.Header.Set("Content-Type", "application/json")
		return c.hc.Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.Parse, "provider.gitlab", "decode response body", err)
	}
	return nil
}

func splitProjectMRIID(id string) (project string, iid int, err error) {
	hashIdx := strings.LastIndex(id, "!")
	if hashIdx < 0 {
		return "", 0, errs.New(errs.Validation, "provider.gitlab", "id must be project/path!123")
	}
	project = id[:hashIdx]
	iid, convErr := strconv.Atoi(id[hashIdx+1:])
	if convErr != nil {
		return "", 0, errs.Wrap(errs.Validation, "provider.gitlab", "invalid merge request iid", convErr)
	}
	return project, iid, nil
}

func (c *gitLabClient) FetchAll(ctx context.Context, id string) (*Bundle, error) {
	project, iid, err := splitProjectMRIID(id)
	if err != nil {
		return nil, err
	}
	encProject := url.PathEscape(project)

	var meta glMRMeta
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v4/projects/%s/merge_requests/%d", encProject, iid), nil, &meta); err != nil {
		return nil, err
	}

	var commits []glCommit
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v4/projects/%s/merge_requests/%d/commits", encProject, iid), nil, &commits); err != nil {
		return nil, err
	}

	var diffs []glDiff
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v4/projects/%s/merge_requests/%d/diffs?per_page=100", encProject, iid), nil, &diffs); err != nil {
		return nil, err
	}

	outCommits := make([]Commit, 0, len(commits))
	for _, cm := range commits {
		outCommits = append(outCommits, Commit{SHA: cm.ID, Message: cm.Message, Author: cm.AuthorName})
	}

	outChanges := make([]ChangeMeta, 0, len(diffs))
	for _, d := range diffs {
		cm := ChangeMeta{
			OldPath:    d.OldPath,
			NewPath:    d.NewPath,
			IsNew:      d.NewFile,
			IsDeleted:  d.DeletedFile,
			IsRenamed:  d.RenamedFile,
			RawUnidiff: d.Diff,
		}
		if d.Diff != "" {
			if fd, perr := diffparse.ParseUnifiedDiff(d.Diff); perr == nil {
				cm.Diff = fd
				cm.IsBinary = fd.IsBinary
			} else {
				c.logger.Warn("failed to parse diff", "file", cm.NewPath, "error", perr)
			}
		}
		outChanges = append(outChanges, cm)
	}

	return &Bundle{
		Meta: CRMeta{
			ID:           id,
			ProjectPath:  project,
			Number:       iid,
			Title:        meta.Title,
			Description:  meta.Description,
			SourceBranch: meta.SourceBranch,
			TargetBranch: meta.TargetBranch,
			DiffRefs: DiffRefs{
				BaseSHA:  meta.DiffRefs.BaseSHA,
				StartSHA: meta.DiffRefs.StartSHA,
				HeadSHA:  meta.DiffRefs.HeadSHA,
			},
			AuthorLogin: meta.Author.Username,
		},
		Commits: outCommits,
		Changes: outChanges,
	}, nil
}

func (c *gitLabClient) FetchFileRawAtRef(ctx context.Context, projectPath, path, ref string) ([]byte, error) {
	encProject := url.PathEscape(projectPath)
	encPath := url.PathEscape(path)
	reqURL := fmt.Sprintf("/api/v4/projects/%s/repository/files/%s/raw?ref=%s", encProject, encPath, url.QueryEscape(ref))

	resp, err := c.retry.Do(ctx, "provider.gitlab", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("PRIVATE-TOKEN", c.token)
		return c.hc.Do(req)
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "provider.gitlab", "read file body", err)
	}
	return data, nil
}

type glDiscussionNote struct {
	Body string `json:"body"`
}

type glDiscussion struct {
	ID    string             `json:"id"`
	Notes []glDiscussionNote `json:"notes"`
}

func (c *gitLabClient) ListExistingComments(ctx context.Context, id string) ([]ExistingComment, error) {
	project, iid, err := splitProjectMRIID(id)
	if err != nil {
		return nil, err
	}
	var discussions []glDiscussion
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v4/projects/%s/merge_requests/%d/discussions?per_page=100", url.PathEscape(project), iid), nil, &discussions); err != nil {
		return nil, err
	}
	var out []ExistingComment
	for _, d := range discussions {
		for _, n := range d.Notes {
			out = append(out, ExistingComment{ID: d.ID, Body: n.Body})
		}
	}
	return out, nil
}

// PostInlineComments anchors each comment with a GitLab position object
// (base/start/head SHA plus old/new path+line), the positioning GitLab's
// discussions API requires for a diff note.
func (c *gitLabClient) PostInlineComments(ctx context.Context, meta CRMeta, comments []InlineComment) ([]PostResult, error) {
	project, iid, err := splitProjectMRIID(meta.ID)
	if err != nil {
		return nil, err
	}
	encProject := url.PathEscape(project)

	results := make([]PostResult, 0, len(comments))
	for _, cm := range comments {
		position := map[string]any{
			"base_sha":      meta.DiffRefs.BaseSHA,
			"start_sha":     meta.DiffRefs.StartSHA,
			"head_sha":      meta.DiffRefs.HeadSHA,
			"position_type": "text",
			"old_path":      cm.Path,
			"new_path":      cm.Path,
		}
		if cm.OnAddedSide {
			position["new_line"] = cm.NewLine
		} else {
			position["old_line"] = cm.OldLine
		}
		payload := map[string]any{"body": cm.Body, "position": position}

		var created struct {
			ID string `json:"id"`
		}
		postErr := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v4/projects/%s/merge_requests/%d/discussions", encProject, iid), payload, &created)
		if postErr != nil {
			// GitLab answers an unusable diff position with 400; report it as a
			// validation error so the publish stage retries the other side.
			if he, ok := postErr.(*errs.Error); ok && he.StatusCode == http.StatusBadRequest {
				postErr = errs.Wrap(errs.Validation, "provider.gitlab", "diff position rejected", postErr)
			}
			results = append(results, PostResult{Comment: cm, Err: postErr})
			continue
		}
		results = append(results, PostResult{Comment: cm, Posted: true})
	}
	return results, nil
}

var _ Client = (*gitLabClient)(nil)
