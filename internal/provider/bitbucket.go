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

// bitbucketClient is a hand-rolled Bitbucket Cloud REST 2.0 client, built in
// the same request/retry shape as gitLabClient since no Bitbucket SDK
// appears in the example pack.
type bitbucketClient struct {
	baseURL  string
	username string
	appPass  string
	hc       *http.Client
	retry    RetryPolicy
	logger   *slog.Logger
}

// NewBitbucketClient authenticates with an app password over basic auth.
func NewBitbucketClient(username, appPassword string, logger *slog.Logger) Client {
	return &bitbucketClient{
		baseURL:  "https://api.bitbucket.org/2.0",
		username: username,
		appPass:  appPassword,
		hc:       &http.Client{},
		retry:    DefaultRetryPolicy,
		logger:   logger,
	}
}

type bbPRMeta struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      struct {
		Branch struct {
			Name string `json:"name"`
		} `json:"branch"`
		Commit struct {
			Hash string `json:"hash"`
		} `json:"commit"`
	} `json:"source"`
	Destination struct {
		Branch struct {
			Name string `json:"name"`
		} `json:"branch"`
		Commit struct {
			Hash string `json:"hash"`
		} `json:"commit"`
	} `json:"destination"`
	Author struct {
		Nickname string `json:"nickname"`
	} `json:"author"`
}

type bbCommit struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
	Author  struct {
		Raw string `json:"raw"`
	} `json:"author"`
}

type bbPage[T any] struct {
	Values []T    `json:"values"`
	Next   string `json:"next"`
}

func (c *bitbucketClient) doJSON(ctx context.Context, method, fullOrRelURL string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.Parse, "provider.bitbucket", "marshal request body", err)
		}
		payload = b
	}
	u := fullOrRelURL
	if !strings.HasPrefix(u, "http") {
		u = c.baseURL + fullOrRelURL
	}
	resp, err := c.retry.Do(ctx, "provider.bitbucket", func() (*http.Response, error) {
		// a fresh reader per attempt so a retried request resends the body
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.username, c.appPass)
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
		return errs.Wrap(errs.Parse, "provider.bitbucket", "decode response body", err)
	}
	return nil
}

func (c *bitbucketClient) doRaw(ctx context.Context, relURL string) ([]byte, error) {
	resp, err := c.retry.Do(ctx, "provider.bitbucket", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+relURL, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.username, c.appPass)
		return c.hc.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func splitWorkspaceRepoID(id string) (workspaceRepo string, number int, err error) {
	hashIdx := strings.LastIndex(id, "#")
	if hashIdx < 0 {
		return "", 0, errs.New(errs.Validation, "provider.bitbucket", "id must be workspace/repo#123")
	}
	workspaceRepo = id[:hashIdx]
	number, convErr := strconv.Atoi(id[hashIdx+1:])
	if convErr != nil {
		return "", 0, errs.Wrap(errs.Validation, "provider.bitbucket", "invalid pull request id", convErr)
	}
	return workspaceRepo, number, nil
}

func (c *bitbucketClient) FetchAll(ctx context.Context, id string) (*Bundle, error) {
	repoPath, number, err := splitWorkspaceRepoID(id)
	if err != nil {
		return nil, err
	}

	var meta bbPRMeta
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/repositories/%s/pullrequests/%d", repoPath, number), nil, &meta); err != nil {
		return nil, err
	}

	commits, err := c.listAllCommits(ctx, repoPath, number)
	if err != nil {
		return nil, err
	}

	diffText, err := c.doRaw(ctx, fmt.Sprintf("/repositories/%s/pullrequests/%d/diff", repoPath, number))
	if err != nil {
		return nil, errs.Wrap(errs.ProviderHTTP, "provider.bitbucket", "fetch pull request diff", err)
	}
	changes := splitUnifiedDiffPerFile(string(diffText), c.logger)

	return &Bundle{
		Meta: CRMeta{
			ID:           id,
			ProjectPath:  repoPath,
			Number:       number,
			Title:        meta.Title,
			Description:  meta.Description,
			SourceBranch: meta.Source.Branch.Name,
			TargetBranch: meta.Destination.Branch.Name,
			DiffRefs: DiffRefs{
				BaseSHA: meta.Destination.Commit.Hash,
				HeadSHA: meta.Source.Commit.Hash,
			},
			AuthorLogin: meta.Author.Nickname,
		},
		Commits: commits,
		Changes: changes,
	}, nil
}

func (c *bitbucketClient) listAllCommits(ctx context.Context, repoPath string, number int) ([]Commit, error) {
	var out []Commit
	next := fmt.Sprintf("/repositories/%s/pullrequests/%d/commits", repoPath, number)
	for next != "" {
		var page bbPage[bbCommit]
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, cm := range page.Values {
			out = append(out, Commit{SHA: cm.Hash, Message: cm.Message, Author: cm.Author.Raw})
		}
		next = page.Next
	}
	return out, nil
}

// splitUnifiedDiffPerFile splits Bitbucket's single combined diff response
// into per-file sections on "diff --git" boundaries, then parses each with
// diffparse (Bitbucket's raw diff endpoint returns one unified diff for the
// whole pull request rather than GitHub/GitLab's per-file structure).
func splitUnifiedDiffPerFile(diffText string, logger *slog.Logger) []ChangeMeta {
	var out []ChangeMeta
	sections := strings.Split(diffText, "diff --git ")
	for _, section := range sections {
		if strings.TrimSpace(section) == "" {
			continue
		}
		full := "diff --git " + section
		fd, err := diffparse.ParseUnifiedDiff(full)
		if err != nil {
			logger.Warn("failed to parse bitbucket diff section", "error", err)
			continue
		}
		cm := ChangeMeta{
			OldPath:    fd.OldPath,
			NewPath:    fd.NewPath,
			IsNew:      fd.OldPath == "/dev/null",
			IsDeleted:  fd.NewPath == "/dev/null",
			IsBinary:   fd.IsBinary,
			RawUnidiff: full,
			Diff:       fd,
		}
		out = append(out, cm)
	}
	return out
}

func (c *bitbucketClient) FetchFileRawAtRef(ctx context.Context, projectPath, path, ref string) ([]byte, error) {
	u := fmt.Sprintf("/repositories/%s/src/%s/%s", projectPath, url.PathEscape(ref), path)
	resp, err := c.retry.Do(ctx, "provider.bitbucket", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+u, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.username, c.appPass)
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
		return nil, errs.Wrap(errs.Transport, "provider.bitbucket", "read file body", err)
	}
	return data, nil
}

type bbComment struct {
	ID      int    `json:"id"`
	Content struct {
		Raw string `json:"raw"`
	} `json:"content"`
}

func (c *bitbucketClient) ListExistingComments(ctx context.Context, id string) ([]ExistingComment, error) {
	repoPath, number, err := splitWorkspaceRepoID(id)
	if err != nil {
		return nil, err
	}
	var out []ExistingComment
	next := fmt.Sprintf("/repositories/%s/pullrequests/%d/comments", repoPath, number)
	for next != "" {
		var page bbPage[bbComment]
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, cm := range page.Values {
			out = append(out, ExistingComment{ID: strconv.Itoa(cm.ID), Body: cm.Content.Raw})
		}
		next = page.Next
	}
	return out, nil
}

// PostInlineComments anchors with inline.to/inline.from. Bitbucket rejects
// comments anchored to a pure-removal line with no corresponding added
// line, so those fall back to a general (non-inline) comment.
func (c *bitbucketClient) PostInlineComments(ctx context.Context, meta CRMeta, comments []InlineComment) ([]PostResult, error) {
	repoPath, number, err := splitWorkspaceRepoID(meta.ID)
	if err != nil {
		return nil, err
	}

	results := make([]PostResult, 0, len(comments))
	for _, cm := range comments {
		payload := map[string]any{
			"content": map[string]any{"raw": cm.Body},
		}
		inline := map[string]any{"path": cm.Path}
		if cm.OnAddedSide {
			inline["to"] = cm.NewLine
		} else {
			inline["from"] = cm.OldLine
		}
		payload["inline"] = inline

		var created struct {
			ID int `json:"id"`
		}
		postErr := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/repositories/%s/pullrequests/%d/comments", repoPath, number), payload, &created)
		if postErr != nil {
			// fall back to a general comment when inline anchoring is rejected
			generalPayload := map[string]any{"content": map[string]any{"raw": cm.Body}}
			var generalCreated struct {
				ID int `json:"id"`
			}
			if genErr := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/repositories/%s/pullrequests/%d/comments", repoPath, number), generalPayload, &generalCreated); genErr != nil {
				results = append(results, PostResult{Comment: cm, Err: postErr})
				continue
			}
			results = append(results, PostResult{Comment: cm, Posted: true, Reason: "fell back to general comment: inline anchor rejected"})
			continue
		}
		results = append(results, PostResult{Comment: cm, Posted: true})
	}
	return results, nil
}

var _ Client = (*bitbucketClient)(nil)
