package provider

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/corvid-labs/mrsentry/internal/diffparse"
	"github.com/corvid-labs/mrsentry/internal/errs"
)

// gitHubClient implements Client over the official go-github SDK.
type gitHubClient struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewGitHubPATClient authenticates with a personal access token, for CLI use
// (grounded on teacher's NewPATClient).
func NewGitHubPATClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &gitHubClient{gh: github.NewClient(tc), logger: logger}
}

// NewGitHubInstallationClient authenticates as a GitHub App installation
// (grounded on teacher's CreateInstallationClient / ghinstallation usage).
func NewGitHubInstallationClient(ctx context.Context, appID, installationID int64, privateKeyPEM []byte, logger *slog.Logger) (Client, error) {
	tr, err := ghinstallation.New(nil, appID, installationID, privateKeyPEM)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderAuth, "provider.github", "failed to build installation transport", err)
	}
	return &gitHubClient{gh: github.NewClient(tr.Client()), logger: logger}, nil
}

func splitOwnerRepoNumber(id string) (owner, repo string, number int, err error) {
	// id is "owner/repo#123"
	hashIdx := strings.LastIndex(id, "#")
	if hashIdx < 0 {
		return "", "", 0, errs.New(errs.Validation, "provider.github", "id must be owner/repo#number")
	}
	path, numStr := id[:hashIdx], id[hashIdx+1:]
	number, convErr := strconv.Atoi(numStr)
	if convErr != nil {
		return "", "", 0, errs.Wrap(errs.Validation, "provider.github", "invalid PR number", convErr)
	}
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		return "", "", 0, errs.New(errs.Validation, "provider.github", "id must be owner/repo#number")
	}
	return parts[0], parts[1], number, nil
}

func (c *gitHubClient) FetchAll(ctx context.Context, id string) (*Bundle, error) {
	owner, repo, number, err := splitOwnerRepoNumber(id)
	if err != nil {
		return nil, err
	}

	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderHTTP, "provider.github", "get pull request", err)
	}

	commits, err := c.listAllCommits(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	changes, err := c.listAllChanges(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Meta: CRMeta{
			ID:           id,
			ProjectPath:  owner + "/" + repo,
			Number:       number,
			Title:        pr.GetTitle(),
			Description:  pr.GetBody(),
			SourceBranch: pr.GetHead().GetRef(),
			TargetBranch: pr.GetBase().GetRef(),
			DiffRefs: DiffRefs{
				BaseSHA: pr.GetBase().GetSHA(),
				HeadSHA: pr.GetHead().GetSHA(),
			},
			AuthorLogin: pr.GetUser().GetLogin(),
		},
		Commits: commits,
		Changes: changes,
	}, nil
}

func (c *gitHubClient) listAllCommits(ctx context.Context, owner, repo string, number int) ([]Commit, error) {
	var out []Commit
	opts := &github.ListOptions{PerPage: 100}
	for {
		commits, resp, err := c.gh.PullRequests.ListCommits(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, errs.Wrap(errs.ProviderHTTP, "provider.github", "list commits", err)
		}
		for _, cm := range commits {
			out = append(out, Commit{
				SHA:     cm.GetSHA(),
				Message: cm.GetCommit().GetMessage(),
				Author:  cm.GetCommit().GetAuthor().GetName(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *gitHubClient) listAllChanges(ctx context.Context, owner, repo string, number int) ([]ChangeMeta, error) {
	var out []ChangeMeta
	opts := &github.ListOptions{PerPage: 100}
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, errs.Wrap(errs.ProviderHTTP, "provider.github", "list files", err)
		}
		for _, f := range files {
			cm := ChangeMeta{
				NewPath:   f.GetFilename(),
				OldPath:   f.GetPreviousFilename(),
				IsNew:     f.GetStatus() == "added",
				IsDeleted: f.GetStatus() == "removed",
				IsRenamed: f.GetStatus() == "renamed",
			}
			if cm.OldPath == "" {
				cm.OldPath = cm.NewPath
			}
			patch := f.GetPatch()
			if patch == "" && f.GetChanges() > 0 {
				cm.IsBinary = true
			}
			cm.RawUnidiff = patch
			if patch != "" {
				if fd, perr := diffparse.ParseUnifiedDiff(patch); perr == nil {
					cm.Diff = fd
					cm.IsBinary = fd.IsBinary
				} else {
					c.logger.Warn("failed to parse patch", "file", cm.NewPath, "error", perr)
				}
			}
			out = append(out, cm)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *gitHubClient) FetchFileRawAtRef(ctx context.Context, projectPath, path, ref string) ([]byte, error) {
	owner, repo, ok := strings.Cut(projectPath, "/")
	if !ok {
		return nil, errs.New(errs.Validation, "provider.github", "projectPath must be owner/repo")
	}
	contents, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ProviderHTTP, "provider.github", "get contents", err)
	}
	if contents == nil {
		return nil, nil
	}
	decoded, err := contents.GetContent()
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "provider.github", "decode file content", err)
	}
	return []byte(decoded), nil
}

func (c *gitHubClient) ListExistingComments(ctx context.Context, id string) ([]ExistingComment, error) {
	owner, repo, number, err := splitOwnerRepoNumber(id)
	if err != nil {
		return nil, err
	}
	var out []ExistingComment
	opts := &github.PullRequestListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, errs.Wrap(errs.ProviderHTTP, "provider.github", "list review comments", err)
		}
		for _, cm := range comments {
			out = append(out, ExistingComment{ID: strconv.FormatInt(cm.GetID(), 10), Body: cm.GetBody()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// PostInlineComments anchors each comment to a single line on the head
// commit with side RIGHT/LEFT.
func (c *gitHubClient) PostInlineComments(ctx context.Context, meta CRMeta, comments []InlineComment) ([]PostResult, error) {
	owner, repo, ok := strings.Cut(meta.ProjectPath, "/")
	if !ok {
		return nil, errs.New(errs.Validation, "provider.github", "ProjectPath must be owner/repo")
	}

	results := make([]PostResult, 0, len(comments))
	for _, cm := range comments {
		side := "RIGHT"
		line := cm.NewLine
		if !cm.OnAddedSide {
			side = "LEFT"
			line = cm.OldLine
		}
		req := &github.PullRequestComment{
			Body:     github.Ptr(cm.Body),
			Path:     github.Ptr(cm.Path),
			Line:     github.Ptr(line),
			Side:     github.Ptr(side),
			CommitID: github.Ptr(meta.DiffRefs.HeadSHA),
		}
		_, _, err := c.gh.PullRequests.CreateComment(ctx, owner, repo, meta.Number, req)
		if err != nil {
			results = append(results, PostResult{Comment: cm, Err: errs.Wrap(errs.ProviderHTTP, "provider.github", "create review comment", err)})
			continue
		}
		results = append(results, PostResult{Comment: cm, Posted: true})
	}
	return results, nil
}

var _ Client = (*gitHubClient)(nil)
