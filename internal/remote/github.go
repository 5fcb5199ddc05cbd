package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"terradeploy/internal/errors"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

type GitHubOptions struct {
	// Token is sent as a bearer credential on every request.
	Token string
	// BaseURL overrides https://api.github.com/ (GitHub Enterprise, tests).
	BaseURL string
	// Timeout bounds each HTTP request; zero means no limit.
	Timeout time.Duration
}

// GitHub implements Remote on the GitHub REST API.
type GitHub struct {
	client *github.Client
}

func NewGitHub(ctx context.Context, opts GitHubOptions) (*GitHub, error) {
	if opts.Token == "" {
		return nil, errors.Unauthorized("github token is empty")
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	httpClient.Timeout = opts.Timeout

	client := github.NewClient(httpClient)
	if opts.BaseURL != "" {
		base, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base url: %w", err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		client.BaseURL = base
		client.UploadURL = base
	}

	return &GitHub{client: client}, nil
}

func (g *GitHub) CreateRepository(ctx context.Context, spec RepoSpec) (*Repository, error) {
	req := &github.Repository{
		Name:        github.String(spec.Name),
		Description: github.String(spec.Description),
		Homepage:    github.String(spec.Homepage),
		Private:     github.Bool(spec.Private),
		HasIssues:   github.Bool(true),
		HasProjects: github.Bool(false),
		HasWiki:     github.Bool(false),
		AutoInit:    github.Bool(false),
	}
	if spec.LicenseTemplate != "" {
		req.LicenseTemplate = github.String(spec.LicenseTemplate)
	}

	// An empty org creates the repository for the authenticated user.
	repo, _, err := g.client.Repositories.Create(ctx, "", req)
	if err != nil {
		if status(err) == http.StatusUnprocessableEntity {
			return nil, errors.Conflict(fmt.Sprintf("repository %s already exists", spec.Name)).Wrap(err)
		}
		return nil, classify(err, "creating repository "+spec.Name)
	}
	return convertRepo(repo), nil
}

func (g *GitHub) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	repo, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("getting repository %s/%s", owner, name))
	}
	return convertRepo(repo), nil
}

func (g *GitHub) GetFile(ctx context.Context, ref FileRef) (*File, error) {
	fc, err := g.contents(ctx, ref)
	if err != nil {
		return nil, err
	}

	f := &File{Path: fc.GetPath(), SHA: fc.GetSHA(), Size: int64(fc.GetSize())}

	// Files over 1 MB come back without content.
	if fc.GetEncoding() == "none" {
		f.Content, err = g.download(ctx, ref)
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	content, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ref, err)
	}
	f.Content = []byte(content)
	return f, nil
}

func (g *GitHub) StatFile(ctx context.Context, ref FileRef) (*File, error) {
	fc, err := g.contents(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &File{Path: fc.GetPath(), SHA: fc.GetSHA(), Size: int64(fc.GetSize())}, nil
}

func (g *GitHub) contents(ctx context.Context, ref FileRef) (*github.RepositoryContent, error) {
	fc, _, _, err := g.client.Repositories.GetContents(ctx, ref.Owner, ref.Repo, ref.Path, g.getOptions(ref))
	if err != nil {
		return nil, classify(err, "getting "+ref.String())
	}
	if fc == nil {
		return nil, errors.ValidationError(ref.String()+" is a directory", nil)
	}
	return fc, nil
}

func (g *GitHub) download(ctx context.Context, ref FileRef) ([]byte, error) {
	rc, resp, err := g.client.Repositories.DownloadContents(ctx, ref.Owner, ref.Repo, ref.Path, g.getOptions(ref))
	if err != nil {
		return nil, classify(err, "downloading "+ref.String())
	}
	defer rc.Close()

	if resp != nil && resp.StatusCode != http.StatusOK {
		return nil, errors.Internal(fmt.Sprintf("downloading %s: status %d", ref, resp.StatusCode), nil)
	}
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", ref, err)
	}
	return content, nil
}

func (g *GitHub) getOptions(ref FileRef) *github.RepositoryContentGetOptions {
	if ref.Branch == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: ref.Branch}
}

func (g *GitHub) PutFile(ctx context.Context, ref FileRef, content []byte, message, sha string) (*File, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
	}
	if ref.Branch != "" {
		opts.Branch = github.String(ref.Branch)
	}

	var (
		resp *github.RepositoryContentResponse
		err  error
	)
	if sha == "" {
		resp, _, err = g.client.Repositories.CreateFile(ctx, ref.Owner, ref.Repo, ref.Path, opts)
	} else {
		opts.SHA = github.String(sha)
		resp, _, err = g.client.Repositories.UpdateFile(ctx, ref.Owner, ref.Repo, ref.Path, opts)
	}
	if err != nil {
		return nil, classify(err, "writing "+ref.String())
	}

	f := &File{Path: ref.Path, Size: int64(len(content)), Content: content}
	if resp != nil && resp.Content != nil {
		f.SHA = resp.Content.GetSHA()
	}
	if f.SHA == "" {
		f.SHA = BlobHash(content)
	}
	return f, nil
}

func convertRepo(r *github.Repository) *Repository {
	return &Repository{
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		HTMLURL:       r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
	}
}

func status(err error) int {
	var ghErr *github.ErrorResponse
	if stderrors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}

// classify maps a go-github error onto the typed errors callers branch on.
func classify(err error, what string) error {
	var rateErr *github.RateLimitError
	if stderrors.As(err, &rateErr) {
		return errors.Internal(what+": rate limited", err)
	}

	switch status(err) {
	case http.StatusNotFound:
		return errors.NotFound(what + ": not found").Wrap(err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Unauthorized(what + ": access denied").Wrap(err)
	case http.StatusConflict:
		return errors.Conflict(what + ": conflict").Wrap(err)
	case http.StatusUnprocessableEntity:
		return errors.ValidationError(what+": rejected", nil).Wrap(err)
	}
	return errors.Internal(what, err)
}
