package remote

import (
	"context"
	"fmt"
)

// Repository describes a hosted repository.
type Repository struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// RepoSpec is the request for a new repository owned by the
// authenticated user.
type RepoSpec struct {
	Name            string
	Description     string
	Homepage        string
	Private         bool
	LicenseTemplate string
}

// FileRef addresses a file on a branch. Path is slash-separated and
// relative to the repository root.
type FileRef struct {
	Owner  string
	Repo   string
	Path   string
	Branch string
}

func (r FileRef) String() string {
	return fmt.Sprintf("%s/%s@%s:%s", r.Owner, r.Repo, r.Branch, r.Path)
}

// File is the content of a remote file together with its blob SHA, which
// doubles as the concurrency token for updates. Content is nil for files
// returned by StatFile.
type File struct {
	Path    string
	SHA     string
	Size    int64
	Content []byte
}

// Remote is the subset of a source-hosting API the deployer needs.
//
// Errors are *errors.Error values: NOT_FOUND for a missing repo or file,
// CONFLICT for a taken repository name or a stale SHA, UNAUTHORIZED for a
// rejected credential.
type Remote interface {
	CreateRepository(ctx context.Context, spec RepoSpec) (*Repository, error)
	GetRepository(ctx context.Context, owner, name string) (*Repository, error)
	GetFile(ctx context.Context, ref FileRef) (*File, error)
	// StatFile returns the file's SHA and size without its content.
	StatFile(ctx context.Context, ref FileRef) (*File, error)
	// PutFile creates the file when sha is empty and replaces it otherwise.
	PutFile(ctx context.Context, ref FileRef, content []byte, message, sha string) (*File, error)
}
