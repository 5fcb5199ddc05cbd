// Package mirror mirrors a local directory into a remote repository, one
// create-or-update write per file.
package mirror

import (
	"context"
	"fmt"
	"os"

	"terradeploy/internal/errors"
	"terradeploy/internal/remote"

	"go.uber.org/zap"
)

// Target addresses the branch an upload writes to.
type Target struct {
	Owner  string
	Repo   string
	Branch string
}

func (t Target) ref(path string) remote.FileRef {
	return remote.FileRef{Owner: t.Owner, Repo: t.Repo, Path: path, Branch: t.Branch}
}

type Synchronizer struct {
	remote  remote.Remote
	logger  *zap.Logger
	exclude []string
}

type Option func(*Synchronizer)

// WithExclude skips files matching any of the patterns (see Matcher).
func WithExclude(patterns []string) Option {
	return func(s *Synchronizer) {
		s.exclude = patterns
	}
}

func New(r remote.Remote, logger *zap.Logger, opts ...Option) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synchronizer{remote: r, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureRepository creates the repository for the authenticated user, or
// returns the existing owner/name repository when the name is taken.
func (s *Synchronizer) EnsureRepository(ctx context.Context, owner string, spec remote.RepoSpec) (*remote.Repository, error) {
	repo, err := s.remote.CreateRepository(ctx, spec)
	if err == nil {
		s.logger.Info("Created repository",
			zap.String("repo", repo.FullName()),
			zap.String("url", repo.HTMLURL))
		return repo, nil
	}
	if !errors.IsConflict(err) {
		return nil, fmt.Errorf("creating repository: %w", err)
	}

	s.logger.Info("Repository already exists, reusing it", zap.String("repo", owner+"/"+spec.Name))
	repo, err = s.remote.GetRepository(ctx, owner, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching existing repository: %w", err)
	}
	return repo, nil
}

// UploadTree writes every file under root to the target in lexicographic
// path order. A failed file is recorded and the walk continues; the returned
// error is set only when the tree cannot be listed or ctx is done.
func (s *Synchronizer) UploadTree(ctx context.Context, root string, target Target) ([]FileResult, error) {
	entries, err := Scan(root, s.exclude)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Uploading files",
		zap.String("root", root),
		zap.String("repo", target.Owner+"/"+target.Repo),
		zap.Int("count", len(entries)))

	results := make([]FileResult, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.uploadEntry(ctx, e, target))
	}

	sum := Summarize(results)
	s.logger.Info("Upload finished",
		zap.Int("created", sum.Created),
		zap.Int("updated", sum.Updated),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("failed", sum.Failed))
	return results, nil
}

// UploadFile writes the file at abs to path on the target.
func (s *Synchronizer) UploadFile(ctx context.Context, abs, path string, target Target) FileResult {
	info, err := os.Stat(abs)
	if err != nil {
		return s.failed(FileResult{Path: path}, err)
	}
	return s.uploadEntry(ctx, Entry{Path: path, Abs: abs, Size: info.Size()}, target)
}

func (s *Synchronizer) uploadEntry(ctx context.Context, e Entry, target Target) FileResult {
	result := FileResult{Path: e.Path, Size: e.Size}

	content, err := os.ReadFile(e.Abs)
	if err != nil {
		return s.failed(result, err)
	}
	result.Size = int64(len(content))

	ref := target.ref(e.Path)
	existing, err := s.remote.StatFile(ctx, ref)
	switch {
	case errors.IsNotFound(err):
		existing = nil
	case err != nil:
		return s.failed(result, err)
	}

	if existing != nil && existing.SHA == remote.BlobHash(content) {
		result.Status = StatusUnchanged
		result.SHA = existing.SHA
		s.logger.Debug("Unchanged", zap.String("path", e.Path))
		return result
	}

	message, sha, status := "Add "+e.Path, "", StatusCreated
	if existing != nil {
		message, sha, status = "Update "+e.Path, existing.SHA, StatusUpdated
	}

	written, err := s.remote.PutFile(ctx, ref, content, message, sha)
	if err != nil {
		return s.failed(result, err)
	}

	result.Status = status
	result.SHA = written.SHA
	s.logger.Debug("Uploaded",
		zap.String("path", e.Path),
		zap.String("status", string(status)),
		zap.String("sha", written.SHA))
	return result
}

func (s *Synchronizer) failed(result FileResult, err error) FileResult {
	result.Status = StatusFailed
	result.Err = err
	s.logger.Warn("Failed to upload file",
		zap.String("path", result.Path),
		zap.Error(err))
	return result
}
