package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"terradeploy/internal/errors"
)

// Memory is an in-process Remote. It backs dry runs and tests.
type Memory struct {
	owner string

	mu     sync.Mutex
	repos  map[string]*memRepo
	writes int
}

type memRepo struct {
	repo  Repository
	files map[string][]byte // branch + "\x00" + path
}

// NewMemory returns an empty remote whose authenticated user is owner.
func NewMemory(owner string) *Memory {
	return &Memory{
		owner: owner,
		repos: make(map[string]*memRepo),
	}
}

func fileKey(branch, path string) string {
	return branch + "\x00" + path
}

func (m *Memory) CreateRepository(ctx context.Context, spec RepoSpec) (*Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.owner + "/" + spec.Name
	if _, ok := m.repos[key]; ok {
		return nil, errors.Conflict(fmt.Sprintf("repository %s already exists", spec.Name))
	}

	r := &memRepo{
		repo: Repository{
			Owner:         m.owner,
			Name:          spec.Name,
			HTMLURL:       "https://github.com/" + key,
			DefaultBranch: "main",
			Private:       spec.Private,
		},
		files: make(map[string][]byte),
	}
	m.repos[key] = r

	repo := r.repo
	return &repo, nil
}

func (m *Memory) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repos[owner+"/"+name]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("repository %s/%s not found", owner, name))
	}
	repo := r.repo
	return &repo, nil
}

func (m *Memory) GetFile(ctx context.Context, ref FileRef) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.lookup(ref)
	if err != nil {
		return nil, err
	}
	content, ok := r.files[fileKey(ref.Branch, ref.Path)]
	if !ok {
		return nil, errors.NotFound(ref.String() + " not found")
	}

	return &File{
		Path:    ref.Path,
		SHA:     BlobHash(content),
		Size:    int64(len(content)),
		Content: append([]byte(nil), content...),
	}, nil
}

func (m *Memory) StatFile(ctx context.Context, ref FileRef) (*File, error) {
	f, err := m.GetFile(ctx, ref)
	if err != nil {
		return nil, err
	}
	f.Content = nil
	return f, nil
}

func (m *Memory) PutFile(ctx context.Context, ref FileRef, content []byte, message, sha string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.lookup(ref)
	if err != nil {
		return nil, err
	}

	key := fileKey(ref.Branch, ref.Path)
	current, exists := r.files[key]
	switch {
	case exists && sha == "":
		return nil, errors.ValidationError(ref.String()+": sha is required to update an existing file", nil)
	case exists && sha != BlobHash(current):
		return nil, errors.Conflict(ref.String() + ": sha does not match")
	case !exists && sha != "":
		return nil, errors.Conflict(ref.String() + ": file does not exist")
	}

	r.files[key] = append([]byte(nil), content...)
	m.writes++

	return &File{Path: ref.Path, SHA: BlobHash(content), Size: int64(len(content)), Content: content}, nil
}

func (m *Memory) lookup(ref FileRef) (*memRepo, error) {
	r, ok := m.repos[ref.Owner+"/"+ref.Repo]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("repository %s/%s not found", ref.Owner, ref.Repo))
	}
	return r, nil
}

// Writes is the number of successful PutFile calls so far.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Files returns a copy of every file on branch, keyed by path.
func (m *Memory) Files(owner, repo, branch string) map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte)
	r, ok := m.repos[owner+"/"+repo]
	if !ok {
		return out
	}
	prefix := branch + "\x00"
	for k, v := range r.files {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = append([]byte(nil), v...)
		}
	}
	return out
}

// Paths lists the files on branch in lexicographic order.
func (m *Memory) Paths(owner, repo, branch string) []string {
	files := m.Files(owner, repo, branch)
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
