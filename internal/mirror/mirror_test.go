package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"terradeploy/internal/errors"
	"terradeploy/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var target = Target{Owner: "acme", Repo: "corpus", Branch: "main"}

func setupSync(t *testing.T) (*Synchronizer, *remote.Memory) {
	t.Helper()
	mem := remote.NewMemory("acme")
	_, err := mem.CreateRepository(context.Background(), remote.RepoSpec{Name: "corpus"})
	require.NoError(t, err)
	return New(mem, zaptest.NewLogger(t)), mem
}

// failingRemote rejects writes to one path.
type failingRemote struct {
	*remote.Memory
	path string
}

func (f *failingRemote) PutFile(ctx context.Context, ref remote.FileRef, content []byte, message, sha string) (*remote.File, error) {
	if ref.Path == f.path {
		return nil, errors.Internal("writing "+ref.String(), os.ErrPermission)
	}
	return f.Memory.PutFile(ctx, ref, content, message, sha)
}

// metadataOnlyRemote serves no file content, as GitHub does for files over 1 MB.
type metadataOnlyRemote struct {
	*remote.Memory
}

func (m *metadataOnlyRemote) GetFile(ctx context.Context, ref remote.FileRef) (*remote.File, error) {
	return nil, errors.Internal("unsupported content encoding: none", nil)
}

func TestEnsureRepository(t *testing.T) {
	ctx := context.Background()
	mem := remote.NewMemory("acme")
	s := New(mem, zaptest.NewLogger(t))
	spec := remote.RepoSpec{Name: "corpus", Description: "test"}

	created, err := s.EnsureRepository(ctx, "acme", spec)
	require.NoError(t, err)
	assert.Equal(t, "acme/corpus", created.FullName())

	t.Run("name conflict reuses existing", func(t *testing.T) {
		again, err := s.EnsureRepository(ctx, "acme", spec)
		require.NoError(t, err)
		assert.Equal(t, created.HTMLURL, again.HTMLURL)
	})

	t.Run("other failures propagate", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.EnsureRepository(cancelled, "acme", spec)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestUploadTree_TwoFilesIntoEmptyRepo(t *testing.T) {
	s, mem := setupSync(t)
	root := writeTree(t, map[string]string{"a.txt": "x", "sub/b.txt": "y"})

	results, err := s.UploadTree(context.Background(), root, target)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "a.txt", results[0].Path)
	assert.Equal(t, "sub/b.txt", results[1].Path)
	for _, r := range results {
		assert.Equal(t, StatusCreated, r.Status)
		assert.NoError(t, r.Err)
	}

	assert.Equal(t, 2, mem.Writes())
	assert.Equal(t, map[string][]byte{
		"a.txt":     []byte("x"),
		"sub/b.txt": []byte("y"),
	}, mem.Files("acme", "corpus", "main"))
}

func TestUploadTree_ByteIdentical(t *testing.T) {
	s, mem := setupSync(t)
	files := map[string]string{
		"navoiy-terra.html":                    "<html></html>",
		"assets/navoiy-badge.svg":              "<svg/>",
		"annotations/semantic_lexicon_v1.json": `{"terms":[]}`,
		"empty":                                "",
	}
	root := writeTree(t, files)

	results, err := s.UploadTree(context.Background(), root, target)
	require.NoError(t, err)
	assert.Equal(t, len(files), Summarize(results).Created)

	remoteFiles := mem.Files("acme", "corpus", "main")
	require.Len(t, remoteFiles, len(files))
	for rel, content := range files {
		assert.Equal(t, content, string(remoteFiles[rel]), rel)
	}
}

func TestUploadTree_RerunIsNoop(t *testing.T) {
	s, mem := setupSync(t)
	root := writeTree(t, map[string]string{"a.txt": "x", "sub/b.txt": "y"})
	ctx := context.Background()

	_, err := s.UploadTree(ctx, root, target)
	require.NoError(t, err)
	before := mem.Writes()

	results, err := s.UploadTree(ctx, root, target)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, StatusUnchanged, r.Status, r.Path)
		assert.Equal(t, remote.BlobHash([]byte(map[string]string{"a.txt": "x", "sub/b.txt": "y"}[r.Path])), r.SHA)
	}
	assert.Equal(t, before, mem.Writes())
}

func TestUploadTree_RerunWithoutRemoteContent(t *testing.T) {
	_, mem := setupSync(t)
	s := New(&metadataOnlyRemote{Memory: mem}, zaptest.NewLogger(t))
	root := writeTree(t, map[string]string{"annotations/lexicon.json": "{}", "texts/big.txt": "large"})
	ctx := context.Background()

	_, err := s.UploadTree(ctx, root, target)
	require.NoError(t, err)

	results, err := s.UploadTree(ctx, root, target)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusUnchanged, r.Status, r.Path)
	}
}

func TestUploadTree_ChangedFileIsUpdated(t *testing.T) {
	s, mem := setupSync(t)
	root := writeTree(t, map[string]string{"a.txt": "x", "b.txt": "y"})
	ctx := context.Background()

	_, err := s.UploadTree(ctx, root, target)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x2"), 0644))
	results, err := s.UploadTree(ctx, root, target)
	require.NoError(t, err)

	assert.Equal(t, StatusUpdated, results[0].Status)
	assert.Equal(t, StatusUnchanged, results[1].Status)
	assert.Equal(t, Summary{Updated: 1, Unchanged: 1}, Summarize(results))
	assert.Equal(t, "x2", string(mem.Files("acme", "corpus", "main")["a.txt"]))
}

func TestUploadTree_FailureContinues(t *testing.T) {
	mem := remote.NewMemory("acme")
	_, err := mem.CreateRepository(context.Background(), remote.RepoSpec{Name: "corpus"})
	require.NoError(t, err)
	s := New(&failingRemote{Memory: mem, path: "b.txt"}, zaptest.NewLogger(t))

	root := writeTree(t, map[string]string{"a.txt": "1", "b.txt": "2", "c.txt": "3"})
	results, err := s.UploadTree(context.Background(), root, target)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, StatusCreated, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.ErrorIs(t, results[1].Err, os.ErrPermission)
	assert.Equal(t, StatusCreated, results[2].Status)
	assert.Equal(t, []string{"a.txt", "c.txt"}, mem.Paths("acme", "corpus", "main"))
}

func TestUploadTree_MissingRepository(t *testing.T) {
	s := New(remote.NewMemory("acme"), zaptest.NewLogger(t))
	root := writeTree(t, map[string]string{"a.txt": "x"})

	results, err := s.UploadTree(context.Background(), root, target)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.True(t, errors.IsNotFound(results[0].Err))
}

func TestUploadTree_Cancelled(t *testing.T) {
	s, mem := setupSync(t)
	root := writeTree(t, map[string]string{"a.txt": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := s.UploadTree(ctx, root, target)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Zero(t, mem.Writes())
}

func TestUploadTree_Exclude(t *testing.T) {
	mem := remote.NewMemory("acme")
	_, err := mem.CreateRepository(context.Background(), remote.RepoSpec{Name: "corpus"})
	require.NoError(t, err)
	s := New(mem, zaptest.NewLogger(t), WithExclude([]string{"*.tmp"}))

	root := writeTree(t, map[string]string{"a.txt": "x", "scratch.tmp": "y"})
	_, err = s.UploadTree(context.Background(), root, target)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, mem.Paths("acme", "corpus", "main"))
}

func TestUploadFile(t *testing.T) {
	s, mem := setupSync(t)
	root := writeTree(t, map[string]string{"docs/PLT_EXPANSION.md": "# doc"})

	r := s.UploadFile(context.Background(), filepath.Join(root, "docs", "PLT_EXPANSION.md"), "docs/PLT_EXPANSION.md", target)
	assert.Equal(t, StatusCreated, r.Status)
	assert.Equal(t, int64(5), r.Size)
	assert.Equal(t, 1, mem.Writes())

	missing := s.UploadFile(context.Background(), filepath.Join(root, "gone.txt"), "gone.txt", target)
	assert.Equal(t, StatusFailed, missing.Status)
	assert.ErrorIs(t, missing.Err, os.ErrNotExist)
}

func TestSummary(t *testing.T) {
	sum := Summarize([]FileResult{
		{Status: StatusCreated},
		{Status: StatusCreated},
		{Status: StatusUpdated},
		{Status: StatusUnchanged},
		{Status: StatusFailed},
	})
	assert.Equal(t, Summary{Created: 2, Updated: 1, Unchanged: 1, Failed: 1}, sum)
	assert.Equal(t, 3, sum.Writes())
	assert.Equal(t, 5, sum.Total())
}
