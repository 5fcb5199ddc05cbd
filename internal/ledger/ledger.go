// Package ledger keeps a local history of deploy runs and the README
// contents they replaced.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"terradeploy/internal/errors"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

// FileRecord is the stored form of one upload outcome.
type FileRecord struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	SHA    string `json:"sha,omitempty"`
	Size   int64  `json:"size"`
	Error  string `json:"error,omitempty"`
}

type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`

	Repo    string       `json:"repo"`
	RepoURL string       `json:"repo_url,omitempty"`
	Files   []FileRecord `json:"files,omitempty"`

	Readme struct {
		Repo     string `json:"repo,omitempty"`
		Path     string `json:"path,omitempty"`
		Branch   string `json:"branch,omitempty"`
		Patched  bool   `json:"patched"`
		Snapshot string `json:"snapshot,omitempty"`
		SHA      string `json:"sha,omitempty"`
	} `json:"readme"`

	Error string `json:"error,omitempty"`
}

func (r *Run) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Status == "failed" {
			n++
		}
	}
	return n
}

type Options struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path      string
	InMemory  bool
	CacheSize int
	// CompressMin is the snapshot size from which zstd is applied.
	CompressMin int
}

type Ledger struct {
	db        *badger.DB
	runs      table
	snapshots raw
	cache     *lru.Cache[string, *Run]
	codec     *codec
}

func Open(opts Options) (*Ledger, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.CompressMin <= 0 {
		opts.CompressMin = 512
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.ValidationError("ledger path is required", nil)
		}
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	cache, err := lru.New[string, *Run](opts.CacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	c, err := newCodec(opts.CompressMin)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{
		db:        db,
		runs:      table{db: db, prefix: "run"},
		snapshots: raw{db: db, prefix: "snapshot"},
		cache:     cache,
		codec:     c,
	}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordRun stores run, replacing any earlier record with the same id.
func (l *Ledger) RecordRun(run *Run) error {
	if err := l.runs.put(run.ID, run); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	stored := *run
	l.cache.Add(run.ID, &stored)
	return nil
}

func (l *Ledger) GetRun(id string) (*Run, error) {
	if run, ok := l.cache.Get(id); ok {
		out := *run
		return &out, nil
	}

	var run Run
	if err := l.runs.get(id, &run); err != nil {
		return nil, err
	}
	stored := run
	l.cache.Add(id, &stored)
	return &run, nil
}

// ListRuns returns every run, newest first.
func (l *Ledger) ListRuns() ([]*Run, error) {
	var runs []*Run
	err := l.runs.each(func(_ string, val []byte) error {
		var run Run
		if err := json.Unmarshal(val, &run); err != nil {
			return fmt.Errorf("decoding run: %w", err)
		}
		runs = append(runs, &run)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// SaveSnapshot stores content under its SHA-256 and returns the hash.
// Saving the same content twice stores it once.
func (l *Ledger) SaveSnapshot(content []byte) (string, error) {
	hash := hashContent(content)
	if err := l.snapshots.put(hash, l.codec.compress(content)); err != nil {
		return "", fmt.Errorf("saving snapshot: %w", err)
	}
	return hash, nil
}

func (l *Ledger) GetSnapshot(hash string) ([]byte, error) {
	if !validHash(hash) {
		return nil, errors.ValidationError(fmt.Sprintf("invalid snapshot hash %q", hash), nil)
	}

	data, err := l.snapshots.get(hash)
	if err != nil {
		return nil, err
	}
	content, err := l.codec.decompress(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", hash, err)
	}
	if hashContent(content) != hash {
		return nil, errors.Internal("snapshot "+hash+" is corrupt", nil)
	}
	return content, nil
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func validHash(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
