// Package readme inserts a project section into a README held in a remote
// repository.
package readme

import (
	"context"
	"fmt"
	"strings"

	"terradeploy/internal/errors"
	"terradeploy/internal/remote"

	"go.uber.org/zap"
)

var (
	ErrAnchorNotFound = errors.NotFound("anchor not found")
	ErrAlreadyPresent = errors.Conflict("section already present")
)

// Insert places section on its own paragraph directly after the first
// occurrence of anchor. The anchor is expected to end with a newline.
//
// It fails with ErrAnchorNotFound when content lacks the anchor, and with
// ErrAlreadyPresent when the section's first line already appears in content.
func Insert(content, anchor, section string) (string, error) {
	idx := strings.Index(content, anchor)
	if idx < 0 {
		return content, ErrAnchorNotFound
	}
	if heading := firstLine(section); heading != "" && strings.Contains(content, heading) {
		return content, ErrAlreadyPresent
	}

	at := idx + len(anchor)
	return content[:at] + "\n" + section + "\n" + content[at:], nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimLeft(s, "\n"), "\n")
	return strings.TrimSpace(line)
}

// Result describes one Patch call.
type Result struct {
	// Previous is the README as read, before insertion.
	Previous []byte
	// SHA is the blob hash written, or the hash read when nothing was written.
	SHA     string
	Written bool
}

type Patcher struct {
	remote remote.Remote
	logger *zap.Logger
	ref    remote.FileRef
	anchor string
}

func NewPatcher(r remote.Remote, ref remote.FileRef, anchor string, logger *zap.Logger) *Patcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Patcher{remote: r, logger: logger, ref: ref, anchor: anchor}
}

// Patch reads the README, inserts section after the anchor and writes it
// back guarded by the hash it read. A missing anchor is an error and nothing
// is written. A section that is already present is not an error; Written is
// false.
func (p *Patcher) Patch(ctx context.Context, section, message string) (*Result, error) {
	current, err := p.remote.GetFile(ctx, p.ref)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.ref, err)
	}

	result := &Result{Previous: current.Content, SHA: current.SHA}

	updated, err := Insert(string(current.Content), p.anchor, section)
	switch {
	case errors.Is(err, ErrAlreadyPresent):
		p.logger.Info("README already lists the project", zap.String("file", p.ref.String()))
		return result, nil
	case err != nil:
		return nil, fmt.Errorf("patching %s: %w", p.ref, err)
	}

	written, err := p.remote.PutFile(ctx, p.ref, []byte(updated), message, current.SHA)
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", p.ref, err)
	}

	result.SHA = written.SHA
	result.Written = true
	p.logger.Info("Patched README",
		zap.String("file", p.ref.String()),
		zap.String("sha", written.SHA))
	return result, nil
}

// Restore overwrites the README with content, guarded by its current hash.
func (p *Patcher) Restore(ctx context.Context, content []byte, message string) (*remote.File, error) {
	current, err := p.remote.GetFile(ctx, p.ref)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.ref, err)
	}
	if current.SHA == remote.BlobHash(content) {
		p.logger.Info("README already matches snapshot", zap.String("file", p.ref.String()))
		return current, nil
	}

	written, err := p.remote.PutFile(ctx, p.ref, content, message, current.SHA)
	if err != nil {
		return nil, fmt.Errorf("restoring %s: %w", p.ref, err)
	}
	p.logger.Info("Restored README",
		zap.String("file", p.ref.String()),
		zap.String("sha", written.SHA))
	return written, nil
}
