package readme

import (
	"context"
	"fmt"
	"strings"

	"terradeploy/internal/errors"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type LineOp int

const (
	Context LineOp = iota
	Addition
	Deletion
)

// Line is one line of a line diff.
type Line struct {
	Op   LineOp
	Text string
}

func (l Line) String() string {
	switch l.Op {
	case Addition:
		return "+" + l.Text
	case Deletion:
		return "-" + l.Text
	}
	return " " + l.Text
}

// Hunk is a run of changed lines with surrounding context, starting at the
// 1-based line numbers Old and New.
type Hunk struct {
	Old, New int
	Lines    []Line
}

// Header is the unified diff range line of h.
func (h Hunk) Header() string {
	var o, n int
	for _, l := range h.Lines {
		if l.Op != Addition {
			o++
		}
		if l.Op != Deletion {
			n++
		}
	}
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.Old, o, h.New, n)
}

// LineDiff compares before and after line by line and groups the changes
// into hunks with up to contextLines unchanged lines around them.
func LineDiff(before, after string, contextLines int) []Hunk {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var all []Line
	for _, d := range diffs {
		op := Context
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = Addition
		case diffmatchpatch.DiffDelete:
			op = Deletion
		}
		for _, text := range strings.SplitAfter(d.Text, "\n") {
			if text == "" {
				continue
			}
			all = append(all, Line{Op: op, Text: strings.TrimSuffix(text, "\n")})
		}
	}

	var (
		hunks    []Hunk
		cur      *Hunk
		oldLine  = 1
		newLine  = 1
		lastEdit = -1
	)
	for i, l := range all {
		near := false
		if l.Op != Context {
			near = true
		} else if lastEdit >= 0 && i-lastEdit <= contextLines {
			near = true
		} else {
			for j := i + 1; j < len(all) && j <= i+contextLines; j++ {
				if all[j].Op != Context {
					near = true
					break
				}
			}
		}

		if near {
			if cur == nil {
				hunks = append(hunks, Hunk{Old: oldLine, New: newLine})
				cur = &hunks[len(hunks)-1]
			}
			cur.Lines = append(cur.Lines, l)
		} else {
			cur = nil
		}
		if l.Op != Context {
			lastEdit = i
		}

		if l.Op != Addition {
			oldLine++
		}
		if l.Op != Deletion {
			newLine++
		}
	}
	return hunks
}

// Format renders hunks as a unified diff body.
func Format(hunks []Hunk) string {
	var sb strings.Builder
	for _, h := range hunks {
		sb.WriteString(h.Header())
		sb.WriteByte('\n')
		for _, l := range h.Lines {
			sb.WriteString(l.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Preview reads the README and returns it with and without the section,
// without writing. A missing anchor is an error. When the section is already
// present, after equals before, as Patch would not write.
func (p *Patcher) Preview(ctx context.Context, section string) (before, after string, err error) {
	current, err := p.remote.GetFile(ctx, p.ref)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", p.ref, err)
	}
	before = string(current.Content)
	after, err = Insert(before, p.anchor, section)
	switch {
	case errors.Is(err, ErrAlreadyPresent):
		return before, before, nil
	case err != nil:
		return before, before, fmt.Errorf("patching %s: %w", p.ref, err)
	}
	return before, after, nil
}
