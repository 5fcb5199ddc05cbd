// Package lexicon expands the corpus semantic lexicon with more languages.
package lexicon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"terradeploy/internal/errors"
)

// RelPath is the lexicon's location inside a corpus directory.
var RelPath = filepath.Join("annotations", "semantic_lexicon_v1.json")

// timestampFormat is ISO 8601 with millisecond precision in UTC.
const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Stats summarizes one expansion.
type Stats struct {
	Terms int
	// Matched counts terms that received at least one added translation.
	Matched int
}

// Expand adds the Additions translations to every term of the lexicon in
// data and refreshes its metadata. Keys it does not touch are preserved.
// Terms without an id in Additions get empty lists.
func Expand(data []byte, now time.Time) ([]byte, Stats, error) {
	var stats Stats

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var lexicon map[string]any
	if err := dec.Decode(&lexicon); err != nil {
		return nil, stats, errors.ValidationError("lexicon is not a JSON object", err.Error())
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, stats, errors.ValidationError("lexicon has data after the top-level object", nil)
	}

	terms, ok := lexicon["terms"].([]any)
	if !ok {
		return nil, stats, errors.ValidationError("lexicon has no terms array", nil)
	}

	for i, raw := range terms {
		term, ok := raw.(map[string]any)
		if !ok {
			return nil, stats, errors.ValidationError(fmt.Sprintf("term %d is not an object", i), nil)
		}
		id, _ := term["id"].(string)

		translations, ok := term["translations"].(map[string]any)
		if !ok {
			translations = make(map[string]any)
			term["translations"] = translations
		}

		matched := false
		for _, lang := range addedLanguages {
			words, found := Additions[lang][id]
			if !found {
				words = []string{}
			}
			matched = matched || found
			translations[lang] = words
		}
		if matched {
			stats.Matched++
		}
	}
	stats.Terms = len(terms)

	metadata, ok := lexicon["metadata"].(map[string]any)
	if !ok {
		metadata = make(map[string]any)
		lexicon["metadata"] = metadata
	}
	metadata["languages"] = Languages
	metadata["language_count"] = len(Languages)
	metadata["expanded_at"] = now.UTC().Format(timestampFormat)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lexicon); err != nil {
		return nil, stats, fmt.Errorf("encoding lexicon: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), stats, nil
}

// ExpandFile rewrites the lexicon under corpusDir in place.
func ExpandFile(corpusDir string, now time.Time) (Stats, error) {
	path := filepath.Join(corpusDir, RelPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("reading lexicon: %w", err)
	}

	out, stats, err := Expand(data, now)
	if err != nil {
		return stats, fmt.Errorf("expanding %s: %w", path, err)
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return stats, fmt.Errorf("writing lexicon: %w", err)
	}
	return stats, nil
}
