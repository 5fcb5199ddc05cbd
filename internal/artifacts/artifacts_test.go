package artifacts

import (
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		Owner:     "Secret-Uzbek",
		Repo:      "Navoiy-Terra-Corpus",
		Website:   "https://fractal-metascience.org",
		Portrait:  "https://upload.wikimedia.org/navoi.jpg",
		BirthYear: 1441,
		DeathYear: 1501,
		Colors:    Colors{Primary: "#7B66DC", Secondary: "#4A90E2", Accent: "#2E8B57", Creative: "#FF8C42"},
		Now:       time.Date(2026, time.February, 9, 12, 0, 0, 0, time.UTC),
	}
}

func TestParams(t *testing.T) {
	p := testParams()
	assert.Equal(t, "https://github.com/Secret-Uzbek/Navoiy-Terra-Corpus", p.RepoURL())
	assert.Equal(t, "https://github.com/Secret-Uzbek/Navoiy-Terra-Corpus/issues", p.IssuesURL())
	assert.Equal(t, 525, p.YearsSinceDeath())
	assert.Equal(t, "26", p.ShortYear())

	p.Now = time.Date(2105, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "05", p.ShortYear())
}

func TestPage(t *testing.T) {
	page, err := Page(testParams())
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "--terra-purple: #7B66DC;")
	assert.Contains(t, html, "1441–1501")
	assert.Contains(t, html, "525 лет наследия")
	assert.Contains(t, html, `src="https://upload.wikimedia.org/navoi.jpg"`)
	assert.Contains(t, html, "© 2026")
	assert.NotContains(t, html, "{{")

	links, err := PageLinks(page)
	require.NoError(t, err)
	assert.Contains(t, links, "https://github.com/Secret-Uzbek/Navoiy-Terra-Corpus")
	assert.Contains(t, links, "https://github.com/Secret-Uzbek/Navoiy-Terra-Corpus/issues")
	assert.Contains(t, links, "https://github.com/Secret-Uzbek")

	ok, err := LinksTo(page, testParams().RepoURL()+"/")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPage_EscapesInput(t *testing.T) {
	p := testParams()
	p.Portrait = `x" onerror="alert(1)`

	page, err := Page(p)
	require.NoError(t, err)
	assert.NotContains(t, string(page), `onerror="alert(1)"`)
}

func TestBadge(t *testing.T) {
	svg, err := Badge(testParams())
	require.NoError(t, err)

	s := string(svg)
	assert.True(t, strings.HasPrefix(s, "<svg"))
	assert.Contains(t, s, "525 лет наследия")
	assert.Contains(t, s, ">\n    26\n  </text>")
	assert.Contains(t, s, `href="https://upload.wikimedia.org/navoi.jpg"`)
	assert.Contains(t, s, "stop-color:#7B66DC")
}

func TestBadge_EscapesAttributes(t *testing.T) {
	p := testParams()
	p.Portrait = `https://example.org/p.jpg?w=220&h="x"`

	svg, err := Badge(p)
	require.NoError(t, err)
	assert.Contains(t, string(svg), `href="https://example.org/p.jpg?w=220&amp;h=&#34;x&#34;"`)

	dec := xml.NewDecoder(bytes.NewReader(svg))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
}

func TestBadgeScript(t *testing.T) {
	js, err := BadgeScript(testParams())
	require.NoError(t, err)
	assert.Contains(t, string(js), "const BIRTH_YEAR = 1441;")
	assert.Contains(t, string(js), "const DEATH_YEAR = 1501;")
}

func TestReadmeSection(t *testing.T) {
	section, err := ReadmeSection(testParams())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(section, "### 🕌 Navoiy-Terra-Corpus (Digital Humanities)\n"))
	assert.Contains(t, section, "Навои-525%20лет%20назад")
	assert.Contains(t, section, "**Repository:** [Navoiy-Terra-Corpus](https://github.com/Secret-Uzbek/Navoiy-Terra-Corpus)")
	assert.False(t, strings.HasSuffix(section, "\n"))
}

func TestLanguageDoc(t *testing.T) {
	doc := string(LanguageDoc())
	assert.True(t, strings.HasPrefix(doc, "# 🔤 Расширенный PLT-слой"))
	for _, lang := range []string{"Уйгурский", "Дари", "Пушту", "Фарси"} {
		assert.Contains(t, doc, lang)
	}
}

func TestPageLinks_Empty(t *testing.T) {
	links, err := PageLinks([]byte("<p>no links</p>"))
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()

	written, err := WriteAll(dir, testParams())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{PagePath, BadgePath, ScriptPath, DocPath}, written)

	for _, rel := range written {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.NotEmpty(t, data, rel)
	}

	t.Run("rewrites in place", func(t *testing.T) {
		_, err := WriteAll(dir, testParams())
		require.NoError(t, err)
	})
}
