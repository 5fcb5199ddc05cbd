// Package artifacts renders the static files published with the corpus.
package artifacts

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/PuerkitoBio/goquery"
)

//go:embed templates
var files embed.FS

//go:embed templates/PLT_EXPANSION.md
var languageDoc []byte

var (
	pageTmpl    = htmltemplate.Must(htmltemplate.ParseFS(files, "templates/page.html.tmpl"))
	badgeTmpl   = template.Must(template.ParseFS(files, "templates/badge.svg.tmpl"))
	scriptTmpl  = template.Must(template.ParseFS(files, "templates/badge-updater.js.tmpl"))
	sectionTmpl = template.Must(template.ParseFS(files, "templates/readme-section.md.tmpl"))
)

// Corpus-relative output paths.
const (
	PagePath   = "navoiy-terra.html"
	BadgePath  = "assets/navoiy-badge.svg"
	ScriptPath = "assets/badge-updater.js"
	DocPath    = "docs/PLT_EXPANSION.md"
)

type Colors struct {
	Primary   string
	Secondary string
	Accent    string
	Creative  string
}

type Params struct {
	Owner     string
	Repo      string
	Website   string
	Portrait  string
	BirthYear int
	DeathYear int
	Colors    Colors
	Now       time.Time
}

func (p Params) RepoURL() string {
	return "https://github.com/" + p.Owner + "/" + p.Repo
}

func (p Params) IssuesURL() string {
	return p.RepoURL() + "/issues"
}

func (p Params) OwnerURL() string {
	return "https://github.com/" + p.Owner
}

func (p Params) YearsSinceDeath() int {
	return p.Now.Year() - p.DeathYear
}

// ShortYear is the last two digits of the current year.
func (p Params) ShortYear() string {
	return fmt.Sprintf("%02d", p.Now.Year()%100)
}

func render(name string, execute func(*bytes.Buffer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := execute(&buf); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Page renders the Terra project page.
func Page(p Params) ([]byte, error) {
	return render("page", func(b *bytes.Buffer) error { return pageTmpl.Execute(b, p) })
}

// Badge renders the SVG badge with the years-since counter.
func Badge(p Params) ([]byte, error) {
	return render("badge", func(b *bytes.Buffer) error { return badgeTmpl.Execute(b, p) })
}

// BadgeScript renders the script that keeps the badge counter current.
func BadgeScript(p Params) ([]byte, error) {
	return render("badge script", func(b *bytes.Buffer) error { return scriptTmpl.Execute(b, p) })
}

// ReadmeSection renders the project entry for the central README.
func ReadmeSection(p Params) (string, error) {
	out, err := render("readme section", func(b *bytes.Buffer) error { return sectionTmpl.Execute(b, p) })
	return string(out), err
}

// LanguageDoc is the Markdown note describing the added languages.
func LanguageDoc() []byte {
	return append([]byte(nil), languageDoc...)
}

// PageLinks returns the href of every anchor in an HTML document, in
// document order.
func PageLinks(page []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links = append(links, strings.TrimSpace(href))
	})
	return links, nil
}

// LinksTo reports whether page has an anchor pointing at url.
func LinksTo(page []byte, url string) (bool, error) {
	links, err := PageLinks(page)
	if err != nil {
		return false, err
	}
	for _, l := range links {
		if strings.TrimSuffix(l, "/") == strings.TrimSuffix(url, "/") {
			return true, nil
		}
	}
	return false, nil
}

// WriteAll renders every artifact into dir and returns the written paths,
// relative and slash separated.
func WriteAll(dir string, p Params) ([]string, error) {
	page, err := Page(p)
	if err != nil {
		return nil, err
	}
	badge, err := Badge(p)
	if err != nil {
		return nil, err
	}
	script, err := BadgeScript(p)
	if err != nil {
		return nil, err
	}

	outputs := []struct {
		path    string
		content []byte
	}{
		{DocPath, LanguageDoc()},
		{PagePath, page},
		{BadgePath, badge},
		{ScriptPath, script},
	}

	written := make([]string, 0, len(outputs))
	for _, o := range outputs {
		target := filepath.Join(dir, filepath.FromSlash(o.path))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, o.content, 0644); err != nil {
			return written, fmt.Errorf("writing %s: %w", o.path, err)
		}
		written = append(written, o.path)
	}
	return written, nil
}
