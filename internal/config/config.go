// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"terradeploy/internal/errors"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GitHub GitHubConfig `json:"github" yaml:"github"`
	Terra  TerraConfig  `json:"terra" yaml:"terra"`
	Navoiy NavoiyConfig `json:"navoiy" yaml:"navoiy"`
	Corpus CorpusConfig `json:"corpus" yaml:"corpus"`
	Readme ReadmeConfig `json:"readme" yaml:"readme"`

	Ledger struct {
		Path string `json:"path" yaml:"path"`
	} `json:"ledger" yaml:"ledger"`

	LogLevel  string `json:"log_level" yaml:"log_level"`   // debug, info, warn, error
	LogFormat string `json:"log_format" yaml:"log_format"` // console, json
}

type GitHubConfig struct {
	Owner           string `json:"owner" yaml:"owner"`
	Repo            string `json:"repo" yaml:"repo"`
	Description     string `json:"description" yaml:"description"`
	Private         bool   `json:"private" yaml:"private"`
	LicenseTemplate string `json:"license_template" yaml:"license_template"`
	Branch          string `json:"branch" yaml:"branch"`
	CentralRepo     string `json:"central_repo" yaml:"central_repo"`
	BaseURL         string `json:"base_url" yaml:"base_url"`
	TokenEnv        string `json:"token_env" yaml:"token_env"`
	Timeout         string `json:"timeout" yaml:"timeout"`
}

type TerraConfig struct {
	Website string `json:"website" yaml:"website"`
	Colors  struct {
		Primary   string `json:"primary" yaml:"primary"`
		Secondary string `json:"secondary" yaml:"secondary"`
		Accent    string `json:"accent" yaml:"accent"`
		Creative  string `json:"creative" yaml:"creative"`
	} `json:"colors" yaml:"colors"`
}

type NavoiyConfig struct {
	BirthYear int    `json:"birth_year" yaml:"birth_year"`
	DeathYear int    `json:"death_year" yaml:"death_year"`
	Portrait  string `json:"portrait" yaml:"portrait"`
}

type CorpusConfig struct {
	Path    string   `json:"path" yaml:"path"`
	Exclude []string `json:"exclude" yaml:"exclude"`
}

type ReadmeConfig struct {
	Path          string `json:"path" yaml:"path"`
	Anchor        string `json:"anchor" yaml:"anchor"`
	CommitMessage string `json:"commit_message" yaml:"commit_message"`
}

// Default returns the configuration of the Navoiy-Terra deployment.
func Default() Config {
	var c Config

	c.GitHub = GitHubConfig{
		Owner:           "Secret-Uzbek",
		Repo:            "Navoiy-Terra-Corpus",
		Description:     "🕌 NAVOIY-TERRA v1.0 — First computational corpus of Alisher Navoi works with fractal semantic annotations (Chagatai-Uzbek-Russian-English-German-Uyghur-Dari-Pashto-Farsi)",
		LicenseTemplate: "cc-by-4.0",
		Branch:          "main",
		CentralRepo:     "FMP-CENTRAL-REPO",
		TokenEnv:        "GITHUB_TOKEN",
		Timeout:         "60s",
	}

	c.Terra.Website = "https://fractal-metascience.org"
	c.Terra.Colors.Primary = "#7B66DC"
	c.Terra.Colors.Secondary = "#4A90E2"
	c.Terra.Colors.Accent = "#2E8B57"
	c.Terra.Colors.Creative = "#FF8C42"

	c.Navoiy = NavoiyConfig{
		BirthYear: 1441,
		DeathYear: 1501,
		Portrait:  "https://upload.wikimedia.org/wikipedia/commons/thumb/d/d0/Alisher_Navoi.jpg/220px-Alisher_Navoi.jpg",
	}

	c.Corpus.Path = "navoiy-terra-corpus"

	c.Readme = ReadmeConfig{
		Path:          "README.md",
		Anchor:        "## 🌱 Active Projects\n",
		CommitMessage: "🕌 Add Navoiy-Terra-Corpus project",
	}

	c.Ledger.Path = filepath.Join(".terradeploy", "ledger")
	c.LogLevel = "info"
	c.LogFormat = "console"

	return c
}

// Load reads a JSON or YAML file (chosen by extension) over Default.
func Load(path string) (*Config, error) {
	config := Default()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	default:
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	return &config, nil
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var problems []string

	required := []struct {
		key, value string
	}{
		{"github.owner", c.GitHub.Owner},
		{"github.repo", c.GitHub.Repo},
		{"github.branch", c.GitHub.Branch},
		{"github.central_repo", c.GitHub.CentralRepo},
		{"github.token_env", c.GitHub.TokenEnv},
		{"corpus.path", c.Corpus.Path},
		{"readme.path", c.Readme.Path},
		{"readme.anchor", c.Readme.Anchor},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, r.key+" is required")
		}
	}

	if c.Navoiy.DeathYear < c.Navoiy.BirthYear {
		problems = append(problems, "navoiy.death_year precedes navoiy.birth_year")
	}
	if _, err := c.HTTPTimeout(); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q is not console or json", c.LogFormat))
	}

	if len(problems) > 0 {
		return errors.ValidationError("invalid configuration: "+strings.Join(problems, "; "), problems)
	}
	return nil
}

// HTTPTimeout parses github.timeout. An empty value or "0" disables it.
func (c *Config) HTTPTimeout() (time.Duration, error) {
	if c.GitHub.Timeout == "" || c.GitHub.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.GitHub.Timeout)
	if err != nil {
		return 0, fmt.Errorf("github.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("github.timeout must not be negative")
	}
	return d, nil
}

// Token reads the GitHub credential from the configured environment variable.
func (c *Config) Token() (string, error) {
	token := os.Getenv(c.GitHub.TokenEnv)
	if token == "" {
		return "", errors.Unauthorized(fmt.Sprintf("%s is not set; export %s=\"your_token_here\"", c.GitHub.TokenEnv, c.GitHub.TokenEnv))
	}
	return token, nil
}

// RepoURL is the browser URL of the corpus repository.
func (c *Config) RepoURL() string {
	return fmt.Sprintf("https://github.com/%s/%s", c.GitHub.Owner, c.GitHub.Repo)
}

// CentralURL is the browser URL of the central repository.
func (c *Config) CentralURL() string {
	return fmt.Sprintf("https://github.com/%s/%s", c.GitHub.Owner, c.GitHub.CentralRepo)
}

// Homepage is the project page on the Terra website.
func (c *Config) Homepage() string {
	return strings.TrimRight(c.Terra.Website, "/") + "/projects/navoiy-terra"
}

// CorpusExclude is corpus.exclude plus the ledger directory when the ledger
// lives inside the corpus tree.
func (c *Config) CorpusExclude() []string {
	exclude := append([]string(nil), c.Corpus.Exclude...)
	if c.Ledger.Path == "" {
		return exclude
	}

	corpus, err := filepath.Abs(c.Corpus.Path)
	if err != nil {
		return exclude
	}
	ledger, err := filepath.Abs(c.Ledger.Path)
	if err != nil {
		return exclude
	}
	rel, err := filepath.Rel(corpus, ledger)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return exclude
	}
	return append(exclude, filepath.ToSlash(rel)+"/")
}
