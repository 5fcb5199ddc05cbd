package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"terradeploy/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "Secret-Uzbek", c.GitHub.Owner)
	assert.Equal(t, "Navoiy-Terra-Corpus", c.GitHub.Repo)
	assert.Equal(t, "main", c.GitHub.Branch)
	assert.Equal(t, 1501, c.Navoiy.DeathYear)
	assert.Equal(t, "## 🌱 Active Projects\n", c.Readme.Anchor)
	assert.Equal(t, "https://github.com/Secret-Uzbek/Navoiy-Terra-Corpus", c.RepoURL())
	assert.Equal(t, "https://fractal-metascience.org/projects/navoiy-terra", c.Homepage())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "json",
			file: "config.json",
			body: `{"github": {"owner": "acme", "repo": "corpus"}, "corpus": {"exclude": ["*.tmp"]}, "log_level": "debug"}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			body: "github:\n  owner: acme\n  repo: corpus\ncorpus:\n  exclude:\n    - \"*.tmp\"\nlog_level: debug\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(writeFile(t, tt.file, tt.body))
			require.NoError(t, err)

			assert.Equal(t, "acme", c.GitHub.Owner)
			assert.Equal(t, "corpus", c.GitHub.Repo)
			assert.Equal(t, []string{"*.tmp"}, c.Corpus.Exclude)
			assert.Equal(t, "debug", c.LogLevel)

			// untouched keys keep their defaults
			assert.Equal(t, "FMP-CENTRAL-REPO", c.GitHub.CentralRepo)
			assert.Equal(t, "README.md", c.Readme.Path)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "broken.json", "{"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.GitHub.Owner = ""
	c.Readme.Anchor = " "
	c.GitHub.Timeout = "soon"
	c.LogFormat = "xml"

	err := c.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "github.owner is required")
	assert.Contains(t, err.Error(), "readme.anchor is required")
	assert.Contains(t, err.Error(), "github.timeout")
	assert.Contains(t, err.Error(), "log_format")
}

func TestHTTPTimeout(t *testing.T) {
	c := Default()

	d, err := c.HTTPTimeout()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, d)

	c.GitHub.Timeout = "0"
	d, err = c.HTTPTimeout()
	require.NoError(t, err)
	assert.Zero(t, d)

	c.GitHub.Timeout = "-1s"
	_, err = c.HTTPTimeout()
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	c := Default()
	c.GitHub.TokenEnv = "TERRADEPLOY_TEST_TOKEN"

	t.Setenv("TERRADEPLOY_TEST_TOKEN", "")
	_, err := c.Token()
	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))

	t.Setenv("TERRADEPLOY_TEST_TOKEN", "ghp_secret")
	token, err := c.Token()
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", token)
}

func TestCorpusExclude(t *testing.T) {
	tests := []struct {
		name   string
		corpus string
		ledger string
		want   []string
	}{
		{
			name:   "ledger outside corpus",
			corpus: "navoiy-terra-corpus",
			ledger: filepath.Join(".terradeploy", "ledger"),
			want:   []string{"*.tmp"},
		},
		{
			name:   "ledger inside corpus",
			corpus: ".",
			ledger: filepath.Join(".terradeploy", "ledger"),
			want:   []string{"*.tmp", ".terradeploy/ledger/"},
		},
		{
			name:   "ledger disabled",
			corpus: ".",
			ledger: "",
			want:   []string{"*.tmp"},
		},
		{
			name:   "sibling with shared prefix",
			corpus: "corpus",
			ledger: filepath.Join("corpus-ledger", "db"),
			want:   []string{"*.tmp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.Corpus.Path = tt.corpus
			c.Corpus.Exclude = []string{"*.tmp"}
			c.Ledger.Path = tt.ledger

			assert.Equal(t, tt.want, c.CorpusExclude())
			assert.Equal(t, []string{"*.tmp"}, c.Corpus.Exclude)
		})
	}
}
