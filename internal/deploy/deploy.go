// Package deploy runs the publication steps in order: expand the lexicon,
// generate artifacts, ensure the repository, upload the corpus and list the
// project in the central README.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"terradeploy/internal/artifacts"
	"terradeploy/internal/config"
	"terradeploy/internal/errors"
	"terradeploy/internal/ledger"
	"terradeploy/internal/lexicon"
	"terradeploy/internal/readme"
	"terradeploy/internal/remote"
	"terradeploy/internal/mirror"
	"terradeploy/internal/watch"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Options struct {
	DryRun bool
	// Ledger records runs when set.
	Ledger *ledger.Ledger
	Now    func() time.Time
}

type Deployer struct {
	cfg    *config.Config
	remote remote.Remote
	mirror *mirror.Synchronizer
	logger *zap.Logger
	opts   Options
}

func New(cfg *config.Config, r remote.Remote, logger *zap.Logger, opts Options) *Deployer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Deployer{
		cfg:    cfg,
		remote: r,
		mirror: mirror.New(r, logger, mirror.WithExclude(cfg.CorpusExclude())),
		logger: logger,
		opts:   opts,
	}
}

// Report is the outcome of a full run.
type Report struct {
	RunID     string
	Generated []string
	Lexicon   lexicon.Stats
	Repo      *remote.Repository
	Results   []mirror.FileResult
	Readme    *readme.Result
	// ReadmeSkipped is set for dry runs.
	ReadmeSkipped bool
}

func (r *Report) Summary() mirror.Summary {
	return mirror.Summarize(r.Results)
}

func (d *Deployer) params() artifacts.Params {
	c := d.cfg
	return artifacts.Params{
		Owner:     c.GitHub.Owner,
		Repo:      c.GitHub.Repo,
		Website:   c.Terra.Website,
		Portrait:  c.Navoiy.Portrait,
		BirthYear: c.Navoiy.BirthYear,
		DeathYear: c.Navoiy.DeathYear,
		Colors: artifacts.Colors{
			Primary:   c.Terra.Colors.Primary,
			Secondary: c.Terra.Colors.Secondary,
			Accent:    c.Terra.Colors.Accent,
			Creative:  c.Terra.Colors.Creative,
		},
		Now: d.opts.Now(),
	}
}

func (d *Deployer) target() mirror.Target {
	return mirror.Target{Owner: d.cfg.GitHub.Owner, Repo: d.cfg.GitHub.Repo, Branch: d.cfg.GitHub.Branch}
}

func (d *Deployer) readmeRef() remote.FileRef {
	return remote.FileRef{
		Owner:  d.cfg.GitHub.Owner,
		Repo:   d.cfg.GitHub.CentralRepo,
		Path:   d.cfg.Readme.Path,
		Branch: d.cfg.GitHub.Branch,
	}
}

// Steps selects the parts of a run.
type Steps struct {
	Generate bool
	Upload   bool
	Readme   bool
}

var AllSteps = Steps{Generate: true, Upload: true, Readme: true}

// Run performs every step and records the run in the ledger. Per-file upload
// failures are reported in the Report, not as an error.
func (d *Deployer) Run(ctx context.Context) (*Report, error) {
	return d.RunSteps(ctx, AllSteps)
}

// RunSteps performs the selected steps in order. The README step is skipped
// on dry runs.
func (d *Deployer) RunSteps(ctx context.Context, steps Steps) (*Report, error) {
	report := &Report{RunID: uuid.New().String()}
	started := d.opts.Now()
	logger := d.logger.With(zap.String("run_id", report.RunID))
	logger.Info("Starting run",
		zap.String("repo", d.cfg.RepoURL()),
		zap.Bool("dry_run", d.opts.DryRun))

	err := d.run(ctx, logger, steps, report)
	if recErr := d.record(report, started, err); recErr != nil {
		logger.Warn("Failed to record run", zap.Error(recErr))
	}
	if err != nil {
		return report, err
	}

	sum := report.Summary()
	logger.Info("Run finished",
		zap.Int("uploaded", sum.Writes()),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("failed", sum.Failed))
	return report, nil
}

func (d *Deployer) run(ctx context.Context, logger *zap.Logger, steps Steps, report *Report) error {
	var err error

	if steps.Generate {
		report.Lexicon, report.Generated, err = d.Generate(ctx)
		if err != nil {
			return err
		}
	}

	if steps.Upload {
		report.Repo, report.Results, err = d.Upload(ctx)
		if err != nil {
			return err
		}
	}

	if !steps.Readme {
		return nil
	}
	if d.opts.DryRun {
		report.ReadmeSkipped = true
		logger.Info("Dry run, leaving central README untouched")
		return nil
	}
	report.Readme, err = d.PatchReadme(ctx)
	return err
}

// Generate expands the lexicon and writes the artifacts into the corpus.
func (d *Deployer) Generate(ctx context.Context) (lexicon.Stats, []string, error) {
	if err := ctx.Err(); err != nil {
		return lexicon.Stats{}, nil, err
	}
	corpus := d.cfg.Corpus.Path

	stats, err := lexicon.ExpandFile(corpus, d.opts.Now())
	if err != nil {
		return stats, nil, err
	}
	d.logger.Info("Expanded lexicon",
		zap.Int("terms", stats.Terms),
		zap.Int("matched", stats.Matched),
		zap.Int("languages", len(lexicon.Languages)))

	params := d.params()
	written, err := artifacts.WriteAll(corpus, params)
	if err != nil {
		return stats, written, err
	}

	page, err := os.ReadFile(filepath.Join(corpus, artifacts.PagePath))
	if err != nil {
		return stats, written, fmt.Errorf("reading generated page: %w", err)
	}
	ok, err := artifacts.LinksTo(page, params.RepoURL())
	if err != nil {
		return stats, written, err
	}
	if !ok {
		return stats, written, errors.ValidationError("generated page does not link "+params.RepoURL(), nil)
	}

	d.logger.Info("Generated artifacts", zap.Strings("files", written))
	return stats, append([]string{filepath.ToSlash(lexicon.RelPath)}, written...), nil
}

// EnsureRepository creates the corpus repository or reuses the existing one.
func (d *Deployer) EnsureRepository(ctx context.Context) (*remote.Repository, error) {
	return d.mirror.EnsureRepository(ctx, d.cfg.GitHub.Owner, remote.RepoSpec{
		Name:            d.cfg.GitHub.Repo,
		Description:     d.cfg.GitHub.Description,
		Homepage:        d.cfg.Homepage(),
		Private:         d.cfg.GitHub.Private,
		LicenseTemplate: d.cfg.GitHub.LicenseTemplate,
	})
}

// Upload ensures the repository and uploads the corpus tree.
func (d *Deployer) Upload(ctx context.Context) (*remote.Repository, []mirror.FileResult, error) {
	repo, err := d.EnsureRepository(ctx)
	if err != nil {
		return nil, nil, err
	}
	results, err := d.mirror.UploadTree(ctx, d.cfg.Corpus.Path, d.target())
	return repo, results, err
}

// PatchReadme lists the project in the central README. RunSteps keeps the
// replaced content in the ledger.
func (d *Deployer) PatchReadme(ctx context.Context) (*readme.Result, error) {
	section, err := artifacts.ReadmeSection(d.params())
	if err != nil {
		return nil, err
	}

	patcher := readme.NewPatcher(d.remote, d.readmeRef(), d.cfg.Readme.Anchor, d.logger)
	return patcher.Patch(ctx, section, d.cfg.Readme.CommitMessage)
}

// PreviewReadme returns the central README before and after patching,
// without writing.
func (d *Deployer) PreviewReadme(ctx context.Context) (before, after string, err error) {
	section, err := artifacts.ReadmeSection(d.params())
	if err != nil {
		return "", "", err
	}
	patcher := readme.NewPatcher(d.remote, d.readmeRef(), d.cfg.Readme.Anchor, d.logger)
	return patcher.Preview(ctx, section)
}

// RestoreReadme writes back the README content a recorded run replaced.
func (d *Deployer) RestoreReadme(ctx context.Context, runID string) (*remote.File, error) {
	if d.opts.Ledger == nil {
		return nil, errors.ValidationError("restoring the README needs a ledger", nil)
	}

	run, err := d.opts.Ledger.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run.Readme.Snapshot == "" {
		return nil, errors.NotFound(fmt.Sprintf("run %s did not patch the README", runID))
	}

	content, err := d.opts.Ledger.GetSnapshot(run.Readme.Snapshot)
	if err != nil {
		return nil, err
	}

	patcher := readme.NewPatcher(d.remote, d.readmeRef(), d.cfg.Readme.Anchor, d.logger)
	return patcher.Restore(ctx, content, "Restore "+d.cfg.Readme.Path+" from run "+runID)
}

// Watch keeps the repository in step with the corpus until ctx is done.
// Each created or written file is uploaded as it settles.
func (d *Deployer) Watch(ctx context.Context, onResult func(mirror.FileResult)) error {
	if _, err := d.EnsureRepository(ctx); err != nil {
		return err
	}

	matcher, err := mirror.NewMatcher(d.cfg.CorpusExclude())
	if err != nil {
		return err
	}

	corpus := d.cfg.Corpus.Path
	w, err := watch.New(corpus, d.logger, watch.WithIgnore(matcher.Match))
	if err != nil {
		return err
	}
	defer w.Close()

	d.logger.Info("Watching corpus", zap.String("root", corpus))
	err = w.Run(ctx, func(ctx context.Context, rel string) error {
		result := d.mirror.UploadFile(ctx, filepath.Join(corpus, filepath.FromSlash(rel)), rel, d.target())
		if onResult != nil {
			onResult(result)
		}
		return result.Err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Deployer) record(report *Report, started time.Time, runErr error) error {
	if d.opts.Ledger == nil {
		return nil
	}

	run := &ledger.Run{
		ID:         report.RunID,
		StartedAt:  started,
		FinishedAt: d.opts.Now(),
		DryRun:     d.opts.DryRun,
		Repo:       d.cfg.GitHub.Owner + "/" + d.cfg.GitHub.Repo,
	}
	if report.Repo != nil {
		run.RepoURL = report.Repo.HTMLURL
	}
	for _, r := range report.Results {
		rec := ledger.FileRecord{Path: r.Path, Status: string(r.Status), SHA: r.SHA, Size: r.Size}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		run.Files = append(run.Files, rec)
	}

	ref := d.readmeRef()
	run.Readme.Repo = ref.Owner + "/" + ref.Repo
	run.Readme.Path = ref.Path
	run.Readme.Branch = ref.Branch
	if report.Readme != nil {
		run.Readme.Patched = report.Readme.Written
		run.Readme.SHA = report.Readme.SHA
		if report.Readme.Written {
			hash, err := d.opts.Ledger.SaveSnapshot(report.Readme.Previous)
			if err != nil {
				return err
			}
			run.Readme.Snapshot = hash
		}
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	return d.opts.Ledger.RecordRun(run)
}
