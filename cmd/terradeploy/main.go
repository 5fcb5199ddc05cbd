// cmd/terradeploy/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"terradeploy/internal/config"
	"terradeploy/internal/deploy"
	"terradeploy/internal/ledger"
	"terradeploy/internal/logging"
	"terradeploy/internal/readme"
	"terradeploy/internal/remote"
	"terradeploy/internal/mirror"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagConfig      string
	flagCorpus      string
	flagLogLevel    string
	flagLogFormat   string
	flagDryRun      bool
	flagFailOnError bool
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "terradeploy",
	Short: "Publish the Navoiy-Terra corpus to GitHub",
	Long: `terradeploy expands the corpus lexicon, generates the Terra project page and
badge, uploads the corpus to its GitHub repository and lists the project in
the central README.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// app holds what every command needs.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	ledger *ledger.Ledger
	remote remote.Remote
}

func (a *app) close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("closing ledger", zap.Error(err))
		}
	}
	a.logger.Sync()
}

func (a *app) deployer() *deploy.Deployer {
	return deploy.New(a.cfg, a.remote, a.logger.Logger, deploy.Options{
		DryRun: flagDryRun,
		Ledger: a.ledger,
	})
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = *loaded
	}

	if flagCorpus != "" {
		cfg.Corpus.Path = flagCorpus
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setup builds the app. needRemote opens the GitHub client, or the in-memory
// remote on dry runs.
func setup(ctx context.Context, needRemote bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}

	if cfg.Ledger.Path != "" && !flagDryRun {
		a.ledger, err = ledger.Open(ledger.Options{Path: cfg.Ledger.Path})
		if err != nil {
			return nil, err
		}
	}

	if !needRemote {
		return a, nil
	}
	if flagDryRun {
		a.remote = remote.NewMemory(cfg.GitHub.Owner)
		return a, nil
	}

	token, err := cfg.Token()
	if err != nil {
		a.close()
		return nil, err
	}
	timeout, err := cfg.HTTPTimeout()
	if err != nil {
		a.close()
		return nil, err
	}
	a.remote, err = remote.NewGitHub(ctx, remote.GitHubOptions{
		Token:   token,
		BaseURL: cfg.GitHub.BaseURL,
		Timeout: timeout,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func printResult(r mirror.FileResult) {
	switch r.Status {
	case mirror.StatusCreated, mirror.StatusUpdated:
		fmt.Printf("  %s %s\n", green("✓"), r.Path)
	case mirror.StatusUnchanged:
		fmt.Printf("  %s %s\n", cyan("="), r.Path)
	case mirror.StatusFailed:
		fmt.Printf("  %s %s: %v\n", red("✗"), r.Path, r.Err)
	}
}

func printReport(a *app, report *deploy.Report) error {
	if len(report.Generated) > 0 {
		fmt.Println(bold("Generated"))
		for _, p := range report.Generated {
			fmt.Printf("  %s %s\n", green("✓"), p)
		}
	}

	if report.Repo != nil {
		fmt.Printf("%s %s\n", bold("Repository"), report.Repo.HTMLURL)
		for _, r := range report.Results {
			printResult(r)
		}
		sum := report.Summary()
		fmt.Printf("%d uploaded, %d unchanged, %d failed\n", sum.Writes(), sum.Unchanged, sum.Failed)
	}

	switch {
	case report.ReadmeSkipped:
		fmt.Printf("%s central README left untouched (dry run)\n", cyan("="))
	case report.Readme != nil && report.Readme.Written:
		fmt.Printf("%s %s updated\n", green("✓"), a.cfg.CentralURL())
	case report.Readme != nil:
		fmt.Printf("%s %s already lists the project\n", cyan("="), a.cfg.CentralURL())
	}

	if a.ledger != nil {
		a.logger.WithRun(report.RunID).Debug("Run recorded")
		fmt.Printf("run %s\n", report.RunID)
	}

	if flagFailOnError && report.Summary().Failed > 0 {
		return fmt.Errorf("%d file(s) failed to upload", report.Summary().Failed)
	}
	return nil
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			header.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func runSteps(steps deploy.Steps, needRemote bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), needRemote)
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.deployer().RunSteps(cmd.Context(), steps)
		if report != nil {
			if perr := printReport(a, report); perr != nil && err == nil {
				err = perr
			}
		}
		return err
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&flagCorpus, "corpus", "", "Corpus directory")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Upload to an in-memory remote and skip the README")

	var deployCmd = &cobra.Command{
		Use:   "deploy",
		Short: "Run every step",
		RunE:  runSteps(deploy.AllSteps, true),
	}

	var generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Expand the lexicon and write the page, badge and docs",
		RunE:  runSteps(deploy.Steps{Generate: true}, false),
	}

	var uploadCmd = &cobra.Command{
		Use:   "upload",
		Short: "Ensure the repository and upload the corpus",
		RunE:  runSteps(deploy.Steps{Upload: true}, true),
	}

	var patchCmd = &cobra.Command{
		Use:   "patch-readme",
		Short: "List the project in the central README",
		RunE: func(cmd *cobra.Command, args []string) error {
			preview, _ := cmd.Flags().GetBool("preview")
			if !preview {
				return runSteps(deploy.Steps{Readme: true}, true)(cmd, args)
			}
			if flagDryRun {
				return fmt.Errorf("--preview reads the live README and cannot be combined with --dry-run")
			}

			a, err := setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			before, after, err := a.deployer().PreviewReadme(cmd.Context())
			if err != nil {
				return err
			}
			hunks := readme.LineDiff(before, after, 3)
			if len(hunks) == 0 {
				fmt.Println("No changes")
				return nil
			}
			printColoredDiff(readme.Format(hunks))
			return nil
		},
	}
	patchCmd.Flags().Bool("preview", false, "Show the change as a diff without writing")

	var restoreCmd = &cobra.Command{
		Use:   "restore-readme",
		Short: "Write back the README a recorded run replaced",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run")
			if runID == "" {
				return fmt.Errorf("specify the run with --run")
			}

			a, err := setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := a.deployer().RestoreReadme(cmd.Context(), runID)
			if err != nil {
				return fmt.Errorf("restoring README: %w", err)
			}
			fmt.Printf("%s %s restored (%s)\n", green("✓"), a.cfg.Readme.Path, f.SHA[:min(len(f.SHA), 12)])
			return nil
		},
	}
	restoreCmd.Flags().String("run", "", "Run ID")

	var historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			if a.ledger == nil {
				return fmt.Errorf("no ledger configured")
			}
			runs, err := a.ledger.ListRuns()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded")
				return nil
			}

			limit, _ := cmd.Flags().GetInt("limit")
			for i, run := range runs {
				if limit > 0 && i >= limit {
					break
				}
				mark := green("✓")
				if run.Error != "" {
					mark = red("✗")
				}
				patched := "-"
				if run.Readme.Patched {
					patched = "readme"
				}
				fmt.Printf("%s %s  %s  %d files (%d failed)  %s\n",
					mark,
					run.ID[:8],
					run.StartedAt.Local().Format(time.RFC3339),
					len(run.Files),
					run.Failed(),
					patched,
				)
				if run.Error != "" {
					fmt.Printf("    %s\n", red(run.Error))
				}
			}
			return nil
		},
	}
	historyCmd.Flags().IntP("limit", "n", 20, "Show at most this many runs")

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Upload corpus files as they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Printf("Watching %s (Ctrl-C to stop)\n", a.cfg.Corpus.Path)
			return a.deployer().Watch(cmd.Context(), printResult)
		},
	}

	for _, cmd := range []*cobra.Command{deployCmd, uploadCmd} {
		cmd.Flags().BoolVar(&flagFailOnError, "fail-on-error", false, "Exit non-zero when any file fails to upload")
	}

	rootCmd.AddCommand(deployCmd, generateCmd, uploadCmd, patchCmd, restoreCmd, historyCmd, watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("✗"), err)
		stop()
		os.Exit(1)
	}
}
