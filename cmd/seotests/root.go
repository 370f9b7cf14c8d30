package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/checks"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/config"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/logging"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/report"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/runner"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/session"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/steps"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// errChecksFailed makes the process exit with status 2 when the run
// completed but at least one check failed.
var errChecksFailed = errors.New("one or more checks failed")

// cliFlags holds command-line configuration
type cliFlags struct {
	configFile string
	url        string
	batch      string
	output     string
	headless   bool
	only       []string
	checks     []string
	verbosity  string
	reports    []string
}

type rootCommand struct {
	ctx    context.Context
	fs     afero.Fs
	stdin  io.Reader
	stdout io.Writer
	flags  cliFlags
	cmd    *cobra.Command
}

func newRootCommand(ctx context.Context, fs afero.Fs, stdin io.Reader, stdout io.Writer) *cobra.Command {
	c := &rootCommand{ctx: ctx, fs: fs, stdin: stdin, stdout: stdout}

	c.cmd = &cobra.Command{
		Use:   "seotests",
		Short: "Run SEO page checks through Google's page tools",
		Long: `Run SEO page checks through Google's page tools.

  Every page is checked with PageSpeed Insights, a JavaScript on/off render
  comparison, the Mobile-Friendly Test and the Search Console URL inspection.
  Pages come from a config file, a batch file of "label: url" lines or a
  single --url.`,
		Example: `  seotests --url https://example.com/
  seotests -c seotests.yaml --checks 'js_*' --report summary,pdf
  seotests -b pages.txt --only 'Product*' --headless`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          c.run,
	}
	c.cmd.SetIn(stdin)
	c.cmd.SetOut(stdout)
	c.cmd.PersistentFlags().AddFlagSet(c.flagSet())
	c.cmd.AddCommand(c.loginCommand())
	return c.cmd
}

func (c *rootCommand) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringVarP(&c.flags.configFile, "config", "c", "", "path to a YAML configuration file")
	flags.StringVarP(&c.flags.url, "url", "u", "", "check a single URL (label "+config.SingleURLLabel+")")
	flags.StringVarP(&c.flags.batch, "batch", "b", "", `file of "label: url" lines`)
	flags.StringVarP(&c.flags.output, "output", "o", "", "output directory for screenshots and reports")
	flags.BoolVar(&c.flags.headless, "headless", false, "run the browser without a window")
	flags.StringSliceVar(&c.flags.only, "only", nil, "only check pages whose label matches a glob")
	flags.StringSliceVar(&c.flags.checks, "checks", nil, "only run checks whose name matches a glob")
	flags.StringVar(&c.flags.verbosity, "verbosity", "", "quiet, normal, verbose or debug")
	flags.StringSliceVar(&c.flags.reports, "report", nil, "report sinks: summary, csv, pdf")
	return flags
}

func (c *rootCommand) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to Google and store the browser session",
		Long: `Sign in to Google and store the browser session.

  The URL inspection check needs a signed-in Search Console session. login
  opens the sign-in page, waits for you to sign in and stores the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig(cmd.Flags(), false)
			if err != nil {
				return err
			}
			logger := logrus.New()

			manager := browser.NewSessionManager(browser.LaunchOptions{
				SlowMo:         cfg.Browser.SlowMo,
				DefaultTimeout: cfg.Browser.DefaultTimeout,
			})
			if err := manager.Start(); err != nil {
				return err
			}
			defer manager.Shutdown() //nolint:errcheck

			store := session.NewStore(c.fs, cfg.SessionFile, logger)
			if err := store.Ensure(c.ctx, manager, steps.NewConsoleOperator(c.stdin, c.stdout)); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Session stored in %s\n", store.Path())
			return nil
		},
	}
}

func (c *rootCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig(cmd.Flags(), true)
	if err != nil {
		return err
	}

	targets, err := cfg.Targets()
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no pages match --only")
	}

	console := runner.NewConsole(c.stdout, runner.ParseLevel(cfg.Logging.Verbosity))

	runID := logging.NewRunID()
	logger, err := logging.New(c.fs, cfg.Logging.Dir, runID, cfg.Logging.Verbosity)
	if err != nil {
		console.Warningf("%v; logging to stderr", err)
	}
	defer logger.Close()
	log := logger.Run()

	manager := browser.NewSessionManager(browser.LaunchOptions{
		Headless:       cfg.Browser.Headless,
		SlowMo:         cfg.Browser.SlowMo,
		DefaultTimeout: cfg.Browser.DefaultTimeout,
	})
	operator := steps.NewConsoleOperator(c.stdin, c.stdout)

	list, err := buildChecks(cfg, checks.Deps{
		Browser:          manager,
		Fs:               c.fs,
		Operator:         operator,
		Log:              log,
		ScreenshotDir:    cfg.ScreenshotDir(),
		StorageStatePath: cfg.SessionFile,
	})
	if err != nil {
		return err
	}

	sink, err := buildSinks(c.fs, cfg)
	if err != nil {
		return err
	}

	orchestrator, err := runner.New(runner.Options{
		Launcher: manager,
		Browser:  manager,
		Checks:   list,
		Session:  session.NewStore(c.fs, cfg.SessionFile, log),
		Operator: operator,
		Sink:     sink,
		Console:  console,
		Log:      log,
		RunID:    runID,
	})
	if err != nil {
		return err
	}

	rep, err := orchestrator.Run(c.ctx, targets)
	if err != nil {
		return err
	}
	if rep.Overall() == types.VerdictFailed {
		return errChecksFailed
	}
	return nil
}

// loadConfig reads the config file and applies the flags that were set.
// Pages are required for a run but not for login.
func (c *rootCommand) loadConfig(flags *pflag.FlagSet, needPages bool) (*config.Config, error) {
	cfg := config.Default()
	if c.flags.configFile != "" {
		loaded, err := config.Load(c.fs, c.flags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	switch {
	case c.flags.url != "" && c.flags.batch != "":
		return nil, errors.New("--url and --batch are mutually exclusive")
	case c.flags.url != "":
		cfg.Pages = config.SinglePage(c.flags.url)
	case c.flags.batch != "":
		f, err := c.fs.Open(c.flags.batch)
		if err != nil {
			return nil, fmt.Errorf("failed to open batch file: %w", err)
		}
		pages, err := config.LoadBatch(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		cfg.Pages = pages
	}

	if flags.Changed("output") {
		if cfg.Logging.Dir == filepath.Join(cfg.Output.Dir, "logs") {
			cfg.Logging.Dir = filepath.Join(c.flags.output, "logs")
		}
		cfg.Output.Dir = c.flags.output
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = c.flags.headless
	}
	if flags.Changed("only") {
		cfg.OnlyPages = c.flags.only
	}
	if flags.Changed("checks") {
		cfg.OnlyChecks = c.flags.checks
	}
	if flags.Changed("verbosity") {
		cfg.Logging.Verbosity = c.flags.verbosity
	}
	if flags.Changed("report") {
		cfg.Output.Reports = c.flags.reports
	}

	if !needPages {
		return cfg, nil
	}
	if len(cfg.Pages) == 0 {
		return nil, errors.New("no pages to check: use --config, --batch or --url")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func buildChecks(cfg *config.Config, deps checks.Deps) ([]runner.Check, error) {
	kinds, err := cfg.Kinds()
	if err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		return nil, errors.New("no checks selected")
	}

	list := make([]runner.Check, 0, len(kinds))
	for _, kind := range kinds {
		def, settings, err := cfg.Definition(kind)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", kind, err)
		}
		m, err := checks.New(def, settings, deps)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, nil
}

func buildSinks(fs afero.Fs, cfg *config.Config) (report.Multi, error) {
	dir := cfg.ResultsDir()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	var sinks report.Multi
	for _, name := range cfg.Output.Reports {
		switch name {
		case config.ReportSummary:
			sinks = append(sinks, report.NewSummary(fs, dir))
		case config.ReportCSV:
			sinks = append(sinks, report.NewCSVLog(fs, filepath.Join(dir, report.DefaultCSVName)))
		case config.ReportPDF:
			sinks = append(sinks, report.NewPDFBundle(fs, filepath.Join(dir, report.DefaultPDFName)))
		}
	}
	return sinks, nil
}
