package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chr1sbest/imagebatch/internal/banner"
	"github.com/chr1sbest/imagebatch/internal/browser"
	"github.com/chr1sbest/imagebatch/internal/config"
	"github.com/chr1sbest/imagebatch/internal/download"
	"github.com/chr1sbest/imagebatch/internal/engine"
	"github.com/chr1sbest/imagebatch/internal/hostpage"
	"github.com/chr1sbest/imagebatch/internal/logger"
	"github.com/chr1sbest/imagebatch/internal/resilience"
	"github.com/chr1sbest/imagebatch/internal/status"
	"github.com/chr1sbest/imagebatch/internal/task"
	"github.com/chr1sbest/imagebatch/internal/tracker"
)

type runOptions struct {
	tasksFile  string
	prefix     string
	hasPrefix  bool
	configFile string
	stateDir   string
	envFile    string
	driver     string
	remoteURL  string
	headless   bool
	onError    string
	debug      bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [tasks-file]",
		Short: "Generate and download images for every prompt in a task file",
		Long: `Run processes the prompts of a task file one at a time. The first Ctrl-C
stops after the current prompt; a second one aborts at once. 'imagebatch
stop' from another terminal does the same as the first Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.tasksFile = args[0]
			}
			opts.hasPrefix = cmd.Flags().Changed("prefix")
			return runBatch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.tasksFile, "tasks", "t", "", "Task file (.txt, .json, .yaml)")
	f.StringVarP(&opts.prefix, "prefix", "p", "", "Common prompt prefix (overrides the task file)")
	f.StringVarP(&opts.configFile, "config", "c", "", "Config file (default: imagebatch.yaml in the current directory)")
	f.StringVar(&opts.stateDir, "state-dir", defaultStateDir, "Directory for run state, lock and logs")
	f.StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before the config")
	f.StringVar(&opts.driver, "driver", "", "Browser driver: chromedp or rod")
	f.StringVar(&opts.remoteURL, "remote", "", "DevTools URL of a running Chrome to attach to")
	f.BoolVar(&opts.headless, "headless", false, "Launch Chrome headless")
	f.StringVar(&opts.onError, "on-error", "", "Failure policy: abort or skip")
	f.BoolVar(&opts.debug, "debug", false, "Log debug output to stderr")
	return cmd
}

func runBatch(ctx context.Context, out io.Writer, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.tasksFile == "" {
		return errors.New("no task file given (use --tasks or a positional argument)")
	}

	if err := config.LoadEnv(opts.envFile); err != nil {
		return err
	}
	cfg, cfgPath, err := loadRunConfig(opts)
	if err != nil {
		return err
	}

	list, filePrefix, err := task.LoadFile(opts.tasksFile)
	if err != nil {
		return err
	}
	if list.Len() == 0 {
		return fmt.Errorf("%s contains no prompts", opts.tasksFile)
	}
	prefix := filePrefix
	if opts.hasPrefix {
		prefix = opts.prefix
	}
	form := list.Form(prefix)

	trk := tracker.NewWriter(opts.stateDir)
	if err := trk.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	log, closeLog, err := newRunLogger(cfg, opts)
	if err != nil {
		return err
	}
	defer closeLog()
	for _, name := range cfg.UnresolvedEnv() {
		log.Warn("Config references unset variable", logger.F("name", name))
	}

	runID := tracker.NewRunID()
	releaseLock, err := trk.AcquireLock(runID)
	if err != nil {
		return err
	}
	defer func() { _ = releaseLock() }()
	_ = trk.ClearStop()

	banner.NewWithWriter(out).Print(cfg, len(form.Items), shortVersion())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := browser.Open(ctx, browser.Options{
		Driver:      cfg.Browser.Driver,
		RemoteURL:   cfg.Browser.RemoteURL,
		Headless:    cfg.Browser.Headless,
		UserDataDir: cfg.Browser.UserDataDir,
		HostURL:     cfg.Browser.HostURL,
	}, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	saver := download.New(cfg.DownloadDir, newFetcher(cfg.Browser, sess.Page), log)

	progress := status.NewWithWriter(out)
	recorder := tracker.NewRecorder(trk, runID, log)
	runner := engine.NewRunner(sess.Page, saver, log,
		engine.WithSelectors(cfg.ResolvedSelectors()),
		engine.WithTiming(timingFrom(cfg.Timing)),
		engine.WithFailurePolicy(engine.FailurePolicy(cfg.FailurePolicy)),
		engine.WithObserver(engine.Observers{progress, recorder}),
	)

	requestStop := func() {
		runner.Stop()
		recorder.CancelRequested()
		progress.Stopping()
	}

	stopWatch, err := trk.WatchStop(ctx, func() {
		log.Info("Stop requested from state directory")
		requestStop()
	})
	if err != nil {
		log.Warn("Stop requests from other terminals are disabled", logger.F("error", err))
	} else {
		defer stopWatch.Close()
	}

	if cfgPath != "" {
		watchConfig(ctx, cfgPath, runner, log)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		requestStop()
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	err = runner.Start(ctx, form)
	_ = trk.ClearStop()
	switch {
	case errors.Is(err, context.Canceled):
		return errors.New("run aborted")
	case err != nil:
		return err
	}
	fmt.Fprintf(out, "Images saved to %s\n", saver.Dir())
	return nil
}

// loadRunConfig loads the config named by --config, or the default one in
// the current directory, and applies the command line overrides.
func loadRunConfig(opts *runOptions) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if opts.configFile != "" {
		path = opts.configFile
		cfg, err = config.NewLoader(filepath.Dir(path)).LoadFile(path)
	} else {
		cfg, path, err = config.NewLoader(".").LoadDefault()
	}
	if err != nil {
		return nil, "", err
	}

	if opts.driver != "" {
		cfg.Browser.Driver = opts.driver
	}
	if opts.remoteURL != "" {
		cfg.Browser.RemoteURL = opts.remoteURL
	}
	if opts.headless {
		cfg.Browser.Headless = true
	}
	if opts.onError != "" {
		cfg.FailurePolicy = opts.onError
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}

	if err := config.ValidateConfig(cfg); err != nil {
		if path != "" {
			return nil, "", fmt.Errorf("config validation failed for %s:\n%w", path, err)
		}
		return nil, "", err
	}
	return cfg, path, nil
}

// newRunLogger logs to the configured file, or run.log in the state
// directory. --debug also mirrors the log to stderr.
func newRunLogger(cfg *config.Config, opts *runOptions) (logger.Logger, func(), error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	path := cfg.LogFile
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(opts.stateDir, "run.log")
	}
	fileLog, err := logger.NewFileLogger(path, level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	closeLog := func() { _ = fileLog.Close() }
	if !opts.debug {
		return fileLog, closeLog, nil
	}
	return logger.NewMultiLogger(fileLog, logger.NewWriterLogger(os.Stderr, level)), closeLog, nil
}

// newFetcher builds the image source for the configured fetch mode. In auto
// mode the direct path is a fallback behind a circuit breaker.
func newFetcher(b config.BrowserConfig, doc hostpage.Document) download.Fetcher {
	page := download.PageFetcher{Doc: doc}
	direct := download.NewHTTPFetcher(b.GetHTTPTimeout())
	switch b.Fetch {
	case "page":
		return page
	case "http":
		return direct
	default:
		guarded := download.Guarded{
			Fetcher: direct,
			Breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		}
		return download.Chain{page, guarded}
	}
}

func timingFrom(t config.TimingConfig) engine.Timing {
	return engine.Timing{
		ElementTimeout:   t.GetElementTimeout(),
		PollInterval:     t.GetPollInterval(),
		ImageIterations:  t.GetImageIterations(),
		DetailIterations: t.GetDetailIterations(),
		SettleDelay:      t.GetSettleDelay(),
	}
}

// watchConfig applies selector and timing edits to the running batch. They
// take effect from the next item.
func watchConfig(ctx context.Context, path string, runner *engine.Runner, log logger.Logger) {
	w, err := config.NewWatcher(config.NewLoader(filepath.Dir(path)), path)
	if err != nil {
		log.Warn("Config reload disabled", logger.F("error", err))
		return
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		log.Warn("Config reload disabled", logger.F("error", err))
		return
	}
	go func() {
		defer w.Stop()
		for ev := range w.Events() {
			if ev.Error != nil {
				log.Warn("Config reload failed, keeping previous settings", logger.F("error", ev.Error))
				continue
			}
			runner.SetSelectors(ev.Config.ResolvedSelectors())
			runner.SetTiming(timingFrom(ev.Config.Timing))
			log.Info("Config reloaded", logger.F("path", ev.Path))
		}
	}()
}
