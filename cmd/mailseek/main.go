package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/mailseek/internal/checkpoint"
	"github.com/gotrs-io/mailseek/internal/config"
	"github.com/gotrs-io/mailseek/internal/cookies"
	"github.com/gotrs-io/mailseek/internal/feed"
	"github.com/gotrs-io/mailseek/internal/match"
	"github.com/gotrs-io/mailseek/internal/models"
	"github.com/gotrs-io/mailseek/internal/resolve"
	"github.com/gotrs-io/mailseek/internal/session"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "mailseek",
	Short: "Locate one mailbox message by subject and receipt time",
	Long: `mailseek resolves a single mailbox message from its exact subject and
approximate receipt time, optionally constrained by sender.

It consults the lightweight feed channel first and falls back to an
interactive browser session that walks a ladder of progressively broader
searches. The result is a single JSON document; not finding the message
is a reportable outcome, not a failure.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	RunE:          runResolve,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mailseek %s\n", rootCmd.Version)
	},
}

var (
	configPathFlag string

	subjectFlag    string
	senderFlag     string
	receivedAtFlag string
	receivedOnFlag string
	timezoneFlag   string
	mailboxFlag    string

	feedTimeoutFlag     time.Duration
	feedInsecureFlag    bool
	skipFeedFlag        bool
	sessionFallbackFlag bool
	injectCookiesFlag   bool
	cookieFileFlag      string
	cookieHeaderFlag    string

	headlessFlag       bool
	browserChannelFlag string
	storageStateFlag   string

	maxRowsFlag          int
	maxPagesFlag         int
	dateWindowDaysFlag   int
	hydrationTimeoutFlag time.Duration
	zeroRowRetriesFlag   int
	includeBodyFlag      bool

	outputFlag            string
	exitNonzeroOnMissFlag bool
	verboseFlag           bool
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configPathFlag, "config", "", "Optional YAML config file")

	flags.StringVar(&subjectFlag, "subject", "", "Exact subject of the message to locate (required)")
	flags.StringVar(&senderFlag, "sender", "", "Optional sender filter: email address or display name")
	flags.StringVar(&receivedAtFlag, "received-at", "", "Target receipt datetime, e.g. 2026-01-19T17:18:00")
	flags.StringVar(&receivedOnFlag, "received-on", "", "Target receipt date for date-level matching, e.g. 2026-01-19")
	flags.StringVar(&timezoneFlag, "timezone", "", "IANA timezone for interpreting times (default: system local)")
	flags.StringVar(&mailboxFlag, "mailbox", "0", "Mailbox account index")

	flags.DurationVar(&feedTimeoutFlag, "feed-timeout", 20*time.Second, "Feed request timeout")
	flags.BoolVar(&feedInsecureFlag, "feed-insecure", false, "Disable TLS verification on the feed request")
	flags.BoolVar(&skipFeedFlag, "skip-feed", false, "Skip the feed channel entirely")
	flags.BoolVar(&sessionFallbackFlag, "session-fallback", true, "Fall back to an interactive browser session")
	flags.BoolVar(&injectCookiesFlag, "inject-cookies", true, "Inject supplied cookies into the browser context")
	flags.StringVar(&cookieFileFlag, "cookie-file", "", "Netscape cookies.txt export with mailbox session cookies")
	flags.StringVar(&cookieHeaderFlag, "cookie-header", "", "Raw Cookie header value (takes precedence over --cookie-file)")

	flags.BoolVar(&headlessFlag, "headless", true, "Run the browser headless")
	flags.StringVar(&browserChannelFlag, "browser-channel", "chrome", "Browser channel; falls back to bundled chromium")
	flags.StringVar(&storageStateFlag, "storage-state", "", "Playwright storage state file with an authenticated session")

	flags.IntVar(&maxRowsFlag, "max-rows", 40, "Row budget per strategy")
	flags.IntVar(&maxPagesFlag, "max-pages", 6, "Page budget per strategy")
	flags.IntVar(&dateWindowDaysFlag, "date-window-days", 1, "Days around the target date in windowed queries")
	flags.DurationVar(&hydrationTimeoutFlag, "hydration-timeout", 7*time.Second, "List hydration wait per page")
	flags.IntVar(&zeroRowRetriesFlag, "zero-row-retries", 2, "Extra waits on an ambiguous zero-row page")
	flags.BoolVar(&includeBodyFlag, "include-body", false, "Include extracted body text in candidates")

	flags.StringVar(&outputFlag, "output", "", "Write the result JSON to this file as well as stdout")
	flags.BoolVar(&exitNonzeroOnMissFlag, "exit-nonzero-on-miss", false, "Exit with status 2 when the message is not found")
	flags.BoolVar(&verboseFlag, "verbose", false, "Verbose progress logging to stderr")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig merges the optional config file with explicit flag overrides.
// A flag only overrides the file when it was actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPathFlag)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("mailbox") {
		cfg.Mailbox = mailboxFlag
	}
	if flags.Changed("feed-timeout") {
		cfg.Feed.Timeout = feedTimeoutFlag
	}
	if flags.Changed("feed-insecure") {
		cfg.Feed.Insecure = feedInsecureFlag
	}
	if flags.Changed("skip-feed") {
		cfg.Feed.Enabled = !skipFeedFlag
	}
	if flags.Changed("session-fallback") {
		cfg.Session.Enabled = sessionFallbackFlag
	}
	if flags.Changed("inject-cookies") {
		cfg.Session.InjectCookies = injectCookiesFlag
	}
	if flags.Changed("headless") {
		cfg.Session.Headless = headlessFlag
	}
	if flags.Changed("browser-channel") {
		cfg.Session.Channel = browserChannelFlag
	}
	if flags.Changed("storage-state") {
		cfg.Session.StorageState = storageStateFlag
	}
	if flags.Changed("max-rows") {
		cfg.Scan.MaxRows = maxRowsFlag
	}
	if flags.Changed("max-pages") {
		cfg.Scan.MaxPages = maxPagesFlag
	}
	if flags.Changed("date-window-days") {
		cfg.Scan.DateWindowDays = dateWindowDaysFlag
	}
	if flags.Changed("hydration-timeout") {
		cfg.Scan.HydrationTimeout = hydrationTimeoutFlag
	}
	if flags.Changed("zero-row-retries") {
		cfg.Scan.ZeroRowRetries = zeroRowRetriesFlag
	}
	if flags.Changed("include-body") {
		cfg.Scan.IncludeBody = includeBodyFlag
	}
	if flags.Changed("output") {
		cfg.Output.Path = outputFlag
	}
	if flags.Changed("exit-nonzero-on-miss") {
		cfg.Output.ExitNonzeroOnMiss = exitNonzeroOnMissFlag
	}
	if flags.Changed("verbose") {
		cfg.Output.Verbose = verboseFlag
	}
	return cfg, nil
}

// buildTarget validates the time inputs and assembles the immutable match
// target. Exactly one of --received-at and --received-on must be given;
// a date-only target anchors its instant at local noon so windowed
// queries center correctly.
func buildTarget() (models.MatchTarget, error) {
	var target models.MatchTarget
	if subjectFlag == "" {
		return target, errors.New("--subject is required")
	}
	if (receivedAtFlag == "") == (receivedOnFlag == "") {
		return target, errors.New("exactly one of --received-at or --received-on is required")
	}

	loc := time.Local
	if timezoneFlag != "" {
		parsed, err := time.LoadLocation(timezoneFlag)
		if err != nil {
			return target, fmt.Errorf("invalid --timezone %q: %w", timezoneFlag, err)
		}
		loc = parsed
	}

	target.Subject = subjectFlag
	target.Sender = senderFlag
	target.Zone = loc
	if receivedAtFlag != "" {
		instant, err := match.ParseTargetInstant(receivedAtFlag, loc)
		if err != nil {
			return target, err
		}
		y, m, d := instant.In(loc).Date()
		target.Granularity = models.GranularityMinute
		target.Instant = instant
		target.Date = time.Date(y, m, d, 0, 0, 0, 0, loc)
		return target, nil
	}

	date, err := match.ParseTargetDate(receivedOnFlag, loc)
	if err != nil {
		return target, err
	}
	target.Granularity = models.GranularityDay
	target.Date = date
	target.Instant = date.Add(12 * time.Hour)
	return target, nil
}

// loadCookies parses whatever session-cookie material was supplied. The
// raw header wins over the file when both are present.
func loadCookies() ([]cookies.Cookie, error) {
	if cookieHeaderFlag != "" {
		return cookies.ParseHeader(cookieHeaderFlag), nil
	}
	if cookieFileFlag != "" {
		parsed, err := cookies.LoadNetscapeFile(cookieFileFlag)
		if err != nil {
			return nil, err
		}
		return cookies.GoogleOnly(parsed), nil
	}
	return nil, nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	target, err := buildTarget()
	if err != nil {
		return err
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)
	verbose := cfg.Output.Verbose

	cookieSet, err := loadCookies()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var feedChannel resolve.FeedChannel
	if cfg.Feed.Enabled && len(cookieSet) > 0 {
		jar, err := cookies.Jar(cookieSet)
		if err != nil {
			return fmt.Errorf("could not build cookie jar: %w", err)
		}
		feedOpts := []feed.Option{
			feed.WithTimeout(cfg.Feed.Timeout),
			feed.WithLogger(logger),
			feed.WithVerbose(verbose),
		}
		if cfg.Feed.UserAgent != "" {
			feedOpts = append(feedOpts, feed.WithUserAgent(cfg.Feed.UserAgent))
		}
		feedChannel = feed.NewClient(jar, feedOpts...)
	}

	var runner resolve.StrategyRunner
	var browser *session.Browser
	if cfg.Session.Enabled {
		browserOpts := session.BrowserOptions{
			Headless:         cfg.Session.Headless,
			Channel:          cfg.Session.Channel,
			StorageStatePath: cfg.Session.StorageState,
			DefaultTimeout:   cfg.Session.DefaultTimeout,
		}
		if cfg.Session.InjectCookies {
			browserOpts.Cookies = cookies.Playwright(cookieSet)
		}
		browser, err = session.Launch(browserOpts, logger, verbose)
		if err != nil {
			logger.Printf("interactive channel unavailable: %v", err)
		} else {
			defer browser.Close()
			if err := browser.OpenMailbox(cfg.Mailbox); err != nil {
				logger.Printf("interactive channel unavailable: %v", err)
			} else {
				runner = session.NewScanner(browser.Surface(), cfg.Mailbox, session.ScanPolicy{
					MaxRows:          cfg.Scan.MaxRows,
					MaxPages:         cfg.Scan.MaxPages,
					HydrationTimeout: cfg.Scan.HydrationTimeout,
					ZeroRowRetries:   cfg.Scan.ZeroRowRetries,
					ZeroRowRefreshes: cfg.Scan.ZeroRowRefreshes,
					IncludeBody:      cfg.Scan.IncludeBody,
				}, session.WithLogger(logger), session.WithVerbose(verbose))
			}
		}
	}

	var sink checkpoint.Sink = checkpoint.Nop{}
	var fileSink *checkpoint.FileSink
	if cfg.Output.Path != "" {
		fileSink = checkpoint.NewFileSink(cfg.Output.Path + ".partial.json")
		sink = fileSink
	}

	resolver := resolve.New(feedChannel, runner, resolve.Options{
		Mailbox:         cfg.Mailbox,
		WindowDays:      cfg.Scan.DateWindowDays,
		FeedInsecure:    cfg.Feed.Insecure,
		SkipFeed:        !cfg.Feed.Enabled,
		SessionFallback: cfg.Session.Enabled && runner != nil,
		MaxStrategies:   cfg.Scan.MaxStrategies,
	}, resolve.WithSink(sink), resolve.WithLogger(logger), resolve.WithVerbose(verbose))

	result := resolver.Resolve(ctx, target)

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode result: %w", err)
	}
	fmt.Println(string(payload))
	if cfg.Output.Path != "" {
		if err := os.WriteFile(cfg.Output.Path, append(payload, '\n'), 0o644); err != nil {
			return fmt.Errorf("could not write result file: %w", err)
		}
	}
	fileSink.Remove()

	if !result.Found && cfg.Output.ExitNonzeroOnMiss {
		os.Exit(2)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
