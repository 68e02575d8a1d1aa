package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nsupdates/internal/check"
	"github.com/3leaps/nsupdates/internal/config"
	"github.com/3leaps/nsupdates/internal/host/citrix"
	"github.com/3leaps/nsupdates/internal/host/netscaler"
	"github.com/3leaps/nsupdates/internal/logging"
	"github.com/3leaps/nsupdates/internal/metrics"
	"github.com/3leaps/nsupdates/internal/model"
	"github.com/3leaps/nsupdates/pkg/nsupdate"
)

// Version is reported by --version and in the User-Agent. Set by main.
var Version = "dev"

const longHelp = `Checks whether a NetScaler (Citrix ADC) appliance runs the latest build of its
release line, as announced in the public Citrix download feed.

With --url the appliance is queried through its NITRO API. With positional
hostnames each host's public /vpn/pluginlist.xml is checked instead (legacy mode).

Exit codes: 0 OK, 1 WARNING (update available), 2 CRITICAL (appliance
unreachable or error response), 3 UNKNOWN.`

// Run is the program entrypoint. It never calls os.Exit so tests can drive it.
func Run(args []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), args, os.LookupEnv, stdout, stderr)
}

// RunContext is Run with an explicit context and environment lookup.
func RunContext(ctx context.Context, args []string, env config.LookupFunc, stdout, stderr io.Writer) int {
	code := nsupdate.SeverityOK.ExitCode()
	root := newRootCommand(env, stdout, stderr, &code)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return usageError(stdout, err)
	}
	return code
}

func newRootCommand(env config.LookupFunc, stdout, stderr io.Writer, code *int) *cobra.Command {
	root := &cobra.Command{
		Use:               "check_nsupdates [flags] [host...]",
		Short:             "Check NetScaler appliances for available firmware updates",
		Long:              longHelp,
		Args:              cobra.ArbitraryArgs,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolve(cmd, env, args, true)
			if err != nil {
				return err
			}
			*code = runCheck(cmd.Context(), cfg, stdout, stderr)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	config.Bind(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "catalog",
		Short: "Print the latest announced build of every release line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolve(cmd, env, nil, false)
			if err != nil {
				return err
			}
			*code = runCatalog(cmd.Context(), cfg, stdout, stderr)
			return nil
		},
	})
	return root
}

func resolve(cmd *cobra.Command, env config.LookupFunc, args []string, requireTarget bool) (*config.Config, error) {
	cfg, err := config.Resolve(cmd.Flags(), env, args)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(requireTarget); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCheck(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) int {
	log := logging.New(stderr, cfg.Verbose)
	defer func() { _ = log.Sync() }()

	checker, m, err := newChecker(cfg, log)
	if err != nil {
		return usageError(stdout, err)
	}
	log.Debugw("starting check", "mode", cfg.Mode(), "version", Version)

	if err := checker.LoadCatalog(ctx, cfg.FeedSource()); err == nil {
		switch cfg.Mode() {
		case model.ModeLegacy:
			checker.CheckLegacy(ctx, cfg.Hosts)
		default:
			checker.CheckNITRO(ctx, cfg.URL, cfg.Credentials())
		}
	}

	if m != nil {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Errorw("write metrics textfile", "path", cfg.MetricsFile, "error", err)
		}
	}
	return checker.Summary().Write(stdout)
}

func runCatalog(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) int {
	log := logging.New(stderr, cfg.Verbose)
	defer func() { _ = log.Sync() }()

	checker, _, err := newChecker(cfg, log)
	if err != nil {
		return usageError(stdout, err)
	}
	if err := checker.LoadCatalog(ctx, cfg.FeedSource()); err != nil {
		return checker.Summary().Write(stdout)
	}
	for _, v := range checker.Catalog().Versions() {
		fmt.Fprintln(stdout, v.String())
	}
	return nsupdate.SeverityOK.ExitCode()
}

func newChecker(cfg *config.Config, log *zap.SugaredLogger) (*check.Checker, *metrics.Metrics, error) {
	ua := citrix.UserAgent(Version)
	feed := citrix.NewClient(
		citrix.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		citrix.WithUserAgent(ua),
	)
	targets, err := netscaler.NewClient(
		netscaler.WithHTTPClient(netscaler.NewHTTPClient(cfg.Timeout, cfg.VerifyTLS)),
		netscaler.WithUserAgent(ua),
	)
	if err != nil {
		return nil, nil, err
	}

	opts := []check.Option{
		check.WithLineFilter(cfg.LineFilter),
		check.WithTimeout(cfg.Timeout),
		check.WithHostInterval(cfg.HostInterval),
	}
	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New()
		opts = append(opts, check.WithObserver(m))
	}
	return check.New(feed, targets, log, opts...), m, nil
}

func usageError(w io.Writer, err error) int {
	res := nsupdate.Result{Severity: nsupdate.SeverityUnknown, Message: err.Error()}
	fmt.Fprintln(w, res.Line())
	return res.Severity.ExitCode()
}
