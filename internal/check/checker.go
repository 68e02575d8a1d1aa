package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/nsupdates/internal/host/netscaler"
	"github.com/3leaps/nsupdates/internal/model"
	"github.com/3leaps/nsupdates/pkg/nsupdate"
)

const (
	defaultTimeout = 10 * time.Second
	maxQuotedText  = 120
)

// FeedSource supplies announcement titles, newest first.
type FeedSource interface {
	Titles(ctx context.Context, src model.FeedSource) ([]string, error)
}

// TargetSource supplies the raw version text of an appliance.
type TargetSource interface {
	NSVersion(ctx context.Context, baseURL string, creds netscaler.Credentials) (string, error)
	PluginList(ctx context.Context, host string) (string, error)
}

// Observer is notified as the run progresses; metrics implement it.
type Observer interface {
	CatalogLoaded(lines int)
	Evaluated(target string, installed, latest nsupdate.Version)
	Recorded(res nsupdate.Result)
}

type Option func(*Checker)

func WithObserver(o Observer) Option {
	return func(c *Checker) {
		if o != nil {
			c.observer = o
		}
	}
}

func WithLineFilter(f *nsupdate.LineFilter) Option {
	return func(c *Checker) {
		c.filter = f
	}
}

// WithTimeout bounds each network operation.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHostInterval spaces out legacy host checks; zero disables throttling.
func WithHostInterval(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// Checker runs one invocation: it loads the catalog once and records exactly
// one result per checked target. It is not safe for concurrent use.
type Checker struct {
	feed     FeedSource
	targets  TargetSource
	log      *zap.SugaredLogger
	observer Observer
	filter   *nsupdate.LineFilter
	timeout  time.Duration
	limiter  *rate.Limiter

	catalog *nsupdate.Catalog
	summary nsupdate.Summary
}

func New(feed FeedSource, targets TargetSource, log *zap.SugaredLogger, opts ...Option) *Checker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Checker{
		feed:     feed,
		targets:  targets,
		log:      log,
		observer: nopObserver{},
		timeout:  defaultTimeout,
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checker) Summary() *nsupdate.Summary {
	return &c.summary
}

func (c *Checker) Catalog() *nsupdate.Catalog {
	return c.catalog
}

// LoadCatalog fetches the feed and builds the catalog. On failure a single
// UNKNOWN result is recorded and the error is returned so callers can skip
// target checks.
func (c *Checker) LoadCatalog(ctx context.Context, src model.FeedSource) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debugw("loading release catalog", "url", src.URL, "file", src.File, "release_lines", c.filter.String())
	titles, err := c.feed.Titles(ctx, src)
	if err != nil {
		c.log.Debugw("release feed failed", "error", err)
		c.record(nsupdate.Result{
			Severity: nsupdate.SeverityUnknown,
			Message:  fmt.Sprintf("release catalog unavailable: %s", oneLine(err.Error())),
		})
		return err
	}

	c.catalog = nsupdate.ExtractCatalog(titles, c.filter)
	c.observer.CatalogLoaded(c.catalog.Len())
	if c.catalog.Len() == 0 {
		c.log.Warnw("release feed contained no release announcements", "items", len(titles))
	}
	for _, v := range c.catalog.Versions() {
		c.log.Debugw("catalog entry", "release_line", v.Line(), "build", v.Build())
	}
	return nil
}

// CheckNITRO checks one appliance through its NITRO API.
func (c *Checker) CheckNITRO(ctx context.Context, baseURL string, creds netscaler.Credentials) nsupdate.Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.targets.NSVersion(ctx, baseURL, creds)
	if err != nil {
		return c.record(c.failure(baseURL, err))
	}
	return c.record(c.evaluate(baseURL, text))
}

// CheckLegacy checks each host through its public plugin list, in order.
// A failing host never prevents the remaining hosts from being checked.
func (c *Checker) CheckLegacy(ctx context.Context, hosts []string) []nsupdate.Result {
	results := make([]nsupdate.Result, 0, len(hosts))
	for _, host := range hosts {
		if err := c.limiter.Wait(ctx); err != nil {
			results = append(results, c.record(nsupdate.Result{
				Target:   host,
				Severity: nsupdate.SeverityUnknown,
				Message:  fmt.Sprintf("%s: check aborted: %v", host, err),
			}))
			continue
		}
		results = append(results, c.checkHost(ctx, host))
	}
	return results
}

func (c *Checker) checkHost(ctx context.Context, host string) nsupdate.Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.targets.PluginList(ctx, host)
	if err != nil {
		return c.record(c.failure(host, err))
	}
	return c.record(c.evaluate(host, body))
}

func (c *Checker) evaluate(target, text string) nsupdate.Result {
	installed, err := nsupdate.ParseInstalled(text)
	if err != nil {
		return c.failure(target, err)
	}
	if latest, ok := c.catalog.Lookup(installed.Line()); ok {
		c.observer.Evaluated(target, installed, latest)
	}
	res := nsupdate.Decide(c.catalog, target, installed)
	c.log.Debugw("evaluated target", "target", target, "installed", installed.String(), "severity", res.Severity.String())
	return res
}

// failure maps collaborator errors onto a severity: transport and status
// failures are CRITICAL, a response without a usable version is UNKNOWN.
func (c *Checker) failure(target string, err error) nsupdate.Result {
	var perr *netscaler.ProtocolError
	var unrecognized *nsupdate.UnrecognizedVersionError

	switch {
	case errors.As(err, &perr):
		c.log.Debugw("target returned error status", "target", target, "status", perr.StatusCode, "body", perr.Body)
		return nsupdate.Result{
			Target:   target,
			Severity: nsupdate.SeverityCritical,
			Message:  fmt.Sprintf("http request to %s returned status code %d", target, perr.StatusCode),
		}
	case errors.Is(err, netscaler.ErrNetwork):
		c.log.Debugw("target unreachable", "target", target, "error", err)
		return nsupdate.Result{
			Target:   target,
			Severity: nsupdate.SeverityCritical,
			Message:  fmt.Sprintf("http request to %s failed", target),
		}
	case errors.Is(err, netscaler.ErrMissingField):
		c.log.Debugw("version field missing", "target", target, "error", err)
		return nsupdate.Result{
			Target:   target,
			Severity: nsupdate.SeverityUnknown,
			Message:  fmt.Sprintf("%s: could not find a nsversion string in response", target),
		}
	case errors.As(err, &unrecognized):
		c.log.Debugw("unrecognized version text", "target", target, "text", unrecognized.Text)
		return nsupdate.Result{
			Target:   target,
			Severity: nsupdate.SeverityUnknown,
			Message:  fmt.Sprintf("%s: unrecognized version string %q", target, quoteable(unrecognized.Text)),
		}
	default:
		c.log.Debugw("check failed", "target", target, "error", err)
		return nsupdate.Result{
			Target:   target,
			Severity: nsupdate.SeverityUnknown,
			Message:  fmt.Sprintf("%s: %s", target, oneLine(err.Error())),
		}
	}
}

func (c *Checker) record(res nsupdate.Result) nsupdate.Result {
	c.summary.Record(res)
	c.observer.Recorded(res)
	return res
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func quoteable(s string) string {
	s = oneLine(s)
	if len(s) > maxQuotedText {
		return s[:maxQuotedText] + "..."
	}
	return s
}

type nopObserver struct{}

func (nopObserver) CatalogLoaded(int) {}
func (nopObserver) Evaluated(string, nsupdate.Version, nsupdate.Version) {}
func (nopObserver) Recorded(nsupdate.Result) {}
