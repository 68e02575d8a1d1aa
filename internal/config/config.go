package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/3leaps/nsupdates/internal/host/citrix"
	"github.com/3leaps/nsupdates/internal/host/netscaler"
	"github.com/3leaps/nsupdates/internal/model"
	"github.com/3leaps/nsupdates/pkg/nsupdate"
)

// Kind is the value type of a flag.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindDuration
)

// Flag describes one command-line option and its environment fallback.
type Flag struct {
	Name      string
	Shorthand string
	Kind      Kind
	Default   string
	Env       string
	// Required applies in NITRO mode only.
	Required bool
	Usage    string
}

// Flags is the complete option schema. Bind registers it; Resolve reads it.
var Flags = []Flag{
	{Name: "url", Shorthand: "U", Env: "NETSCALER_URL", Required: true,
		Usage: "Base URL of the Citrix ADC. If not set the value from the ENV NETSCALER_URL is used."},
	{Name: "username", Shorthand: "u", Env: "NETSCALER_USERNAME", Default: netscaler.DefaultUser,
		Usage: "Username for Citrix ADC. If not set the value from the ENV NETSCALER_USERNAME is used."},
	{Name: "password", Shorthand: "p", Env: "NETSCALER_PASSWORD", Default: netscaler.DefaultUser,
		Usage: "Password for Citrix ADC. If not set the value from the ENV NETSCALER_PASSWORD is used."},
	{Name: "verbose", Shorthand: "v", Kind: KindBool, Default: "false",
		Usage: "Enable verbose mode and print failure details to stderr"},
	{Name: "timeout", Kind: KindDuration, Env: "NSUPDATES_TIMEOUT", Default: netscaler.DefaultTimeout.String(),
		Usage: "Timeout for each HTTP request"},
	{Name: "feed-url", Env: "NSUPDATES_FEED_URL", Default: citrix.DefaultFeedURL,
		Usage: "Release announcement feed URL"},
	{Name: "feed-file", Env: "NSUPDATES_FEED_FILE",
		Usage: "Read the announcement feed from a local snapshot instead of feed-url"},
	{Name: "feed-minisig", Env: "NSUPDATES_FEED_MINISIG",
		Usage: "Minisign signature of the feed snapshot"},
	{Name: "minisign-key", Env: "NSUPDATES_MINISIGN_KEY",
		Usage: "Minisign public key file used to verify the feed snapshot"},
	{Name: "release-lines", Env: "NSUPDATES_RELEASE_LINES", Default: nsupdate.DefaultLineConstraint,
		Usage: "Constraint on release lines accepted from the feed"},
	{Name: "verify-tls", Kind: KindBool, Env: "NETSCALER_VERIFY_TLS", Default: "false",
		Usage: "Verify appliance TLS certificates"},
	{Name: "host-interval", Kind: KindDuration, Default: "0s",
		Usage: "Minimum delay between hosts in legacy mode"},
	{Name: "metrics-file", Env: "NSUPDATES_METRICS_FILE",
		Usage: "Write Prometheus textfile metrics to this path"},
	{Name: "env-file",
		Usage: "Load environment fallbacks from a dotenv file"},
}

// Config is the resolved runtime configuration of one invocation.
type Config struct {
	URL          string
	Username     string
	Password     string
	Verbose      bool
	Timeout      time.Duration
	FeedURL      string
	FeedFile     string
	FeedMinisig  string
	MinisignKey  string
	ReleaseLines string
	VerifyTLS    bool
	HostInterval time.Duration
	MetricsFile  string
	EnvFile      string

	// Hosts switches to legacy mode when non-empty.
	Hosts []string

	LineFilter *nsupdate.LineFilter
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Bind registers every flag in Flags on fs.
func Bind(fs *pflag.FlagSet) {
	for _, f := range Flags {
		usage := f.Usage
		if f.Required {
			usage += " (required unless hosts are given)"
		}
		switch f.Kind {
		case KindBool:
			def, _ := strconv.ParseBool(f.Default)
			fs.BoolP(f.Name, f.Shorthand, def, usage)
		case KindDuration:
			def, _ := time.ParseDuration(f.Default)
			fs.DurationP(f.Name, f.Shorthand, def, usage)
		default:
			fs.StringP(f.Name, f.Shorthand, f.Default, usage)
		}
	}
}

// Resolve builds a Config from parsed flags, falling back to the environment
// for flags that were not set explicitly. Variables from --env-file apply
// only where the process environment does not define them.
func Resolve(fs *pflag.FlagSet, lookup LookupFunc, args []string) (*Config, error) {
	env := lookup
	if envFile := flagString(fs, "env-file"); envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
		env = func(key string) (string, bool) {
			if v, ok := lookup(key); ok {
				return v, true
			}
			v, ok := fileVars[key]
			return v, ok
		}
	}

	values := make(map[string]string, len(Flags))
	for _, f := range Flags {
		values[f.Name] = valueOf(fs, f, env)
	}

	var problems []string
	parseBool := func(name string) bool {
		b, err := strconv.ParseBool(values[name])
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid boolean %q", name, values[name]))
		}
		return b
	}
	parseDuration := func(name string) time.Duration {
		d, err := time.ParseDuration(values[name])
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid duration %q", name, values[name]))
		}
		return d
	}

	cfg := &Config{
		URL:          strings.TrimSpace(values["url"]),
		Username:     values["username"],
		Password:     values["password"],
		Verbose:      parseBool("verbose"),
		Timeout:      parseDuration("timeout"),
		FeedURL:      strings.TrimSpace(values["feed-url"]),
		FeedFile:     values["feed-file"],
		FeedMinisig:  values["feed-minisig"],
		MinisignKey:  values["minisign-key"],
		ReleaseLines: values["release-lines"],
		VerifyTLS:    parseBool("verify-tls"),
		HostInterval: parseDuration("host-interval"),
		MetricsFile:  values["metrics-file"],
		EnvFile:      values["env-file"],
		Hosts:        append([]string(nil), args...),
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// Validate checks option consistency. requireTarget enforces the per-mode
// target options (url in NITRO mode).
func (c *Config) Validate(requireTarget bool) error {
	var problems []string

	if requireTarget && c.Mode() == model.ModeNITRO {
		if c.URL == "" {
			problems = append(problems, "netscaler url is not defined or empty")
		} else {
			if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				problems = append(problems, fmt.Sprintf("url: expected http(s)://host, got %q", c.URL))
			}
		}
	}
	if c.Timeout <= 0 {
		problems = append(problems, "timeout: must be positive")
	}
	if c.HostInterval < 0 {
		problems = append(problems, "host-interval: must not be negative")
	}
	if c.FeedMinisig != "" && c.FeedFile == "" {
		problems = append(problems, "feed-minisig: requires feed-file")
	}
	if c.FeedMinisig != "" && c.MinisignKey == "" {
		problems = append(problems, "feed-minisig: requires minisign-key")
	}
	if c.FeedFile == "" && c.FeedURL == "" {
		problems = append(problems, "feed-url: missing")
	}

	filter, err := nsupdate.NewLineFilter(c.ReleaseLines)
	if err != nil {
		problems = append(problems, "release-lines: "+err.Error())
	}
	c.LineFilter = filter

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// Mode reports whether this invocation checks legacy hosts or one NITRO URL.
func (c *Config) Mode() model.Mode {
	if len(c.Hosts) > 0 {
		return model.ModeLegacy
	}
	return model.ModeNITRO
}

func (c *Config) FeedSource() model.FeedSource {
	return model.FeedSource{
		URL:           c.FeedURL,
		File:          c.FeedFile,
		SignaturePath: c.FeedMinisig,
		PublicKeyPath: c.MinisignKey,
	}
}

func (c *Config) Credentials() netscaler.Credentials {
	return netscaler.Credentials{Username: c.Username, Password: c.Password}
}

func valueOf(fs *pflag.FlagSet, f Flag, env LookupFunc) string {
	pf := fs.Lookup(f.Name)
	if pf != nil && pf.Changed {
		return pf.Value.String()
	}
	if f.Env != "" {
		if v, ok := env(f.Env); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	if pf != nil {
		return pf.Value.String()
	}
	return f.Default
}

func flagString(fs *pflag.FlagSet, name string) string {
	if pf := fs.Lookup(name); pf != nil {
		return pf.Value.String()
	}
	return ""
}
