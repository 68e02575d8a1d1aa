package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/3leaps/nsupdates/internal/config"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>NetScaler ADC</title>
    <item><title>New - NetScaler Release (Maintenance Phase) 13.1 Build 53.17</title></item>
    <item><title>New - NetScaler Gateway plug-in for macOS</title></item>
    <item><title>New - NetScaler ADC Release (Maintenance Phase) 13.0 Build 92.21</title></item>
    <item><title>New - NetScaler Release (Maintenance Phase) 13.1 Build 51.15</title></item>
  </channel>
</rss>`

func envOf(vars map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	t.Cleanup(server.Close)
	return server
}

func newNITROServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nitro/v1/config/nsversion" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-NITRO-USER") != "monitor" || r.Header.Get("X-NITRO-PASS") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newGatewayServer(t *testing.T, version string) *httptest.Server {
	t.Helper()
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vpn/pluginlist.xml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<repository><plugin name="Secure Access" version="` + version + `"/></repository>`))
	}))
	t.Cleanup(server.Close)
	return server
}

func nsversionBody(banner string) string {
	return `{"errorcode":0,"message":"Done","severity":"NONE","nsversion":{"version":"` + banner + `","mode":"1"}}`
}

func run(t *testing.T, env map[string]string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := RunContext(context.Background(), args, envOf(env), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunNITRO(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantOut  string
	}{
		{
			name:     "up to date",
			status:   http.StatusOK,
			body:     nsversionBody("NetScaler NS13.1: Build 53.17.nc, Date: Jan 10 2024, 12:11:13   (64-bit)"),
			wantCode: 0,
			wantOut:  "OK: ",
		},
		{
			name:     "update available",
			status:   http.StatusOK,
			body:     nsversionBody("NetScaler NS13.0: Build 88.12.nc, Date: Nov 2 2022"),
			wantCode: 1,
			wantOut:  "update available (installed: 13.0 88.12, available: 13.0 92.21)",
		},
		{
			name:     "release line missing from catalog",
			status:   http.StatusOK,
			body:     nsversionBody("NetScaler NS14.1: Build 12.35.nc"),
			wantCode: 3,
			wantOut:  "release line 14.1 not found",
		},
		{
			name:     "missing version field",
			status:   http.StatusOK,
			body:     `{"errorcode":0,"nsversion":{}}`,
			wantCode: 3,
			wantOut:  "could not find a nsversion string in response",
		},
		{
			name:     "error status",
			status:   http.StatusServiceUnavailable,
			body:     `{"errorcode":1}`,
			wantCode: 2,
			wantOut:  "returned status code 503",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			feed := newFeedServer(t)
			adc := newNITROServer(t, tt.status, tt.body)
			env := map[string]string{
				"NETSCALER_URL":      adc.URL,
				"NETSCALER_USERNAME": "monitor",
				"NETSCALER_PASSWORD": "secret",
				"NSUPDATES_FEED_URL": feed.URL,
			}
			code, out, _ := run(t, env)
			if code != tt.wantCode {
				t.Fatalf("exit = %d, want %d (stdout %q)", code, tt.wantCode, out)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Fatalf("stdout = %q, want to contain %q", out, tt.wantOut)
			}
			if strings.Count(out, "\n") != 1 {
				t.Fatalf("want exactly one status line, got %q", out)
			}
		})
	}
}

func TestRunFlagsOverrideEnv(t *testing.T) {
	t.Parallel()

	feed := newFeedServer(t)
	adc := newNITROServer(t, http.StatusOK, nsversionBody("NetScaler NS13.1: Build 53.17.nc"))
	env := map[string]string{
		"NETSCALER_URL":      "https://unused.invalid",
		"NETSCALER_USERNAME": "nsroot",
		"NETSCALER_PASSWORD": "nsroot",
	}
	code, out, _ := run(t, env, "-U", adc.URL, "-u", "monitor", "-p", "secret", "--feed-url", feed.URL)
	if code != 0 {
		t.Fatalf("exit = %d, stdout %q", code, out)
	}
}

func TestRunUnreachable(t *testing.T) {
	t.Parallel()

	feed := newFeedServer(t)
	adc := httptest.NewServer(http.NotFoundHandler())
	target := adc.URL
	adc.Close()

	code, out, stderr := run(t, map[string]string{"NSUPDATES_FEED_URL": feed.URL}, "--url", target, "--timeout", "2s")
	if code != 2 {
		t.Fatalf("exit = %d, want 2 (stdout %q)", code, out)
	}
	if want := "CRITICAL: http request to " + target + " failed\n"; out != want {
		t.Fatalf("stdout = %q, want %q", out, want)
	}
	if stderr != "" {
		t.Fatalf("non-verbose run wrote to stderr: %q", stderr)
	}
}

func TestRunVerboseLogsDetails(t *testing.T) {
	t.Parallel()

	feed := newFeedServer(t)
	adc := newNITROServer(t, http.StatusInternalServerError, `internal failure detail`)
	env := map[string]string{
		"NETSCALER_USERNAME": "monitor",
		"NETSCALER_PASSWORD": "secret",
		"NSUPDATES_FEED_URL": feed.URL,
	}
	code, out, stderr := run(t, env, "--url", adc.URL, "-v")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if strings.Contains(out, "internal failure detail") {
		t.Fatalf("response body leaked to stdout: %q", out)
	}
	if !strings.Contains(stderr, "internal failure detail") || !strings.Contains(stderr, "run_id") {
		t.Fatalf("stderr = %q, want debug detail with run_id", stderr)
	}
}

func TestRunMissingURL(t *testing.T) {
	t.Parallel()

	code, out, _ := run(t, nil)
	if code != 3 {
		t.Fatalf("exit = %d, want 3", code)
	}
	if out != "UNKNOWN: netscaler url is not defined or empty\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunUsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown flag", args: []string{"--bogus"}, want: "unknown flag"},
		{name: "bad timeout", args: []string{"--url", "https://adc", "--timeout", "soon"}, want: "invalid argument"},
		{name: "bad release lines", args: []string{"--url", "https://adc", "--release-lines", "not a constraint"}, want: "release-lines"},
		{name: "bad url", args: []string{"--url", "adc.example.com"}, want: "expected http(s)://host"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, out, _ := run(t, nil, tt.args...)
			if code != 3 {
				t.Fatalf("exit = %d, want 3", code)
			}
			if !strings.HasPrefix(out, "UNKNOWN: ") || !strings.Contains(out, tt.want) {
				t.Fatalf("stdout = %q, want UNKNOWN containing %q", out, tt.want)
			}
		})
	}
}

func TestRunFeedUnavailable(t *testing.T) {
	t.Parallel()

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(feed.Close)

	var contacted atomic.Bool
	adc := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		contacted.Store(true)
	}))
	t.Cleanup(adc.Close)

	code, out, _ := run(t, map[string]string{"NSUPDATES_FEED_URL": feed.URL}, "--url", adc.URL)
	if code != 3 {
		t.Fatalf("exit = %d, want 3", code)
	}
	if !strings.HasPrefix(out, "UNKNOWN: release catalog unavailable: ") || strings.Count(out, "\n") != 1 {
		t.Fatalf("stdout = %q", out)
	}
	if contacted.Load() {
		t.Fatalf("target must not be checked without a catalog")
	}
}

func TestRunLegacyHosts(t *testing.T) {
	t.Parallel()

	feed := newFeedServer(t)
	current := newGatewayServer(t, "13,1,53,17")
	outdated := newGatewayServer(t, "13,0,88,12")

	code, out, _ := run(t, map[string]string{"NSUPDATES_FEED_URL": feed.URL}, current.URL, outdated.URL)
	if code != 1 {
		t.Fatalf("exit = %d, want 1 (stdout %q)", code, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("want one line per host, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "OK: "+current.URL) {
		t.Fatalf("line 1 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "WARNING: "+outdated.URL) {
		t.Fatalf("line 2 = %q", lines[1])
	}
}

func TestRunLegacyVerifyTLS(t *testing.T) {
	t.Parallel()

	feed := newFeedServer(t)
	gw := newGatewayServer(t, "13,1,53,17")

	code, out, _ := run(t, map[string]string{"NSUPDATES_FEED_URL": feed.URL}, "--verify-tls", gw.URL)
	if code != 2 {
		t.Fatalf("exit = %d, want 2 for untrusted certificate (stdout %q)", code, out)
	}
}

func TestRunMetricsFile(t *testing.T) {
	t.Parallel()

	feed := newFeedServer(t)
	adc := newNITROServer(t, http.StatusOK, nsversionBody("NetScaler NS13.0: Build 88.12.nc"))
	path := filepath.Join(t.TempDir(), "nsupdates.prom")
	env := map[string]string{
		"NETSCALER_USERNAME": "monitor",
		"NETSCALER_PASSWORD": "secret",
		"NSUPDATES_FEED_URL": feed.URL,
	}

	code, _, _ := run(t, env, "--url", adc.URL, "--metrics-file", path)
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`nsupdates_check_status{target="` + adc.URL + `"} 1`,
		`nsupdates_update_available{release_line="13.0",target="` + adc.URL + `"} 1`,
		"nsupdates_catalog_release_lines 2",
		"nsupdates_last_run_timestamp_seconds",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %q:\n%s", want, text)
		}
	}
}

func TestRunMetricsWriteFailureKeepsExitCode(t *testing.T) {
	t.Parallel()

	feed := newFeedServer(t)
	adc := newNITROServer(t, http.StatusOK, nsversionBody("NetScaler NS13.1: Build 53.17.nc"))
	path := filepath.Join(t.TempDir(), "missing", "dir", "nsupdates.prom")
	env := map[string]string{
		"NETSCALER_USERNAME": "monitor",
		"NETSCALER_PASSWORD": "secret",
		"NSUPDATES_FEED_URL": feed.URL,
	}

	code, out, stderr := run(t, env, "--url", adc.URL, "--metrics-file", path)
	if code != 0 {
		t.Fatalf("exit = %d, want 0 (stdout %q)", code, out)
	}
	if !strings.Contains(stderr, "write metrics textfile") {
		t.Fatalf("stderr = %q, want metrics error", stderr)
	}
}

func TestRunCatalog(t *testing.T) {
	t.Parallel()

	feed := newFeedServer(t)
	code, out, _ := run(t, map[string]string{"NSUPDATES_FEED_URL": feed.URL}, "catalog")
	if code != 0 {
		t.Fatalf("exit = %d, want 0 (stdout %q)", code, out)
	}
	if want := "13.0 92.21\n13.1 53.17\n"; out != want {
		t.Fatalf("stdout = %q, want %q", out, want)
	}
}

func TestRunCatalogFromSnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "feed.rss")
	if err := os.WriteFile(path, []byte(feedXML), 0o600); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	code, out, _ := run(t, nil, "catalog", "--feed-file", path, "--release-lines", ">= 13.1")
	if code != 0 {
		t.Fatalf("exit = %d, want 0 (stdout %q)", code, out)
	}
	if out != "13.1 53.17\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	code, out, _ := run(t, nil, "--version")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(out, Version) {
		t.Fatalf("stdout = %q, want version %q", out, Version)
	}
}
