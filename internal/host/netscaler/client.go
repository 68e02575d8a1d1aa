package netscaler

import (
	"bytes"
	"context"
	"crypto/tls"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/3leaps/nsupdates/internal/model"
)

const (
	nsversionPath  = "/nitro/v1/config/nsversion"
	pluginListPath = "/vpn/pluginlist.xml"

	DefaultTimeout = 10 * time.Second
	DefaultUser    = "nsroot"

	maxBodyBytes     = 1 << 20
	maxDiagnosticLen = 512
)

//go:embed nsversion.schema.json
var nsversionSchemaJSON []byte

// Credentials are sent as NITRO header authentication.
type Credentials struct {
	Username string
	Password string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// Client queries appliances for their installed version text.
type Client struct {
	httpClient *http.Client
	userAgent  string
	schema     *jsonschema.Schema
}

// NewHTTPClient returns a client with a request timeout. Appliances commonly
// present self-signed certificates, so verification is opt-in.
func NewHTTPClient(timeout time.Duration, verifyTLS bool) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// #nosec G402 -- appliance certificates are self-signed unless --verify-tls is set
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verifyTLS}
	return &http.Client{Timeout: timeout, Transport: transport}
}

func NewClient(opts ...Option) (*Client, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	c := &Client{
		httpClient: NewHTTPClient(DefaultTimeout, false),
		userAgent:  "check_nsupdates/dev",
		schema:     schema,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(nsversionSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse embedded nsversion schema: %w", err)
	}
	const loc = "nsversion.schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(loc, doc); err != nil {
		return nil, fmt.Errorf("load embedded nsversion schema: %w", err)
	}
	schema, err := compiler.Compile(loc)
	if err != nil {
		return nil, fmt.Errorf("compile embedded nsversion schema: %w", err)
	}
	return schema, nil
}

// NSVersion returns the version banner reported by the NITRO API at baseURL.
func (c *Client) NSVersion(ctx context.Context, baseURL string, creds Credentials) (string, error) {
	url := strings.TrimRight(baseURL, "/") + nsversionPath
	body, err := c.get(ctx, url, func(req *http.Request) {
		req.Header.Set("X-NITRO-USER", creds.Username)
		req.Header.Set("X-NITRO-PASS", creds.Password)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
	})
	if err != nil {
		return "", err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: decode response from %s: %v", ErrMissingField, url, err)
	}
	if err := c.schema.Validate(inst); err != nil {
		return "", fmt.Errorf("%w: nsversion.version in response from %s: %v", ErrMissingField, url, err)
	}

	var payload model.NSVersionResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: decode response from %s: %v", ErrMissingField, url, err)
	}
	return payload.NSVersion.Version, nil
}

// PluginList returns the body of the unauthenticated gateway plugin list.
// host may be a bare hostname or a base URL with scheme.
func (c *Client) PluginList(ctx context.Context, host string) (string, error) {
	base := strings.TrimRight(host, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	body, err := c.get(ctx, base+pluginListPath, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, url string, decorate func(*http.Request)) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if decorate != nil {
		decorate(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProtocolError{URL: url, StatusCode: resp.StatusCode, Body: truncate(string(body))}
	}
	return body, nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxDiagnosticLen {
		return s[:maxDiagnosticLen] + "..."
	}
	return s
}
