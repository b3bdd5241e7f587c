package deluge

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/italolelis/torrent_feeder/internal/dc"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultPort    = 8112
	DefaultAPIPath = "/json"

	sessionCookie = "_session_id"

	// errCodeNotAuthenticated is returned by the web API for calls made
	// without a valid session.
	errCodeNotAuthenticated = 1
)

// Client talks to a Deluge daemon through the Web UI JSON-RPC endpoint.
type Client struct {
	BaseURL  string
	APIPath  string
	Username string // sent as HTTP basic auth, for reverse proxies
	Password string // web UI password given to auth.login

	httpClient *http.Client
	telemetry  *telemetry.Telemetry
	lastID     atomic.Int64

	mu     sync.Mutex
	cookie string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithInsecure skips TLS certificate verification.
func WithInsecure() Option {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// WithTelemetry instruments every RPC call and the underlying HTTP transport.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(c *Client) { c.telemetry = tel }
}

func NewClient(baseURL, apiPath, username, password string, opts ...Option) *Client {
	if apiPath == "" {
		apiPath = DefaultAPIPath
	}

	client := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIPath:    apiPath,
		Username:   username,
		Password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.telemetry != nil {
		base := client.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}

		client.httpClient.Transport = otelhttp.NewTransport(base,
			otelhttp.WithMeterProvider(client.telemetry.MeterProvider()),
			otelhttp.WithTracerProvider(client.telemetry.TracerProvider()),
		)
	}

	return client
}

// Ensure Client implements Session
var _ dc.Session = (*Client)(nil)

type rpcRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// call invokes method with params and decodes the result into result,
// which may be nil.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	return c.telemetry.InstrumentRPC(ctx, method, func(ctx context.Context) error {
		return c.doCall(ctx, method, params, result)
	})
}

func (c *Client) doCall(ctx context.Context, method string, params []any, result any) error {
	logger := logctx.LoggerFromContext(ctx).With("method", method)

	if params == nil {
		params = []any{}
	}

	body, err := json.Marshal(rpcRequest{ID: c.lastID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+c.APIPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	if cookie := c.sessionCookie(); cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie})
	}

	logger.Debug("sending rpc request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Operation: method, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		netErr := &NetworkError{Operation: method, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return &AuthenticationError{Operation: method, Err: netErr}
		}

		return netErr
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie {
			c.setSessionCookie(cookie.Value)
		}
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return &NetworkError{Operation: method, Message: "invalid response body", Err: err}
	}

	if rpcResp.Error != nil {
		rpcErr := &RPCError{Method: method, Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
		logger.Debug("rpc error", "code", rpcErr.Code, "message", rpcErr.Message)

		if rpcErr.Code == errCodeNotAuthenticated {
			return &AuthenticationError{Operation: method, Err: rpcErr}
		}

		return rpcErr
	}

	if result == nil || len(rpcResp.Result) == 0 {
		return nil
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}

	return nil
}

func (c *Client) sessionCookie() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cookie
}

func (c *Client) setSessionCookie(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cookie = v
}

// Authenticate logs in to the web API and makes sure the web UI is attached
// to a daemon, connecting it to the first known host when it is not.
func (c *Client) Authenticate(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	var ok bool
	if err := c.call(ctx, "auth.login", []any{c.Password}, &ok); err != nil {
		return err
	}

	if !ok {
		return &AuthenticationError{Operation: "auth.login"}
	}

	var connected bool
	if err := c.call(ctx, "web.connected", nil, &connected); err != nil {
		return err
	}

	if connected {
		logger.Debug("web ui already connected to a daemon")

		return nil
	}

	var hosts [][]any
	if err := c.call(ctx, "web.get_hosts", nil, &hosts); err != nil {
		return err
	}

	if len(hosts) == 0 || len(hosts[0]) == 0 {
		return &NetworkError{Operation: "web.get_hosts", Message: "web ui has no daemon hosts configured"}
	}

	hostID, _ := hosts[0][0].(string)
	logger.Debug("connecting web ui to daemon", "host_id", hostID)

	return c.call(ctx, "web.connect", []any{hostID}, nil)
}

// Close ends the web session.
func (c *Client) Close(ctx context.Context) error {
	if c.sessionCookie() == "" {
		return nil
	}

	err := c.call(ctx, "auth.delete_session", nil, nil)
	c.setSessionCookie("")

	return err
}

// IsLocalhost reports whether the daemon runs on this machine.
func (c *Client) IsLocalhost() bool {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return false
	}

	switch host := u.Hostname(); host {
	case "localhost", "":
		return true
	default:
		ip := net.ParseIP(host)

		return ip != nil && ip.IsLoopback()
	}
}

// Dialer opens authenticated sessions to Deluge daemons.
type Dialer struct {
	APIPath    string
	Insecure   bool
	HTTPClient *http.Client
	Telemetry  *telemetry.Telemetry
}

var _ dc.Dialer = (*Dialer)(nil)

// Dial connects to the daemon described by info.
func (d *Dialer) Dial(ctx context.Context, info dc.ConnectionInfo) (dc.Session, error) {
	baseURL, err := BaseURL(info.Host, info.Port)
	if err != nil {
		return nil, err
	}

	var opts []Option
	if d.HTTPClient != nil {
		// Options replace or wrap the transport, so each session gets its
		// own copy of the shared client.
		hc := *d.HTTPClient
		opts = append(opts, WithHTTPClient(&hc))
	}

	if d.Insecure {
		opts = append(opts, WithInsecure())
	}

	if d.Telemetry != nil {
		opts = append(opts, WithTelemetry(d.Telemetry))
	}

	client := NewClient(baseURL, d.APIPath, info.User, info.Password, opts...)
	if err := client.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to deluge at %s: %w", baseURL, err)
	}

	return client, nil
}

// BaseURL builds the web UI address from a host, which may carry a scheme,
// and a port. A zero port means DefaultPort unless the host names one.
func BaseURL(host string, port int) (string, error) {
	if host == "" {
		host = "localhost"
	}

	if !strings.Contains(host, "://") {
		host = "http://" + host
	}

	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("invalid deluge host %q: %w", host, err)
	}

	if u.Hostname() == "" {
		return "", errors.New("deluge host is empty")
	}

	switch {
	case port > 0:
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	case u.Port() == "":
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(DefaultPort))
	}

	return strings.TrimRight(u.String(), "/"), nil
}
