// Package twitter is a small signed client for the Twitter REST API v1.1.
//
// TWO WAYS TO AUTHENTICATE:
//   - User context: when an access token is configured, every request carries
//     an OAuth 1.0a HMAC-SHA1 Authorization header (see oauth1.go).
//   - App context: with only the consumer key/secret, the client fetches an
//     app-only bearer token from /oauth2/token (OAuth2 client credentials) and
//     reuses it until it expires.
//
// The client never retries and never interprets the status code of Request:
// callers decide what a non-200 means. The token-exchange helpers
// (RequestToken, AccessToken) do turn non-200 answers into *apperror.APIError.
package twitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/metrics"
)

// DefaultAPIHost is the v1.1 REST root. Relative endpoint URLs resolve here.
const DefaultAPIHost = "https://api.twitter.com/1.1/"

// DefaultTimeout bounds every HTTP round trip.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of a response body we read.
const maxBodyBytes = 16 << 20

// Config holds the credentials and transport settings of one Client.
type Config struct {
	APIHost           string
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string

	Timeout    time.Duration
	HTTPClient *http.Client  // optional; Timeout is ignored when set
	Limiter    *rate.Limiter // optional; shared between clients to keep one budget
	Logger     *slog.Logger
}

// Response is the raw outcome of one API call.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client signs and sends requests to the Twitter API.
type Client struct {
	base    *url.URL
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	signer  *signer
	bearer  oauth2.TokenSource
	logger  *slog.Logger
}

// NewLimiter returns the default client-side limiter: one request per second
// with a small burst, which stays under the v1.1 per-window quotas.
func NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(1), 5)
}

// New creates a Client. The consumer key and secret are required.
func New(cfg Config) (*Client, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, apperror.NotConfigured("twitter consumer key and secret are required")
	}
	if cfg.AccessToken != "" && cfg.AccessTokenSecret == "" {
		return nil, apperror.NotConfigured("twitter access token is set without its secret")
	}
	if cfg.APIHost == "" {
		cfg.APIHost = DefaultAPIHost
	}
	if !strings.HasSuffix(cfg.APIHost, "/") {
		cfg.APIHost += "/"
	}
	base, err := url.Parse(cfg.APIHost)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperror.ValidationFailed("apiHost", fmt.Sprintf("invalid twitter api host %q", cfg.APIHost))
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewLimiter()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		base:    base,
		cfg:     cfg,
		http:    httpClient,
		limiter: limiter,
		signer:  newSigner(cfg.ConsumerKey, cfg.ConsumerSecret),
		logger:  logger,
	}

	if cfg.AccessToken == "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ConsumerKey,
			ClientSecret: cfg.ConsumerSecret,
			TokenURL:     c.hostURL("oauth2/token"),
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		// The token source keeps this context for every refresh, so it only
		// carries our HTTP client and no deadline.
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		c.bearer = cc.TokenSource(tokenCtx)
	}

	return c, nil
}

// UserContext reports whether requests are signed with an access token.
func (c *Client) UserContext() bool {
	return c.cfg.AccessToken != ""
}

// URL resolves path against the API host. Absolute URLs are returned as is.
func (c *Client) URL(path string) string {
	u, err := url.Parse(path)
	if err == nil && u.IsAbs() {
		return path
	}
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return c.base.String() + strings.TrimPrefix(path, "/")
	}
	return c.base.ResolveReference(ref).String()
}

// hostURL resolves path against the host root, where the oauth endpoints live.
func (c *Client) hostURL(path string) string {
	return c.base.Scheme + "://" + c.base.Host + "/" + strings.TrimPrefix(path, "/")
}

// AuthorizeURL is where the user approves a request token.
func (c *Client) AuthorizeURL(requestToken string) string {
	return c.hostURL("oauth/authorize") + "?oauth_token=" + url.QueryEscape(requestToken)
}

// Request sends one signed call. Any query string on rawURL is merged with
// params. GET params travel in the query string and POST params in a form body;
// both are covered by the OAuth signature.
//
// A non-200 status is NOT an error here; check Response.StatusCode.
func (c *Client) Request(ctx context.Context, method, rawURL string, params url.Values) (*Response, error) {
	auth := c.bearerAuth
	if c.UserContext() {
		auth = c.oauthAuth(c.cfg.AccessToken, c.cfg.AccessTokenSecret, nil)
	}
	return c.do(ctx, method, rawURL, params, auth)
}

// RequestToken asks for a temporary request token. callbackURL is where the
// user is sent after approving ("oob" for PIN-based flows).
func (c *Client) RequestToken(ctx context.Context, callbackURL string) (map[string]string, error) {
	if callbackURL == "" {
		callbackURL = "oob"
	}
	auth := c.oauthAuth("", "", map[string]string{"oauth_callback": callbackURL})
	return c.exchange(ctx, "oauth/request_token", nil, auth)
}

// AccessToken trades an approved request token and its verifier for a
// permanent access token pair.
func (c *Client) AccessToken(ctx context.Context, token, tokenSecret, verifier string) (map[string]string, error) {
	auth := c.oauthAuth(token, tokenSecret, map[string]string{"oauth_verifier": verifier})
	return c.exchange(ctx, "oauth/access_token", nil, auth)
}

func (c *Client) exchange(ctx context.Context, path string, params url.Values, auth authFunc) (map[string]string, error) {
	target := c.hostURL(path)
	resp, err := c.do(ctx, http.MethodPost, target, params, auth)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.NewAPIError(resp.StatusCode, resp.Body, target)
	}
	return ExtractParams(resp.Body)
}

// ExtractParams decodes a form-encoded token response such as
// "oauth_token=abc&oauth_token_secret=def&oauth_callback_confirmed=true".
func ExtractParams(body []byte) (map[string]string, error) {
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, apperror.Malformed("token response is not form encoded", err)
	}
	out := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out, nil
}

// authFunc decorates a built request with credentials. params are the
// request parameters that must be covered by a signature.
type authFunc func(req *http.Request, params url.Values) error

func (c *Client) oauthAuth(token, tokenSecret string, extra map[string]string) authFunc {
	return func(req *http.Request, params url.Values) error {
		req.Header.Set("Authorization",
			c.signer.authorization(req.Method, req.URL, params, token, tokenSecret, extra))
		return nil
	}
}

func (c *Client) bearerAuth(req *http.Request, _ url.Values) error {
	tok, err := c.bearer.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return apperror.NewAPIError(re.Response.StatusCode, re.Body, c.hostURL("oauth2/token"))
		}
		return fmt.Errorf("twitter: fetching app-only token: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, params url.Values, auth authFunc) (*Response, error) {
	u, err := url.Parse(c.URL(rawURL))
	if err != nil {
		return nil, apperror.ValidationFailed("url", fmt.Sprintf("invalid url %q", rawURL))
	}

	all := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			all.Add(k, v)
		}
	}
	u.RawQuery = ""

	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		u.RawQuery = all.Encode()
	} else if len(all) > 0 {
		body = strings.NewReader(all.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("twitter: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	if err := auth(req, all); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("twitter: waiting for rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncAPIRequest(method, 0)
		return nil, fmt.Errorf("twitter: %s %s: %w", method, redact(u), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.IncAPIRequest(method, 0)
		return nil, fmt.Errorf("twitter: reading response body: %w", err)
	}
	metrics.IncAPIRequest(method, resp.StatusCode)

	c.logger.Debug("twitter api call",
		slog.String("method", method),
		slog.String("url", redact(u)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Header:     resp.Header,
	}, nil
}

// redact drops the query string for log lines.
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}
