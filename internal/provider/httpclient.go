package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var errForeignOrigin = errors.New("url is outside the provider api origin")

// maxErrorBody caps how much of an error response is kept in APIError.
const maxErrorBody = 512

// apiClient is the JSON-over-HTTP transport shared by the adapters.  It
// paces requests client-side and maps responses onto the error taxonomy.
// It never retries.
type apiClient struct {
	provider string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	auth     Authenticator
	log      *zap.Logger
}

func newAPIClient(name, baseURL string, auth Authenticator, o *options) *apiClient {
	return &apiClient{
		provider: name,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     o.httpClient(),
		limiter:  rate.NewLimiter(rate.Limit(o.rps), o.burst),
		auth:     auth,
		log:      o.logger.Named(name),
	}
}

// resolve turns a path (or an absolute URL returned by the provider) into
// a request URL.  Absolute URLs must stay on the API origin; credentials
// are attached to every request.
func (c *apiClient) resolve(pathOrURL string, query url.Values) (string, error) {
	absolute := strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://")
	raw := pathOrURL
	if !absolute {
		raw = c.baseURL + "/" + strings.TrimLeft(pathOrURL, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if absolute {
		base, err := url.Parse(c.baseURL)
		if err != nil {
			return "", err
		}
		if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
			return "", errForeignOrigin
		}
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *apiClient) getJSON(ctx context.Context, pathOrURL string, query url.Values, out any) error {
	reqURL, err := c.resolve(pathOrURL, query)
	if err != nil {
		return &APIError{Provider: c.provider, Message: "invalid request url", Err: err}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &APIError{Provider: c.provider, Message: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if err := c.auth.Apply(ctx, req); err != nil {
			return c.tag(err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Provider: c.provider, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Provider: c.provider, StatusCode: resp.StatusCode, Message: "read response body", Err: err}
	}
	c.log.Debug("provider request",
		zap.String("url", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthenticationError{Provider: c.provider, Message: excerpt(body)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Provider: c.provider, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{Provider: c.provider, StatusCode: resp.StatusCode, Message: excerpt(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Provider: c.provider, StatusCode: resp.StatusCode, Message: "invalid json response", Err: err}
	}
	return nil
}

// tag fills in the provider name on taxonomy errors raised by authenticators.
func (c *apiClient) tag(err error) error {
	var ae *AuthenticationError
	if errors.As(err, &ae) && ae.Provider == "" {
		ae.Provider = c.provider
	}
	return err
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	if s == "" {
		s = "empty response"
	}
	return s
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
