package provider

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// Option configures adapter construction.
type Option func(*options)

type options struct {
	client     *http.Client
	timeout    time.Duration
	rps        float64
	burst      int
	logger     *zap.Logger
	tokenStore TokenStore
	persist    TokenPersister
	baseURL    string
	tokenURL   string
}

func defaultOptions() *options {
	return &options{
		timeout: 30 * time.Second,
		rps:     5,
		burst:   5,
		logger:  zap.NewNop(),
	}
}

func (o *options) httpClient() *http.Client {
	if o.client != nil {
		return o.client
	}
	return &http.Client{
		Timeout: o.timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// WithHTTPClient sets a custom HTTP client.  Its timeout is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.client = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRateLimit paces outbound requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		if rps > 0 {
			o.rps = rps
		}
		if burst > 0 {
			o.burst = burst
		}
	}
}

// WithLogger sets the parent logger; adapters log under a named child.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTokenStore shares refreshed OAuth tokens through store.
func WithTokenStore(store TokenStore) Option {
	return func(o *options) { o.tokenStore = store }
}

// WithTokenPersister writes refreshed OAuth tokens back to storage.
func WithTokenPersister(fn TokenPersister) Option {
	return func(o *options) { o.persist = fn }
}

// WithBaseURL overrides the API base URL (for testing).  A base URL on the
// provider record takes precedence.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithTokenURL overrides the OAuth token endpoint (for testing).
func WithTokenURL(u string) Option {
	return func(o *options) { o.tokenURL = u }
}

// New builds the adapter for a provider record.  The adapter type is
// chosen once here; callers only see the Adapter interface.
func New(p *model.Provider, opts ...Option) (Adapter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if p.BaseURL != "" {
		o.baseURL = p.BaseURL
	}

	switch p.Type {
	case model.ProviderManual:
		return nil, ErrManualProvider
	case model.ProviderTicketTailor:
		return newTicketTailor(p, o), nil
	case model.ProviderEventbrite:
		return newEventbrite(p, o), nil
	default:
		return nil, eris.Errorf("provider: unknown provider type %q", p.Type)
	}
}
