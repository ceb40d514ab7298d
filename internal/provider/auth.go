package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
)

// Authenticator decorates outbound requests with credentials.
type Authenticator interface {
	Apply(ctx context.Context, req *http.Request) error
}

// APIKeyAuth is static API-key basic auth: the key is the username and the
// password is empty.
type APIKeyAuth struct {
	APIKey string
}

func (a APIKeyAuth) Apply(_ context.Context, req *http.Request) error {
	if a.APIKey == "" {
		return &AuthenticationError{Message: "api key is not configured"}
	}
	req.SetBasicAuth(a.APIKey, "")
	return nil
}

// TokenStore shares OAuth tokens between processes.  Load returns nil, nil
// when nothing is cached.
type TokenStore interface {
	Load(ctx context.Context, providerID uint64) (*oauth2.Token, error)
	Save(ctx context.Context, providerID uint64, tok *oauth2.Token) error
}

// TokenPersister writes refreshed tokens back to the provider record.
type TokenPersister func(ctx context.Context, providerID uint64, tok *oauth2.Token) error

// OAuthAuth sends a bearer token and refreshes it through the provider's
// token endpoint once it has expired.
type OAuthAuth struct {
	providerID uint64
	cfg        *oauth2.Config
	hc         *http.Client
	store      TokenStore
	persist    TokenPersister

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewOAuthAuth builds a bearer authenticator from stored credentials.
// store and persist may be nil.
func NewOAuthAuth(providerID uint64, cfg *oauth2.Config, initial *oauth2.Token, hc *http.Client, store TokenStore, persist TokenPersister) *OAuthAuth {
	return &OAuthAuth{providerID: providerID, cfg: cfg, hc: hc, store: store, persist: persist, tok: initial}
}

// Token returns a valid access token, refreshing it if needed.
func (a *OAuthAuth) Token(ctx context.Context) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tok.Valid() {
		return a.tok, nil
	}
	if a.store != nil {
		// another process may already have refreshed
		if cached, err := a.store.Load(ctx, a.providerID); err == nil && cached.Valid() {
			a.tok = cached
			return a.tok, nil
		}
	}
	if a.tok == nil || a.tok.RefreshToken == "" {
		return nil, &AuthenticationError{Message: "access token expired and no refresh token is stored"}
	}

	if a.hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.hc)
	}
	fresh, err := a.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: a.tok.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, &AuthenticationError{Message: "token refresh rejected", Err: err}
		}
		return nil, &AuthenticationError{Message: "token refresh failed", Err: err}
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = a.tok.RefreshToken
	}
	a.tok = fresh

	if a.store != nil {
		_ = a.store.Save(ctx, a.providerID, fresh)
	}
	if a.persist != nil {
		if err := a.persist(ctx, a.providerID, fresh); err != nil {
			return nil, eris.Wrap(err, "provider: persist refreshed token")
		}
	}
	return fresh, nil
}

func (a *OAuthAuth) Apply(ctx context.Context, req *http.Request) error {
	tok, err := a.Token(ctx)
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)
	return nil
}

// RedisTokenStore caches OAuth tokens in Redis until they expire so the
// server and the worker share one refresh.
type RedisTokenStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisTokenStore returns a store keyed "<prefix>:<provider id>".
func NewRedisTokenStore(rdb *redis.Client, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "oauth:provider"
	}
	return &RedisTokenStore{rdb: rdb, prefix: prefix}
}

func (s *RedisTokenStore) key(providerID uint64) string {
	return fmt.Sprintf("%s:%d", s.prefix, providerID)
}

func (s *RedisTokenStore) Load(ctx context.Context, providerID uint64) (*oauth2.Token, error) {
	b, err := s.rdb.Get(ctx, s.key(providerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "provider: load cached token")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, eris.Wrap(err, "provider: decode cached token")
	}
	return &tok, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, providerID uint64, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return eris.Wrap(err, "provider: encode token")
	}
	ttl := time.Duration(0)
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry)
		if ttl <= 0 {
			return nil
		}
	}
	return eris.Wrap(s.rdb.Set(ctx, s.key(providerID), b, ttl).Err(), "provider: cache token")
}
