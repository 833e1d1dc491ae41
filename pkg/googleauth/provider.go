package googleauth

import (
	"context"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// TokenUpdateFunc is invoked when the underlying token source rotates the
// access token, so the caller can persist the new token.
type TokenUpdateFunc func(token *oauth2.Token) error

// Provider builds authenticated HTTP clients for Google APIs from stored
// per-user tokens. Clients are scoped per invocation; nothing here is shared
// mutable state.
type Provider struct {
	clientID     string
	clientSecret string
}

func NewProvider(clientID, clientSecret string) *Provider {
	return &Provider{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[GoogleAuth] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func (p *Provider) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Endpoint:     google.Endpoint,
	}
}

// Client returns an HTTP client backed by the stored tokens, refreshing them
// transparently and reporting rotations through onRefresh.
func (p *Provider) Client(ctx context.Context, accessToken, refreshToken string, expiry time.Time, onRefresh TokenUpdateFunc) *http.Client {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}

	wrapped := &notifyTokenSource{
		src:      p.config().TokenSource(ctx, token),
		current:  token,
		callback: onRefresh,
	}

	return oauth2.NewClient(ctx, wrapped)
}

// Refresh performs a synchronous token exchange against the token endpoint.
// The credential manager uses this for its expiry-lookahead refresh.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		// Force the exchange even if a stale access token is cached upstream.
		Expiry: time.Now().Add(-time.Minute),
	}
	return p.config().TokenSource(ctx, token).Token()
}
