// Package session provides the credential used to authenticate the alert channel.
//
// A Provider returns an opaque session token. regalert never issues tokens
// itself; it reads a configured value, an environment variable, or asks an
// OAuth2 token endpoint using client credentials.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/jmylchreest/regalert/internal/config"
)

// ErrNoSession is returned when a provider has no credential to offer.
var ErrNoSession = errors.New("no session credential available")

// Provider yields the current session token.
type Provider interface {
	Session(ctx context.Context) (string, error)
}

// Static returns a fixed token.
type Static string

// Session implements Provider.
func (s Static) Session(_ context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoSession
	}
	return string(s), nil
}

// Env reads the token from an environment variable on every call.
type Env struct {
	Name string
}

// Session implements Provider.
func (e Env) Session(_ context.Context) (string, error) {
	v := strings.TrimSpace(os.Getenv(e.Name))
	if v == "" {
		return "", fmt.Errorf("%w: $%s is empty", ErrNoSession, e.Name)
	}
	return v, nil
}

// ClientCredentials exchanges a client id and secret for an access token.
type ClientCredentials struct {
	cfg *clientcredentials.Config
}

// NewClientCredentials creates a provider for the given token endpoint.
func NewClientCredentials(tokenURL, clientID, clientSecret string, scopes []string) *ClientCredentials {
	return &ClientCredentials{
		cfg: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		},
	}
}

// Session implements Provider.
func (c *ClientCredentials) Session(ctx context.Context) (string, error) {
	tok, err := c.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", ErrNoSession
	}
	return tok.AccessToken, nil
}

// FromConfig builds the provider selected by cfg.Source.
func FromConfig(cfg config.SessionConfig) (Provider, error) {
	switch cfg.Source {
	case config.SessionSourceStatic:
		return Static(cfg.Token), nil
	case config.SessionSourceEnv, "":
		name := cfg.TokenEnv
		if name == "" {
			name = config.DefaultTokenEnv
		}
		return Env{Name: name}, nil
	case config.SessionSourceClientCredentials:
		if cfg.TokenURL == "" || cfg.ClientID == "" {
			return nil, errors.New("client_credentials requires token_url and client_id")
		}
		secretEnv := cfg.ClientSecretEnv
		if secretEnv == "" {
			secretEnv = config.DefaultClientSecretEnv
		}
		return NewClientCredentials(cfg.TokenURL, cfg.ClientID, os.Getenv(secretEnv), cfg.Scopes), nil
	default:
		return nil, fmt.Errorf("unknown session source %q", cfg.Source)
	}
}
