// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/tomtom215/encore/internal/logging"
	"github.com/tomtom215/encore/internal/models"
)

// CredentialProvider yields a usable access token for a tenant.
type CredentialProvider interface {
	Token(ctx context.Context, tenant models.Tenant) (string, error)
}

// RefreshTokenStore resolves a tenant credential reference to its refresh token.
type RefreshTokenStore interface {
	RefreshToken(ctx context.Context, credentialRef string) (string, error)
}

// OAuthConfig holds the provider's OAuth client settings.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client
}

// OAuthCredentials exchanges stored refresh tokens for access tokens.
// One reusing token source is cached per tenant so tokens are refreshed only
// when they expire.
type OAuthCredentials struct {
	config *oauth2.Config
	store  RefreshTokenStore
	// httpCtx carries the HTTP client used by the token endpoint. Token sources
	// capture it at creation, so it must outlive any single poll.
	httpCtx context.Context

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewOAuthCredentials creates a credential provider backed by store.
func NewOAuthCredentials(cfg OAuthConfig, store RefreshTokenStore) *OAuthCredentials {
	httpCtx := context.Background()
	if cfg.HTTPClient != nil {
		httpCtx = context.WithValue(httpCtx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	return &OAuthCredentials{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store:   store,
		httpCtx: httpCtx,
		sources: make(map[string]oauth2.TokenSource),
	}
}

// Token returns a valid access token for tenant.
func (o *OAuthCredentials) Token(ctx context.Context, tenant models.Tenant) (string, error) {
	src, err := o.source(ctx, tenant)
	if err != nil {
		return "", err
	}

	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.ErrorCode == "invalid_grant" {
			o.Forget(tenant.ID)
			return "", &Error{Kind: ErrAuthExpired, Err: errors.New(logging.RedactError(rerr.ErrorDescription))}
		}
		logging.Ctx(ctx).Debug().Str("error", logging.RedactError(err.Error())).Msg("Token refresh failed")
		return "", &Error{Kind: ErrCredentialUnavailable, Err: fmt.Errorf("refresh token: %w", err)}
	}
	if tok.AccessToken == "" {
		return "", &Error{Kind: ErrCredentialUnavailable, Err: errors.New("empty access token")}
	}
	return tok.AccessToken, nil
}

// Forget drops the cached token source for a tenant so the next Token call
// re-reads its refresh token. Called on reconnect and eviction.
func (o *OAuthCredentials) Forget(tenantID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.sources, tenantID)
}

func (o *OAuthCredentials) source(ctx context.Context, tenant models.Tenant) (oauth2.TokenSource, error) {
	o.mu.Lock()
	src, ok := o.sources[tenant.ID]
	o.mu.Unlock()
	if ok {
		return src, nil
	}

	if tenant.CredentialRef == "" {
		return nil, &Error{Kind: ErrCredentialUnavailable, Err: errors.New("tenant has no linked credential")}
	}
	refresh, err := o.store.RefreshToken(ctx, tenant.CredentialRef)
	if err != nil {
		return nil, &Error{Kind: ErrCredentialUnavailable, Err: fmt.Errorf("load refresh token: %w", err)}
	}
	if refresh == "" {
		return nil, &Error{Kind: ErrCredentialUnavailable, Err: errors.New("no refresh token stored")}
	}

	src = o.config.TokenSource(o.httpCtx, &oauth2.Token{RefreshToken: refresh})

	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.sources[tenant.ID]; ok {
		return existing, nil
	}
	o.sources[tenant.ID] = src
	return src, nil
}

// StaticCredentials maps tenant IDs to fixed access tokens. Intended for local
// development against a mock provider.
type StaticCredentials map[string]string

// Token implements CredentialProvider.
func (s StaticCredentials) Token(_ context.Context, tenant models.Tenant) (string, error) {
	if tok, ok := s[tenant.ID]; ok && tok != "" {
		return tok, nil
	}
	return "", &Error{Kind: ErrCredentialUnavailable, Err: fmt.Errorf("no static token for tenant %q", tenant.ID)}
}
