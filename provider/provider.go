package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// ErrRejected is returned on a protocol-level rejection from the identity
// provider (invalid code, expired refresh token, RFC 6749 error response).
var ErrRejected = errors.New("identity provider rejected the request")

// ErrUnavailable is returned on transport-level failures (network, timeout,
// malformed response) talking to the identity provider.
var ErrUnavailable = errors.New("identity provider unavailable")

// ErrMissingIDToken is returned when the token response omits the id_token.
var ErrMissingIDToken = errors.New("identity provider did not return an id_token")

// Config defines a public type used by the session lifecycle engine.
//
// Config describes one OpenID-Connect identity provider. Multiple concurrent
// providers are out of scope; the engine binds to exactly one.
type Config struct {
	ClientID     string
	ClientSecret string

	AuthorizeEndpoint string
	TokenEndpoint     string
	UserinfoEndpoint  string
	// LogoutEndpoint is the optional provider-side logout deep-link base.
	LogoutEndpoint string

	RedirectURL string
	Scopes      []string
}

// Tokens is the normalized result of a code exchange or refresh grant.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	// ExpiresAt is the access-token expiry in Unix milliseconds.
	ExpiresAt int64
}

// UserInfo carries the raw userinfo-endpoint claims the engine consumes.
type UserInfo struct {
	Sub        string `json:"sub"`
	TrackingID string `json:"tracking_id"`
	Name       string `json:"name"`
	Nickname   string `json:"nickname"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
}

// FullName composes the display name the profile snapshot stores; empty
// unless both given and family names are present.
func (u UserInfo) FullName() string {
	if u.GivenName == "" || u.FamilyName == "" {
		return ""
	}
	return u.GivenName + " " + u.FamilyName
}

// Provider implements the OAuth2 authorization-code and refresh-token grants
// against a single OpenID-Connect identity provider. Token requests
// authenticate with the client secret in the request body.
type Provider struct {
	oauth      *oauth2.Config
	userinfo   string
	logout     string
	httpClient *http.Client
}

// New creates a [Provider] from config. httpClient may be nil; token
// exchanges then use http.DefaultClient.
func New(cfg Config, httpClient *http.Client) (*Provider, error) {
	if cfg.ClientID == "" || cfg.AuthorizeEndpoint == "" || cfg.TokenEndpoint == "" {
		return nil, errors.New("provider: client id and endpoints are required")
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizeEndpoint,
				TokenURL: cfg.TokenEndpoint,
				// Client secret travels in the request body, not basic auth.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userinfo:   cfg.UserinfoEndpoint,
		logout:     cfg.LogoutEndpoint,
		httpClient: httpClient,
	}, nil
}

// AuthCodeURLOptions tunes authorization URL construction.
type AuthCodeURLOptions struct {
	// PromptNone requests non-interactive authentication; the provider
	// errors instead of rendering a login form. Used by the silent SSO probe.
	PromptNone bool
}

// AuthCodeURL builds the authorization URL for the given state and PKCE
// verifier, always requesting offline access so a refresh token is issued.
func (p *Provider) AuthCodeURL(state, codeVerifier string, opts AuthCodeURLOptions) string {
	params := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("code_challenge", CodeChallengeS256(codeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	if opts.PromptNone {
		params = append(params, oauth2.SetAuthURLParam("prompt", "none"))
	}
	return p.oauth.AuthCodeURL(state, params...)
}

// Exchange redeems an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier string) (*Tokens, error) {
	opts := []oauth2.AuthCodeOption{}
	if codeVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	}

	tok, err := p.oauth.Exchange(p.withHTTPClient(ctx), code, opts...)
	if err != nil {
		return nil, classify(err)
	}

	tokens, err := p.normalize(tok)
	if err != nil {
		return nil, err
	}
	if tokens.IDToken == "" {
		return nil, ErrMissingIDToken
	}
	return tokens, nil
}

// Refresh executes the refresh-token grant. A protocol rejection maps to
// [ErrRejected]; everything else to [ErrUnavailable].
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	src := p.oauth.TokenSource(p.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classify(err)
	}
	// RefreshToken and IDToken may come back empty on refresh; callers
	// retain the previous values in that case.
	return p.normalize(tok)
}

// Userinfo fetches the userinfo endpoint with the given access token.
func (p *Provider) Userinfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfo, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo status %d", ErrRejected, resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: userinfo decode: %v", ErrUnavailable, err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: userinfo missing sub", ErrRejected)
	}
	return &info, nil
}

// LogoutURL builds the provider-side logout deep-link, or "" when the
// provider has no logout endpoint configured.
func (p *Provider) LogoutURL(idTokenHint, postLogoutRedirectURI string) string {
	if p.logout == "" {
		return ""
	}
	q := url.Values{}
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if postLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	}
	if len(q) == 0 {
		return p.logout
	}
	return p.logout + "?" + q.Encode()
}

func (p *Provider) client() *http.Client {
	if p.httpClient != nil {
		return p.httpClient
	}
	return http.DefaultClient
}

func (p *Provider) withHTTPClient(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) normalize(tok *oauth2.Token) (*Tokens, error) {
	idToken, _ := tok.Extra("id_token").(string)

	expiresAt := time.Now().UnixMilli()
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry.UnixMilli()
	}

	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func classify(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return fmt.Errorf("%w: %s", ErrRejected, retrieve.ErrorCode)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
