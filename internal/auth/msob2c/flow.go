package msob2c

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// State labels a position in the login choreography.
type State string

// Flow states, in execution order. Failed is terminal and reachable from
// any state.
const (
	StateInit                 State = "Init"
	StateAuthorizeRequested   State = "AuthorizeRequested"
	StateCredentialsSubmitted State = "CredentialsSubmitted"
	StateRedirectConfirmed    State = "RedirectConfirmed"
	StateTokenExchanged       State = "TokenExchanged"
	StateCommitted            State = "Committed"
	StateFailed               State = "Failed"
)

// selfAssertedSuccess is the status value the self-asserted step returns
// for accepted credentials.
const selfAssertedSuccess = "200"

// TokenPayload is the outcome of a completed flow or refresh exchange.
type TokenPayload struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
}

// flowContext is the transient per-attempt state scraped out of the
// vendor's pages. Its lifetime is bounded to one Run call; it is discarded
// on completion or failure and never committed anywhere.
type flowContext struct {
	csrfToken     string
	transactionID string
	authorizeURL  string
	code          string
}

// Flow sequences the four HTTP round trips of the B2C login. A Flow is
// single-use: construct one per login attempt so cookies and transaction
// state cannot leak across attempts.
type Flow struct {
	endpoints Endpoints
	client    *http.Client
	userAgent string
	state     State
}

// NewFlow builds a flow over the given endpoints. A nil client selects a
// cookie-jar client, which the choreography requires: the B2C policy
// correlates the steps through session cookies.
func NewFlow(endpoints Endpoints, client *http.Client, userAgent string) *Flow {
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}
	return &Flow{
		endpoints: endpoints,
		client:    client,
		userAgent: userAgent,
		state:     StateInit,
	}
}

// CurrentState reports the flow's position, mainly for logging and tests.
func (f *Flow) CurrentState() State { return f.state }

// Run executes the complete choreography and returns the token payload.
// The credential is borrowed for the duration of the call; on any failure
// the flow transitions to Failed and nothing is committed.
func (f *Flow) Run(ctx context.Context, username, password string, material *Material) (*TokenPayload, error) {
	fc := &flowContext{}

	if err := f.requestAuthorize(ctx, username, material, fc); err != nil {
		f.state = StateFailed
		return nil, err
	}
	f.state = StateAuthorizeRequested

	if err := f.submitCredentials(ctx, username, password, fc); err != nil {
		f.state = StateFailed
		return nil, err
	}
	f.state = StateCredentialsSubmitted

	if err := f.confirmRedirect(ctx, material, fc); err != nil {
		f.state = StateFailed
		return nil, err
	}
	f.state = StateRedirectConfirmed

	payload, err := f.exchangeCode(ctx, material, fc.code)
	if err != nil {
		f.state = StateFailed
		return nil, err
	}
	f.state = StateTokenExchanged

	f.state = StateCommitted
	return payload, nil
}

// requestAuthorize issues the unauthenticated authorize request carrying
// the PKCE challenge and state nonce, then scrapes the CSRF token and
// transaction id out of the returned page.
func (f *Flow) requestAuthorize(ctx context.Context, username string, material *Material, fc *flowContext) error {
	params := url.Values{
		"client_id":             {f.endpoints.ClientID},
		"redirect_uri":          {f.endpoints.RedirectURI},
		"response_type":         {"code"},
		"scope":                 {f.endpoints.Scope},
		"code_challenge":        {material.Challenge},
		"code_challenge_method": {"S256"},
		"state":                 {material.State},
		"login_hint":            {username},
	}
	fc.authorizeURL = f.endpoints.AuthorizeURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fc.authorizeURL, nil)
	if err != nil {
		return fmt.Errorf("b2c authorize: create request failed: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("b2c authorize: request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("b2c authorize: read response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &ProtocolError{State: StateInit, Detail: fmt.Sprintf("authorize request returned HTTP %d", resp.StatusCode)}
	}

	csrf, transID, ok := scrapeSettings(string(body))
	if !ok {
		log.Error("b2c authorize: SETTINGS block missing CSRF token or transaction id")
		return &ProtocolError{State: StateInit, Detail: "SETTINGS block not found in login page"}
	}
	fc.csrfToken = csrf
	fc.transactionID = transID
	log.Debugf("b2c authorize: got transaction id %s", transID)
	return nil
}

// submitCredentials POSTs the identity and secret to the self-asserted
// endpoint. A non-200 response or a status field other than 200 is a
// credential rejection, not a protocol failure.
func (f *Flow) submitCredentials(ctx context.Context, username, password string, fc *flowContext) error {
	form := url.Values{
		"request_type": {"RESPONSE"},
		"email":        {username},
		"password":     {password},
	}
	query := url.Values{
		"tx": {fc.transactionID},
		"p":  {f.endpoints.Policy},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.endpoints.SelfAssertedURL+"?"+query.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("b2c self-asserted: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-CSRF-TOKEN", fc.csrfToken)
	req.Header.Set("Referer", fc.authorizeURL)
	req.Header.Set("Origin", f.endpoints.Origin)
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("b2c self-asserted: request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("b2c self-asserted: read response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &CredentialsError{Status: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	// The endpoint answers with content type text/json.
	if status := gjson.GetBytes(body, "status"); status.String() != selfAssertedSuccess {
		return &CredentialsError{Status: status.String()}
	}
	return nil
}

// confirmRedirect completes the policy without following redirects and
// decodes the authorization code from the Location header.
func (f *Flow) confirmRedirect(ctx context.Context, material *Material, fc *flowContext) error {
	query := url.Values{
		"csrf_token": {fc.csrfToken},
		"tx":         {fc.transactionID},
		"p":          {f.endpoints.Policy},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.endpoints.ConfirmURL+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("b2c confirm: create request failed: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	// Redirects must not be followed here: the Location target is the
	// app's custom scheme, not a fetchable URL.
	client := *f.client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("b2c confirm: request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusFound {
		return &ProtocolError{State: StateCredentialsSubmitted, Detail: fmt.Sprintf("confirm request returned HTTP %d, expected 302", resp.StatusCode)}
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return &ProtocolError{State: StateCredentialsSubmitted, Detail: "Location header missing from confirm response"}
	}

	state, code, err := decodeRedirect(location)
	if err != nil {
		return &ProtocolError{State: StateCredentialsSubmitted, Detail: "confirm redirect location is not a valid URL", Cause: err}
	}
	if state != "" && state != material.State {
		return &ProtocolError{State: StateCredentialsSubmitted, Detail: "confirm redirect returned a mismatched state nonce"}
	}
	if code == "" {
		return &ProtocolError{State: StateCredentialsSubmitted, Detail: "authorization code missing from confirm redirect"}
	}
	fc.code = code
	return nil
}

// exchangeCode trades the authorization code and PKCE verifier for tokens.
func (f *Flow) exchangeCode(ctx context.Context, material *Material, code string) (*TokenPayload, error) {
	token, err := f.oauthConfig().Exchange(f.oauthContext(ctx), code,
		oauth2.SetAuthURLParam("code_verifier", material.Verifier))
	if err != nil {
		return nil, &ProtocolError{State: StateRedirectConfirmed, Detail: "token exchange failed", Cause: err}
	}
	return payloadFromToken(token), nil
}

// Refresh performs a token-endpoint-only exchange with a refresh token,
// skipping the page choreography entirely.
func (f *Flow) Refresh(ctx context.Context, refreshToken string) (*TokenPayload, error) {
	source := f.oauthConfig().TokenSource(f.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("b2c refresh: token request failed: %w", err)
	}
	return payloadFromToken(token), nil
}

func (f *Flow) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    f.endpoints.ClientID,
		RedirectURL: f.endpoints.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  f.endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (f *Flow) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.client)
}

func payloadFromToken(token *oauth2.Token) *TokenPayload {
	payload := &TokenPayload{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if id, ok := token.Extra("id_token").(string); ok {
		payload.IDToken = id
	}
	return payload
}
