package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/pantherale0/go-anglianwater/internal/auth/msob2c"
	"github.com/pantherale0/go-anglianwater/internal/util"
)

// b2cRefreshLead is how far before the declared expiry a refresh is
// scheduled, so a token is never presented in its final seconds.
const b2cRefreshLead = 5 * time.Minute

// OAuthPKCEAuth drives the Azure AD B2C variant: the full PKCE
// browser-emulation flow for login, bearer plus subscription-key headers
// on calls, and a refresh-token grant with full-flow fallback on expiry.
type OAuthPKCEAuth struct {
	mu sync.Mutex

	cred            Credential
	tok             TokenState
	refreshDeadline time.Time

	// client issues API calls; flowClient carries the login choreography
	// (cookie jar, browser TLS fingerprint).
	client     *http.Client
	flowClient *http.Client
	endpoints  msob2c.Endpoints
	base       string
}

// NewOAuthPKCEAuth constructs the B2C authenticator. refreshToken may
// carry a previously snapshotted token so the first EnsureFresh can skip
// the full flow. A nil httpClient selects a default client with a bounded
// timeout; the login flow always uses its own cookie-jar client.
func NewOAuthPKCEAuth(username, password, accountID, refreshToken string, httpClient *http.Client) *OAuthPKCEAuth {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	return &OAuthPKCEAuth{
		cred:       Credential{Username: username, Password: password, AccountID: accountID},
		tok:        TokenState{RefreshToken: refreshToken},
		client:     httpClient,
		flowClient: msob2c.NewFlowHTTPClient(""),
		endpoints:  msob2c.DefaultEndpoints(),
		base:       AppBaseURL,
	}
}

// SetProxy routes both the API client and the login flow client through
// the given proxy URL. It must be called before the first login.
func (a *OAuthPKCEAuth) SetProxy(proxyURL string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flowClient = msob2c.NewFlowHTTPClient(proxyURL)
	a.client = util.SetProxy(proxyURL, a.client)
}

// Login executes the PKCE flow engine in full and commits the resulting
// token state atomically. On failure the prior token state is unchanged.
func (a *OAuthPKCEAuth) Login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginLocked(ctx)
}

// EnsureFresh refreshes the token once the refresh deadline has passed,
// preferring a token-endpoint-only exchange when a refresh token is held
// and falling back to the full flow if that is rejected.
func (a *OAuthPKCEAuth) EnsureFresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ensureFreshLocked(ctx, false)
}

// Dispatch executes an authenticated call against a named app endpoint.
func (a *OAuthPKCEAuth) Dispatch(ctx context.Context, endpoint string, body []byte) (gjson.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return execute(ctx, a, endpoint, body)
}

// Headers returns the current authenticated header set.
func (a *OAuthPKCEAuth) Headers() http.Header {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.headers()
}

// Snapshot captures the refresh token a caller may persist to shortcut
// the next login.
func (a *OAuthPKCEAuth) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Username:     a.cred.Username,
		AccountID:    a.cred.AccountID,
		RefreshToken: a.tok.RefreshToken,
	}
}

func (a *OAuthPKCEAuth) loginLocked(ctx context.Context) error {
	// PKCE material is regenerated for every attempt and never reused.
	material, err := msob2c.NewMaterial()
	if err != nil {
		return &ServiceUnavailableError{Detail: "generating PKCE material failed", Cause: err}
	}

	flow := msob2c.NewFlow(a.endpoints, a.flowClient, AppUserAgent)
	payload, err := flow.Run(ctx, a.cred.Username, a.cred.Password, material)
	if err != nil {
		return mapFlowError(err)
	}

	a.commit(payload)
	log.Debug("b2c login successful")
	return nil
}

// commit atomically writes a flow outcome into the token state and sets
// the refresh deadline a safety margin before the declared expiry.
func (a *OAuthPKCEAuth) commit(payload *msob2c.TokenPayload) {
	a.tok = TokenState{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		IssuedAt:     time.Now(),
		ExpiresAt:    payload.Expiry,
	}
	if payload.Expiry.IsZero() {
		a.refreshDeadline = time.Now().Add(b2cRefreshLead)
		return
	}
	a.refreshDeadline = payload.Expiry.Add(-b2cRefreshLead)
}

func (a *OAuthPKCEAuth) ensureFreshLocked(ctx context.Context, force bool) error {
	if !force {
		if !a.tok.Authenticated() && a.tok.RefreshToken == "" {
			// Nothing to refresh; the dispatcher rejects the call.
			return nil
		}
		if a.tok.Authenticated() && time.Now().Before(a.refreshDeadline) {
			return nil
		}
	}
	a.refreshDeadline = time.Time{}

	if a.tok.RefreshToken != "" {
		flow := msob2c.NewFlow(a.endpoints, a.flowClient, AppUserAgent)
		payload, err := flow.Refresh(ctx, a.tok.RefreshToken)
		if err == nil {
			a.commit(payload)
			log.Debug("b2c refresh token exchange successful")
			return nil
		}
		log.Warnf("b2c refresh token rejected, falling back to full login flow: %v", err)
	}
	return a.loginLocked(ctx)
}

func (a *OAuthPKCEAuth) catalog() Catalog { return AppCatalog }

func (a *OAuthPKCEAuth) baseURL() string { return a.base }

func (a *OAuthPKCEAuth) httpClient() *http.Client { return a.client }

func (a *OAuthPKCEAuth) token() *TokenState { return &a.tok }

func (a *OAuthPKCEAuth) account() string { return a.cred.AccountID }

// headers composes the bearer header set the APIM gateway requires. The
// subscription key and user agent are vendor-fixed.
func (a *OAuthPKCEAuth) headers() http.Header {
	h := http.Header{}
	h.Set("Ocp-Apim-Subscription-Key", SubscriptionKey)
	h.Set("Accept", "application/json")
	h.Set("User-Agent", AppUserAgent)
	if a.tok.Authenticated() {
		h.Set("Authorization", "Bearer "+a.tok.AccessToken)
	}
	return h
}

// mapFlowError converts the flow engine's failures into the session
// taxonomy: credential rejections halt the attempt, structural violations
// signal the vendor changed its flow, and anything else is treated as a
// remote outage.
func mapFlowError(err error) error {
	var credErr *msob2c.CredentialsError
	if errors.As(err, &credErr) {
		return &InvalidCredentialsError{Detail: credErr.Status}
	}
	var protoErr *msob2c.ProtocolError
	if errors.As(err, &protoErr) {
		return &FlowProtocolError{Step: string(protoErr.State), Detail: protoErr.Detail, Cause: protoErr.Cause}
	}
	return &ServiceUnavailableError{Detail: "b2c login flow failed", Cause: err}
}
