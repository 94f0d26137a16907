package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// legacyRefreshLead is how long a legacy session token is trusted before
// the lightweight login request is re-run. The gateway reports no explicit
// expiry claim, so the deadline is a fixed safety interval.
const legacyRefreshLead = 15 * time.Minute

// DeviceCredentialAuth drives the legacy mobile gateway: a lightweight
// login request bound to a registered device id, with partner-key header
// composition on every call.
type DeviceCredentialAuth struct {
	mu sync.Mutex

	cred            Credential
	tok             TokenState
	refreshDeadline time.Time
	client          *http.Client
	base            string

	// primaryBPNumber is the business-partner number learned at login and
	// echoed back in registration and billing bodies.
	primaryBPNumber string
	// newDevice marks that the device id was generated locally and the
	// one-time registration warm-up sequence still has to run.
	newDevice  bool
	warmupDone bool
	// loggingIn suppresses re-entrant refreshes while the login sequence
	// (including its warm-up calls) is in flight.
	loggingIn bool
}

// NewDeviceCredentialAuth constructs the legacy authenticator. When
// deviceID is empty a fresh id is generated and the first successful login
// runs the device-registration warm-up sequence; supplying a previously
// retained id resumes the existing session and skips the warm-ups
// entirely. A nil httpClient selects a default client with a bounded
// timeout.
func NewDeviceCredentialAuth(username, password, deviceID string, httpClient *http.Client) *DeviceCredentialAuth {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	a := &DeviceCredentialAuth{
		cred:   Credential{Username: username, Password: password, DeviceID: deviceID},
		client: httpClient,
		base:   LegacyBaseURL,
	}
	if _, generated := a.cred.EnsureDeviceID(); generated {
		a.newDevice = true
		log.Debugf("generated device id %s; retain it to resume this session later", a.cred.DeviceID)
	}
	return a
}

// Login performs the login request and, for a newly generated device id,
// the one-time registration warm-up sequence.
func (a *DeviceCredentialAuth) Login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginLocked(ctx)
}

// EnsureFresh re-runs the login request once the refresh deadline has
// passed. Calling it again before the deadline is a no-op.
func (a *DeviceCredentialAuth) EnsureFresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ensureFreshLocked(ctx, false)
}

// Dispatch executes an authenticated call against a named legacy endpoint.
func (a *DeviceCredentialAuth) Dispatch(ctx context.Context, endpoint string, body []byte) (gjson.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return execute(ctx, a, endpoint, body)
}

// Headers returns the current legacy header set.
func (a *DeviceCredentialAuth) Headers() http.Header {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.headers()
}

// Snapshot captures the device id and account needed to resume this
// session without re-running device registration.
func (a *DeviceCredentialAuth) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Username:  a.cred.Username,
		AccountID: a.cred.AccountID,
		DeviceID:  a.cred.DeviceID,
	}
}

func (a *DeviceCredentialAuth) loginLocked(ctx context.Context) error {
	a.loggingIn = true
	defer func() { a.loggingIn = false }()

	body, _ := sjson.SetBytes([]byte(`{"RememberMe":true}`), "UserName", a.cred.Username)
	body, _ = sjson.SetBytes(body, "Password", a.cred.Password)
	body, _ = sjson.SetBytes(body, "DeviceId", a.cred.DeviceID)

	result, err := execute(ctx, a, EndpointLogin, body)
	if err != nil {
		return err
	}

	authToken := result.Get("Data.0.AuthToken")
	if !authToken.Exists() || authToken.String() == "" {
		return &FlowProtocolError{Step: "login", Detail: "AuthToken missing from login response"}
	}
	a.tok = TokenState{
		AccessToken: authToken.String(),
		IssuedAt:    time.Now(),
	}
	a.cred.AccountID = result.Get("Data.0.ActualAccountNo").String()
	a.primaryBPNumber = result.Get("Data.0.ActualBPNumber").String()
	a.refreshDeadline = time.Now().Add(legacyRefreshLead)
	log.Debugf("legacy login successful for account %s", a.cred.AccountID)

	if a.newDevice && !a.warmupDone {
		// The warm-up calls authenticate with the token issued above. If
		// registration does not complete, drop the session again so the
		// device cannot dispatch until a later login finishes the sequence.
		if err = a.sendRegistrationWarmup(ctx); err != nil {
			a.tok.Clear()
			a.refreshDeadline = time.Time{}
			return err
		}
		a.warmupDone = true
	}
	return nil
}

// sendRegistrationWarmup issues the fixed one-time registration sequence
// the vendor app performs for a new device id: two registration calls with
// a toggled pattern flag, then two informational warm-up calls.
func (a *DeviceCredentialAuth) sendRegistrationWarmup(ctx context.Context) error {
	log.Debug("new device id: sending one-time registration queries")
	for _, pattern := range []bool{false, true} {
		body := a.registrationBody(pattern)
		if _, err := execute(ctx, a, "register_device", body); err != nil {
			return fmt.Errorf("device registration failed: %w", err)
		}
	}

	dashboard, _ := sjson.SetBytes([]byte(`{"LanguageId":1}`), "ActualAccountNumber", a.cred.AccountID)
	dashboard, _ = sjson.SetBytes(dashboard, "EmailAddress", a.cred.Username)
	if _, err := execute(ctx, a, "get_dashboard_details", dashboard); err != nil {
		return fmt.Errorf("dashboard warm-up failed: %w", err)
	}

	now := time.Now()
	bills, _ := sjson.SetBytes([]byte(`{}`), "ActualAccountNo", a.cred.AccountID)
	bills, _ = sjson.SetBytes(bills, "EmailAddress", a.cred.Username)
	bills, _ = sjson.SetBytes(bills, "PrimaryBPNumber", a.primaryBPNumber)
	bills, _ = sjson.SetBytes(bills, "SelectedStartDate", now.AddDate(-5, 0, 0).Format("02/01/2006"))
	bills, _ = sjson.SetBytes(bills, "SelectedEndDate", now.Format("02/01/2006"))
	if _, err := execute(ctx, a, "get_bills_payments", bills); err != nil {
		return fmt.Errorf("billing warm-up failed: %w", err)
	}
	return nil
}

func (a *DeviceCredentialAuth) registrationBody(patternSetup bool) []byte {
	body, _ := sjson.SetBytes([]byte(`{"DeviceOs":"Android","EnableNotif":true,"LanguageSetup":"en","PreviousEmailId":"","Regikey":""}`), "DeviceId", a.cred.DeviceID)
	body, _ = sjson.SetBytes(body, "EmailId", a.cred.Username)
	body, _ = sjson.SetBytes(body, "Partner", a.primaryBPNumber)
	body, _ = sjson.SetBytes(body, "PartternSetup", patternSetup)
	body, _ = sjson.SetBytes(body, "Vkont", a.cred.AccountID)
	return body
}

func (a *DeviceCredentialAuth) ensureFreshLocked(ctx context.Context, force bool) error {
	if a.loggingIn {
		// The token in hand is already the freshest the gateway can issue.
		return nil
	}
	if !force {
		if !a.tok.Authenticated() {
			// Nothing to refresh; the dispatcher rejects the call.
			return nil
		}
		if time.Now().Before(a.refreshDeadline) {
			return nil
		}
	}
	a.refreshDeadline = time.Time{}
	log.Debug("refreshing legacy session token")
	return a.loginLocked(ctx)
}

func (a *DeviceCredentialAuth) catalog() Catalog { return LegacyCatalog }

func (a *DeviceCredentialAuth) baseURL() string { return a.base }

func (a *DeviceCredentialAuth) httpClient() *http.Client { return a.client }

func (a *DeviceCredentialAuth) token() *TokenState { return &a.tok }

func (a *DeviceCredentialAuth) account() string { return a.cred.AccountID }

// headers composes the legacy header set. The partner key embeds the
// identity, account and device id, so it changes across the login
// boundary and is rebuilt for every call.
func (a *DeviceCredentialAuth) headers() http.Header {
	h := http.Header{}
	h.Set("ApplicationKey", LegacyAppKey)
	h.Set("Partnerkey", a.partnerKey())
	h.Set("Accept", "application/json")
	if a.tok.Authenticated() {
		h.Set("Authorization", a.tok.AccessToken)
	}
	return h
}

func (a *DeviceCredentialAuth) partnerKey() string {
	if !a.tok.Authenticated() {
		return fmt.Sprintf(legacyPartnerKeyFormat, "undefined", "undefined", a.cred.DeviceID, LegacyAppKey)
	}
	return fmt.Sprintf(legacyPartnerKeyFormat, a.cred.Username, a.cred.AccountID, a.cred.DeviceID, LegacyAppKey)
}
