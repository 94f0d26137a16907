package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Authenticator is the capability set shared by both login variants. A
// single instance owns its Credential and TokenState exclusively;
// operations on one instance are serialised internally, so it is safe to
// share across goroutines.
type Authenticator interface {
	// Login performs the full credential exchange for the variant.
	Login(ctx context.Context) error
	// EnsureFresh refreshes the token when the refresh deadline has
	// passed; otherwise it is a no-op.
	EnsureFresh(ctx context.Context) error
	// Dispatch executes an authenticated call against a named catalog
	// endpoint and returns the parsed JSON body or a typed failure.
	Dispatch(ctx context.Context, endpoint string, body []byte) (gjson.Result, error)
	// Headers returns the variant's current authenticated header set.
	Headers() http.Header
	// Snapshot captures the credentials a caller may persist to resume
	// this session later.
	Snapshot() Snapshot
}

// Snapshot is the externally persistable subset of a session: enough to
// resume without re-running device registration or the full login flow.
type Snapshot struct {
	Username     string `json:"username"`
	AccountID    string `json:"account_id,omitempty"`
	DeviceID     string `json:"device_id,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// session is the dispatcher-facing surface of an authenticator variant.
// All methods assume the variant's lock is already held.
type session interface {
	catalog() Catalog
	baseURL() string
	headers() http.Header
	httpClient() *http.Client
	token() *TokenState
	account() string
	ensureFreshLocked(ctx context.Context, force bool) error
}

// defaultHTTPClient builds the per-variant HTTP client used when the
// caller does not supply one.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// requestTimeout bounds every single network call issued by a dispatcher.
const requestTimeout = 30 * time.Second
