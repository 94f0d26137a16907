package msob2c

// B2C tenant constants for the vendor's sign-in policy. The client id and
// redirect URI are the mobile app's registration; they are fixed by the
// vendor and not negotiable.
const (
	policyBase = "https://anglianwaterb2c.b2clogin.com/anglianwaterb2c.onmicrosoft.com/B2C_1A_SIGNUP_SIGNIN"

	// ClientID is the app registration used by the vendor's mobile client.
	ClientID = "f80dd203-4e1c-4d61-84a7-4b3bbf90f71e"
	// RedirectURI is the app's registered redirect; the confirm step's
	// Location header points at it with the authorization code attached.
	RedirectURI = "com.anglianwater.myaccount://oauth/redirect"
)

// Endpoints collects the URLs and client identity the flow engine drives.
// The zero value is not usable; call DefaultEndpoints and override fields
// only for testing against a stand-in server.
type Endpoints struct {
	// AuthorizeURL serves the login page embedding the SETTINGS block.
	AuthorizeURL string
	// SelfAssertedURL accepts the credential form, keyed by transaction id.
	SelfAssertedURL string
	// ConfirmURL completes the policy and redirects with the code.
	ConfirmURL string
	// TokenURL is the OAuth2 token endpoint.
	TokenURL string
	// Origin is sent on the self-asserted POST.
	Origin string
	// Policy is the B2C policy name echoed in query strings.
	Policy string
	// ClientID and RedirectURI identify the OAuth client.
	ClientID    string
	RedirectURI string
	// Scope requested on the authorize step.
	Scope string
}

// DefaultEndpoints returns the production B2C endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthorizeURL:    policyBase + "/oauth2/v2.0/authorize",
		SelfAssertedURL: policyBase + "/SelfAsserted",
		ConfirmURL:      policyBase + "/api/CombinedSigninAndSignup/confirmed",
		TokenURL:        policyBase + "/oauth2/v2.0/token",
		Origin:          "https://anglianwaterb2c.b2clogin.com",
		Policy:          "B2C_1A_SIGNUP_SIGNIN",
		ClientID:        ClientID,
		RedirectURI:     RedirectURI,
		Scope:           "openid offline_access " + ClientID,
	}
}
