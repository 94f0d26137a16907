package auth

import (
	"net/http"
	"strings"
)

// Vendor endpoint bases and header constants.
const (
	// LegacyBaseURL is the mobile gateway used by the device-credential variant.
	LegacyBaseURL = "https://my.anglianwater.co.uk/mobile/api"
	// AppBaseURL is the APIM gateway used by the B2C variant.
	AppBaseURL = "https://myaccount-api.anglianwater.co.uk"

	// LegacyAppKey identifies the mobile app build to the legacy gateway.
	LegacyAppKey = "2.7$1.9.3$Android$samsung$SM-N9005$11"
	// legacyPartnerKeyFormat composes the Partnerkey header:
	// Mobile$<email>$<account>$<device>$<app key>.
	legacyPartnerKeyFormat = "Mobile$%s$%s$%s$%s"

	// SubscriptionKey is the fixed Ocp-Apim-Subscription-Key the APIM
	// gateway requires on every authenticated call.
	SubscriptionKey = "adbc43b29a87404cbc297fe6d7a3d10e"
	// AppUserAgent is the user agent the vendor's app sends; the gateway
	// rejects unrecognised agents.
	AppUserAgent = "MyAccount/3.0.22 (Android 11; SM-N9005)"

	// EndpointLogin is the only endpoint dispatchable without a token.
	EndpointLogin = "login"
	// accountPlaceholder marks where the account number is substituted in
	// app path templates.
	accountPlaceholder = "{ACCOUNT_ID}"
)

// EndpointDescriptor is the immutable method + path template for one
// logical endpoint. Descriptors are shared read-only across all
// authenticator instances of a variant.
type EndpointDescriptor struct {
	Method string
	Path   string
}

// Catalog maps logical endpoint names to descriptors for one variant.
type Catalog map[string]EndpointDescriptor

// Resolve looks up a logical endpoint name and substitutes the account
// number into its path template. The boolean is false when the name is not
// in the catalog.
func (c Catalog) Resolve(name, accountID string) (EndpointDescriptor, bool) {
	desc, ok := c[name]
	if !ok {
		return EndpointDescriptor{}, false
	}
	desc.Path = strings.ReplaceAll(desc.Path, accountPlaceholder, accountID)
	return desc, true
}

// LegacyCatalog lists the mobile gateway endpoints.
var LegacyCatalog = Catalog{
	EndpointLogin:           {Method: http.MethodPost, Path: "/Login"},
	"register_device":       {Method: http.MethodPost, Path: "/UpdateProfileSetupSAP"},
	"get_dashboard_details": {Method: http.MethodPost, Path: "/GetDashboardDetails"},
	"get_bills_payments":    {Method: http.MethodPost, Path: "/GetBillsAndPayments"},
	"get_usage_details":     {Method: http.MethodPost, Path: "/GetMyUsagesDetailsFromAWBI"},
}

// AppCatalog lists the APIM gateway endpoints used by the B2C variant.
var AppCatalog = Catalog{
	"get_dashboard_details": {Method: http.MethodGet, Path: "/dashboard/" + accountPlaceholder},
	"get_bills_payments":    {Method: http.MethodGet, Path: "/billing/" + accountPlaceholder + "/bills-and-payments"},
	"get_usage_details":     {Method: http.MethodGet, Path: "/usage/" + accountPlaceholder + "/smart-meter"},
}
