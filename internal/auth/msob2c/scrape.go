package msob2c

import (
	"net/url"
	"regexp"

	"github.com/tidwall/gjson"
)

// settingsPattern matches the SETTINGS object the B2C login page embeds in
// an inline script. The capture includes the braces so the blob can be
// probed as JSON.
var settingsPattern = regexp.MustCompile(`var SETTINGS = (\{[^;]+\});`)

// scrapeSettings extracts the CSRF token and transaction id from the login
// page HTML. Both are required for the credential-submission step; absence
// of either means the vendor changed its page layout.
func scrapeSettings(html string) (csrfToken, transactionID string, ok bool) {
	match := settingsPattern.FindStringSubmatch(html)
	if match == nil {
		return "", "", false
	}
	blob := match[1]
	csrf := gjson.Get(blob, "csrf")
	transID := gjson.Get(blob, "transId")
	if !csrf.Exists() || !transID.Exists() || csrf.String() == "" || transID.String() == "" {
		return "", "", false
	}
	return csrf.String(), transID.String(), true
}

// decodeRedirect extracts the state nonce and authorization code from the
// confirm step's Location header.
func decodeRedirect(location string) (state, code string, err error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return "", "", err
	}
	query := parsed.Query()
	return query.Get("state"), query.Get("code"), nil
}
