package msob2c

import "testing"

func TestScrapeSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		html      string
		wantCSRF  string
		wantTrans string
		wantOK    bool
	}{
		{
			"well formed page",
			`<html><script>var SETTINGS = {"csrf":"tok123","transId":"StateProperties=abc","hosts":{}};</script></html>`,
			"tok123", "StateProperties=abc", true,
		},
		{
			"no settings block",
			`<html><body>maintenance</body></html>`,
			"", "", false,
		},
		{
			"settings without csrf",
			`<script>var SETTINGS = {"transId":"abc"};</script>`,
			"", "", false,
		},
		{
			"settings without transId",
			`<script>var SETTINGS = {"csrf":"tok123"};</script>`,
			"", "", false,
		},
		{
			"empty values",
			`<script>var SETTINGS = {"csrf":"","transId":""};</script>`,
			"", "", false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			csrf, transID, ok := scrapeSettings(tt.html)
			if ok != tt.wantOK {
				t.Fatalf("scrapeSettings() ok = %v, want %v", ok, tt.wantOK)
			}
			if csrf != tt.wantCSRF || transID != tt.wantTrans {
				t.Errorf("scrapeSettings() = (%q, %q), want (%q, %q)", csrf, transID, tt.wantCSRF, tt.wantTrans)
			}
		})
	}
}

func TestDecodeRedirect(t *testing.T) {
	t.Parallel()

	state, code, err := decodeRedirect("com.anglianwater.myaccount://oauth/redirect?state=abc123&code=eyJraWQi")
	if err != nil {
		t.Fatalf("decodeRedirect() error = %v", err)
	}
	if state != "abc123" || code != "eyJraWQi" {
		t.Errorf("decodeRedirect() = (%q, %q)", state, code)
	}

	_, code, err = decodeRedirect("com.anglianwater.myaccount://oauth/redirect?error=access_denied")
	if err != nil {
		t.Fatalf("decodeRedirect() error = %v", err)
	}
	if code != "" {
		t.Errorf("code = %q, want empty for error redirect", code)
	}
}
