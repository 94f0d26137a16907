package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/pantherale0/go-anglianwater/internal/auth"
	"github.com/pantherale0/go-anglianwater/internal/water"
)

type stubAuthenticator struct{}

func (stubAuthenticator) Login(context.Context) error       { return nil }
func (stubAuthenticator) EnsureFresh(context.Context) error { return nil }
func (stubAuthenticator) Headers() http.Header              { return http.Header{} }
func (stubAuthenticator) Snapshot() auth.Snapshot           { return auth.Snapshot{} }

func (stubAuthenticator) Dispatch(_ context.Context, endpoint string, _ []byte) (gjson.Result, error) {
	if endpoint == "get_usage_details" {
		return gjson.Parse(`{"records":[
			{"date":"2026-08-30","meters":[{"meter_serial_number":"SM001","consumption":150,"read":846.510}]}
		]}`), nil
	}
	return gjson.Parse(`{}`), nil
}

func newTestServer(t *testing.T, updated bool) *httptest.Server {
	t.Helper()
	svc, err := water.NewService(stubAuthenticator{}, water.DefaultTariffTable(), "Anglian", "standard", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated {
		if err = svc.Update(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	bridge := NewServer(svc, 0)
	srv := httptest.NewServer(bridge.server.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var body map[string]any
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, true)
	body := getJSON(t, srv.URL+"/healthz", http.StatusOK)
	if ok, _ := body["ok"].(bool); !ok {
		t.Errorf("healthz ok = %v after an update", body["ok"])
	}
}

func TestHealthzBeforeFirstUpdate(t *testing.T) {
	srv := newTestServer(t, false)
	body := getJSON(t, srv.URL+"/healthz", http.StatusServiceUnavailable)
	if ok, _ := body["ok"].(bool); ok {
		t.Error("healthz should not report ok before the first update")
	}
}

func TestMetersEndpoint(t *testing.T) {
	srv := newTestServer(t, true)
	body := getJSON(t, srv.URL+"/api/meters", http.StatusOK)
	meters, _ := body["meters"].([]any)
	if len(meters) != 1 {
		t.Fatalf("meters = %v, want one entry", body["meters"])
	}
	meter, _ := meters[0].(map[string]any)
	if meter["serial_number"] != "SM001" {
		t.Errorf("serial_number = %v", meter["serial_number"])
	}
	if meter["latest_read"] != 846.510 {
		t.Errorf("latest_read = %v", meter["latest_read"])
	}
}

func TestUsageEndpoint(t *testing.T) {
	srv := newTestServer(t, true)

	body := getJSON(t, srv.URL+"/api/usage", http.StatusOK)
	usage, _ := body["usage"].(map[string]any)
	if _, ok := usage["SM001"]; !ok {
		t.Errorf("usage = %v, want SM001 history", body["usage"])
	}

	getJSON(t, srv.URL+"/api/usage?serial=SM001", http.StatusOK)
	getJSON(t, srv.URL+"/api/usage?serial=NOPE", http.StatusNotFound)
}
