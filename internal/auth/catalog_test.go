package auth

import (
	"net/http"
	"testing"
)

func TestCatalogResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		catalog    Catalog
		endpoint   string
		accountID  string
		wantOK     bool
		wantMethod string
		wantPath   string
	}{
		{
			"legacy login",
			LegacyCatalog, EndpointLogin, "",
			true, http.MethodPost, "/Login",
		},
		{
			"legacy usage",
			LegacyCatalog, "get_usage_details", "0123456789",
			true, http.MethodPost, "/GetMyUsagesDetailsFromAWBI",
		},
		{
			"app usage substitutes account",
			AppCatalog, "get_usage_details", "0123456789",
			true, http.MethodGet, "/usage/0123456789/smart-meter",
		},
		{
			"app dashboard substitutes account",
			AppCatalog, "get_dashboard_details", "555",
			true, http.MethodGet, "/dashboard/555",
		},
		{
			"unknown name",
			LegacyCatalog, "get_unicorns", "0123456789",
			false, "", "",
		},
		{
			"login absent from app catalog",
			AppCatalog, EndpointLogin, "0123456789",
			false, "", "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			desc, ok := tt.catalog.Resolve(tt.endpoint, tt.accountID)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.endpoint, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if desc.Method != tt.wantMethod || desc.Path != tt.wantPath {
				t.Errorf("Resolve(%q) = %s %s, want %s %s", tt.endpoint, desc.Method, desc.Path, tt.wantMethod, tt.wantPath)
			}
		})
	}
}

func TestCatalogResolveDoesNotMutateTemplate(t *testing.T) {
	t.Parallel()
	if _, ok := AppCatalog.Resolve("get_usage_details", "111"); !ok {
		t.Fatal("first resolve failed")
	}
	desc, ok := AppCatalog.Resolve("get_usage_details", "222")
	if !ok || desc.Path != "/usage/222/smart-meter" {
		t.Errorf("template was mutated by a prior resolve: %q", desc.Path)
	}
}
