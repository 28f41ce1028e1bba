package aadclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/telekom/pod-identity-operator/pkg/aadclient"
)

func newTestClient(t *testing.T, server *httptest.Server) *aadclient.Client {
	t.Helper()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("unable to parse test server URL: %v", err)
	}

	log := zap.New(zap.WriteTo(io.Discard))
	return &aadclient.Client{
		HTTPClient: server.Client(),
		Authority:  *u,
		Metadata:   *u,
		Log:        &log,
		Retry: wait.Backoff{
			Duration: time.Millisecond,
			Factor:   1.0,
			Steps:    3,
		},
	}
}

func TestUserAssignedToken(t *testing.T) {
	var gotRequest *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "header.payload.signature",
			"client_id": "11111111-2222-3333-4444-555555555555",
			"expires_in": "3599",
			"expires_on": "1586984735",
			"resource": "https://management.azure.com/",
			"token_type": "Bearer"
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	token, err := client.UserAssignedToken(context.Background(), "11111111-2222-3333-4444-555555555555", "https://management.azure.com/")
	if err != nil {
		t.Fatalf("UserAssignedToken() error = %v", err)
	}

	if token.AccessToken != "header.payload.signature" {
		t.Errorf("AccessToken = %q, want %q", token.AccessToken, "header.payload.signature")
	}
	if token.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", token.TokenType)
	}

	if gotRequest.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", gotRequest.Method)
	}
	if gotRequest.URL.Path != "/metadata/identity/oauth2/token" {
		t.Errorf("path = %q, want /metadata/identity/oauth2/token", gotRequest.URL.Path)
	}
	if gotRequest.Header.Get("Metadata") != "true" {
		t.Error("expected Metadata:true header on IMDS request")
	}
	query := gotRequest.URL.Query()
	if query.Get("client_id") != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("client_id query = %q", query.Get("client_id"))
	}
	if query.Get("resource") != "https://management.azure.com/" {
		t.Errorf("resource query = %q", query.Get("resource"))
	}
	if query.Get("api-version") == "" {
		t.Error("expected api-version query parameter")
	}
}

func TestUserAssignedToken_ClientErrorIsTerminal(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid_request", "error_description": "Identity not found"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.UserAssignedToken(context.Background(), "unknown", "https://management.azure.com/")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	var providerErr *aadclient.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if providerErr.Unavailable {
		t.Error("4xx response must not be classified as unavailable")
	}
	if providerErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", providerErr.StatusCode)
	}
	if providerErr.Code != "invalid_request" {
		t.Errorf("Code = %q, want invalid_request", providerErr.Code)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("4xx response was retried: %d attempts", got)
	}
}

func TestUserAssignedToken_ServerErrorIsRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.UserAssignedToken(context.Background(), "11111111", "https://management.azure.com/")
	if err == nil {
		t.Fatal("expected error for persistent 500 responses")
	}

	var providerErr *aadclient.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if !providerErr.Unavailable {
		t.Error("5xx response must be classified as unavailable")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (retry budget)", got)
	}
}

func TestUserAssignedToken_RecoversWithinRetryBudget(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"access_token": "recovered", "expires_on": "1586984735", "token_type": "Bearer"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	token, err := client.UserAssignedToken(context.Background(), "11111111", "https://management.azure.com/")
	if err != nil {
		t.Fatalf("expected recovery after one 503, got %v", err)
	}
	if token.AccessToken != "recovered" {
		t.Errorf("AccessToken = %q, want recovered", token.AccessToken)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestUserAssignedToken_NetworkErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, server)
	server.Close()

	_, err := client.UserAssignedToken(context.Background(), "11111111", "https://management.azure.com/")
	if err == nil {
		t.Fatal("expected error against closed server")
	}

	var providerErr *aadclient.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if !providerErr.Unavailable {
		t.Error("transport error must be classified as unavailable")
	}
}

func TestUserAssignedToken_EmptyArguments(t *testing.T) {
	client, err := aadclient.New(aadclient.Config{}, aadclient.Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.UserAssignedToken(context.Background(), "", "https://management.azure.com/"); err == nil {
		t.Error("expected error for empty clientID")
	}
	if _, err := client.UserAssignedToken(context.Background(), "11111111", ""); err == nil {
		t.Error("expected error for empty resource")
	}
}

func TestServicePrincipalToken(t *testing.T) {
	var gotPath string
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "sp-token",
			"expires_in": "3599",
			"expires_on": "1586984735",
			"resource": "https://vault.azure.net",
			"token_type": "Bearer"
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	cred := aadclient.Credential{
		ClientID:     "app-client-id",
		ClientSecret: "app-secret",
		TenantID:     "tenant-id",
	}
	token, err := client.ServicePrincipalToken(context.Background(), cred, "https://vault.azure.net")
	if err != nil {
		t.Fatalf("ServicePrincipalToken() error = %v", err)
	}

	if token.AccessToken != "sp-token" {
		t.Errorf("AccessToken = %q, want sp-token", token.AccessToken)
	}
	if gotPath != "/tenant-id/oauth2/token" {
		t.Errorf("path = %q, want /tenant-id/oauth2/token", gotPath)
	}
	if gotForm.Get("grant_type") != "client_credentials" {
		t.Errorf("grant_type = %q, want client_credentials", gotForm.Get("grant_type"))
	}
	if gotForm.Get("client_id") != "app-client-id" {
		t.Errorf("client_id = %q", gotForm.Get("client_id"))
	}
	if gotForm.Get("client_secret") != "app-secret" {
		t.Errorf("client_secret = %q", gotForm.Get("client_secret"))
	}
	if gotForm.Get("resource") != "https://vault.azure.net" {
		t.Errorf("resource = %q", gotForm.Get("resource"))
	}
}

func TestServicePrincipalToken_MissingCredentials(t *testing.T) {
	client, err := aadclient.New(aadclient.Config{}, aadclient.Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name string
		cred aadclient.Credential
	}{
		{
			name: "missing tenant",
			cred: aadclient.Credential{ClientID: "id", ClientSecret: "secret"},
		},
		{
			name: "missing client ID",
			cred: aadclient.Credential{ClientSecret: "secret", TenantID: "tenant"},
		},
		{
			name: "missing client secret",
			cred: aadclient.Credential{ClientID: "id", TenantID: "tenant"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.ServicePrincipalToken(context.Background(), tt.cred, "https://vault.azure.net"); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	client, err := aadclient.New(aadclient.Config{}, aadclient.Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Authority.Host != aadclient.DefaultAuthorityHost {
		t.Errorf("Authority.Host = %q, want %q", client.Authority.Host, aadclient.DefaultAuthorityHost)
	}
	if client.Authority.Scheme != "https" {
		t.Errorf("Authority.Scheme = %q, want https", client.Authority.Scheme)
	}
	if client.Metadata.Host != aadclient.DefaultMetadataHost {
		t.Errorf("Metadata.Host = %q, want %q", client.Metadata.Host, aadclient.DefaultMetadataHost)
	}
	if client.HTTPClient.Timeout == 0 {
		t.Error("expected a default HTTP timeout")
	}
	if client.Retry.Steps < 2 {
		t.Errorf("Retry.Steps = %d, want a bounded retry budget", client.Retry.Steps)
	}
}
