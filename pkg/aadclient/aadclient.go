// Package aadclient implements the plain HTTP token-exchange client for
// Azure Active Directory. User-assigned identities are exchanged against the
// upstream instance metadata service, service principals directly against
// the AAD token endpoint. No Azure SDK is involved.
package aadclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/telekom/pod-identity-operator/pkg/backoff"
	"github.com/telekom/pod-identity-operator/pkg/metrics"
)

const (
	// DefaultAuthorityHost is the public AAD authority.
	DefaultAuthorityHost = "login.microsoftonline.com"

	// DefaultMetadataHost is the link-local instance metadata service.
	DefaultMetadataHost = "169.254.169.254"

	// imdsTokenPath is the managed-identity token path on the metadata service.
	imdsTokenPath = "/metadata/identity/oauth2/token"

	// imdsAPIVersion is the IMDS API version used for token requests.
	imdsAPIVersion = "2018-02-01"

	// userAgent identifies the operator towards AAD and IMDS.
	userAgent = "identity.t-caas.telekom.com"

	defaultTimeout = 10 * time.Second
)

// Credential holds the client credentials of a service principal. The client
// secret is read from the referenced Kubernetes Secret by the caller; this
// package never touches the cluster.
type Credential struct {
	ClientID     string
	ClientSecret string
	TenantID     string
}

// Client exchanges identities for AAD access tokens.
type Client struct {
	HTTPClient *http.Client
	Authority  url.URL
	Metadata   url.URL
	Log        *logr.Logger
	Retry      wait.Backoff
}

type Config struct {
	AuthorityHost string
	MetadataHost  string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Retry         *wait.Backoff
}

type Options struct {
	TLSClientConfig *tls.Config
}

// New creates a token-exchange client. Zero-value config fields fall back to
// the public AAD authority, the link-local metadata endpoint, a 10s timeout
// and the bounded provider backoff.
func New(config Config, options Options) (*Client, error) {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if options.TLSClientConfig != nil {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: options.TLSClientConfig,
		}
	}

	authorityHost := config.AuthorityHost
	if authorityHost == "" {
		authorityHost = DefaultAuthorityHost
	}
	metadataHost := config.MetadataHost
	if metadataHost == "" {
		metadataHost = DefaultMetadataHost
	}

	retry := backoff.NewProviderBackoff()
	if config.Retry != nil {
		retry = *config.Retry
	}

	log := logr.Discard()
	client := &Client{
		HTTPClient: httpClient,
		Authority:  url.URL{Scheme: "https", Host: authorityHost},
		Metadata:   url.URL{Scheme: "http", Host: metadataHost},
		Log:        &log,
		Retry:      retry,
	}
	return client, nil
}

// UserAssignedToken fetches a token for a user-assigned managed identity from
// the upstream instance metadata service. The identity must be attached to
// the node's VM or VMSS for IMDS to issue a token for its client ID.
func (c *Client) UserAssignedToken(ctx context.Context, clientID, resource string) (*Token, error) {
	if clientID == "" {
		return nil, fmt.Errorf("clientID must not be empty")
	}
	if resource == "" {
		return nil, fmt.Errorf("resource must not be empty")
	}

	u := c.Metadata
	u.Path = imdsTokenPath
	q := url.Values{}
	q.Set("api-version", imdsAPIVersion)
	q.Set("client_id", clientID)
	q.Set("resource", resource)
	u.RawQuery = q.Encode()

	newRequest := func() (*http.Request, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		// IMDS refuses requests without this header to fend off SSRF.
		request.Header.Set("Metadata", "true")
		request.Header.Set("User-Agent", userAgent)
		return request, nil
	}

	return c.exchange(ctx, metrics.GrantTypeManagedIdentity, newRequest)
}

// ServicePrincipalToken fetches a token for a service principal from the AAD
// token endpoint using the client_credentials grant.
func (c *Client) ServicePrincipalToken(ctx context.Context, cred Credential, resource string) (*Token, error) {
	if cred.TenantID == "" {
		return nil, fmt.Errorf("tenantID must not be empty for service principal tokens")
	}
	if cred.ClientID == "" || cred.ClientSecret == "" {
		return nil, fmt.Errorf("client credentials must not be empty")
	}
	if resource == "" {
		return nil, fmt.Errorf("resource must not be empty")
	}

	u := c.Authority
	u.Path = fmt.Sprintf("/%s/oauth2/token", cred.TenantID)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)
	form.Set("resource", resource)
	body := form.Encode()

	newRequest := func() (*http.Request, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		request.Header.Set("User-Agent", userAgent)
		return request, nil
	}

	return c.exchange(ctx, metrics.GrantTypeClientCredentials, newRequest)
}

// exchange runs the request with bounded retries. Transport errors and 5xx
// responses are retried until the backoff budget is spent, 4xx responses are
// terminal. The request builder is invoked per attempt since request bodies
// are single-use.
func (c *Client) exchange(ctx context.Context, grantType string, newRequest func() (*http.Request, error)) (*Token, error) {
	start := time.Now()
	defer func() {
		metrics.TokenExchangeDuration.WithLabelValues(grantType).Observe(time.Since(start).Seconds())
	}()

	retry := c.Retry
	attempts := retry.Steps
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		request, err := newRequest()
		if err != nil {
			return nil, fmt.Errorf("unable to create token request: %w", err)
		}

		c.Log.V(1).Info("executing token request", "grantType", grantType, "url", request.URL.Redacted(), "attempt", attempt)
		token, retriable, err := c.roundTrip(request, grantType)
		if err == nil {
			return token, nil
		}
		lastErr = err
		if !retriable || attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("token exchange aborted: %w", context.Cause(ctx))
		case <-time.After(retry.Step()):
		}
	}
	return nil, lastErr
}

// roundTrip performs a single attempt and classifies the outcome.
func (c *Client) roundTrip(request *http.Request, grantType string) (*Token, bool, error) {
	response, err := c.HTTPClient.Do(request)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(grantType, metrics.ProviderOutcomeNetwork).Inc()
		return nil, true, &ProviderError{
			GrantType:   grantType,
			Unavailable: true,
			Err:         err,
		}
	}
	defer func() { _ = response.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(grantType, metrics.ProviderOutcomeNetwork).Inc()
		return nil, true, &ProviderError{
			GrantType:   grantType,
			StatusCode:  response.StatusCode,
			Unavailable: true,
			Err:         fmt.Errorf("unable to read response body: %w", err),
		}
	}

	switch {
	case response.StatusCode == http.StatusOK:
		var token Token
		if err := json.Unmarshal(body, &token); err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues(grantType, metrics.ProviderOutcomeServerError).Inc()
			return nil, true, &ProviderError{
				GrantType:   grantType,
				StatusCode:  response.StatusCode,
				Unavailable: true,
				Err:         fmt.Errorf("unable to unmarshal token response: %w", err),
			}
		}
		if token.AccessToken == "" {
			metrics.ProviderRequestsTotal.WithLabelValues(grantType, metrics.ProviderOutcomeServerError).Inc()
			return nil, true, &ProviderError{
				GrantType:   grantType,
				StatusCode:  response.StatusCode,
				Unavailable: true,
				Err:         fmt.Errorf("token response contains no access_token"),
			}
		}
		metrics.ProviderRequestsTotal.WithLabelValues(grantType, metrics.ProviderOutcomeSuccess).Inc()
		return &token, false, nil

	case response.StatusCode >= http.StatusInternalServerError:
		c.Log.Info("got bad HTTP status code for URL", "HTTP_STATUS_CODE", response.StatusCode, "URL", request.URL.Redacted())
		metrics.ProviderRequestsTotal.WithLabelValues(grantType, metrics.ProviderOutcomeServerError).Inc()
		return nil, true, newStatusError(grantType, response.StatusCode, body, true)

	default:
		c.Log.Info("got bad HTTP status code for URL", "HTTP_STATUS_CODE", response.StatusCode, "URL", request.URL.Redacted())
		metrics.ProviderRequestsTotal.WithLabelValues(grantType, metrics.ProviderOutcomeClientError).Inc()
		return nil, false, newStatusError(grantType, response.StatusCode, body, false)
	}
}

// ProviderError is the typed failure of a token exchange. Unavailable marks
// transport errors and 5xx responses, the retriable class surfaced to callers
// as a provider outage; 4xx responses carry Unavailable=false and are
// terminal denials.
type ProviderError struct {
	GrantType   string
	StatusCode  int
	Code        string
	Description string
	Unavailable bool
	Err         error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("token exchange (%s) failed: %v", e.GrantType, e.Err)
	case e.Code != "":
		return fmt.Sprintf("token exchange (%s) failed with status %d: %s: %s", e.GrantType, e.StatusCode, e.Code, e.Description)
	default:
		return fmt.Sprintf("token exchange (%s) failed with status %d", e.GrantType, e.StatusCode)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newStatusError builds a ProviderError from a non-2xx response, extracting
// the AAD error code and description when the body carries them.
func newStatusError(grantType string, status int, body []byte, unavailable bool) *ProviderError {
	providerErr := &ProviderError{
		GrantType:   grantType,
		StatusCode:  status,
		Unavailable: unavailable,
	}

	var aadError struct {
		Code        string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &aadError); err == nil {
		providerErr.Code = aadError.Code
		providerErr.Description = aadError.Description
	}
	return providerErr
}
