package interceptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/telekom/pod-identity-operator/internal/assignment"
	"github.com/telekom/pod-identity-operator/pkg/aadclient"
	"github.com/telekom/pod-identity-operator/pkg/metrics"
	"github.com/telekom/pod-identity-operator/pkg/tracing"
)

const (
	// TokenPath is the managed-identity token path the interceptor brokers.
	// Every other metadata path is proxied upstream unmodified.
	TokenPath = "/metadata/identity/oauth2/token"

	// notReadyLogInterval throttles the fail-closed log line while the
	// assignment snapshot is still syncing. Every pod on the node retries
	// against the endpoint during that window.
	notReadyLogInterval = 5 * time.Second

	shutdownTimeout = 10 * time.Second
)

// Lookup resolves a caller address to its assignment. Implemented by
// assignment.Tracker; fakes stand in for it in tests.
type Lookup interface {
	Lookup(ip string) (*assignment.Assignment, bool)
	Ready() bool
}

// Server is the node-local metadata interceptor, run by the agent's manager.
// One goroutine per request: a pod blocking on a slow token exchange never
// delays metadata requests of other pods.
type Server struct {
	addr      string
	tracker   Lookup
	exchanger *TokenExchanger
	upstream  *url.URL
	proxy     *httputil.ReverseProxy
	log       logr.Logger
	tracer    trace.Tracer

	notReadyLog rate.Sometimes
}

// ServerOption configures optional server behavior.
type ServerOption func(*Server)

// WithUpstream points the pass-through proxy at a different upstream
// metadata endpoint. Defaults to the link-local instance metadata service.
func WithUpstream(u *url.URL) ServerOption {
	return func(s *Server) {
		s.upstream = u
	}
}

// WithTracer enables span creation around the token flow.
func WithTracer(tracer trace.Tracer) ServerOption {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// NewServer creates the interceptor listening on addr.
func NewServer(addr string, tracker Lookup, exchanger *TokenExchanger, log logr.Logger, opts ...ServerOption) *Server {
	s := &Server{
		addr:      addr,
		tracker:   tracker,
		exchanger: exchanger,
		upstream:  &url.URL{Scheme: "http", Host: aadclient.DefaultMetadataHost},
		log:       log,

		notReadyLog: rate.Sometimes{Interval: notReadyLogInterval},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.proxy = httputil.NewSingleHostReverseProxy(s.upstream)
	s.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.log.Error(err, "metadata pass-through failed", "path", r.URL.Path)
		writeIMDSError(w, http.StatusBadGateway, "provider_unavailable", "upstream metadata endpoint did not answer")
	}
	return s
}

// NeedLeaderElection implements LeaderElectionRunnable. The interceptor is a
// per-node data plane and runs on every agent.
func (s *Server) NeedLeaderElection() bool {
	return false
}

// Handler returns the interceptor's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(TokenPath, s.handleToken)
	mux.HandleFunc("/metadata/", s.handleMetadata)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	return mux
}

// Start serves until the context is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", s.addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info("starting metadata interceptor", "addr", s.addr, "upstream", s.upstream.String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down metadata interceptor")
		return server.Shutdown(shutdownCtx)
	}
}

// handleToken brokers the managed-identity token operation. The caller is
// identified by source address only; nothing a pod sends can widen its
// access beyond the identity its binding grants.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	ip, ok := s.callerIP(w, r)
	if !ok {
		return
	}

	if !s.tracker.Ready() {
		// Fail closed: without a synced snapshot an unbound pod cannot be
		// told apart from a bound one, and the node's own credentials must
		// never answer for a pod.
		s.notReadyLog.Do(func() {
			s.log.Info("refusing token requests until the assignment snapshot is synced", "ip", ip)
		})
		metrics.TokenRequestsTotal.WithLabelValues(metrics.OutcomeNotReady).Inc()
		writeIMDSError(w, http.StatusServiceUnavailable, "not_ready", "assignment state is not synced yet, retry")
		return
	}

	entry, ok := s.tracker.Lookup(ip)
	if !ok {
		s.deny(w, ip, nil, http.StatusForbidden, "no_binding_found",
			"no identity binding matches this pod", metrics.OutcomeNoBinding)
		return
	}

	switch entry.State {
	case assignment.StateExempt:
		s.log.V(1).Info("passing token request through",
			"ip", ip, "pod", entry.Pod, "state", entry.State, "decision", "passthrough")
		metrics.TokenRequestsTotal.WithLabelValues(metrics.OutcomePassthrough).Inc()
		s.proxy.ServeHTTP(w, r)
		return
	case assignment.StateAmbiguous:
		s.deny(w, ip, entry, http.StatusForbidden, "ambiguous_binding",
			fmt.Sprintf("pod matches bindings to more than one identity: %s", strings.Join(entry.Bindings, ", ")),
			metrics.OutcomeAmbiguous)
		return
	case assignment.StateBound:
	default:
		s.deny(w, ip, entry, http.StatusForbidden, "no_binding_found",
			"no identity binding matches this pod", metrics.OutcomeNoBinding)
		return
	}

	identity := entry.Identity
	query := r.URL.Query()

	resource := query.Get("resource")
	if resource == "" {
		s.deny(w, ip, entry, http.StatusBadRequest, "invalid_request",
			"resource parameter is required", metrics.OutcomeBadRequest)
		return
	}
	if clientID := query.Get("client_id"); clientID != "" && !strings.EqualFold(clientID, identity.ClientID) {
		s.deny(w, ip, entry, http.StatusUnauthorized, "unauthorized",
			fmt.Sprintf("client_id %q does not match the identity bound to this pod", clientID),
			metrics.OutcomeUnauthorized)
		return
	}
	if resourceID := query.Get("msi_res_id"); resourceID != "" && !strings.EqualFold(resourceID, identity.ResourceID) {
		s.deny(w, ip, entry, http.StatusUnauthorized, "unauthorized",
			fmt.Sprintf("msi_res_id %q does not match the identity bound to this pod", resourceID),
			metrics.OutcomeUnauthorized)
		return
	}
	if !identity.AllowsResource(resource) {
		s.deny(w, ip, entry, http.StatusUnauthorized, "unauthorized",
			fmt.Sprintf("resource %q is not allowed for identity %s, allowed resources: %s",
				resource, identity.Name, strings.Join(identity.AllowedResources, ", ")),
			metrics.OutcomeUnauthorized)
		return
	}

	ctx := r.Context()
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "interceptor.TokenExchange", trace.WithAttributes(
			tracing.AttrPod.String(entry.Pod),
			tracing.AttrPodIP.String(ip),
			tracing.AttrBinding.String(entry.Binding),
			tracing.AttrIdentity.String(identity.Name),
			tracing.AttrClientID.String(identity.ClientID),
			tracing.AttrResource.String(resource),
		))
		defer span.End()
	}

	token, err := s.exchanger.Exchange(ctx, identity, resource)
	if err != nil {
		s.denyExchange(w, ip, entry, err)
		return
	}

	s.log.V(1).Info("token issued",
		"ip", ip, "pod", entry.Pod, "state", entry.State, "decision", "issued",
		"identity", identity.Name, "resource", resource)
	metrics.TokenRequestsTotal.WithLabelValues(metrics.OutcomeIssued).Inc()
	s.writeJSON(w, http.StatusOK, token)
}

// handleMetadata proxies the remaining metadata surface. Instance metadata is
// not credential material, every tracked pod may read it; callers outside the
// snapshot are refused.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	ip, ok := s.callerIP(w, r)
	if !ok {
		return
	}

	if !s.tracker.Ready() {
		s.notReadyLog.Do(func() {
			s.log.Info("refusing metadata requests until the assignment snapshot is synced", "ip", ip)
		})
		metrics.TokenRequestsTotal.WithLabelValues(metrics.OutcomeNotReady).Inc()
		writeIMDSError(w, http.StatusServiceUnavailable, "not_ready", "assignment state is not synced yet, retry")
		return
	}

	entry, ok := s.tracker.Lookup(ip)
	if !ok {
		s.deny(w, ip, nil, http.StatusForbidden, "no_binding_found",
			"caller is not a tracked pod", metrics.OutcomeNoBinding)
		return
	}

	s.log.V(2).Info("proxying metadata request",
		"ip", ip, "pod", entry.Pod, "state", entry.State, "path", r.URL.Path)
	metrics.TokenRequestsTotal.WithLabelValues(metrics.OutcomePassthrough).Inc()
	s.proxy.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.tracker.Ready() {
		http.Error(w, "assignment snapshot not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// callerIP extracts the pod address from the connection. The redirect rules
// DNAT without SNAT, so the source address on the accepted connection is the
// pod's own.
func (s *Server) callerIP(w http.ResponseWriter, r *http.Request) (string, bool) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		s.log.V(1).Info("unable to parse caller address", "remoteAddr", r.RemoteAddr)
		metrics.TokenRequestsTotal.WithLabelValues(metrics.OutcomeBadRequest).Inc()
		writeIMDSError(w, http.StatusBadRequest, "invalid_request", "unable to determine caller address")
		return "", false
	}
	return host, true
}

func (s *Server) deny(w http.ResponseWriter, ip string, entry *assignment.Assignment, status int, code, description, outcome string) {
	keysAndValues := []any{"ip", ip, "decision", code}
	if entry != nil {
		keysAndValues = append(keysAndValues, "pod", entry.Pod, "state", entry.State)
	}
	s.log.V(1).Info("denied token request", keysAndValues...)

	metrics.TokenRequestsTotal.WithLabelValues(outcome).Inc()
	writeIMDSError(w, status, code, description)
}

// denyExchange maps a failed exchange onto the wire. Terminal provider
// denials are relayed with the provider's own status and error code so SDKs
// behave exactly as against the real endpoint; outages become 502.
func (s *Server) denyExchange(w http.ResponseWriter, ip string, entry *assignment.Assignment, err error) {
	var providerErr *aadclient.ProviderError
	if errors.As(err, &providerErr) && !providerErr.Unavailable {
		status := providerErr.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		code := providerErr.Code
		if code == "" {
			code = "invalid_request"
		}
		s.log.V(1).Info("relaying provider denial",
			"ip", ip, "pod", entry.Pod, "decision", code, "status", status)
		metrics.TokenRequestsTotal.WithLabelValues(metrics.OutcomeProviderDenied).Inc()
		writeIMDSError(w, status, code, providerErr.Description)
		return
	}

	s.log.Error(err, "token exchange failed", "ip", ip, "pod", entry.Pod)
	metrics.TokenRequestsTotal.WithLabelValues(metrics.OutcomeProviderUnavailable).Inc()
	writeIMDSError(w, http.StatusBadGateway, "provider_unavailable", "token exchange against the identity provider failed")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error(err, "unable to encode response")
	}
}

// imdsError is the error body shape of the upstream metadata service. SDKs
// parse this shape, denials keep it so their retry classification works.
type imdsError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func writeIMDSError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(imdsError{Error: code, Description: description})
}
