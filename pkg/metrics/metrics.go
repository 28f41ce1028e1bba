/*
Copyright © 2025 Deutsche Telekom AG
*/

// Package metrics provides Prometheus metrics for the pod-identity-operator.
// It exposes custom metrics for reconciliation performance, token issuance,
// assignment tracking, and operational insights.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	// Namespace is the Prometheus metrics namespace for pod-identity-operator
	Namespace = "pod_identity_operator"
)

var (
	// ReconcileTotal counts the total number of reconciliations per controller
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconcile_total",
			Help:      "Total number of reconciliations per controller",
		},
		[]string{"controller", "result"},
	)

	// ReconcileDuration measures the duration of reconciliations in seconds
	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconciliations per controller in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"controller"},
	)

	// ReconcileErrors counts the total number of reconciliation errors per controller
	ReconcileErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconcile_errors_total",
			Help:      "Total number of reconciliation errors per controller",
		},
		[]string{"controller", "error_type"},
	)

	// SnapshotRebuildDuration measures the duration of assignment snapshot rebuilds in seconds
	SnapshotRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "snapshot_rebuild_duration_seconds",
			Help:      "Duration of assignment snapshot rebuilds in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// SnapshotRebuildErrors counts the total number of assignment snapshot rebuild errors
	SnapshotRebuildErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "snapshot_rebuild_errors_total",
			Help:      "Total number of assignment snapshot rebuild errors",
		},
	)

	// AssignmentsTracked tracks the number of pod assignments in the current snapshot per state
	AssignmentsTracked = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "assignments_tracked",
			Help:      "Number of pod assignments in the current snapshot per state",
		},
		[]string{"state"},
	)

	// AssignmentLookupsTotal counts assignment lookups by pod address per result
	AssignmentLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "assignment_lookups_total",
			Help:      "Total number of assignment lookups by pod address per result",
		},
		[]string{"result"},
	)

	// TokenRequestsTotal counts intercepted token requests per outcome
	TokenRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "token_requests_total",
			Help:      "Total number of intercepted token requests per outcome",
		},
		[]string{"outcome"},
	)

	// TokenExchangeDuration measures the duration of token exchanges with the provider in seconds
	TokenExchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "token_exchange_duration_seconds",
			Help:      "Duration of token exchanges with the identity provider in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"grant_type"},
	)

	// ProviderRequestsTotal counts requests to the identity provider per grant type and outcome
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of requests to the identity provider per grant type and outcome",
		},
		[]string{"grant_type", "outcome"},
	)

	// TokenCacheEvents counts token cache events (hits, misses, evictions, expiries)
	TokenCacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "token_cache_events_total",
			Help:      "Total number of token cache events",
		},
		[]string{"event"},
	)

	// PodsMatched tracks the number of pods matched per binding and state
	PodsMatched = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pods_matched",
			Help:      "Number of pods matched per binding and state",
		},
		[]string{"controller", "state", "name"},
	)

	// WebhookRequestsTotal counts admission webhook requests per webhook, operation, and result
	WebhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "webhook_requests_total",
			Help:      "Total number of admission webhook requests per webhook, operation, and result",
		},
		[]string{"webhook", "operation", "result"},
	)
)

func init() {
	// Register all metrics with controller-runtime's registry
	metrics.Registry.MustRegister(
		ReconcileTotal,
		ReconcileDuration,
		ReconcileErrors,
		SnapshotRebuildDuration,
		SnapshotRebuildErrors,
		AssignmentsTracked,
		AssignmentLookupsTotal,
		TokenRequestsTotal,
		TokenExchangeDuration,
		ProviderRequestsTotal,
		TokenCacheEvents,
		PodsMatched,
		WebhookRequestsTotal,
	)
}

// DeleteBindingSeries removes all PodsMatched series belonging to a binding.
// Called when the binding is deleted so stale series don't linger in scrapes.
func DeleteBindingSeries(controller, name string) {
	PodsMatched.DeletePartialMatch(prometheus.Labels{
		"controller": controller,
		"name":       name,
	})
}

// ReconcileResult constants for labeling reconcile outcomes
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultRequeue  = "requeue"
	ResultSkipped  = "skipped"
	ResultDegraded = "degraded"
)

// ErrorType constants for categorizing reconciliation errors
const (
	ErrorTypeAPI        = "api"
	ErrorTypeValidation = "validation"
	ErrorTypeConflict   = "conflict"
	ErrorTypeNotFound   = "not_found"
	ErrorTypeInternal   = "internal"
)

// ControllerName constants
const (
	ControllerIdentityBinding = "IdentityBinding"
	ControllerManagedIdentity = "ManagedIdentity"
)

// Assignment state constants for AssignmentsTracked and PodsMatched
const (
	StateBound    = "bound"
	StateConflict = "conflict"
	StateExempt   = "exempt"
)

// Lookup result constants for AssignmentLookupsTotal
const (
	LookupBound    = "bound"
	LookupConflict = "conflict"
	LookupExempt   = "exempt"
	LookupUnbound  = "unbound"
	LookupUnknown  = "unknown"
	LookupNotReady = "not_ready"
)

// Token request outcome constants for TokenRequestsTotal
const (
	OutcomeIssued              = "issued"
	OutcomeNoBinding           = "no_binding"
	OutcomeAmbiguous           = "ambiguous"
	OutcomeUnauthorized        = "unauthorized"
	OutcomeProviderUnavailable = "provider_unavailable"
	OutcomeProviderDenied      = "provider_denied"
	OutcomePassthrough         = "passthrough"
	OutcomeBadRequest          = "bad_request"
	OutcomeNotReady            = "not_ready"
)

// Grant type constants for TokenExchangeDuration and ProviderRequestsTotal
const (
	GrantTypeManagedIdentity   = "msi"
	GrantTypeClientCredentials = "client_credentials"
)

// Provider outcome constants for ProviderRequestsTotal
const (
	ProviderOutcomeSuccess     = "success"
	ProviderOutcomeClientError = "client_error"
	ProviderOutcomeServerError = "server_error"
	ProviderOutcomeNetwork     = "network_error"
)

// Token cache event constants for TokenCacheEvents
const (
	CacheHit       = "hit"
	CacheMiss      = "miss"
	CacheEvicted   = "evicted"
	CacheExpired   = "expired"
	CacheIssued    = "issued"
	CacheFailed    = "failed"
	CacheDuplicate = "duplicate"
)

// Webhook name constants for WebhookRequestsTotal
const (
	WebhookManagedIdentityMutator = "managedidentity-mutator"
)

// Webhook result constants for WebhookRequestsTotal
const (
	WebhookResultAllowed = "allowed"
	WebhookResultDenied  = "denied"
	WebhookResultErrored = "errored"
)
