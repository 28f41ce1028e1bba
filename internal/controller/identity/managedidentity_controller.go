// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/events"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
	"github.com/telekom/pod-identity-operator/api/identity/v1alpha1/applyconfiguration/ssa"
	"github.com/telekom/pod-identity-operator/pkg/conditions"
	"github.com/telekom/pod-identity-operator/pkg/indexer"
	"github.com/telekom/pod-identity-operator/pkg/metrics"
	"github.com/telekom/pod-identity-operator/pkg/tracing"
)

// clientSecretKey is the data key a service principal secret must carry.
const clientSecretKey = "clientSecret"

// +kubebuilder:rbac:groups=identity.t-caas.telekom.com,resources=managedidentities,verbs=get;list;watch
// +kubebuilder:rbac:groups=identity.t-caas.telekom.com,resources=managedidentities/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=identity.t-caas.telekom.com,resources=identitybindings,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch;update
// +kubebuilder:rbac:groups="events.k8s.io",resources=events,verbs=create;patch;update

// ManagedIdentityReconciler reconciles a ManagedIdentity object. It validates
// that service principal identities have a usable client secret, counts the
// bindings referencing the identity, and manages Ready/Stalled conditions.
type ManagedIdentityReconciler struct {
	client   client.Client
	recorder events.EventRecorder
	tracer   trace.Tracer
}

// NewManagedIdentityReconciler creates a new ManagedIdentity reconciler.
func NewManagedIdentityReconciler(
	c client.Client,
	recorder events.EventRecorder,
	opts ...ReconcilerOption,
) *ManagedIdentityReconciler {
	r := &ManagedIdentityReconciler{
		client:   c,
		recorder: recorder,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ManagedIdentityReconciler) setTracer(t trace.Tracer) {
	r.tracer = t
}

// SetupWithManager sets up the controller with the Manager.
func (r *ManagedIdentityReconciler) SetupWithManager(mgr ctrl.Manager, concurrency int) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&identityv1alpha1.ManagedIdentity{}, builder.WithPredicates(predicate.GenerationChangedPredicate{})).
		WithOptions(controller.Options{MaxConcurrentReconciles: concurrency}).
		// watch bindings so boundBindings follows references without waiting
		// for the periodic requeue
		Watches(&identityv1alpha1.IdentityBinding{}, handler.EnqueueRequestsFromMapFunc(r.bindingToIdentityRequests)).
		// watch secrets so credential validation reacts to rotation and
		// late-created secrets
		Watches(&corev1.Secret{}, handler.EnqueueRequestsFromMapFunc(r.secretToIdentityRequests)).
		Complete(r)
}

// Reconcile handles the reconciliation loop for ManagedIdentity resources.
//
// The reconciliation flow:
//  1. Fetch the ManagedIdentity (return early if not found)
//  2. Mark as Reconciling
//  3. Validate the client secret for service principal identities
//  4. Count referencing bindings into status.boundBindings
//  5. Mark Ready and apply status via SSA
func (r *ManagedIdentityReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	startTime := time.Now()
	logger := log.FromContext(ctx)

	logger.V(1).Info("=== Reconcile START ===",
		"managedIdentity", req.NamespacedName)

	defer func() {
		duration := time.Since(startTime)
		metrics.ReconcileDuration.WithLabelValues(metrics.ControllerManagedIdentity).Observe(duration.Seconds())
		logger.V(1).Info("=== Reconcile END ===",
			"managedIdentity", req.NamespacedName,
			"duration", duration.String())
	}()

	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "ManagedIdentity.Reconcile", trace.WithAttributes(
			tracing.AttrController.String(metrics.ControllerManagedIdentity),
			tracing.AttrIdentity.String(req.Name),
			tracing.AttrNamespace.String(req.Namespace),
		))
		defer span.End()
	}

	// Step 1: Fetch the ManagedIdentity
	managedIdentity := &identityv1alpha1.ManagedIdentity{}
	if err := r.client.Get(ctx, req.NamespacedName, managedIdentity); err != nil {
		if apierrors.IsNotFound(err) {
			logger.V(1).Info("ManagedIdentity not found (deleted), skipping reconcile",
				"managedIdentity", req.NamespacedName)
			metrics.ReconcileTotal.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ResultSkipped).Inc()
			return ctrl.Result{}, nil
		}
		logger.Error(err, "failed to fetch ManagedIdentity",
			"managedIdentity", req.NamespacedName)
		metrics.ReconcileTotal.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ResultError).Inc()
		metrics.ReconcileErrors.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ErrorTypeAPI).Inc()
		return ctrl.Result{}, fmt.Errorf("fetch ManagedIdentity %s: %w", req.NamespacedName, err)
	}

	// Step 2: Mark as Reconciling
	conditions.MarkReconciling(managedIdentity, managedIdentity.Generation,
		identityv1alpha1.ReconcilingReasonProgressing, identityv1alpha1.ReconcilingMessageProgressing)
	managedIdentity.Status.ObservedGeneration = managedIdentity.Generation

	// Step 3: Validate the client secret for service principal identities.
	// User-assigned identities exchange via the node's metadata service and
	// carry no secret material at all.
	if managedIdentity.Spec.Type == identityv1alpha1.IdentityTypeServicePrincipal {
		if stop, err := r.validateClientSecret(ctx, managedIdentity); err != nil {
			metrics.ReconcileTotal.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ResultError).Inc()
			metrics.ReconcileErrors.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ErrorTypeAPI).Inc()
			return ctrl.Result{}, err
		} else if stop {
			// Stalled status already applied. The Secret watch re-enqueues
			// the identity when the secret shows up or changes.
			metrics.ReconcileTotal.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ResultDegraded).Inc()
			return ctrl.Result{RequeueAfter: DefaultRequeueInterval}, nil
		}
	}

	// Step 4: Count referencing bindings
	bindingList := &identityv1alpha1.IdentityBindingList{}
	if err := r.client.List(ctx, bindingList,
		client.InNamespace(managedIdentity.Namespace),
		client.MatchingFields{indexer.IdentityBindingIdentityRefField: managedIdentity.Name},
	); err != nil {
		logger.Error(err, "failed to list referencing bindings",
			"managedIdentity", managedIdentity.Name)
		metrics.ReconcileTotal.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ResultError).Inc()
		metrics.ReconcileErrors.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ErrorTypeAPI).Inc()
		return ctrl.Result{}, fmt.Errorf("list bindings for ManagedIdentity %s: %w", managedIdentity.Name, err)
	}
	managedIdentity.Status.BoundBindings = int32(len(bindingList.Items))

	// Step 5: Mark Ready and apply status via SSA
	conditions.MarkReady(managedIdentity, managedIdentity.Generation,
		identityv1alpha1.ReadyReasonReconciled, identityv1alpha1.ReadyMessageReconciled)

	if err := ssa.ApplyManagedIdentityStatus(ctx, r.client, managedIdentity); err != nil {
		logger.Error(err, "failed to apply status via SSA",
			"managedIdentity", managedIdentity.Name)
		metrics.ReconcileTotal.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ResultError).Inc()
		metrics.ReconcileErrors.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ErrorTypeAPI).Inc()
		return ctrl.Result{}, fmt.Errorf("apply ManagedIdentity %s status: %w", managedIdentity.Name, err)
	}

	r.recorder.Eventf(managedIdentity, nil, corev1.EventTypeNormal,
		identityv1alpha1.EventReasonReconciled, identityv1alpha1.EventActionReconcile,
		"ManagedIdentity %s reconciled successfully, referenced by %d bindings",
		managedIdentity.Name, len(bindingList.Items))

	metrics.ReconcileTotal.WithLabelValues(metrics.ControllerManagedIdentity, metrics.ResultSuccess).Inc()
	logger.V(1).Info("ManagedIdentity reconciled successfully",
		"managedIdentity", managedIdentity.Name,
		"boundBindings", len(bindingList.Items),
		"generation", managedIdentity.Generation)

	return ctrl.Result{RequeueAfter: DefaultRequeueInterval}, nil
}

// validateClientSecret checks that the referenced secret exists and carries
// the clientSecret data key. On a user problem it applies the Stalled status
// and returns stop=true; transient API errors are returned for the usual
// retry-with-backoff.
func (r *ManagedIdentityReconciler) validateClientSecret(
	ctx context.Context,
	managedIdentity *identityv1alpha1.ManagedIdentity,
) (bool, error) {
	logger := log.FromContext(ctx)

	ref := managedIdentity.Spec.SecretRef
	if ref == nil || ref.Name == "" {
		// The validating webhook requires secretRef for service principals;
		// reaching this means the object predates the webhook.
		r.markSecretStalled(ctx, managedIdentity,
			identityv1alpha1.StalledReasonSecretNotFound, identityv1alpha1.EventReasonSecretNotFound,
			fmt.Sprintf("%s/<unset>", managedIdentity.Namespace))
		return true, nil
	}

	namespace := ref.Namespace
	if namespace == "" {
		namespace = managedIdentity.Namespace
	}
	secretKey := types.NamespacedName{Namespace: namespace, Name: ref.Name}

	secret := &corev1.Secret{}
	if err := r.client.Get(ctx, secretKey, secret); err != nil {
		if apierrors.IsNotFound(err) {
			logger.Info("referenced client secret not found",
				"managedIdentity", managedIdentity.Name,
				"secret", secretKey)
			r.markSecretStalled(ctx, managedIdentity,
				identityv1alpha1.StalledReasonSecretNotFound, identityv1alpha1.EventReasonSecretNotFound,
				secretKey.String())
			return true, nil
		}
		return false, fmt.Errorf("fetch client secret %s: %w", secretKey, err)
	}

	if len(secret.Data[clientSecretKey]) == 0 {
		logger.Info("referenced client secret has no usable clientSecret key",
			"managedIdentity", managedIdentity.Name,
			"secret", secretKey)
		r.markSecretStalled(ctx, managedIdentity,
			identityv1alpha1.StalledReasonSecretInvalid, identityv1alpha1.EventReasonSecretInvalid,
			secretKey.String())
		return true, nil
	}

	logger.V(2).Info("DEBUG: client secret validated",
		"managedIdentity", managedIdentity.Name,
		"secret", secretKey)
	return false, nil
}

// markSecretStalled marks the identity stalled on a missing or malformed
// client secret and applies the status.
func (r *ManagedIdentityReconciler) markSecretStalled(
	ctx context.Context,
	managedIdentity *identityv1alpha1.ManagedIdentity,
	reason identityv1alpha1.IdentityConditionReason,
	eventReason string,
	secretName string,
) {
	logger := log.FromContext(ctx)

	switch reason {
	case identityv1alpha1.StalledReasonSecretInvalid:
		conditions.MarkStalled(managedIdentity, managedIdentity.Generation,
			reason, identityv1alpha1.StalledMessageSecretInvalid, secretName, clientSecretKey)
		r.recorder.Eventf(managedIdentity, nil, corev1.EventTypeWarning,
			eventReason, identityv1alpha1.EventActionValidate,
			"Referenced Secret %q has no %q data key", secretName, clientSecretKey)
	default:
		conditions.MarkStalled(managedIdentity, managedIdentity.Generation,
			reason, identityv1alpha1.StalledMessageSecretNotFound, secretName)
		r.recorder.Eventf(managedIdentity, nil, corev1.EventTypeWarning,
			eventReason, identityv1alpha1.EventActionValidate,
			"Referenced Secret %q not found", secretName)
	}
	managedIdentity.Status.ObservedGeneration = managedIdentity.Generation

	if err := ssa.ApplyManagedIdentityStatus(ctx, r.client, managedIdentity); err != nil {
		logger.Error(err, "failed to apply Stalled status via SSA",
			"managedIdentity", managedIdentity.Name)
	}
}

// bindingToIdentityRequests implements the MapFunc type and maps an
// IdentityBinding event to the identity it references.
func (r *ManagedIdentityReconciler) bindingToIdentityRequests(ctx context.Context, obj client.Object) []reconcile.Request {
	logger := log.FromContext(ctx)

	binding, ok := obj.(*identityv1alpha1.IdentityBinding)
	if !ok {
		logger.Error(fmt.Errorf("unexpected type %T", obj), "Expected *IdentityBinding")
		return nil
	}
	if binding.Spec.IdentityRef == "" {
		return nil
	}

	logger.V(2).Info("DEBUG: bindingToIdentityRequests triggered",
		"identityBinding", binding.Name, "identityRef", binding.Spec.IdentityRef)

	return []reconcile.Request{{
		NamespacedName: types.NamespacedName{
			Namespace: binding.Namespace,
			Name:      binding.Spec.IdentityRef,
		},
	}}
}

// secretToIdentityRequests implements the MapFunc type and fans a Secret
// event out to the identities referencing it, using the secretRef field
// index instead of a full list scan.
func (r *ManagedIdentityReconciler) secretToIdentityRequests(ctx context.Context, obj client.Object) []reconcile.Request {
	logger := log.FromContext(ctx)

	secret, ok := obj.(*corev1.Secret)
	if !ok {
		logger.Error(fmt.Errorf("unexpected type %T", obj), "Expected *Secret")
		return nil
	}

	identityList := &identityv1alpha1.ManagedIdentityList{}
	if err := r.client.List(ctx, identityList,
		client.MatchingFields{indexer.ManagedIdentitySecretField: secret.Namespace + "/" + secret.Name},
	); err != nil {
		logger.Error(err, "ERROR: Failed to list ManagedIdentities for secret",
			"secret", secret.Name, "namespace", secret.Namespace)
		return nil
	}
	if len(identityList.Items) == 0 {
		return nil
	}

	requests := make([]reconcile.Request, len(identityList.Items))
	for i, item := range identityList.Items {
		requests[i] = reconcile.Request{
			NamespacedName: types.NamespacedName{
				Name:      item.Name,
				Namespace: item.Namespace,
			},
		}
	}
	logger.V(2).Info("DEBUG: Returning identity requests for secret",
		"secret", secret.Name, "namespace", secret.Namespace, "requestCount", len(requests))
	return requests
}
