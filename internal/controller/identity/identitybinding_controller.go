// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
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
	"github.com/telekom/pod-identity-operator/internal/assignment"
	"github.com/telekom/pod-identity-operator/pkg/conditions"
	"github.com/telekom/pod-identity-operator/pkg/indexer"
	"github.com/telekom/pod-identity-operator/pkg/metrics"
	"github.com/telekom/pod-identity-operator/pkg/tracing"
)

// DefaultRequeueInterval is the periodic requeue for healthy resources. Pod
// and identity events trigger immediate reconciles through the watches; the
// interval only corrects drift the watches missed.
const DefaultRequeueInterval = 60 * time.Second

// +kubebuilder:rbac:groups=identity.t-caas.telekom.com,resources=identitybindings,verbs=get;list;watch
// +kubebuilder:rbac:groups=identity.t-caas.telekom.com,resources=identitybindings/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=identity.t-caas.telekom.com,resources=managedidentities,verbs=get;list;watch
// +kubebuilder:rbac:groups=identity.t-caas.telekom.com,resources=identityexceptions,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch;update
// +kubebuilder:rbac:groups="events.k8s.io",resources=events,verbs=create;patch;update
// +kubebuilder:rbac:groups="coordination.k8s.io",resources=leases,verbs=get;list;update;create;delete

// IdentityBindingReconciler reconciles an IdentityBinding object. It resolves
// the referenced ManagedIdentity, computes the pod match set, surfaces
// conflicting bindings on status, and manages Ready/Stalled conditions.
type IdentityBindingReconciler struct {
	client   client.Client
	recorder events.EventRecorder
	tracer   trace.Tracer
}

// NewIdentityBindingReconciler creates a new IdentityBinding reconciler.
func NewIdentityBindingReconciler(
	c client.Client,
	recorder events.EventRecorder,
	opts ...ReconcilerOption,
) *IdentityBindingReconciler {
	r := &IdentityBindingReconciler{
		client:   c,
		recorder: recorder,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *IdentityBindingReconciler) setTracer(t trace.Tracer) {
	r.tracer = t
}

// SetupWithManager sets up the controller with the Manager.
func (r *IdentityBindingReconciler) SetupWithManager(mgr ctrl.Manager, concurrency int) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&identityv1alpha1.IdentityBinding{}, builder.WithPredicates(predicate.GenerationChangedPredicate{})).
		WithOptions(controller.Options{MaxConcurrentReconciles: concurrency}).
		// watch identities so bindings re-evaluate when their identityRef
		// appears, changes, or vanishes
		Watches(&identityv1alpha1.ManagedIdentity{}, handler.EnqueueRequestsFromMapFunc(r.identityToBindingRequests)).
		// watch pods so match counts follow workload churn without waiting
		// for the periodic requeue
		Watches(&corev1.Pod{}, handler.EnqueueRequestsFromMapFunc(r.podToBindingRequests)).
		Complete(r)
}

// Reconcile handles the reconciliation loop for IdentityBinding resources.
//
// The reconciliation flow:
//  1. Fetch the IdentityBinding (drop metric series and return if not found)
//  2. Mark as Reconciling
//  3. Resolve the referenced ManagedIdentity
//  4. Compute matched and ambiguous pod sets
//  5. Update status.matchedPods / status.ambiguousPods / observedGeneration
//  6. Mark Ready or Stalled and apply status via SSA
func (r *IdentityBindingReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	startTime := time.Now()
	logger := log.FromContext(ctx)

	logger.V(1).Info("=== Reconcile START ===",
		"identityBinding", req.NamespacedName)

	defer func() {
		duration := time.Since(startTime)
		metrics.ReconcileDuration.WithLabelValues(metrics.ControllerIdentityBinding).Observe(duration.Seconds())
		logger.V(1).Info("=== Reconcile END ===",
			"identityBinding", req.NamespacedName,
			"duration", duration.String())
	}()

	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "IdentityBinding.Reconcile", trace.WithAttributes(
			tracing.AttrController.String(metrics.ControllerIdentityBinding),
			tracing.AttrBinding.String(req.Name),
			tracing.AttrNamespace.String(req.Namespace),
		))
		defer span.End()
	}

	// Step 1: Fetch the IdentityBinding
	binding := &identityv1alpha1.IdentityBinding{}
	if err := r.client.Get(ctx, req.NamespacedName, binding); err != nil {
		if apierrors.IsNotFound(err) {
			// No finalizer: the assignment trackers observe the delete through
			// their own watches and unbind immediately. Only the per-binding
			// metric series must not linger in scrapes.
			logger.V(1).Info("IdentityBinding not found (deleted), dropping metric series",
				"identityBinding", req.NamespacedName)
			metrics.DeleteBindingSeries(metrics.ControllerIdentityBinding, req.Name)
			metrics.ReconcileTotal.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ResultSkipped).Inc()
			return ctrl.Result{}, nil
		}
		logger.Error(err, "failed to fetch IdentityBinding",
			"identityBinding", req.NamespacedName)
		metrics.ReconcileTotal.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ResultError).Inc()
		metrics.ReconcileErrors.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ErrorTypeAPI).Inc()
		return ctrl.Result{}, fmt.Errorf("fetch IdentityBinding %s: %w", req.NamespacedName, err)
	}

	// Step 2: Mark as Reconciling
	conditions.MarkReconciling(binding, binding.Generation,
		identityv1alpha1.ReconcilingReasonProgressing, identityv1alpha1.ReconcilingMessageProgressing)
	binding.Status.ObservedGeneration = binding.Generation

	// Step 3: Resolve the referenced ManagedIdentity
	identityKey := types.NamespacedName{Namespace: binding.Namespace, Name: binding.Spec.IdentityRef}
	managedIdentity := &identityv1alpha1.ManagedIdentity{}
	if err := r.client.Get(ctx, identityKey, managedIdentity); err != nil {
		if apierrors.IsNotFound(err) {
			// A dangling identityRef grants nothing; pods stay unbound until
			// the identity shows up (the ManagedIdentity watch re-enqueues us).
			logger.Info("referenced ManagedIdentity not found",
				"identityBinding", binding.Name,
				"identityRef", binding.Spec.IdentityRef)
			r.markIdentityNotFound(ctx, binding)
			metrics.ReconcileTotal.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ResultDegraded).Inc()
			return ctrl.Result{RequeueAfter: DefaultRequeueInterval}, nil
		}
		logger.Error(err, "failed to fetch referenced ManagedIdentity",
			"identityBinding", binding.Name,
			"identityRef", binding.Spec.IdentityRef)
		metrics.ReconcileTotal.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ResultError).Inc()
		metrics.ReconcileErrors.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ErrorTypeAPI).Inc()
		return ctrl.Result{}, fmt.Errorf("fetch ManagedIdentity %s: %w", identityKey, err)
	}

	// Step 4: Compute the pod match sets
	matched, ambiguous, conflictDetail, err := r.matchPods(ctx, binding)
	if err != nil {
		logger.Error(err, "failed to compute pod match sets",
			"identityBinding", binding.Name)
		metrics.ReconcileTotal.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ResultError).Inc()
		metrics.ReconcileErrors.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ErrorTypeAPI).Inc()
		return ctrl.Result{}, fmt.Errorf("match pods for IdentityBinding %s: %w", binding.Name, err)
	}

	// Step 5: Update status and conditions
	binding.Status.MatchedPods = int32(matched)
	binding.Status.AmbiguousPods = ambiguous
	if len(ambiguous) > 0 {
		conditions.MarkStalled(binding, binding.Generation,
			identityv1alpha1.StalledReasonAmbiguousBinding, identityv1alpha1.StalledMessageAmbiguousBinding,
			conflictDetail)
	} else {
		conditions.MarkReady(binding, binding.Generation,
			identityv1alpha1.ReadyReasonReconciled, identityv1alpha1.ReadyMessageReconciled)
	}

	// Step 6: Apply status via SSA
	if err := ssa.ApplyIdentityBindingStatus(ctx, r.client, binding); err != nil {
		logger.Error(err, "failed to apply status via SSA",
			"identityBinding", binding.Name)
		metrics.ReconcileTotal.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ResultError).Inc()
		metrics.ReconcileErrors.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ErrorTypeAPI).Inc()
		return ctrl.Result{}, fmt.Errorf("apply IdentityBinding %s status: %w", binding.Name, err)
	}

	metrics.PodsMatched.WithLabelValues(metrics.ControllerIdentityBinding, metrics.StateBound, binding.Name).Set(float64(matched))
	metrics.PodsMatched.WithLabelValues(metrics.ControllerIdentityBinding, metrics.StateConflict, binding.Name).Set(float64(len(ambiguous)))

	if len(ambiguous) > 0 {
		// Token issuance for the ambiguous pods is blocked until an operator
		// untangles the selectors. Shout about it.
		r.recorder.Eventf(binding, nil, corev1.EventTypeWarning,
			identityv1alpha1.EventReasonAmbiguousBinding, identityv1alpha1.EventActionReconcile,
			"Pods matched by conflicting bindings: %s", conflictDetail)
		logger.Info("IdentityBinding has ambiguous pods, token issuance blocked",
			"identityBinding", binding.Name,
			"ambiguousPods", len(ambiguous))
		metrics.ReconcileTotal.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ResultDegraded).Inc()
		return ctrl.Result{RequeueAfter: DefaultRequeueInterval}, nil
	}

	r.recorder.Eventf(binding, nil, corev1.EventTypeNormal,
		identityv1alpha1.EventReasonReconciled, identityv1alpha1.EventActionReconcile,
		"IdentityBinding %s reconciled successfully, %d pods matched", binding.Name, matched)

	metrics.ReconcileTotal.WithLabelValues(metrics.ControllerIdentityBinding, metrics.ResultSuccess).Inc()
	logger.V(1).Info("IdentityBinding reconciled successfully",
		"identityBinding", binding.Name,
		"matchedPods", matched,
		"generation", binding.Generation)

	return ctrl.Result{RequeueAfter: DefaultRequeueInterval}, nil
}

// matchPods lists the pods the binding's selector matches and resolves each
// one to detect conflicts with sibling bindings. Returns the matched count,
// the sorted names of ambiguous pods, and a human-readable conflict summary
// for conditions and events.
func (r *IdentityBindingReconciler) matchPods(
	ctx context.Context,
	binding *identityv1alpha1.IdentityBinding,
) (int, []string, string, error) {
	logger := log.FromContext(ctx)

	selector, err := metav1.LabelSelectorAsSelector(&binding.Spec.Selector)
	if err != nil {
		// The validating webhook refuses unparsable selectors; reaching this
		// means the object predates the webhook.
		return 0, nil, "", fmt.Errorf("invalid selector: %w", err)
	}

	podList := &corev1.PodList{}
	if err := r.client.List(ctx, podList,
		client.InNamespace(binding.Namespace),
		client.MatchingLabelsSelector{Selector: selector},
	); err != nil {
		return 0, nil, "", fmt.Errorf("list pods: %w", err)
	}
	if len(podList.Items) == 0 {
		logger.V(2).Info("DEBUG: selector matches no pods",
			"identityBinding", binding.Name,
			"selector", selector.String())
		return 0, nil, "", nil
	}

	bindingList := &identityv1alpha1.IdentityBindingList{}
	if err := r.client.List(ctx, bindingList, client.InNamespace(binding.Namespace)); err != nil {
		return 0, nil, "", fmt.Errorf("list sibling bindings: %w", err)
	}
	identityList := &identityv1alpha1.ManagedIdentityList{}
	if err := r.client.List(ctx, identityList, client.InNamespace(binding.Namespace)); err != nil {
		return 0, nil, "", fmt.Errorf("list identities: %w", err)
	}
	exceptionList := &identityv1alpha1.IdentityExceptionList{}
	if err := r.client.List(ctx, exceptionList, client.InNamespace(binding.Namespace)); err != nil {
		return 0, nil, "", fmt.Errorf("list exceptions: %w", err)
	}

	var ambiguous []string
	var detail []string
	for i := range podList.Items {
		pod := &podList.Items[i]
		resolved := assignment.Resolve(pod, bindingList.Items, identityList.Items, exceptionList.Items)
		if resolved == nil || resolved.State != assignment.StateAmbiguous {
			continue
		}
		ambiguous = append(ambiguous, pod.Name)
		detail = append(detail, fmt.Sprintf("%s (bindings: %s)", pod.Name, strings.Join(resolved.Bindings, ", ")))
	}
	slices.Sort(ambiguous)
	slices.Sort(detail)

	logger.V(2).Info("DEBUG: computed pod match sets",
		"identityBinding", binding.Name,
		"matchedPods", len(podList.Items),
		"ambiguousPods", len(ambiguous))

	return len(podList.Items), ambiguous, strings.Join(detail, "; "), nil
}

// markIdentityNotFound marks the binding stalled on a dangling identityRef
// and applies the status.
func (r *IdentityBindingReconciler) markIdentityNotFound(
	ctx context.Context,
	binding *identityv1alpha1.IdentityBinding,
) {
	logger := log.FromContext(ctx)

	conditions.MarkStalled(binding, binding.Generation,
		identityv1alpha1.StalledReasonIdentityNotFound, identityv1alpha1.StalledMessageIdentityNotFound,
		binding.Spec.IdentityRef)
	binding.Status.ObservedGeneration = binding.Generation
	binding.Status.MatchedPods = 0
	binding.Status.AmbiguousPods = nil

	r.recorder.Eventf(binding, nil, corev1.EventTypeWarning,
		identityv1alpha1.EventReasonIdentityNotFound, identityv1alpha1.EventActionReconcile,
		"Referenced ManagedIdentity %q not found in namespace %s", binding.Spec.IdentityRef, binding.Namespace)

	if err := ssa.ApplyIdentityBindingStatus(ctx, r.client, binding); err != nil {
		logger.Error(err, "failed to apply IdentityNotFound status via SSA",
			"identityBinding", binding.Name)
	}
}

// identityToBindingRequests implements the MapFunc type and fans a
// ManagedIdentity event out to every binding referencing it, using the
// identityRef field index instead of a full list scan.
func (r *IdentityBindingReconciler) identityToBindingRequests(ctx context.Context, obj client.Object) []reconcile.Request {
	logger := log.FromContext(ctx)
	logger.V(2).Info("DEBUG: identityToBindingRequests triggered",
		"objectName", obj.GetName(), "objectNamespace", obj.GetNamespace())

	managedIdentity, ok := obj.(*identityv1alpha1.ManagedIdentity)
	if !ok {
		logger.Error(fmt.Errorf("unexpected type %T", obj), "Expected *ManagedIdentity")
		return nil
	}

	bindingList := &identityv1alpha1.IdentityBindingList{}
	if err := r.client.List(ctx, bindingList,
		client.InNamespace(managedIdentity.Namespace),
		client.MatchingFields{indexer.IdentityBindingIdentityRefField: managedIdentity.Name},
	); err != nil {
		logger.Error(err, "ERROR: Failed to list IdentityBindings for identity",
			"managedIdentity", managedIdentity.Name)
		return nil
	}

	requests := make([]reconcile.Request, len(bindingList.Items))
	for i, item := range bindingList.Items {
		requests[i] = reconcile.Request{
			NamespacedName: types.NamespacedName{
				Name:      item.Name,
				Namespace: item.Namespace,
			},
		}
	}
	logger.V(2).Info("DEBUG: Returning binding requests for identity",
		"managedIdentity", managedIdentity.Name, "requestCount", len(requests))
	return requests
}

// podToBindingRequests implements the MapFunc type and fans a Pod event out
// to every binding in the pod's namespace. Bindings that no longer match the
// pod need the reconcile just as much as bindings that newly do, so no
// selector filtering happens here.
func (r *IdentityBindingReconciler) podToBindingRequests(ctx context.Context, obj client.Object) []reconcile.Request {
	logger := log.FromContext(ctx)

	pod, ok := obj.(*corev1.Pod)
	if !ok {
		logger.Error(fmt.Errorf("unexpected type %T", obj), "Expected *Pod")
		return nil
	}

	bindingList := &identityv1alpha1.IdentityBindingList{}
	if err := r.client.List(ctx, bindingList, client.InNamespace(pod.Namespace)); err != nil {
		logger.Error(err, "ERROR: Failed to list IdentityBindings for pod",
			"pod", pod.Name, "namespace", pod.Namespace)
		return nil
	}

	requests := make([]reconcile.Request, len(bindingList.Items))
	for i, item := range bindingList.Items {
		requests[i] = reconcile.Request{
			NamespacedName: types.NamespacedName{
				Name:      item.Name,
				Namespace: item.Namespace,
			},
		}
	}
	logger.V(3).Info("DEBUG: Returning binding requests for pod",
		"pod", pod.Name, "namespace", pod.Namespace, "requestCount", len(requests))
	return requests
}
