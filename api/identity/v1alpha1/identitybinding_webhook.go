package v1alpha1

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"
)

// IdentityBindingValidator implements admission.Validator for IdentityBinding.
// It holds a client reference for listing pods and sibling bindings during validation.
// +kubebuilder:object:generate=false
type IdentityBindingValidator struct {
	Client client.Client
}

var _ admission.Validator[*IdentityBinding] = &IdentityBindingValidator{}

// SetupWebhookWithManager will setup the manager to manage the webhooks.
func (ib *IdentityBinding) SetupWebhookWithManager(mgr ctrl.Manager) error {
	return ctrl.NewWebhookManagedBy(mgr, ib).
		WithValidator(&IdentityBindingValidator{Client: mgr.GetClient()}).
		Complete()
}

// +kubebuilder:webhook:path=/validate-identity-t-caas-telekom-com-v1alpha1-identitybinding,mutating=false,failurePolicy=fail,sideEffects=None,groups=identity.t-caas.telekom.com,resources=identitybindings,verbs=create;update,versions=v1alpha1,name=webhook.identity.t-caas.telekom.de,admissionReviewVersions=v1

// ValidateCreate implements admission.Validator for IdentityBinding.
func (v *IdentityBindingValidator) ValidateCreate(ctx context.Context, obj *IdentityBinding) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("identitybinding-webhook")
	logger.V(1).Info("validating create", "name", obj.Name, "namespace", obj.Namespace)
	return v.validateBindingSpec(ctx, obj)
}

// ValidateUpdate implements admission.Validator for IdentityBinding.
func (v *IdentityBindingValidator) ValidateUpdate(ctx context.Context, oldObj, newObj *IdentityBinding) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("identitybinding-webhook")
	logger.V(1).Info("validating update", "name", newObj.Name, "namespace", newObj.Namespace)

	if oldObj.Generation == newObj.Generation {
		return nil, nil
	}

	return v.validateBindingSpec(ctx, newObj)
}

// ValidateDelete implements admission.Validator for IdentityBinding.
func (v *IdentityBindingValidator) ValidateDelete(ctx context.Context, obj *IdentityBinding) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("identitybinding-webhook")
	logger.V(1).Info("validating delete", "name", obj.Name, "namespace", obj.Namespace)
	return nil, nil
}

// validateBindingSpec validates the selector and identity reference. Identity
// existence and conflicts with sibling bindings only produce warnings (not
// errors) so bindings can be applied in any order. The controller rechecks
// both during reconciliation and sets error conditions.
func (v *IdentityBindingValidator) validateBindingSpec(ctx context.Context, ib *IdentityBinding) (admission.Warnings, error) {
	var warnings admission.Warnings

	if ib.Spec.IdentityRef == "" {
		return nil, apierrors.NewBadRequest("spec.identityRef must not be empty")
	}

	if isLabelSelectorEmpty(&ib.Spec.Selector) {
		return nil, apierrors.NewBadRequest("spec.selector must not be empty: an empty selector would match every pod in the namespace")
	}

	selector, err := metav1.LabelSelectorAsSelector(&ib.Spec.Selector)
	if err != nil {
		return nil, apierrors.NewBadRequest(fmt.Sprintf("invalid spec.selector: %v", err))
	}

	identityWarning, err := v.validateIdentityRef(ctx, ib)
	if err != nil {
		return warnings, err
	}
	warnings = append(warnings, identityWarning...)

	conflictWarnings, err := v.findConflictingBindings(ctx, ib, selector)
	if err != nil {
		return warnings, err
	}
	warnings = append(warnings, conflictWarnings...)

	return warnings, nil
}

// validateIdentityRef checks that the referenced ManagedIdentity exists,
// returning a warning if it is missing.
func (v *IdentityBindingValidator) validateIdentityRef(ctx context.Context, ib *IdentityBinding) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("identitybinding-webhook")

	identity := &ManagedIdentity{}
	key := client.ObjectKey{Namespace: ib.Namespace, Name: ib.Spec.IdentityRef}
	if err := v.Client.Get(ctx, key, identity); err != nil {
		if apierrors.IsNotFound(err) {
			logger.Info("warning: managedidentity not found (will be checked during reconciliation)",
				"name", ib.Name, "identityRef", ib.Spec.IdentityRef)
			return admission.Warnings{fmt.Sprintf("ManagedIdentity '%s' not found - matched pods stay unbound until it exists", ib.Spec.IdentityRef)}, nil
		}
		logger.Error(err, "failed to fetch managedidentity", "identityRef", ib.Spec.IdentityRef)
		return nil, apierrors.NewInternalError(fmt.Errorf("error fetching ManagedIdentity '%s': %w", ib.Spec.IdentityRef, err))
	}

	return nil, nil
}

// findConflictingBindings warns about pods that the new selector matches while
// a sibling binding with a different identityRef already matches them. Such
// pods end up in conflict and are refused tokens. Bindings that resolve to the
// same identity are not reported since they cannot produce a conflict.
func (v *IdentityBindingValidator) findConflictingBindings(ctx context.Context, ib *IdentityBinding, selector labels.Selector) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("identitybinding-webhook")
	var warnings admission.Warnings

	podList := &corev1.PodList{}
	if err := v.Client.List(ctx, podList, client.InNamespace(ib.Namespace), client.MatchingLabelsSelector{Selector: selector}); err != nil {
		logger.Error(err, "failed to list pods", "namespace", ib.Namespace)
		return nil, apierrors.NewInternalError(fmt.Errorf("unable to list pods: %w", err))
	}
	if len(podList.Items) == 0 {
		return nil, nil
	}

	bindingList := &IdentityBindingList{}
	if err := v.Client.List(ctx, bindingList, client.InNamespace(ib.Namespace)); err != nil {
		logger.Error(err, "failed to list identitybindings", "namespace", ib.Namespace)
		return nil, apierrors.NewInternalError(fmt.Errorf("unable to list IdentityBindings: %w", err))
	}

	for _, other := range bindingList.Items {
		if other.Name == ib.Name || other.Spec.IdentityRef == ib.Spec.IdentityRef {
			continue
		}
		otherSelector, err := metav1.LabelSelectorAsSelector(&other.Spec.Selector)
		if err != nil {
			// The sibling never passed validation with a broken selector, but
			// skip it rather than block this object on someone else's spec.
			continue
		}
		for _, pod := range podList.Items {
			// Host-network pods are never assigned an identity, so they
			// cannot end up in conflict.
			if pod.Spec.HostNetwork {
				continue
			}
			if otherSelector.Matches(labels.Set(pod.Labels)) {
				logger.Info("warning: binding overlaps with sibling",
					"name", ib.Name, "conflictsWith", other.Name, "pod", pod.Name)
				warnings = append(warnings, fmt.Sprintf("pod '%s' is also matched by IdentityBinding '%s' bound to identity '%s' - conflicting pods are refused tokens", pod.Name, other.Name, other.Spec.IdentityRef))
			}
		}
	}

	return warnings, nil
}

// isLabelSelectorEmpty checks if a LabelSelector has no matching criteria.
// More efficient than using reflect.DeepEqual.
func isLabelSelectorEmpty(selector *metav1.LabelSelector) bool {
	return selector == nil || (len(selector.MatchLabels) == 0 && len(selector.MatchExpressions) == 0)
}
