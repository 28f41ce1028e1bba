package v1alpha1

import (
	"context"
	"fmt"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/validation"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"
)

// IdentityExceptionValidator implements admission.Validator for IdentityException.
// +kubebuilder:object:generate=false
type IdentityExceptionValidator struct{}

var _ admission.Validator[*IdentityException] = &IdentityExceptionValidator{}

// SetupWebhookWithManager will setup the manager to manage the webhooks.
func (ie *IdentityException) SetupWebhookWithManager(mgr ctrl.Manager) error {
	return ctrl.NewWebhookManagedBy(mgr, ie).
		WithValidator(&IdentityExceptionValidator{}).
		Complete()
}

// +kubebuilder:webhook:path=/validate-identity-t-caas-telekom-com-v1alpha1-identityexception,mutating=false,failurePolicy=fail,sideEffects=None,groups=identity.t-caas.telekom.com,resources=identityexceptions,verbs=create;update,versions=v1alpha1,name=identityexception.validating.webhook.identity.t-caas.telekom.de,admissionReviewVersions=v1

// ValidateCreate implements admission.Validator for IdentityException.
func (v *IdentityExceptionValidator) ValidateCreate(ctx context.Context, obj *IdentityException) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("identityexception-webhook")
	logger.V(1).Info("validating create", "name", obj.Name, "namespace", obj.Namespace)
	return validateExceptionPodLabels(obj)
}

// ValidateUpdate implements admission.Validator for IdentityException.
// NOTE: We always validate on update because Kubernetes increments Generation
// after admission webhooks run, so old and new generations are always equal
// during the admission call.
func (v *IdentityExceptionValidator) ValidateUpdate(ctx context.Context, oldObj, newObj *IdentityException) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("identityexception-webhook")
	logger.V(1).Info("validating update", "name", newObj.Name, "namespace", newObj.Namespace)
	return validateExceptionPodLabels(newObj)
}

// ValidateDelete implements admission.Validator for IdentityException.
func (v *IdentityExceptionValidator) ValidateDelete(ctx context.Context, obj *IdentityException) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("identityexception-webhook")
	logger.V(1).Info("validating delete", "name", obj.Name, "namespace", obj.Namespace)
	return nil, nil
}

// validateExceptionPodLabels ensures the exception names at least one label
// and that every key and value is syntactically valid. An exception with no
// labels would exempt every pod in the namespace from interception.
func validateExceptionPodLabels(ie *IdentityException) (admission.Warnings, error) {
	if len(ie.Spec.PodLabels) == 0 {
		return nil, apierrors.NewBadRequest("spec.podLabels must not be empty: an empty set would exempt every pod in the namespace")
	}

	for key, value := range ie.Spec.PodLabels {
		if errs := validation.IsQualifiedName(key); len(errs) > 0 {
			return nil, apierrors.NewBadRequest(
				fmt.Sprintf("spec.podLabels key %q is invalid: %s", key, strings.Join(errs, "; ")))
		}
		if errs := validation.IsValidLabelValue(value); len(errs) > 0 {
			return nil, apierrors.NewBadRequest(
				fmt.Sprintf("spec.podLabels[%q] value %q is invalid: %s", key, value, strings.Join(errs, "; ")))
		}
	}

	return nil, nil
}
