package v1alpha1

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"
)

// miWebhookClient is a cached client from the manager.
// Reads go through the informer cache except for Secrets, which the manager
// client fetches live.
var miWebhookClient client.Client

// clientIDPattern is the canonical UUID shape of an AAD client ID.
var clientIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ManagedIdentityValidator implements admission.Validator for ManagedIdentity.
// +kubebuilder:object:generate=false
type ManagedIdentityValidator struct{}

var _ admission.Validator[*ManagedIdentity] = &ManagedIdentityValidator{}

// SetupWebhookWithManager will setup the manager to manage the webhooks
func (mi *ManagedIdentity) SetupWebhookWithManager(mgr ctrl.Manager) error {
	miWebhookClient = mgr.GetClient() // needed to initialize the client somewhere
	return ctrl.NewWebhookManagedBy(mgr, mi).
		WithValidator(&ManagedIdentityValidator{}).
		Complete()
}

// +kubebuilder:webhook:path=/validate-identity-t-caas-telekom-com-v1alpha1-managedidentity,mutating=false,failurePolicy=fail,sideEffects=None,groups=identity.t-caas.telekom.com,resources=managedidentities,verbs=create;update,versions=v1alpha1,name=managedidentity.validating.webhook.identity.t-caas.telekom.de,admissionReviewVersions=v1

// ValidateCreate implements admission.Validator for ManagedIdentity.
func (v *ManagedIdentityValidator) ValidateCreate(ctx context.Context, obj *ManagedIdentity) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("managedidentity-webhook")
	logger.V(1).Info("validating create", "name", obj.Name, "namespace", obj.Namespace)
	return validateManagedIdentitySpec(ctx, obj)
}

// ValidateUpdate implements admission.Validator for ManagedIdentity.
// NOTE: We always validate on update because Kubernetes increments Generation
// after admission webhooks run, so old and new generations are always equal
// during the admission call.
func (v *ManagedIdentityValidator) ValidateUpdate(ctx context.Context, oldObj, newObj *ManagedIdentity) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("managedidentity-webhook")
	logger.V(1).Info("validating update", "name", newObj.Name, "namespace", newObj.Namespace)
	return validateManagedIdentitySpec(ctx, newObj)
}

// ValidateDelete implements admission.Validator for ManagedIdentity.
func (v *ManagedIdentityValidator) ValidateDelete(ctx context.Context, obj *ManagedIdentity) (admission.Warnings, error) {
	logger := log.FromContext(ctx).WithName("managedidentity-webhook")
	logger.V(1).Info("validating delete", "name", obj.Name, "namespace", obj.Namespace)
	return nil, nil
}

// validateManagedIdentitySpec validates the identity's credential fields.
// The client secret is checked for existence but only returns warnings (not
// errors) so identities can be applied before the secret exists. The
// controller rechecks during reconciliation and sets error conditions.
func validateManagedIdentitySpec(ctx context.Context, mi *ManagedIdentity) (admission.Warnings, error) {
	var warnings admission.Warnings

	if !clientIDPattern.MatchString(mi.Spec.ClientID) {
		return nil, apierrors.NewBadRequest(
			fmt.Sprintf("spec.clientID %q is not a valid client ID", mi.Spec.ClientID))
	}

	if !strings.HasPrefix(mi.Spec.ResourceID, "/subscriptions/") {
		return nil, apierrors.NewBadRequest(
			fmt.Sprintf("spec.resourceID %q must be a full resource ID starting with /subscriptions/", mi.Spec.ResourceID))
	}

	for i, res := range mi.Spec.AllowedResources {
		if res == "" {
			return nil, apierrors.NewBadRequest(
				fmt.Sprintf("spec.allowedResources[%d] must not be empty", i))
		}
	}

	switch mi.Spec.Type {
	case IdentityTypeServicePrincipal:
		if mi.Spec.TenantID == "" {
			return nil, apierrors.NewBadRequest("spec.tenantID is required for ServicePrincipal identities")
		}
		if mi.Spec.SecretRef == nil || mi.Spec.SecretRef.Name == "" {
			return nil, apierrors.NewBadRequest("spec.secretRef is required for ServicePrincipal identities")
		}
		warnings = append(warnings, validateClientSecret(ctx, mi)...)
	case IdentityTypeUserAssigned, "":
		if mi.Spec.SecretRef != nil {
			warnings = append(warnings, "spec.secretRef is ignored for UserAssigned identities")
		}
	default:
		return nil, apierrors.NewBadRequest(fmt.Sprintf("spec.type %q is not supported", mi.Spec.Type))
	}

	return warnings, nil
}

// validateClientSecret checks that the referenced secret exists and carries
// the clientSecret data key, returning warnings for anything missing.
func validateClientSecret(ctx context.Context, mi *ManagedIdentity) admission.Warnings {
	logger := log.FromContext(ctx).WithName("managedidentity-webhook")
	var warnings admission.Warnings

	ns := mi.Spec.SecretRef.Namespace
	if ns == "" {
		ns = mi.Namespace
	}

	secret := &corev1.Secret{}
	key := client.ObjectKey{Namespace: ns, Name: mi.Spec.SecretRef.Name}
	if err := miWebhookClient.Get(ctx, key, secret); err != nil {
		if apierrors.IsNotFound(err) {
			logger.Info("warning: client secret not found (will be checked during reconciliation)",
				"name", mi.Name, "secret", key.String())
			warnings = append(warnings, fmt.Sprintf("Secret '%s/%s' not found - token requests will fail until it exists", ns, mi.Spec.SecretRef.Name))
			return warnings
		}
		logger.Error(err, "failed to fetch client secret", "secret", key.String())
		warnings = append(warnings, fmt.Sprintf("could not verify Secret '%s/%s': %v", ns, mi.Spec.SecretRef.Name, err))
		return warnings
	}

	if _, ok := secret.Data[SecretKeyClientSecret]; !ok {
		warnings = append(warnings, fmt.Sprintf("Secret '%s/%s' has no %q data key - token requests will fail until it does", ns, mi.Spec.SecretRef.Name, SecretKeyClientSecret))
	}

	return warnings
}
