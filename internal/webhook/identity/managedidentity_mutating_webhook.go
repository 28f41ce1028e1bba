package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	admissionv1 "k8s.io/api/admission/v1"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
	"github.com/telekom/pod-identity-operator/pkg/metrics"
)

// +kubebuilder:webhook:path=/mutate-identity-t-caas-telekom-com-v1alpha1-managedidentity,mutating=true,failurePolicy=fail,sideEffects=None,groups=identity.t-caas.telekom.com,resources=managedidentities,verbs=create;update,versions=v1alpha1,name=managedidentity.mutating.webhook.identity.t-caas.telekom.de,admissionReviewVersions=v1

// ManagedIdentityMutator defaults ManagedIdentity credential fields: an
// unset type becomes UserAssigned, client and tenant IDs are lowercased so
// cache keys and AAD requests never differ by casing only.
type ManagedIdentityMutator struct {
	Decoder admission.Decoder
}

// InjectDecoder injects the decoder into the ManagedIdentityMutator
func (m *ManagedIdentityMutator) InjectDecoder(d admission.Decoder) error {
	m.Decoder = d
	return nil
}

// Handle mutates the ManagedIdentity by applying field defaults.
func (m *ManagedIdentityMutator) Handle(ctx context.Context, req admission.Request) admission.Response {
	operation := strings.ToLower(string(req.Operation))

	// Only handle CREATE and UPDATE operations
	if req.Operation != admissionv1.Create && req.Operation != admissionv1.Update {
		metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookManagedIdentityMutator, operation, metrics.WebhookResultAllowed).Inc()
		return admission.Allowed("Operation is not CREATE or UPDATE")
	}

	managedIdentity := &identityv1alpha1.ManagedIdentity{}
	err := m.Decoder.Decode(req, managedIdentity)
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookManagedIdentityMutator, operation, metrics.WebhookResultErrored).Inc()
		return admission.Errored(http.StatusBadRequest, err)
	}

	if !managedIdentity.ApplyDefaults() {
		metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookManagedIdentityMutator, operation, metrics.WebhookResultAllowed).Inc()
		return admission.Allowed("No defaults to apply")
	}

	marshalled, err := json.Marshal(managedIdentity)
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookManagedIdentityMutator, operation, metrics.WebhookResultErrored).Inc()
		return admission.Errored(http.StatusInternalServerError, err)
	}

	metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookManagedIdentityMutator, operation, metrics.WebhookResultAllowed).Inc()
	return admission.PatchResponseFromRaw(req.Object.Raw, marshalled)
}
