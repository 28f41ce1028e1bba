package assignment

import (
	corev1 "k8s.io/api/core/v1"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
)

// State classifies a pod's resolved assignment.
type State string

const (
	// StateUnbound marks pods matched by no binding. Token requests from
	// these pods are denied.
	StateUnbound State = "Unbound"

	// StateBound marks pods with exactly one effective identity.
	StateBound State = "Bound"

	// StateAmbiguous marks pods matched by bindings to two or more distinct
	// identities. No token is ever issued for an ambiguous pod.
	StateAmbiguous State = "Ambiguous"

	// StateExempt marks pods matched by an IdentityException. Their metadata
	// requests pass through to the upstream endpoint unmodified.
	StateExempt State = "Exempt"
)

// Identity is a value copy of the ManagedIdentity fields the interceptor
// needs for a token exchange. Copies keep snapshot entries immutable while
// the informer cache churns underneath.
type Identity struct {
	Name      string
	Namespace string

	Type       identityv1alpha1.IdentityType
	ResourceID string
	ClientID   string
	TenantID   string

	// SecretRef points to the client secret of a service principal identity,
	// nil for user-assigned identities. The namespace is defaulted to the
	// identity's namespace at copy time.
	SecretRef *corev1.SecretReference

	// AllowedResources restricts the audiences tokens may be requested for.
	// Empty means any resource.
	AllowedResources []string
}

// AllowsResource reports whether tokens for the given resource may be
// requested with this identity.
func (i *Identity) AllowsResource(resource string) bool {
	if len(i.AllowedResources) == 0 {
		return true
	}
	for _, allowed := range i.AllowedResources {
		if allowed == resource {
			return true
		}
	}
	return false
}

// Assignment is one pod's resolved identity record.
type Assignment struct {
	// Pod is the namespace/name key of the pod.
	Pod string

	// IP is the pod IP the record is keyed by.
	IP string

	// NodeName is the node the pod is scheduled on.
	NodeName string

	State State

	// Identity is set only when State is StateBound.
	Identity *Identity

	// Binding names the IdentityBinding that produced the assignment.
	Binding string

	// Bindings lists the conflicting binding names when State is
	// StateAmbiguous.
	Bindings []string
}

// newIdentity copies the exchange-relevant fields out of a ManagedIdentity.
func newIdentity(identity *identityv1alpha1.ManagedIdentity) *Identity {
	copied := &Identity{
		Name:       identity.Name,
		Namespace:  identity.Namespace,
		Type:       identity.Spec.Type,
		ResourceID: identity.Spec.ResourceID,
		ClientID:   identity.Spec.ClientID,
		TenantID:   identity.Spec.TenantID,
	}
	if identity.Spec.SecretRef != nil {
		ref := *identity.Spec.SecretRef
		if ref.Namespace == "" {
			ref.Namespace = identity.Namespace
		}
		copied.SecretRef = &ref
	}
	if len(identity.Spec.AllowedResources) > 0 {
		copied.AllowedResources = make([]string, len(identity.Spec.AllowedResources))
		copy(copied.AllowedResources, identity.Spec.AllowedResources)
	}
	return copied
}
