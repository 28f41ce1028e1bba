package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// IdentityType discriminates how a token is obtained for a ManagedIdentity.
type IdentityType string

const (
	// IdentityTypeUserAssigned identifies a user-assigned managed identity
	// attached to the node's VM. Tokens are obtained from the instance
	// metadata service with the identity's client ID.
	IdentityTypeUserAssigned IdentityType = "UserAssigned"

	// IdentityTypeServicePrincipal identifies a service principal whose
	// client secret is stored in a Kubernetes Secret. Tokens are obtained
	// from the AAD token endpoint with client credentials.
	IdentityTypeServicePrincipal IdentityType = "ServicePrincipal"

	// SecretKeyClientSecret is the data key inside the referenced Secret
	// holding the service principal's client secret.
	SecretKeyClientSecret = "clientSecret"
)

// ManagedIdentitySpec defines the desired state of ManagedIdentity.
type ManagedIdentitySpec struct {
	// Type selects the token acquisition flow for this identity.
	// +kubebuilder:validation:Optional
	// +kubebuilder:validation:Enum=UserAssigned;ServicePrincipal
	// +kubebuilder:default=UserAssigned
	Type IdentityType `json:"type,omitempty"`

	// ResourceID is the full Azure resource ID of the identity. The identity
	// is referenced, never owned, by this operator.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	ResourceID string `json:"resourceID"`

	// ClientID is the identity's client (application) ID.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	ClientID string `json:"clientID"`

	// TenantID is the AAD tenant the identity lives in. Required for
	// ServicePrincipal identities; optional for UserAssigned ones since the
	// instance metadata service resolves the tenant itself.
	// +kubebuilder:validation:Optional
	TenantID string `json:"tenantID,omitempty"`

	// SecretRef points to the Secret holding the client secret under the
	// "clientSecret" key. Only used, and then required, for ServicePrincipal
	// identities.
	// +kubebuilder:validation:Optional
	SecretRef *corev1.SecretReference `json:"secretRef,omitempty"`

	// AllowedResources restricts the resource scopes pods may request tokens
	// for. Empty means any resource scope is permitted. A token request for
	// a resource outside this list is rejected as unauthorized.
	// +kubebuilder:validation:Optional
	AllowedResources []string `json:"allowedResources,omitempty"`
}

// ManagedIdentityStatus defines the observed state of ManagedIdentity.
type ManagedIdentityStatus struct {
	// ObservedGeneration is the last observed generation of the resource.
	// This is used by kstatus to determine if the resource is current.
	// +kubebuilder:validation:Optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// BoundBindings is the number of IdentityBindings in the namespace that
	// reference this identity.
	// +kubebuilder:validation:Optional
	BoundBindings int32 `json:"boundBindings,omitempty"`

	// Conditions defines current state of the ManagedIdentity. All
	// conditions should evaluate to true to signify successful
	// reconciliation.
	// +kubebuilder:validation:Optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// ManagedIdentity is the Schema for the managedidentities API.
//
// +kubebuilder:object:root=true
// +kubebuilder:resource:path=managedidentities,scope=Namespaced,shortName=mid
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Type",type="string",JSONPath=".spec.type",description="Token acquisition flow"
// +kubebuilder:printcolumn:name="ClientID",type="string",JSONPath=".spec.clientID",description="Client ID of the identity"
// +kubebuilder:printcolumn:name="Ready",type="string",JSONPath=".status.conditions[?(@.type=='Ready')].status",description="Whether the ManagedIdentity is ready"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp",description="Time duration since creation of this ManagedIdentity"
type ManagedIdentity struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ManagedIdentitySpec   `json:"spec,omitempty"`
	Status ManagedIdentityStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ManagedIdentityList contains a list of ManagedIdentity.
type ManagedIdentityList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ManagedIdentity `json:"items"`
}

func init() {
	SchemeBuilder.Register(&ManagedIdentity{}, &ManagedIdentityList{})
}

// GetConditions returns the conditions of the ManagedIdentity.
func (mi *ManagedIdentity) GetConditions() []metav1.Condition {
	return mi.Status.Conditions
}

// SetConditions sets the conditions of the ManagedIdentity.
func (mi *ManagedIdentity) SetConditions(conditions []metav1.Condition) {
	mi.Status.Conditions = conditions
}
