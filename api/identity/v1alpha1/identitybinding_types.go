package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// IdentityBindingSpec defines the desired state of IdentityBinding.
type IdentityBindingSpec struct {
	// IdentityRef names a ManagedIdentity in the same namespace. Pods
	// matched by the selector are assigned that identity.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	IdentityRef string `json:"identityRef"`

	// Selector is a label selector matching pods in the binding's
	// namespace. An empty selector is rejected; a binding must never match
	// every pod by accident.
	// +kubebuilder:validation:Required
	Selector metav1.LabelSelector `json:"selector"`
}

// IdentityBindingStatus defines the observed state of IdentityBinding.
type IdentityBindingStatus struct {
	// ObservedGeneration is the last observed generation of the resource.
	// This is used by kstatus to determine if the resource is current.
	// +kubebuilder:validation:Optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// MatchedPods is the number of running pods currently matched by the
	// selector.
	// +kubebuilder:validation:Optional
	MatchedPods int32 `json:"matchedPods,omitempty"`

	// AmbiguousPods lists pods matched by this binding and at least one
	// other binding with a different identity. Those pods are denied tokens
	// until an operator resolves the overlap.
	// +kubebuilder:validation:Optional
	AmbiguousPods []string `json:"ambiguousPods,omitempty"`

	// Conditions defines current state of the IdentityBinding. All
	// conditions should evaluate to true to signify successful
	// reconciliation.
	// +kubebuilder:validation:Optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// IdentityBinding is the Schema for the identitybindings API.
//
// +kubebuilder:object:root=true
// +kubebuilder:resource:path=identitybindings,scope=Namespaced,shortName=idbind
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Identity",type="string",JSONPath=".spec.identityRef",description="Referenced ManagedIdentity"
// +kubebuilder:printcolumn:name="Matched",type="integer",JSONPath=".status.matchedPods",description="Pods matched by the selector"
// +kubebuilder:printcolumn:name="Ready",type="string",JSONPath=".status.conditions[?(@.type=='Ready')].status",description="Whether the IdentityBinding is ready"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp",description="Time duration since creation of this IdentityBinding"
type IdentityBinding struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   IdentityBindingSpec   `json:"spec,omitempty"`
	Status IdentityBindingStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// IdentityBindingList contains a list of IdentityBinding.
type IdentityBindingList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []IdentityBinding `json:"items"`
}

func init() {
	SchemeBuilder.Register(&IdentityBinding{}, &IdentityBindingList{})
}

// GetConditions returns the conditions of the IdentityBinding.
func (ib *IdentityBinding) GetConditions() []metav1.Condition {
	return ib.Status.Conditions
}

// SetConditions sets the conditions of the IdentityBinding.
func (ib *IdentityBinding) SetConditions(conditions []metav1.Condition) {
	ib.Status.Conditions = conditions
}
