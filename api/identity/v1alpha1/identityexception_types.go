package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// IdentityExceptionSpec defines the desired state of IdentityException.
type IdentityExceptionSpec struct {
	// PodLabels exempts pods in the exception's namespace whose labels are
	// a superset of this map. Requests from exempt pods are passed through
	// to the real metadata endpoint unmodified, with no identity injected.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinProperties=1
	PodLabels map[string]string `json:"podLabels"`
}

// IdentityException is the Schema for the identityexceptions API.
// An IdentityException carries no status; it is a pure configuration record
// consumed by the node agents.
//
// +kubebuilder:object:root=true
// +kubebuilder:resource:path=identityexceptions,scope=Namespaced,shortName=idexc
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp",description="Time duration since creation of this IdentityException"
type IdentityException struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec IdentityExceptionSpec `json:"spec,omitempty"`
}

// +kubebuilder:object:root=true

// IdentityExceptionList contains a list of IdentityException.
type IdentityExceptionList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []IdentityException `json:"items"`
}

func init() {
	SchemeBuilder.Register(&IdentityException{}, &IdentityExceptionList{})
}
