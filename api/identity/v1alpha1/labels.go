package v1alpha1

// Well-known label keys used across the pod-identity-operator.
const (
	// LabelKeyBinding is the conventional pod label for simple setups: a
	// binding whose selector matches only this key gives workloads a
	// one-label opt-in. The operator does not require it; any selector
	// works.
	LabelKeyBinding = "identity.t-caas.telekom.com/binding"
)
