package v1alpha1

import "strings"

// ApplyDefaults normalizes defaultable ManagedIdentity spec fields in place
// and reports whether anything changed. An unset type becomes UserAssigned,
// and client and tenant IDs are lowercased so cache keys and AAD requests
// never differ by casing only. The mutating webhook applies this during
// admission.
func (mi *ManagedIdentity) ApplyDefaults() bool {
	mutated := false

	if mi.Spec.Type == "" {
		mi.Spec.Type = IdentityTypeUserAssigned
		mutated = true
	}
	if lowered := strings.ToLower(mi.Spec.ClientID); lowered != mi.Spec.ClientID {
		mi.Spec.ClientID = lowered
		mutated = true
	}
	if lowered := strings.ToLower(mi.Spec.TenantID); lowered != mi.Spec.TenantID {
		mi.Spec.TenantID = lowered
		mutated = true
	}

	return mutated
}
