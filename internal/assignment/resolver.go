package assignment

import (
	"fmt"
	"slices"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
)

// MatchesSelector reports whether the label selector matches the given
// labels. Matching is evaluated fresh on every call, match results are
// never cached.
func MatchesSelector(selector *metav1.LabelSelector, lbls map[string]string) (bool, error) {
	if selector == nil {
		return false, nil
	}
	labelSelector, err := metav1.LabelSelectorAsSelector(selector)
	if err != nil {
		return false, fmt.Errorf("unable to convert label selector: %w", err)
	}
	return labelSelector.Matches(labels.Set(lbls)), nil
}

// MatchesPodLabels reports whether have contains every label in want. An
// empty want matches nothing: an exception without labels would otherwise
// exempt every pod in its namespace.
func MatchesPodLabels(want, have map[string]string) bool {
	if len(want) == 0 {
		return false
	}
	for key, value := range want {
		if have[key] != value {
			return false
		}
	}
	return true
}

// Resolve computes the assignment of a single pod from the given cluster
// state. An exception match wins over any binding. Bindings whose identityRef
// does not resolve grant nothing. Multiple bindings to the same identity are
// not a conflict; bindings to two or more distinct identities make the pod
// ambiguous and no identity is picked.
//
// Host-network pods and pods without an IP resolve to nil: their requests
// arrive with the node's source address and cannot be attributed to the pod.
func Resolve(
	pod *corev1.Pod,
	bindings []identityv1alpha1.IdentityBinding,
	identities []identityv1alpha1.ManagedIdentity,
	exceptions []identityv1alpha1.IdentityException,
) *Assignment {
	if pod.Spec.HostNetwork || pod.Status.PodIP == "" {
		return nil
	}

	resolved := &Assignment{
		Pod:      pod.Namespace + "/" + pod.Name,
		IP:       pod.Status.PodIP,
		NodeName: pod.Spec.NodeName,
	}

	for i := range exceptions {
		exception := &exceptions[i]
		if exception.Namespace != pod.Namespace {
			continue
		}
		if MatchesPodLabels(exception.Spec.PodLabels, pod.Labels) {
			resolved.State = StateExempt
			return resolved
		}
	}

	// Matching bindings grouped by the identity they reference. Several
	// bindings to the same identity are idempotent, not conflicting.
	byIdentity := map[string][]string{}
	for i := range bindings {
		binding := &bindings[i]
		if binding.Namespace != pod.Namespace {
			continue
		}
		// Selectors are validated at admission, an invalid one matches nothing.
		matches, err := MatchesSelector(&binding.Spec.Selector, pod.Labels)
		if err != nil || !matches {
			continue
		}
		if lookupIdentity(identities, pod.Namespace, binding.Spec.IdentityRef) == nil {
			continue
		}
		byIdentity[binding.Spec.IdentityRef] = append(byIdentity[binding.Spec.IdentityRef], binding.Name)
	}

	switch len(byIdentity) {
	case 0:
		resolved.State = StateUnbound
	case 1:
		for ref, names := range byIdentity {
			slices.Sort(names)
			resolved.State = StateBound
			resolved.Binding = names[0]
			resolved.Identity = newIdentity(lookupIdentity(identities, pod.Namespace, ref))
		}
	default:
		var names []string
		for _, bound := range byIdentity {
			names = append(names, bound...)
		}
		slices.Sort(names)
		resolved.State = StateAmbiguous
		resolved.Bindings = names
	}
	return resolved
}

func lookupIdentity(identities []identityv1alpha1.ManagedIdentity, namespace, name string) *identityv1alpha1.ManagedIdentity {
	for i := range identities {
		if identities[i].Namespace == namespace && identities[i].Name == name {
			return &identities[i]
		}
	}
	return nil
}
