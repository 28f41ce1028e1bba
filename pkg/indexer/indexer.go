/*
Copyright © 2026 Deutsche Telekom AG.
*/
package indexer

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
)

const (
	// IdentityBindingIdentityRefField is the field index for
	// IdentityBinding.Spec.IdentityRef.
	IdentityBindingIdentityRefField = ".spec.identityRef"

	// ManagedIdentitySecretField indexes ManagedIdentity resources by the
	// namespaced name of their referenced client secret. The value is
	// "<namespace>/<name>"; an unset secretRef namespace defaults to the
	// identity's own namespace.
	ManagedIdentitySecretField = ".spec.secretRef"
)

// SetupIndexes registers field indexes on the manager's cache for efficient lookups.
// This should be called before starting the manager.
func SetupIndexes(ctx context.Context, mgr manager.Manager) error {
	// Index IdentityBinding by Spec.IdentityRef so identity events can be
	// mapped to the bindings that reference them without full list scans.
	if err := mgr.GetFieldIndexer().IndexField(
		ctx,
		&identityv1alpha1.IdentityBinding{},
		IdentityBindingIdentityRefField,
		IdentityBindingIdentityRefFunc,
	); err != nil {
		return fmt.Errorf("failed to create index for IdentityBinding.Spec.IdentityRef: %w", err)
	}

	// Index ManagedIdentity by its referenced client secret so Secret events
	// can be mapped to the identities that depend on them.
	if err := mgr.GetFieldIndexer().IndexField(
		ctx,
		&identityv1alpha1.ManagedIdentity{},
		ManagedIdentitySecretField,
		ManagedIdentitySecretFunc,
	); err != nil {
		return fmt.Errorf("failed to create index for ManagedIdentity.Spec.SecretRef: %w", err)
	}

	return nil
}

// IdentityBindingIdentityRefFunc extracts the index value for the identityRef
// field. Exported for testing and fake client setup.
func IdentityBindingIdentityRefFunc(obj client.Object) []string {
	ib, ok := obj.(*identityv1alpha1.IdentityBinding)
	if !ok || ib.Spec.IdentityRef == "" {
		return nil
	}
	return []string{ib.Spec.IdentityRef}
}

// ManagedIdentitySecretFunc extracts the index value for the secretRef field.
// Exported for testing and fake client setup.
func ManagedIdentitySecretFunc(obj client.Object) []string {
	mi, ok := obj.(*identityv1alpha1.ManagedIdentity)
	if !ok || mi.Spec.SecretRef == nil || mi.Spec.SecretRef.Name == "" {
		return nil
	}
	ns := mi.Spec.SecretRef.Namespace
	if ns == "" {
		ns = mi.Namespace
	}
	return []string{ns + "/" + mi.Spec.SecretRef.Name}
}
