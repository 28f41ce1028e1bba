// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package ssa provides Server-Side Apply (SSA) helpers for working with the
// generated ApplyConfiguration types. These helpers create typed ApplyConfigurations
// from existing objects and apply them via the native SubResource("status").Apply() API.
package ssa

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	metav1ac "k8s.io/client-go/applyconfigurations/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
	ac "github.com/telekom/pod-identity-operator/api/identity/v1alpha1/applyconfiguration/identity/v1alpha1"
)

// FieldOwner is the field manager name for the pod-identity-operator controller.
const FieldOwner = "pod-identity-operator"

// applyStatus applies a typed ApplyConfiguration to the status subresource
// using the native controller-runtime SubResource("status").Apply() API.
// This uses Server-Side Apply without any unstructured conversion or workarounds.
func applyStatus(ctx context.Context, c client.Client, applyConfig runtime.ApplyConfiguration) error {
	if applyConfig == nil {
		return fmt.Errorf("applyConfig must not be nil")
	}

	return c.SubResource("status").Apply(ctx, applyConfig, client.FieldOwner(FieldOwner), client.ForceOwnership)
}

// ApplyManagedIdentityStatus applies a status update to a ManagedIdentity using native SSA.
// The target object must already exist; applying status to a non-existent object returns
// NotFound from the API server (wrapped with a descriptive message).
func ApplyManagedIdentityStatus(ctx context.Context, c client.Client, mi *identityv1alpha1.ManagedIdentity) error {
	if mi == nil {
		return fmt.Errorf("managedIdentity must not be nil")
	}
	if mi.Name == "" {
		return fmt.Errorf("managedIdentity must have a name")
	}

	applyConfig := ac.ManagedIdentity(mi.Name, mi.Namespace).
		WithStatus(ManagedIdentityStatusFrom(&mi.Status))

	if err := applyStatus(ctx, c, applyConfig); err != nil {
		return fmt.Errorf("apply ManagedIdentity %s status: %w", mi.Name, err)
	}
	return nil
}

// ApplyIdentityBindingStatus applies a status update to an IdentityBinding using native SSA.
// The target object must already exist; applying status to a non-existent object returns
// NotFound from the API server (wrapped with a descriptive message).
func ApplyIdentityBindingStatus(ctx context.Context, c client.Client, ib *identityv1alpha1.IdentityBinding) error {
	if ib == nil {
		return fmt.Errorf("identityBinding must not be nil")
	}
	if ib.Name == "" {
		return fmt.Errorf("identityBinding must have a name")
	}

	applyConfig := ac.IdentityBinding(ib.Name, ib.Namespace).
		WithStatus(IdentityBindingStatusFrom(&ib.Status))

	if err := applyStatus(ctx, c, applyConfig); err != nil {
		return fmt.Errorf("apply IdentityBinding %s status: %w", ib.Name, err)
	}
	return nil
}

// ManagedIdentityStatusFrom converts a ManagedIdentityStatus to its ApplyConfiguration.
func ManagedIdentityStatusFrom(status *identityv1alpha1.ManagedIdentityStatus) *ac.ManagedIdentityStatusApplyConfiguration {
	if status == nil {
		return nil
	}

	result := ac.ManagedIdentityStatus()

	// Set ObservedGeneration (required for kstatus)
	result.WithObservedGeneration(status.ObservedGeneration)

	// Set BoundBindings
	result.WithBoundBindings(status.BoundBindings)

	// Set conditions
	for i := range status.Conditions {
		result.WithConditions(ConditionFrom(&status.Conditions[i]))
	}

	return result
}

// IdentityBindingStatusFrom converts an IdentityBindingStatus to its ApplyConfiguration.
func IdentityBindingStatusFrom(status *identityv1alpha1.IdentityBindingStatus) *ac.IdentityBindingStatusApplyConfiguration {
	if status == nil {
		return nil
	}

	result := ac.IdentityBindingStatus()

	// Set ObservedGeneration (required for kstatus)
	result.WithObservedGeneration(status.ObservedGeneration)

	// Set MatchedPods
	result.WithMatchedPods(status.MatchedPods)

	// Set AmbiguousPods
	for _, pod := range status.AmbiguousPods {
		result.WithAmbiguousPods(pod)
	}

	// Set conditions
	for i := range status.Conditions {
		result.WithConditions(ConditionFrom(&status.Conditions[i]))
	}

	return result
}

// ConditionFrom converts a metav1.Condition to its ApplyConfiguration.
func ConditionFrom(c *metav1.Condition) *metav1ac.ConditionApplyConfiguration {
	if c == nil {
		return nil
	}

	return metav1ac.Condition().
		WithType(c.Type).
		WithStatus(c.Status).
		WithObservedGeneration(c.ObservedGeneration).
		WithLastTransitionTime(c.LastTransitionTime).
		WithReason(c.Reason).
		WithMessage(c.Message)
}
