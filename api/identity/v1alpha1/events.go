// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package v1alpha1

// Event reason constants for Kubernetes events emitted by the
// pod-identity-operator controllers. These follow the convention of using
// PascalCase for event reasons.
// See: https://github.com/kubernetes/community/blob/master/contributors/devel/sig-instrumentation/events.md
const (
	// EventReasonReconciled indicates a resource finished reconciling.
	EventReasonReconciled = "Reconciled"

	// EventReasonAmbiguousBinding indicates pods matched by multiple
	// bindings with different identities.
	EventReasonAmbiguousBinding = "AmbiguousBinding"

	// EventReasonIdentityNotFound indicates a referenced ManagedIdentity was
	// not found.
	EventReasonIdentityNotFound = "IdentityNotFound"

	// EventReasonSecretNotFound indicates a referenced client secret was not
	// found.
	EventReasonSecretNotFound = "SecretNotFound"

	// EventReasonSecretInvalid indicates a referenced client secret is
	// malformed.
	EventReasonSecretInvalid = "SecretInvalid"
)

// Event action constants describing what the controller was doing when the
// event was emitted. Actions are required by the events.k8s.io recorder.
const (
	// EventActionReconcile is the action for events emitted during reconciliation.
	EventActionReconcile = "Reconcile"

	// EventActionValidate is the action for events emitted during credential
	// or reference validation.
	EventActionValidate = "Validate"
)
