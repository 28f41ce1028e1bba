package v1alpha1

import "github.com/telekom/pod-identity-operator/pkg/conditions"

// IdentityConditionType represents identity-related condition types.
type IdentityConditionType = conditions.ConditionType

// IdentityConditionReason represents identity-related condition reasons.
type IdentityConditionReason = conditions.ConditionReason

// IdentityConditionMessage represents identity-related condition messages.
type IdentityConditionMessage = conditions.ConditionMessage

// kstatus-compliant condition types.
// See: https://github.com/kubernetes-sigs/cli-utils/blob/master/pkg/kstatus/README.md
const (
	// ReadyCondition indicates whether the resource is fully reconciled.
	// When True, the actual state matches the desired state.
	// When False, the resource is not yet fully reconciled.
	ReadyCondition IdentityConditionType = "Ready"

	// ReconcilingCondition indicates the controller is actively working on
	// reconciling the resource. This follows the "abnormal-true" pattern -
	// present and True when reconciliation is in progress, absent when
	// reconciliation is complete.
	ReconcilingCondition IdentityConditionType = "Reconciling"

	// StalledCondition indicates the controller has encountered an error or
	// made insufficient progress. This follows the "abnormal-true" pattern -
	// present and True when stalled, absent when not stalled.
	StalledCondition IdentityConditionType = "Stalled"
)

// Ready condition reasons.
const (
	// ReadyReasonReconciled indicates the resource is fully reconciled.
	ReadyReasonReconciled IdentityConditionReason = "Reconciled"
	// ReadyReasonReconciling indicates the resource is being reconciled.
	ReadyReasonReconciling IdentityConditionReason = "Reconciling"
	// ReadyReasonFailed indicates the reconciliation failed.
	ReadyReasonFailed IdentityConditionReason = "Failed"
)

// Ready condition messages.
const (
	// ReadyMessageReconciled is the message when the resource is fully reconciled.
	ReadyMessageReconciled IdentityConditionMessage = "Resource is fully reconciled"
	// ReadyMessageReconciling is the message when the resource is being reconciled.
	ReadyMessageReconciling IdentityConditionMessage = "Resource reconciliation in progress"
	// ReadyMessageFailed is the message format when reconciliation failed.
	ReadyMessageFailed IdentityConditionMessage = "Reconciliation failed: %s"
)

// Reconciling condition reasons and messages.
const (
	// ReconcilingReasonProgressing indicates the controller is making progress.
	ReconcilingReasonProgressing IdentityConditionReason = "Progressing"
	// ReconcilingMessageProgressing is the message when the controller is progressing.
	ReconcilingMessageProgressing IdentityConditionMessage = "Controller is reconciling the resource"
)

// Stalled condition reasons.
const (
	// StalledReasonError indicates an error occurred during reconciliation.
	StalledReasonError IdentityConditionReason = "Error"

	// StalledReasonAmbiguousBinding indicates pods are matched by multiple
	// bindings with different identities. Assignment for those pods is
	// blocked until an operator resolves the overlap.
	StalledReasonAmbiguousBinding IdentityConditionReason = "AmbiguousBinding"

	// StalledReasonIdentityNotFound indicates the referenced ManagedIdentity
	// does not exist in the binding's namespace.
	StalledReasonIdentityNotFound IdentityConditionReason = "IdentityNotFound"

	// StalledReasonSecretNotFound indicates the referenced client secret
	// does not exist.
	StalledReasonSecretNotFound IdentityConditionReason = "SecretNotFound"

	// StalledReasonSecretInvalid indicates the referenced client secret is
	// missing the clientSecret data key.
	StalledReasonSecretInvalid IdentityConditionReason = "SecretInvalid"
)

// Stalled condition messages.
const (
	// StalledMessageError is the message format when an error occurred.
	StalledMessageError IdentityConditionMessage = "Error during reconciliation: %s"
	// StalledMessageAmbiguousBinding is the message format naming the overlap.
	StalledMessageAmbiguousBinding IdentityConditionMessage = "Pods matched by conflicting bindings: %s"
	// StalledMessageIdentityNotFound is the message format for a dangling identityRef.
	StalledMessageIdentityNotFound IdentityConditionMessage = "Referenced ManagedIdentity %q not found"
	// StalledMessageSecretNotFound is the message format for a missing client secret.
	StalledMessageSecretNotFound IdentityConditionMessage = "Referenced Secret %q not found"
	// StalledMessageSecretInvalid is the message format for a malformed client secret.
	StalledMessageSecretInvalid IdentityConditionMessage = "Referenced Secret %q has no %q data key"
)
