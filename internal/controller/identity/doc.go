// Package identity contains the reconciliation controllers for the
// IdentityBinding and ManagedIdentity custom resources, computing pod match
// sets, surfacing binding conflicts and credential problems on status, and
// keeping the per-binding metric series current.
package identity
