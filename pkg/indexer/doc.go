// Package indexer registers controller-runtime field indexes on IdentityBinding
// (by Spec.IdentityRef) and ManagedIdentity (by the referenced client secret) to
// enable efficient cache lookups in the controllers and webhooks.
package indexer
