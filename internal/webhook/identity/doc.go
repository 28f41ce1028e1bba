// Package webhooks contains the defaulting webhook for ManagedIdentity
// resources. The validating webhooks live next to the API types; this
// package holds the raw admission handler that normalizes credential fields
// before validation sees them.
package webhooks
