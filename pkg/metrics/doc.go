// Package metrics defines and registers Prometheus metrics for the
// pod-identity-operator, covering reconciliation counts/durations, assignment
// snapshot state, token request outcomes, provider exchanges, and webhook
// request tracking.
package metrics
