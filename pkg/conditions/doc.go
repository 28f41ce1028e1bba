// Package conditions provides typed helpers for getting, setting, and querying
// Kubernetes metav1.Condition slices on custom resource status objects, including
// convenience constructors for True/False/Unknown conditions.
package conditions
