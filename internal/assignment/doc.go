// Package assignment maintains the mapping from pod IP to effective
// identity. A resolver derives a single pod's assignment from the declared
// bindings, identities and exceptions; a tracker keeps an atomically
// swapped snapshot of all assignments fed by informer events; an HTTP
// handler exposes lookups by pod address.
package assignment
