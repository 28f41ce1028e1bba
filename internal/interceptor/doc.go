// Package interceptor implements the per-node metadata endpoint broker. It
// terminates the instance metadata address for pods, answers the
// managed-identity token operation with a token scoped to the pod's bound
// identity, and reverse-proxies everything else upstream. The iptables
// redirector in this package steers pod metadata traffic into the listener.
package interceptor
