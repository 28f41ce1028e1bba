// Package discovery waits for the operator's custom resource definitions to
// be served and established by the apiserver. The operator is usually rolled
// out together with its CRDs, so the managers poll here instead of failing
// their initial informer lists.
package discovery
