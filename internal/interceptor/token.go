package interceptor

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
	"github.com/telekom/pod-identity-operator/internal/assignment"
	"github.com/telekom/pod-identity-operator/pkg/aadclient"
	"github.com/telekom/pod-identity-operator/pkg/tokencache"
)

// TokenExchanger turns a bound identity into an AAD access token. Tokens are
// cached per (identity, resource); concurrent requests for the same key are
// collapsed onto one provider call. No snapshot or cache lock is held while
// the provider round trip runs.
type TokenExchanger struct {
	// Provider performs the actual exchanges against IMDS and AAD.
	Provider *aadclient.Client

	// Reader resolves service principal secret references. Must read
	// uncached: the agent's manager cache is scoped to pods and the
	// identity CRs, Secrets are fetched live on demand.
	Reader client.Reader

	// Cache is optional; nil exchanges on every request.
	Cache tokencache.Cache
}

// Exchange returns a token for the identity scoped to resource.
func (e *TokenExchanger) Exchange(ctx context.Context, identity *assignment.Identity, resource string) (*aadclient.Token, error) {
	fn := func(ctx context.Context) (*aadclient.Token, error) {
		switch identity.Type {
		case identityv1alpha1.IdentityTypeServicePrincipal:
			return e.servicePrincipalToken(ctx, identity, resource)
		default:
			return e.Provider.UserAssignedToken(ctx, identity.ClientID, resource)
		}
	}

	if e.Cache == nil {
		return fn(ctx)
	}
	key := tokencache.KeyFromParts(identity.ResourceID, identity.ClientID, identity.TenantID, resource)
	return e.Cache.GetOrExchange(ctx, key, fn)
}

// servicePrincipalToken reads the referenced client secret and runs the
// client_credentials grant. The secret is read per exchange, not cached:
// rotated credentials take effect on the next cache miss.
func (e *TokenExchanger) servicePrincipalToken(ctx context.Context, identity *assignment.Identity, resource string) (*aadclient.Token, error) {
	if identity.SecretRef == nil {
		return nil, fmt.Errorf("service principal %s/%s has no secret reference", identity.Namespace, identity.Name)
	}

	key := client.ObjectKey{
		Namespace: identity.SecretRef.Namespace,
		Name:      identity.SecretRef.Name,
	}
	if key.Namespace == "" {
		key.Namespace = identity.Namespace
	}

	var secret corev1.Secret
	if err := e.Reader.Get(ctx, key, &secret); err != nil {
		return nil, fmt.Errorf("unable to read client secret %s: %w", key, err)
	}
	clientSecret := secret.Data[identityv1alpha1.SecretKeyClientSecret]
	if len(clientSecret) == 0 {
		return nil, fmt.Errorf("secret %s has no %q key", key, identityv1alpha1.SecretKeyClientSecret)
	}

	return e.Provider.ServicePrincipalToken(ctx, aadclient.Credential{
		ClientID:     identity.ClientID,
		ClientSecret: string(clientSecret),
		TenantID:     identity.TenantID,
	}, resource)
}
