/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
	"github.com/telekom/pod-identity-operator/internal/webhook/certrotator"
	identitywebhooks "github.com/telekom/pod-identity-operator/internal/webhook/identity"

	"github.com/open-policy-agent/cert-controller/pkg/rotator"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"
)

var (
	webhookPort                    int
	webhookCertsDir                string
	enableHTTP2                    bool
	disableCertRotation            bool
	certRotationDNSName            string
	certRotationSecretName         string
	certRotationValidatingWebhooks []string
	certRotationMutatingWebhooks   []string
)

// webhookCmd represents the webhook command
var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Run the pod-identity-operator webhook server",
	Long: `Run the pod-identity-operator webhook server which handles admission
requests for ManagedIdentity, IdentityBinding and IdentityException custom
resources.

The webhook server defaults ManagedIdentity credential fields and rejects
invalid specs during admission, so misconfigured identities and bindings
never reach the token path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLog.Info("starting webhook server",
			"port", webhookPort,
			"certsDir", webhookCertsDir,
			"enableHTTP2", enableHTTP2,
			"disableCertRotation", disableCertRotation,
			"namespace", namespace,
		)
		ctx, cancel := context.WithCancelCause(ctrl.SetupSignalHandler())
		defer cancel(nil)

		disableHTTP2 := func(c *tls.Config) {
			setupLog.Info("disabling http/2")
			c.NextProtos = []string{"http/1.1"}
		}

		tlsOpts := []func(*tls.Config){}
		if !enableHTTP2 {
			tlsOpts = append(tlsOpts, disableHTTP2)
		}

		webhookServer := webhook.NewServer(webhook.Options{
			Port:    webhookPort,
			CertDir: webhookCertsDir,
			TLSOpts: tlsOpts,
		})

		cfg, err := ctrl.GetConfig()
		if err != nil {
			return fmt.Errorf("unable to get kubeconfig: %w", err)
		}

		mgr, err := ctrl.NewManager(cfg, ctrl.Options{
			Scheme:        scheme,
			WebhookServer: webhookServer,
			Metrics: metricsserver.Options{
				BindAddress: metricsAddr,
			},
			HealthProbeBindAddress: probeAddr,
		})
		if err != nil {
			return fmt.Errorf("unable to start manager: %w", err)
		}

		if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
			return fmt.Errorf("unable to set up health check: %w", err)
		}

		startListeners := make(chan struct{})
		ready := false

		//+kubebuilder:scaffold:builder
		if err := mgr.AddReadyzCheck("readyz", func(req *http.Request) error {
			if ready {
				return nil
			}
			return errors.New("webhook server not ready: waiting for certificate setup")
		}); err != nil {
			return fmt.Errorf("unable to set up ready check: %w", err)
		}

		go func() {
			setupLog.Info("waiting for certificate rotation to complete before configuring webhooks")
			<-startListeners
			setupLog.Info("certificate rotation complete, configuring webhooks")
			if err := configureWebhooks(mgr); err != nil {
				setupLog.Error(err, "failed to configure webhooks")
				cancel(fmt.Errorf("error configuring webhooks: %w", err))
				return
			}
			setupLog.Info("webhooks configured successfully, server is ready")
			ready = true
		}()

		webhooks := []rotator.WebhookInfo{}
		for _, wh := range certRotationMutatingWebhooks {
			webhooks = append(webhooks, rotator.WebhookInfo{
				Type: rotator.Mutating,
				Name: wh,
			})
		}
		for _, wh := range certRotationValidatingWebhooks {
			webhooks = append(webhooks, rotator.WebhookInfo{
				Type: rotator.Validating,
				Name: wh,
			})
		}

		// The cert rotator will notify when we can start the webhook
		// and the metric endpoint
		if !disableCertRotation {
			setupLog.Info("enabling certificate rotation",
				"dnsName", certRotationDNSName,
				"secretName", certRotationSecretName,
				"mutatingWebhooks", certRotationMutatingWebhooks,
				"validatingWebhooks", certRotationValidatingWebhooks,
			)
			if err := certrotator.Enable(
				mgr,
				namespace,
				webhookCertsDir,
				certRotationDNSName,
				certRotationSecretName,
				webhooks,
				startListeners,
			); err != nil {
				return fmt.Errorf("unable to set up cert rotation: %w", err)
			}
		} else {
			setupLog.Info("certificate rotation disabled, using existing certificates")
			close(startListeners)
		}

		setupLog.Info("starting manager")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("problem running manager: %w", err)
		}
		return nil
	},
}

func configureWebhooks(mgr manager.Manager) error {
	log := ctrl.Log.WithName("webhook-setup")

	log.Info("setting up ManagedIdentity webhook")
	if err := (&identityv1alpha1.ManagedIdentity{}).SetupWebhookWithManager(mgr); err != nil {
		return fmt.Errorf("unable to create webhook for ManagedIdentity: %w", err)
	}

	log.Info("setting up IdentityBinding webhook")
	if err := (&identityv1alpha1.IdentityBinding{}).SetupWebhookWithManager(mgr); err != nil {
		return fmt.Errorf("unable to create webhook for IdentityBinding: %w", err)
	}

	log.Info("setting up IdentityException webhook")
	if err := (&identityv1alpha1.IdentityException{}).SetupWebhookWithManager(mgr); err != nil {
		return fmt.Errorf("unable to create webhook for IdentityException: %w", err)
	}

	// Setup ManagedIdentity mutator
	log.Info("setting up ManagedIdentity mutator webhook")
	identityMutator := &identitywebhooks.ManagedIdentityMutator{}
	if err := identityMutator.InjectDecoder(admission.NewDecoder(mgr.GetScheme())); err != nil {
		return fmt.Errorf("unable to inject decoder for ManagedIdentityMutator: %w", err)
	}
	mgr.GetWebhookServer().Register("/mutate-identity-t-caas-telekom-com-v1alpha1-managedidentity", &webhook.Admission{Handler: identityMutator})

	log.Info("all webhooks configured successfully")
	return nil
}

func init() {
	rootCmd.AddCommand(webhookCmd)

	webhookCmd.Flags().IntVar(&webhookPort, "port", 9443,
		"The port the webhook server binds to. If not set, it will be set to '9443' as a default.")
	webhookCmd.Flags().BoolVar(&enableHTTP2, "enable-http2", false,
		"If set, HTTP/2 will be enabled for the webhook server.")
	webhookCmd.Flags().StringVar(&webhookCertsDir, "certs-dir", "", "The directory for https certificates")
	webhookCmd.Flags().BoolVar(&disableCertRotation, "disable-cert-rotation", false,
		"disable automatic generation and rotation of webhook TLS certificates/keys")
	webhookCmd.Flags().StringVar(&certRotationDNSName, "cert-rotation-dns-name", "",
		"The DNS name for the webhook service")
	webhookCmd.Flags().StringVar(&certRotationSecretName, "cert-rotation-secret-name", "",
		"The name for the webhook certs secret")
	webhookCmd.Flags().StringSliceVar(&certRotationMutatingWebhooks, "cert-rotation-mutating-webhook",
		[]string{}, "The mutating webhooks")
	webhookCmd.Flags().StringSliceVar(&certRotationValidatingWebhooks, "cert-rotation-validating-webhook",
		[]string{}, "The validating webhooks")
}
