/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/pod-identity-operator/internal/assignment"
	"github.com/telekom/pod-identity-operator/internal/interceptor"
	"github.com/telekom/pod-identity-operator/pkg/aadclient"
	"github.com/telekom/pod-identity-operator/pkg/tokencache"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/fields"
	ctrl "sigs.k8s.io/controller-runtime"
	ctrlcache "sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
)

var (
	interceptorAddr      string
	nodeName             string
	nodeIP               string
	upstreamMetadataHost string
	authorityHost        string
	tokenCacheSize       int
	enableRedirect       bool
)

// agentCmd represents the agent command
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the per-node metadata interceptor",
	Long: `Run the per-node metadata interceptor that brokers managed-identity token
requests for the pods scheduled on this node.

The agent redirects pod traffic for the instance metadata endpoint
(169.254.169.254:80) to itself, resolves the calling pod by source IP,
exchanges the bound identity for an Azure AD access token, and proxies all
non-token metadata paths to the real endpoint. Pods without a binding are
denied. Run it as a DaemonSet with host networking and NET_ADMIN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLog.Info("starting agent")
		setupLog.Info("agent configuration",
			"interceptorAddr", interceptorAddr,
			"nodeName", nodeName,
			"nodeIP", nodeIP,
			"upstreamMetadataHost", upstreamMetadataHost,
			"authorityHost", authorityHost,
			"tokenCacheSize", tokenCacheSize,
			"enableRedirect", enableRedirect,
			"waitForCRDs", waitForCRDs,
			"namespace", namespace,
		)

		if nodeName == "" {
			return fmt.Errorf("NODE_NAME environment variable or --node-name flag must be set")
		}

		ctx := ctrl.SetupSignalHandler()

		tracingProvider, err := setupTracing(ctx)
		if err != nil {
			return fmt.Errorf("unable to set up tracing: %w", err)
		}
		defer func() {
			if err := tracingProvider.Shutdown(ctx); err != nil {
				setupLog.Error(err, "unable to shut down tracing provider")
			}
		}()

		mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
			Scheme: scheme,
			Metrics: metricsserver.Options{
				BindAddress: metricsAddr,
			},
			HealthProbeBindAddress:  probeAddr,
			GracefulShutdownTimeout: &gracefulShutdownTimeout,
			Cache: ctrlcache.Options{
				// The agent only answers for pods on its own node; scoping
				// the informer keeps the watch load per node flat.
				ByObject: map[client.Object]ctrlcache.ByObject{
					&corev1.Pod{}: {
						Field: fields.OneTermEqualSelector("spec.nodeName", nodeName),
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("unable to start manager: %w", err)
		}

		if waitForCRDs {
			if err := waitForIdentityCRDs(ctx, mgr.GetConfig()); err != nil {
				return err
			}
		}

		provider, err := aadclient.New(aadclient.Config{
			AuthorityHost: authorityHost,
			MetadataHost:  upstreamMetadataHost,
		}, aadclient.Options{})
		if err != nil {
			return fmt.Errorf("unable to create token provider: %w", err)
		}
		providerLog := ctrl.Log.WithName("aadclient")
		provider.Log = &providerLog

		exchanger := &interceptor.TokenExchanger{
			Provider: provider,
			// Secrets are read through the API reader so the agent needs no
			// cluster-wide secret watch.
			Reader: mgr.GetAPIReader(),
		}
		if tokenCacheSize > 0 {
			exchanger.Cache = tokencache.New(tokenCacheSize).
				WithObserver(interceptor.NewCacheObserver(ctrl.Log.WithName("tokencache")))
		} else {
			setupLog.Info("token cache is disabled, every request hits the provider")
		}

		tracker := assignment.NewTracker(mgr.GetCache())
		if err := mgr.Add(tracker); err != nil {
			return fmt.Errorf("unable to add assignment tracker: %w", err)
		}

		opts := []interceptor.ServerOption{interceptor.WithTracer(tracingProvider.Tracer())}
		if upstreamMetadataHost != "" {
			opts = append(opts, interceptor.WithUpstream(&url.URL{Scheme: "http", Host: upstreamMetadataHost}))
		}
		server := interceptor.NewServer(interceptorAddr, tracker, exchanger, ctrl.Log.WithName("interceptor"), opts...)
		if err := mgr.Add(server); err != nil {
			return fmt.Errorf("unable to add interceptor server: %w", err)
		}

		if enableRedirect {
			if nodeIP == "" {
				return fmt.Errorf("NODE_IP environment variable or --node-ip flag must be set when the metadata redirect is enabled")
			}
			_, port, err := net.SplitHostPort(interceptorAddr)
			if err != nil {
				return fmt.Errorf("unable to determine interceptor port from %q: %w", interceptorAddr, err)
			}
			redirector := interceptor.NewRedirector(interceptor.ListenAddr(nodeIP, port), ctrl.Log.WithName("redirector"))
			if err := mgr.Add(redirector); err != nil {
				return fmt.Errorf("unable to add metadata redirector: %w", err)
			}
		} else {
			setupLog.Info("metadata redirect rules are disabled")
		}

		if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
			return fmt.Errorf("unable to set up health check: %w", err)
		}
		// The agent fails closed until the tracker has built its first
		// snapshot; readiness reflects that so the redirect target is never a
		// blind broker.
		if err := mgr.AddReadyzCheck("readyz", func(req *http.Request) error {
			if tracker.Ready() {
				return nil
			}
			return errors.New("assignment tracker has not completed its first rebuild")
		}); err != nil {
			return fmt.Errorf("unable to set up ready check: %w", err)
		}
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("problem running manager: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)

	agentCmd.Flags().StringVar(&interceptorAddr, "interceptor-bind-address", ":8181", "The address the metadata interceptor binds to.")
	agentCmd.Flags().StringVar(&nodeName, "node-name", os.Getenv("NODE_NAME"), "Name of the node this agent runs on.")
	agentCmd.Flags().StringVar(&nodeIP, "node-ip", os.Getenv("NODE_IP"), "IP of the node this agent runs on, used as the DNAT target.")
	agentCmd.Flags().StringVar(&upstreamMetadataHost, "upstream-metadata-host", "", "Host of the real instance metadata endpoint. Defaults to "+aadclient.DefaultMetadataHost+".")
	agentCmd.Flags().StringVar(&authorityHost, "authority-host", "", "Host of the AAD authority used for service principal tokens. Defaults to "+aadclient.DefaultAuthorityHost+".")
	agentCmd.Flags().IntVar(&tokenCacheSize, "token-cache-size", 1024, "Maximum number of tokens kept in the in-memory cache. Use 0 to disable caching.")
	agentCmd.Flags().BoolVar(&enableRedirect, "enable-redirect", true, "Install the iptables rules that redirect metadata traffic to this agent.")
	agentCmd.Flags().BoolVar(&waitForCRDs, "wait-for-crds", true, "Wait for the identity CRDs to be established before starting the agent.")
	agentCmd.Flags().DurationVar(&cacheSyncTimeout, "cache-sync-timeout", 2*time.Minute, "Maximum time to wait for caches to sync and CRDs to be established.")
	agentCmd.Flags().DurationVar(&gracefulShutdownTimeout, "graceful-shutdown-timeout", 30*time.Second, "Maximum time to wait for runnables to stop on shutdown.")
	registerTracingFlags(agentCmd.Flags())
}
