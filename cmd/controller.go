/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
	"github.com/telekom/pod-identity-operator/internal/assignment"
	identitycontroller "github.com/telekom/pod-identity-operator/internal/controller/identity"
	"github.com/telekom/pod-identity-operator/pkg/discovery"
	"github.com/telekom/pod-identity-operator/pkg/indexer"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/events"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/config"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
)

var (
	enableLeaderElection       bool
	identityBindingConcurrency int
	managedIdentityConcurrency int
	assignmentAddr             string
	waitForCRDs                bool
	cacheSyncTimeout           time.Duration
	gracefulShutdownTimeout    time.Duration
)

// controllerCmd represents the controller command
var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Run the cluster-wide binding controller",
	Long: `Run the cluster-wide binding controller which reconciles ManagedIdentity,
IdentityBinding and IdentityException custom resources.

The controller resolves which pods each binding selects, surfaces ambiguous
bindings and missing identities on status conditions, validates service
principal credentials, and serves the assignment query endpoint that reports
the identity assigned to a pod IP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLog.Info("starting controller")
		setupLog.Info("controller configuration",
			"enableLeaderElection", enableLeaderElection,
			"identityBindingConcurrency", identityBindingConcurrency,
			"managedIdentityConcurrency", managedIdentityConcurrency,
			"assignmentAddr", assignmentAddr,
			"waitForCRDs", waitForCRDs,
			"cacheSyncTimeout", cacheSyncTimeout,
			"gracefulShutdownTimeout", gracefulShutdownTimeout,
			"namespace", namespace,
		)

		if err := validateConcurrency(identityBindingConcurrency, managedIdentityConcurrency); err != nil {
			return err
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
			LeaderElection:          enableLeaderElection,
			LeaderElectionID:        "identity.t-caas.telekom.com",
			GracefulShutdownTimeout: &gracefulShutdownTimeout,
			Controller: config.Controller{
				CacheSyncTimeout: cacheSyncTimeout,
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

		// Field indexes back the watch map functions of both reconcilers.
		if err := indexer.SetupIndexes(ctx, mgr); err != nil {
			return fmt.Errorf("unable to setup field indexes: %w", err)
		}

		tracker := assignment.NewTracker(mgr.GetCache())
		if err := mgr.Add(tracker); err != nil {
			return fmt.Errorf("unable to add assignment tracker: %w", err)
		}

		if assignmentAddr != "0" {
			server := assignment.NewServer(assignmentAddr, tracker, ctrl.Log.WithName("assignment"))
			if err := mgr.Add(server); err != nil {
				return fmt.Errorf("unable to add assignment server: %w", err)
			}
		} else {
			setupLog.Info("assignment query endpoint is disabled")
		}

		clientset, err := kubernetes.NewForConfig(mgr.GetConfig())
		if err != nil {
			return fmt.Errorf("unable to create clientset for event recording: %w", err)
		}
		eventBroadcaster := events.NewBroadcaster(&events.EventSinkImpl{Interface: clientset.EventsV1()})
		eventBroadcaster.StartRecordingToSink(ctx.Done())
		defer eventBroadcaster.Shutdown()

		if identityBindingConcurrency > 0 {
			bindingController := identitycontroller.NewIdentityBindingReconciler(
				mgr.GetClient(),
				eventBroadcaster.NewRecorder(mgr.GetScheme(), "identitybinding-controller"),
				identitycontroller.WithTracer(tracingProvider.Tracer()),
			)
			if err := bindingController.SetupWithManager(mgr, identityBindingConcurrency); err != nil {
				return fmt.Errorf("unable to setup controller IdentityBinding with manager: %w", err)
			}
		} else {
			setupLog.Info("IdentityBinding reconciler is disabled")
		}

		if managedIdentityConcurrency > 0 {
			identityController := identitycontroller.NewManagedIdentityReconciler(
				mgr.GetClient(),
				eventBroadcaster.NewRecorder(mgr.GetScheme(), "managedidentity-controller"),
				identitycontroller.WithTracer(tracingProvider.Tracer()),
			)
			if err := identityController.SetupWithManager(mgr, managedIdentityConcurrency); err != nil {
				return fmt.Errorf("unable to setup controller ManagedIdentity with manager: %w", err)
			}
		} else {
			setupLog.Info("ManagedIdentity reconciler is disabled")
		}

		if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
			return fmt.Errorf("unable to set up health check: %w", err)
		}
		if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
			return fmt.Errorf("unable to set up ready check: %w", err)
		}
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("problem running manager: %w", err)
		}
		return nil
	},
}

// validateConcurrency rejects negative worker counts. Zero is allowed and
// disables the reconciler.
func validateConcurrency(concurrencies ...int) error {
	for _, c := range concurrencies {
		if c < 0 {
			return fmt.Errorf("concurrency must not be negative, got %d", c)
		}
	}
	return nil
}

// waitForIdentityCRDs blocks until the identity CRDs are established. The
// manager's informers would otherwise fail their initial list when the
// operator is rolled out together with its CRDs.
//
// +kubebuilder:rbac:groups=apiextensions.k8s.io,resources=customresourcedefinitions,verbs=get
func waitForIdentityCRDs(ctx context.Context, cfg *rest.Config) error {
	directClient, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return fmt.Errorf("unable to create client for CRD discovery: %w", err)
	}

	waiter := discovery.NewCRDWaiter(directClient, setupLog)
	gvks := []schema.GroupVersionKind{
		identityv1alpha1.GroupVersion.WithKind("ManagedIdentity"),
		identityv1alpha1.GroupVersion.WithKind("IdentityBinding"),
		identityv1alpha1.GroupVersion.WithKind("IdentityException"),
	}
	if err := waiter.WaitForCRDs(ctx, gvks, cacheSyncTimeout); err != nil {
		return fmt.Errorf("identity CRDs did not become established: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(controllerCmd)

	controllerCmd.Flags().BoolVar(&enableLeaderElection, "leader-elect", false, "Enable leader election for controller manager. "+"Enabling this will ensure there is only one active controller manager.")
	controllerCmd.Flags().IntVar(&identityBindingConcurrency, "identitybinding-concurrency", 5, "Number of concurrent workers for IdentityBinding reconciler. Default is 5. Use 0 to disable the reconciler.")
	controllerCmd.Flags().IntVar(&managedIdentityConcurrency, "managedidentity-concurrency", 5, "Number of concurrent workers for ManagedIdentity reconciler. Default is 5. Use 0 to disable the reconciler.")
	controllerCmd.Flags().StringVar(&assignmentAddr, "assignment-bind-address", ":8282", "The address the assignment query endpoint binds to. Use 0 to disable it.")
	controllerCmd.Flags().BoolVar(&waitForCRDs, "wait-for-crds", true, "Wait for the identity CRDs to be established before starting the controllers.")
	controllerCmd.Flags().DurationVar(&cacheSyncTimeout, "cache-sync-timeout", 2*time.Minute, "Maximum time to wait for caches to sync and CRDs to be established.")
	controllerCmd.Flags().DurationVar(&gracefulShutdownTimeout, "graceful-shutdown-timeout", 30*time.Second, "Maximum time to wait for runnables to stop on shutdown.")
	registerTracingFlags(controllerCmd.Flags())
}
