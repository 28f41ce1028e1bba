/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"flag"
	"os"
	"regexp"
	"strconv"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
	"github.com/telekom/pod-identity-operator/internal/system"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
)

var (
	setupLog    logr.Logger
	scheme      *runtime.Scheme
	verbosity   int
	probeAddr   string
	metricsAddr string
	namespace   string
)

// sensitivePattern matches flag names whose values must never reach the
// startup log. Matching too much is fine, leaking once is not.
var sensitivePattern = regexp.MustCompile(`(?i)(token|secret|password|passphrase|key|auth|credential|private|cert|bearer|client[-_]?id)`)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pod-identity-operator",
	Short: "Broker Azure AD managed-identity tokens to Kubernetes pods",
	Long: `pod-identity-operator assigns Azure AD managed identities to pods and
brokers their token requests.

The controller subcommand reconciles ManagedIdentity, IdentityBinding and
IdentityException resources and serves the assignment query endpoint. The
agent subcommand runs on every node, intercepts the instance metadata
endpoint and answers token requests with the identity bound to the calling
pod. The webhook subcommand serves the admission webhooks.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// klog owns the -v flag; carry the cobra value over before the
		// logger is constructed.
		if err := flag.Set("v", strconv.Itoa(verbosity)); err != nil {
			setupLog.Error(err, "unable to set log verbosity")
		}
		ctrl.SetLogger(klog.NewKlogr())
		log := klog.NewKlogr()
		log.Info("app info", "name", system.Name, "version", system.Version, "commit", system.Commit)
		log.V(1).Info("DEBUG: parsed command line", "flags", redactSensitiveFlags())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// redactSensitiveFlags collects the global command line for logging,
// replacing the value of every flag whose name looks credential-like.
func redactSensitiveFlags() map[string]string {
	flags := map[string]string{}
	flag.VisitAll(func(f *flag.Flag) {
		if sensitivePattern.MatchString(f.Name) {
			flags[f.Name] = "[REDACTED]"
			return
		}
		flags[f.Name] = f.Value.String()
	})
	return flags
}

func init() {
	setupLog = ctrl.Log.WithName("setup")
	klog.InitFlags(nil)
	cobra.OnInitialize(initScheme)

	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", os.Getenv("POD_NAMESPACE"), "operator namespace")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 2, "Log level (0-9)")
	rootCmd.PersistentFlags().StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-bind-address", "0", "The address the metric endpoint binds to. Use 0 to disable the metrics server.")
}

func initScheme() {
	scheme = runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	utilruntime.Must(identityv1alpha1.AddToScheme(scheme))
	utilruntime.Must(apiextensionsv1.AddToScheme(scheme))
}
