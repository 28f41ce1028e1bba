//go:build e2e

package e2e

import (
	"fmt"
	"os/exec"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/telekom/pod-identity-operator/test/utils"
)

const (
	paymentsIdentity  = "e2e-payments-identity"
	reportingIdentity = "e2e-reporting-identity"
	paymentsBinding   = "e2e-payments-binding"
	overlapBinding    = "e2e-overlap-binding"
	monitoringExcept  = "e2e-monitoring-exception"
	credentialsSecret = "e2e-reporting-credentials"
	workloadPod       = "e2e-payments-workload"
	workloadLabel     = "app=e2e-payments"
)

const lifecycleNamespaceManifest = `apiVersion: v1
kind: Namespace
metadata:
  name: e2e-identity-test
  labels:
    app.kubernetes.io/component: e2e-test
`

const paymentsIdentityManifest = `apiVersion: identity.t-caas.telekom.com/v1alpha1
kind: ManagedIdentity
metadata:
  name: e2e-payments-identity
  namespace: e2e-identity-test
spec:
  resourceID: /subscriptions/11111111-1111-1111-1111-111111111111/resourcegroups/e2e/providers/Microsoft.ManagedIdentity/userAssignedIdentities/e2e-payments
  clientID: 6BA7B810-9DAD-11D1-80B4-00C04FD430C8
`

const reportingIdentityManifest = `apiVersion: identity.t-caas.telekom.com/v1alpha1
kind: ManagedIdentity
metadata:
  name: e2e-reporting-identity
  namespace: e2e-identity-test
spec:
  type: ServicePrincipal
  resourceID: /subscriptions/11111111-1111-1111-1111-111111111111/resourcegroups/e2e/providers/Microsoft.ManagedIdentity/userAssignedIdentities/e2e-reporting
  clientID: 6ba7b811-9dad-11d1-80b4-00c04fd430c8
  tenantID: 22222222-2222-2222-2222-222222222222
  secretRef:
    name: e2e-reporting-credentials
`

const credentialsSecretManifest = `apiVersion: v1
kind: Secret
metadata:
  name: e2e-reporting-credentials
  namespace: e2e-identity-test
  labels:
    app.kubernetes.io/component: e2e-test
stringData:
  clientSecret: e2e-not-a-real-secret
`

const paymentsBindingManifest = `apiVersion: identity.t-caas.telekom.com/v1alpha1
kind: IdentityBinding
metadata:
  name: e2e-payments-binding
  namespace: e2e-identity-test
spec:
  identityRef: e2e-payments-identity
  selector:
    matchLabels:
      app: e2e-payments
`

const overlapBindingManifest = `apiVersion: identity.t-caas.telekom.com/v1alpha1
kind: IdentityBinding
metadata:
  name: e2e-overlap-binding
  namespace: e2e-identity-test
spec:
  identityRef: e2e-reporting-identity
  selector:
    matchLabels:
      app: e2e-payments
`

const monitoringExceptionManifest = `apiVersion: identity.t-caas.telekom.com/v1alpha1
kind: IdentityException
metadata:
  name: e2e-monitoring-exception
  namespace: e2e-identity-test
spec:
  podLabels:
    app: e2e-payments
`

var _ = Describe("Identity Lifecycle", Ordered, Label("lifecycle"), func() {
	var (
		progress *TestProgress
		before   *ResourceSnapshot
	)

	BeforeAll(func() {
		setSuiteOutputDir("lifecycle")
		utils.DebugSection("Identity Lifecycle Suite")

		suiteConfig, err := GetSuiteConfig("base")
		Expect(err).NotTo(HaveOccurred())
		PrintSuiteConfig(suiteConfig)
		if err := ValidateClusterIsolation(suiteConfig); err != nil {
			Skip(err.Error())
		}

		if !utils.DeploymentExists("control-plane=controller-manager", operatorNamespace) {
			Skip("Operator not deployed yet - run 'make deploy' first")
		}

		By("Waiting for controller-manager and webhook pods to be ready")
		Expect(utils.WaitForDeploymentAvailable("control-plane=controller-manager", operatorNamespace, deployTimeout)).To(Succeed())
		Expect(utils.WaitForPodsReady("control-plane=controller-manager", operatorNamespace, deployTimeout)).To(Succeed())
		Expect(utils.WaitForPodsReady("control-plane=webhook-server", operatorNamespace, deployTimeout)).To(Succeed())

		By("Waiting for webhook configurations and CA bundle injection")
		Expect(utils.WaitForWebhookConfigurations(webhookLabel, deployTimeout)).To(Succeed())
		Expect(utils.WaitForWebhookCABundle(webhookLabel, deployTimeout)).To(Succeed())
		Expect(utils.WaitForServiceEndpoints(webhookService, operatorNamespace, deployTimeout)).To(Succeed())

		By("Taking a resource snapshot for leak detection")
		before, _ = TakeSnapshot()

		By("Creating the test namespace")
		Expect(utils.ApplyManifest(lifecycleNamespaceManifest)).To(Succeed())
		Expect(utils.WaitForWebhookReady(testNamespace, deployTimeout)).To(Succeed())

		progress = NewTestProgress("Identity Lifecycle", 7)
	})

	AfterEach(func() {
		utils.OnTestFailure(operatorNamespace, testNamespace)
	})

	AfterAll(func() {
		By("Cleaning up all test resources")
		CleanupCRsByName(testNamespace,
			[]string{paymentsIdentity, reportingIdentity},
			[]string{paymentsBinding, overlapBinding},
			[]string{monitoringExcept})

		cmd := exec.Command("kubectl", "delete", "pod", workloadPod, "-n", testNamespace,
			"--ignore-not-found=true", "--wait=false")
		_, _ = utils.Run(cmd)
		utils.CleanupResourcesByLabel("secret", "app.kubernetes.io/component=e2e-test", testNamespace)
		utils.CleanupNamespace(testNamespace)

		if progress != nil {
			progress.Complete()
		}

		By("Checking for leaked resources")
		after, _ := TakeSnapshot()
		if before != nil && after != nil {
			PrintLeakReport(DetectLeaks(before, after))
		}
	})

	Context("Admission", func() {
		It("rejects a ManagedIdentity with a malformed client ID", func() {
			manifest := `apiVersion: identity.t-caas.telekom.com/v1alpha1
kind: ManagedIdentity
metadata:
  name: e2e-bad-client-id
  namespace: e2e-identity-test
spec:
  resourceID: /subscriptions/11111111-1111-1111-1111-111111111111/resourcegroups/e2e/providers/Microsoft.ManagedIdentity/userAssignedIdentities/bad
  clientID: not-a-client-id
`
			err := utils.ApplyManifest(manifest)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not a valid client ID"))
		})

		It("rejects a ManagedIdentity whose resource ID is not a full resource path", func() {
			manifest := `apiVersion: identity.t-caas.telekom.com/v1alpha1
kind: ManagedIdentity
metadata:
  name: e2e-bad-resource-id
  namespace: e2e-identity-test
spec:
  resourceID: e2e-payments
  clientID: 6ba7b812-9dad-11d1-80b4-00c04fd430c8
`
			err := utils.ApplyManifest(manifest)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("/subscriptions/"))
		})

		It("rejects a ServicePrincipal identity without a tenant", func() {
			manifest := `apiVersion: identity.t-caas.telekom.com/v1alpha1
kind: ManagedIdentity
metadata:
  name: e2e-no-tenant
  namespace: e2e-identity-test
spec:
  type: ServicePrincipal
  resourceID: /subscriptions/11111111-1111-1111-1111-111111111111/resourcegroups/e2e/providers/Microsoft.ManagedIdentity/userAssignedIdentities/no-tenant
  clientID: 6ba7b813-9dad-11d1-80b4-00c04fd430c8
  secretRef:
    name: some-secret
`
			err := utils.ApplyManifest(manifest)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("spec.tenantID is required"))
		})

		It("rejects an IdentityBinding with an empty selector", func() {
			manifest := `apiVersion: identity.t-caas.telekom.com/v1alpha1
kind: IdentityBinding
metadata:
  name: e2e-empty-selector
  namespace: e2e-identity-test
spec:
  identityRef: e2e-payments-identity
  selector: {}
`
			err := utils.ApplyManifest(manifest)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("spec.selector must not be empty"))
		})

		It("rejects an IdentityException without pod labels", func() {
			manifest := `apiVersion: identity.t-caas.telekom.com/v1alpha1
kind: IdentityException
metadata:
  name: e2e-empty-exception
  namespace: e2e-identity-test
spec:
  podLabels: {}
`
			err := utils.ApplyManifest(manifest)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("ManagedIdentity", func() {
		It("normalizes client and tenant IDs to lower case", func() {
			done := progress.Step("Creating user-assigned identity")
			defer done()

			Expect(utils.ApplyManifest(paymentsIdentityManifest)).To(Succeed())

			// The manifest carries an upper-case client ID; the mutating
			// webhook folds it before persistence.
			clientID, err := utils.GetResourceField("managedidentity", paymentsIdentity, testNamespace,
				"{.spec.clientID}")
			Expect(err).NotTo(HaveOccurred())
			Expect(clientID).To(Equal("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
		})

		It("marks a user-assigned identity Ready without secret material", func() {
			Eventually(func() string {
				status, _ := utils.GetResourceField("managedidentity", paymentsIdentity, testNamespace,
					"{.status.conditions[?(@.type=='Ready')].status}")
				return status
			}, reconcileTimeout, pollingInterval).Should(Equal("True"))

			reason, err := utils.GetResourceField("managedidentity", paymentsIdentity, testNamespace,
				"{.status.conditions[?(@.type=='Ready')].reason}")
			Expect(err).NotTo(HaveOccurred())
			Expect(reason).To(Equal("Reconciled"))
		})

		It("stalls a service principal identity until its secret exists", func() {
			done := progress.Step("Creating service principal identity")
			defer done()

			Expect(utils.ApplyManifest(reportingIdentityManifest)).To(Succeed())

			By("Expecting the identity to stall on the missing secret")
			Eventually(func() string {
				reason, _ := utils.GetResourceField("managedidentity", reportingIdentity, testNamespace,
					"{.status.conditions[?(@.type=='Stalled')].reason}")
				return reason
			}, reconcileTimeout, pollingInterval).Should(Equal("SecretNotFound"))

			By("Creating the credentials secret")
			Expect(utils.ApplyManifest(credentialsSecretManifest)).To(Succeed())

			By("Expecting the identity to recover")
			Eventually(func() string {
				status, _ := utils.GetResourceField("managedidentity", reportingIdentity, testNamespace,
					"{.status.conditions[?(@.type=='Ready')].status}")
				return status
			}, reconcileTimeout, pollingInterval).Should(Equal("True"))
		})
	})

	Context("IdentityBinding", func() {
		It("matches pods and counts them in status", func() {
			done := progress.Step("Binding the payments workload")
			defer done()

			By("Creating a workload pod")
			cmd := exec.Command("kubectl", "run", workloadPod,
				"--image=registry.k8s.io/pause:3.10",
				"--labels="+workloadLabel,
				"-n", testNamespace)
			_, err := utils.Run(cmd)
			Expect(err).NotTo(HaveOccurred())
			Expect(utils.WaitForPodsReady(workloadLabel, testNamespace, deployTimeout)).To(Succeed())

			By("Creating the binding")
			Expect(utils.ApplyManifest(paymentsBindingManifest)).To(Succeed())

			By("Expecting the binding to match the pod")
			Eventually(func() string {
				matched, _ := utils.GetResourceField("identitybinding", paymentsBinding, testNamespace,
					"{.status.matchedPods}")
				return matched
			}, reconcileTimeout, pollingInterval).Should(Equal("1"))

			Eventually(func() string {
				status, _ := utils.GetResourceField("identitybinding", paymentsBinding, testNamespace,
					"{.status.conditions[?(@.type=='Ready')].status}")
				return status
			}, reconcileTimeout, pollingInterval).Should(Equal("True"))
		})

		It("counts referencing bindings on the identity", func() {
			Eventually(func() string {
				bound, _ := utils.GetResourceField("managedidentity", paymentsIdentity, testNamespace,
					"{.status.boundBindings}")
				return bound
			}, reconcileTimeout, pollingInterval).Should(Equal("1"))
		})

		It("stalls overlapping bindings and names the ambiguous pods", func() {
			done := progress.Step("Creating an overlapping binding")
			defer done()

			// The webhook warns about the overlap but admits the binding;
			// only the reconciler has the full picture.
			Expect(utils.ApplyManifest(overlapBindingManifest)).To(Succeed())

			for _, binding := range []string{paymentsBinding, overlapBinding} {
				Eventually(func() string {
					reason, _ := utils.GetResourceField("identitybinding", binding, testNamespace,
						"{.status.conditions[?(@.type=='Stalled')].reason}")
					return reason
				}, reconcileTimeout, pollingInterval).Should(Equal("AmbiguousBinding"),
					fmt.Sprintf("binding %s should stall on the overlap", binding))

				ambiguous, err := utils.GetResourceField("identitybinding", binding, testNamespace,
					"{.status.ambiguousPods[*]}")
				Expect(err).NotTo(HaveOccurred())
				Expect(ambiguous).To(ContainSubstring(workloadPod))
			}
		})

		It("recovers both bindings when the overlap is removed", func() {
			done := progress.Step("Removing the overlapping binding")
			defer done()

			cmd := exec.Command("kubectl", "delete", "identitybinding", overlapBinding,
				"-n", testNamespace, "--ignore-not-found=true")
			_, err := utils.Run(cmd)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() string {
				status, _ := utils.GetResourceField("identitybinding", paymentsBinding, testNamespace,
					"{.status.conditions[?(@.type=='Ready')].status}")
				return status
			}, reconcileTimeout, pollingInterval).Should(Equal("True"))

			ambiguous, err := utils.GetResourceField("identitybinding", paymentsBinding, testNamespace,
				"{.status.ambiguousPods[*]}")
			Expect(err).NotTo(HaveOccurred())
			Expect(ambiguous).To(BeEmpty())
		})
	})

	Context("IdentityException", func() {
		It("resolves an ambiguous pod by exempting it", func() {
			done := progress.Step("Exempting the contested workload")
			defer done()

			By("Re-creating the overlap")
			Expect(utils.ApplyManifest(overlapBindingManifest)).To(Succeed())
			Eventually(func() string {
				reason, _ := utils.GetResourceField("identitybinding", paymentsBinding, testNamespace,
					"{.status.conditions[?(@.type=='Stalled')].reason}")
				return reason
			}, reconcileTimeout, pollingInterval).Should(Equal("AmbiguousBinding"))

			By("Creating an exception covering the pod")
			Expect(utils.ApplyManifest(monitoringExceptionManifest)).To(Succeed())

			// An exempt pod is out of the binding business entirely, so the
			// overlap stops being a conflict.
			for _, binding := range []string{paymentsBinding, overlapBinding} {
				Eventually(func() string {
					status, _ := utils.GetResourceField("identitybinding", binding, testNamespace,
						"{.status.conditions[?(@.type=='Ready')].status}")
					return status
				}, reconcileTimeout, pollingInterval).Should(Equal("True"),
					fmt.Sprintf("binding %s should recover once the pod is exempt", binding))
			}
		})
	})

	Context("Teardown", func() {
		It("drops the binding count when bindings are deleted", func() {
			done := progress.Step("Deleting bindings")
			defer done()

			for _, binding := range []string{paymentsBinding, overlapBinding} {
				cmd := exec.Command("kubectl", "delete", "identitybinding", binding,
					"-n", testNamespace, "--ignore-not-found=true")
				_, err := utils.Run(cmd)
				Expect(err).NotTo(HaveOccurred())
			}

			Eventually(func() string {
				bound, _ := utils.GetResourceField("managedidentity", paymentsIdentity, testNamespace,
					"{.status.boundBindings}")
				return bound
			}, reconcileTimeout, pollingInterval).Should(SatisfyAny(Equal("0"), BeEmpty()))
		})
	})
})
