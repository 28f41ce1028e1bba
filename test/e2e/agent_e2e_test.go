//go:build e2e

package e2e

import (
	"os/exec"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/telekom/pod-identity-operator/test/utils"
)

const (
	agentTestNamespace = "e2e-agent-test"
	probePod           = "e2e-metadata-probe"
)

const agentNamespaceManifest = `apiVersion: v1
kind: Namespace
metadata:
  name: e2e-agent-test
  labels:
    app.kubernetes.io/component: e2e-test
`

var _ = Describe("Metadata Interceptor Agent", Ordered, Label("agent"), func() {
	var suiteConfig TestSuiteConfig

	BeforeAll(func() {
		setSuiteOutputDir("agent")
		utils.DebugSection("Metadata Interceptor Agent Suite")

		var err error
		suiteConfig, err = GetSuiteForLabels([]string{"agent"})
		Expect(err).NotTo(HaveOccurred())
		PrintSuiteConfig(suiteConfig)

		cmd := exec.Command("kubectl", "get", "daemonset", agentDaemonSet, "-n", operatorNamespace)
		if _, err := utils.Run(cmd); err != nil {
			Skip("Agent not deployed yet - run 'make deploy' first")
		}

		progress := NewSimpleProgress("Waiting for agent rollout")
		if err := utils.WaitForDaemonSetReady(agentDaemonSet, operatorNamespace, deployTimeout); err != nil {
			progress.Fail(err)
			Expect(err).NotTo(HaveOccurred())
		}
		progress.Done()

		Expect(utils.ApplyManifest(agentNamespaceManifest)).To(Succeed())
	})

	AfterEach(func() {
		utils.OnTestFailure(operatorNamespace, agentTestNamespace)
	})

	AfterAll(func() {
		cmd := exec.Command("kubectl", "delete", "pod", probePod, "-n", agentTestNamespace,
			"--ignore-not-found=true", "--wait=false")
		_, _ = utils.Run(cmd)
		utils.CleanupNamespace(agentTestNamespace)
	})

	Context("DaemonSet", func() {
		It("runs on the host network with NET_ADMIN", func() {
			hostNetwork, err := utils.GetResourceField("daemonset", agentDaemonSet, operatorNamespace,
				"{.spec.template.spec.hostNetwork}")
			Expect(err).NotTo(HaveOccurred())
			Expect(hostNetwork).To(Equal("true"))

			capabilities, err := utils.GetResourceField("daemonset", agentDaemonSet, operatorNamespace,
				"{.spec.template.spec.containers[0].securityContext.capabilities.add[*]}")
			Expect(err).NotTo(HaveOccurred())
			Expect(capabilities).To(ContainSubstring("NET_ADMIN"))
		})

		It("is scheduled as node-critical", func() {
			priorityClass, err := utils.GetResourceField("daemonset", agentDaemonSet, operatorNamespace,
				"{.spec.template.spec.priorityClassName}")
			Expect(err).NotTo(HaveOccurred())
			Expect(priorityClass).To(Equal("system-node-critical"))
		})

		It("has a ready agent on every scheduled node", func() {
			Eventually(func() bool {
				desired, err := utils.GetResourceField("daemonset", agentDaemonSet, operatorNamespace,
					"{.status.desiredNumberScheduled}")
				if err != nil {
					return false
				}
				ready, err := utils.GetResourceField("daemonset", agentDaemonSet, operatorNamespace,
					"{.status.numberReady}")
				if err != nil {
					return false
				}
				return desired != "" && desired != "0" && desired == ready
			}, deployTimeout, pollingInterval).Should(BeTrue(),
				"every scheduled agent pod should become ready")
		})

		It("covers all nodes in a multi-node cluster", func() {
			if err := ValidateClusterIsolation(suiteConfig); err != nil {
				Skip(err.Error())
			}
			if !suiteConfig.MultiNode {
				Skip("suite is not configured for a multi-node cluster")
			}

			cmd := exec.Command("kubectl", "get", "nodes", "--no-headers")
			output, err := utils.Run(cmd)
			Expect(err).NotTo(HaveOccurred())
			nodeCount := len(utils.GetNonEmptyLines(string(output)))
			Expect(nodeCount).To(BeNumerically(">", 1))

			desired, err := utils.GetResourceField("daemonset", agentDaemonSet, operatorNamespace,
				"{.status.desiredNumberScheduled}")
			Expect(err).NotTo(HaveOccurred())
			desiredCount, err := strconv.Atoi(desired)
			Expect(err).NotTo(HaveOccurred())
			Expect(desiredCount).To(Equal(nodeCount))
		})
	})

	Context("Interception", func() {
		It("denies metadata token requests from unbound pods", func() {
			By("Launching a probe pod with no identity binding")
			cmd := exec.Command("kubectl", "run", probePod,
				"--image=curlimages/curl:8.5.0",
				"--restart=Never",
				"-n", agentTestNamespace,
				"--command", "--", "sleep", "600")
			_, err := utils.Run(cmd)
			Expect(err).NotTo(HaveOccurred())
			Expect(utils.WaitForPodsReady("run="+probePod, agentTestNamespace, deployTimeout)).To(Succeed())

			// The probe matches no binding, so the interceptor must refuse
			// the token path regardless of what the upstream would answer.
			By("Requesting a token through the intercepted endpoint")
			Eventually(func() string {
				cmd := exec.Command("kubectl", "exec", probePod, "-n", agentTestNamespace, "--",
					"curl", "-s", "-o", "/dev/null", "-w", "%{http_code}", "--max-time", "5",
					"-H", "Metadata: true",
					"http://169.254.169.254/metadata/identity/oauth2/token?api-version=2018-02-01&resource=https://management.azure.com/")
				output, _ := utils.Run(cmd)
				return strings.TrimSpace(string(output))
			}, reconcileTimeout, pollingInterval).Should(Equal("403"))
		})

		It("labels the denial with the originating decision", func() {
			cmd := exec.Command("kubectl", "exec", probePod, "-n", agentTestNamespace, "--",
				"curl", "-s", "--max-time", "5",
				"-H", "Metadata: true",
				"http://169.254.169.254/metadata/identity/oauth2/token?api-version=2018-02-01&resource=https://management.azure.com/")
			output, err := utils.Run(cmd)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("no_binding_found"))
		})
	})
})
