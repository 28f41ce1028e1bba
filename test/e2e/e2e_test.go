//go:build e2e

package e2e

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/ginkgo/v2/types"
	. "github.com/onsi/gomega"

	"github.com/telekom/pod-identity-operator/test/utils"
)

const (
	operatorNamespace = "pod-identity-operator-system"
	testNamespace     = "e2e-identity-test"
	webhookService    = "pod-identity-operator-webhook-service"
	webhookLabel      = "identity.t-caas.telekom.com/component=webhook"
	agentDaemonSet    = "pod-identity-agent"
	agentLabel        = "app.kubernetes.io/component=agent"

	// Timeouts for various operations
	deployTimeout     = 5 * time.Minute
	reconcileTimeout  = 2 * time.Minute
	shortTimeout      = 30 * time.Second
	pollingInterval   = 2 * time.Second
	shortPollInterval = 1 * time.Second
)

// projectImage is the operator image the suite deploys when it has to install
// the operator itself. Override with IMG to test a locally built image.
var projectImage = func() string {
	if img := os.Getenv("IMG"); img != "" {
		return img
	}
	return "example.com/pod-identity-operator:v0.0.1"
}()

// kindClusterName is the kind cluster the current suite runs against.
var kindClusterName = func() string {
	if cluster := os.Getenv("KIND_CLUSTER"); cluster != "" {
		return cluster
	}
	return "pod-identity-operator-e2e"
}()

// setSuiteOutputDir routes artifacts of this suite into a dedicated folder so
// parallel suites do not overwrite each other's debug output.
func setSuiteOutputDir(suite string) {
	_ = os.Setenv("E2E_OUTPUT_DIR", utils.GetE2EOutputDirForContext(suite))
}

var _ = Describe("Operator Setup", Ordered, Label("setup"), func() {
	BeforeAll(func() {
		setSuiteOutputDir("setup")
	})

	Context("Prerequisites", func() {
		It("should have kubectl available", func() {
			cmd := exec.Command("kubectl", "version", "--client")
			output, err := utils.Run(cmd)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("Client Version"))
		})

		It("should have kind available", func() {
			cmd := exec.Command("kind", "version")
			output, err := utils.Run(cmd)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("kind"))
		})

		It("should have docker available", func() {
			cmd := exec.Command("docker", "version", "--format", "{{.Server.Version}}")
			_, err := utils.Run(cmd)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should have a running kind cluster", func() {
			cmd := exec.Command("kubectl", "cluster-info")
			output, err := utils.Run(cmd)
			Expect(err).NotTo(HaveOccurred(), "No Kubernetes cluster available. Run 'make kind-create' first.")
			Expect(string(output)).To(ContainSubstring("Kubernetes"))
		})
	})

	Context("CRDs", func() {
		It("should have ManagedIdentity CRD installed", func() {
			cmd := exec.Command("kubectl", "get", "crd", "managedidentities.identity.t-caas.telekom.com")
			_, err := utils.Run(cmd)
			if err != nil {
				Skip("CRDs not installed yet - run 'make install' first")
			}
		})

		It("should have IdentityBinding CRD installed", func() {
			cmd := exec.Command("kubectl", "get", "crd", "identitybindings.identity.t-caas.telekom.com")
			_, err := utils.Run(cmd)
			if err != nil {
				Skip("CRDs not installed yet - run 'make install' first")
			}
		})

		It("should have IdentityException CRD installed", func() {
			cmd := exec.Command("kubectl", "get", "crd", "identityexceptions.identity.t-caas.telekom.com")
			_, err := utils.Run(cmd)
			if err != nil {
				Skip("CRDs not installed yet - run 'make install' first")
			}
		})
	})

	Context("Operator Deployment", func() {
		It("should have the controller-manager deployment", func() {
			cmd := exec.Command("kubectl", "get", "deployment",
				"-l", "control-plane=controller-manager",
				"-n", operatorNamespace,
				"-o", "name")
			output, err := utils.Run(cmd)
			if err != nil || len(string(output)) == 0 {
				Skip("Operator not deployed yet - run 'make deploy' first")
			}
			Expect(string(output)).To(ContainSubstring("deployment"))
		})

		It("should have controller-manager pod running", func() {
			cmd := exec.Command("kubectl", "get", "pods",
				"-l", "control-plane=controller-manager",
				"-n", operatorNamespace,
				"-o", "jsonpath={.items[0].status.phase}")
			output, err := utils.Run(cmd)
			if err != nil {
				Skip("Operator not deployed yet - run 'make deploy' first")
			}
			Expect(string(output)).To(Equal("Running"))
		})

		It("should have the agent daemonset", func() {
			cmd := exec.Command("kubectl", "get", "daemonset", agentDaemonSet,
				"-n", operatorNamespace,
				"-o", "name")
			output, err := utils.Run(cmd)
			if err != nil || len(string(output)) == 0 {
				Skip("Agent not deployed yet - run 'make deploy' first")
			}
			Expect(string(output)).To(ContainSubstring("daemonset"))
		})
	})
})

var _ = Describe("API Versions", Label("api"), func() {
	It("should support identity.t-caas.telekom.com/v1alpha1", func() {
		cmd := exec.Command("kubectl", "api-resources",
			"--api-group=identity.t-caas.telekom.com",
			"-o", "name")
		output, err := utils.Run(cmd)
		if err != nil {
			Skip("CRDs not installed")
		}
		apiResources := string(output)
		Expect(apiResources).To(ContainSubstring("managedidentities"))
		Expect(apiResources).To(ContainSubstring("identitybindings"))
		Expect(apiResources).To(ContainSubstring("identityexceptions"))
	})

	It("should have correct short names", func() {
		cmd := exec.Command("kubectl", "api-resources",
			"--api-group=identity.t-caas.telekom.com",
			"-o", "wide")
		output, err := utils.Run(cmd)
		if err != nil {
			Skip("CRDs not installed")
		}
		apiResources := string(output)
		Expect(apiResources).To(ContainSubstring("mid"))
		Expect(apiResources).To(ContainSubstring("idbind"))
		Expect(apiResources).To(ContainSubstring("idexc"))
	})
})

// Debug helper - print cluster state for troubleshooting
var _ = Describe("Debug Info", Label("debug"), func() {
	It("prints comprehensive cluster state", func() {
		By("Collecting full cluster debug info")
		utils.CollectClusterDebugInfo("Manual Debug Run")

		By("Getting operator logs")
		utils.CollectOperatorLogs(operatorNamespace, 100)

		By("Collecting CRD debug info")
		utils.CollectCRDDebugInfo()

		By("Collecting Docker/container debug info")
		utils.CollectDockerDebugInfo()
	})

	It("prints quick cluster state summary", func() {
		By("Getting all identity resources")
		resources := []string{"managedidentities", "identitybindings", "identityexceptions"}
		for _, r := range resources {
			cmd := exec.Command("kubectl", "get", r, "-A", "-o", "wide")
			output, _ := utils.Run(cmd)
			_, _ = fmt.Fprintf(GinkgoWriter, "\n=== %s ===\n%s\n", r, string(output))
		}

		By("Getting operator pods")
		cmd := exec.Command("kubectl", "get", "pods", "-n", operatorNamespace, "-o", "wide")
		output, _ := utils.Run(cmd)
		_, _ = fmt.Fprintf(GinkgoWriter, "\n=== Operator Pods ===\n%s\n", string(output))

		By("Getting agent pods per node")
		cmd = exec.Command("kubectl", "get", "pods", "-n", operatorNamespace, "-l", agentLabel,
			"-o", "custom-columns=NODE:.spec.nodeName,POD:.metadata.name,STATUS:.status.phase")
		output, _ = utils.Run(cmd)
		_, _ = fmt.Fprintf(GinkgoWriter, "\n=== Agent Pods ===\n%s\n", string(output))

		By("Getting recent events")
		cmd = exec.Command("kubectl", "get", "events", "-A", "--sort-by=.lastTimestamp", "--field-selector=type!=Normal")
		output, _ = utils.Run(cmd)
		_, _ = fmt.Fprintf(GinkgoWriter, "\n=== Recent Warning/Error Events ===\n%s\n", string(output))
	})

	It("saves debug info to files", func() {
		By("Collecting and saving all debug info")
		utils.CollectAndSaveAllDebugInfo("Debug Test Run")
		_, _ = fmt.Fprintf(GinkgoWriter, "Debug info saved to test/e2e/output/\n")
	})
})

// Per-spec failure reports and the suite summary are written as CI artifacts.
var _ = ReportAfterEach(func(report SpecReport) {
	if !report.Failed() {
		return
	}
	debugReport := GenerateDebugReport(report, "dev")
	PrintConciseSummary(debugReport)
	if err := SaveDebugReport(debugReport, utils.GetE2EOutputDirForContext("failures")); err != nil {
		_, _ = fmt.Fprintf(GinkgoWriter, "failed to save debug report: %v\n", err)
	}
})

var _ = ReportAfterSuite("summary", func(report Report) {
	var passed, failed, skipped int
	var failedTests []string
	for _, spec := range report.SpecReports {
		switch {
		case spec.Failed():
			failed++
			failedTests = append(failedTests, spec.FullText())
		case spec.State.Is(types.SpecStateSkipped):
			skipped++
		case spec.State.Is(types.SpecStatePassed):
			passed++
		}
	}
	if err := utils.SaveTestSummaryJSON("e2e", passed, failed, skipped, report.RunTime, failedTests); err != nil {
		_, _ = fmt.Fprintf(GinkgoWriter, "failed to save test summary: %v\n", err)
	}
})
