//go:build e2e

package e2e

import (
	"fmt"
	"os"
	"strings"
)

// InstallMethod represents the operator installation method.
type InstallMethod string

// Supported install methods.
const (
	InstallMethodKustomize InstallMethod = "kustomize"
	InstallMethodDev       InstallMethod = "dev"
)

// TestSuiteConfig defines configuration for an e2e test suite
// Each suite MUST use its own dedicated cluster to ensure isolation
type TestSuiteConfig struct {
	// SuiteName is the unique identifier for this test suite
	SuiteName string

	// ClusterName is the dedicated Kind cluster name for this suite
	ClusterName string

	// InstallMethod determines how the operator is installed
	InstallMethod InstallMethod

	// Namespace is the operator deployment namespace
	Namespace string

	// TestNamespaces are additional namespaces created for testing
	TestNamespaces []string

	// MultiNode indicates if a multi-node cluster is required. Agent tests
	// need more than one node to show per-node assignment isolation.
	MultiNode bool

	// Labels are Ginkgo labels for test filtering
	Labels []string

	// Timeouts
	DeployTimeout    string
	ReconcileTimeout string
	PollingInterval  string
}

// ClusterMapping defines which test suite uses which cluster
// This ensures complete isolation between suites
var ClusterMapping = map[string]TestSuiteConfig{
	"base": {
		SuiteName:        "base",
		ClusterName:      "pod-identity-operator-e2e",
		InstallMethod:    InstallMethodDev,
		Namespace:        "pod-identity-operator-system",
		TestNamespaces:   []string{"e2e-identity-test"},
		Labels:           []string{"setup", "api", "lifecycle", "debug"},
		DeployTimeout:    "5m",
		ReconcileTimeout: "2m",
		PollingInterval:  "5s",
	},
	"agent": {
		SuiteName:        "agent",
		ClusterName:      "pod-identity-operator-e2e-agent",
		InstallMethod:    InstallMethodKustomize,
		Namespace:        "pod-identity-operator-system",
		TestNamespaces:   []string{"e2e-agent-test"},
		MultiNode:        true,
		Labels:           []string{"agent"},
		DeployTimeout:    "5m",
		ReconcileTimeout: "3m",
		PollingInterval:  "5s",
	},
}

// GetSuiteConfig returns the configuration for a test suite
func GetSuiteConfig(suiteName string) (TestSuiteConfig, error) {
	config, ok := ClusterMapping[suiteName]
	if !ok {
		return TestSuiteConfig{}, fmt.Errorf("unknown test suite: %s", suiteName)
	}
	return config, nil
}

// GetSuiteForLabels determines which suite config to use based on active labels
func GetSuiteForLabels(labels []string) (TestSuiteConfig, error) {
	for _, label := range labels {
		for name, config := range ClusterMapping {
			for _, configLabel := range config.Labels {
				if label == configLabel {
					return ClusterMapping[name], nil
				}
			}
		}
	}
	return ClusterMapping["base"], nil
}

// ValidateClusterIsolation checks that the current cluster matches the expected suite
func ValidateClusterIsolation(config TestSuiteConfig) error {
	currentCluster := os.Getenv("KIND_CLUSTER")
	if currentCluster == "" {
		currentCluster = "pod-identity-operator-e2e"
	}

	if currentCluster != config.ClusterName {
		return fmt.Errorf(
			"cluster isolation violation: suite '%s' should run in cluster '%s' but running in '%s'",
			config.SuiteName, config.ClusterName, currentCluster,
		)
	}

	return nil
}

// PrintSuiteConfig prints the current test suite configuration
func PrintSuiteConfig(config TestSuiteConfig) {
	fmt.Printf(`
╔══════════════════════════════════════════════════════════════════════════════╗
║                         TEST SUITE CONFIGURATION                             ║
╠══════════════════════════════════════════════════════════════════════════════╣
║ Suite:          %-60s ║
║ Cluster:        %-60s ║
║ Install Method: %-60s ║
║ Namespace:      %-60s ║
║ Multi-Node:     %-60v ║
║ Labels:         %-60s ║
╚══════════════════════════════════════════════════════════════════════════════╝
`,
		config.SuiteName,
		config.ClusterName,
		config.InstallMethod,
		config.Namespace,
		config.MultiNode,
		strings.Join(config.Labels, ", "),
	)
}
