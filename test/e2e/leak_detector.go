package e2e

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/onsi/ginkgo/v2"

	"github.com/telekom/pod-identity-operator/test/utils"
)

// ResourceSnapshot captures cluster state at a point in time
type ResourceSnapshot struct {
	Namespaces         []string
	ManagedIdentities  []string
	IdentityBindings   []string
	IdentityExceptions []string
	CredentialSecrets  []string
	ValidatingWebhooks []string
	MutatingWebhooks   []string
}

// TakeSnapshot captures current cluster state for leak detection
func TakeSnapshot() (*ResourceSnapshot, error) {
	snapshot := &ResourceSnapshot{}

	// Capture namespaces (excluding system namespaces)
	cmd := exec.Command("kubectl", "get", "ns", "-o", "jsonpath={.items[*].metadata.name}")
	output, err := utils.Run(cmd)
	if err == nil {
		allNS := strings.Fields(string(output))
		// Filter out system namespaces
		systemNS := map[string]bool{
			"default": true, "kube-system": true, "kube-public": true,
			"kube-node-lease": true, "local-path-storage": true,
		}
		for _, ns := range allNS {
			if !systemNS[ns] {
				snapshot.Namespaces = append(snapshot.Namespaces, ns)
			}
		}
	}

	// Capture ManagedIdentities
	cmd = exec.Command("kubectl", "get", "managedidentities", "-A",
		"-o", "jsonpath={range .items[*]}{.metadata.namespace}/{.metadata.name}{\" \"}{end}")
	output, err = utils.Run(cmd)
	if err == nil {
		snapshot.ManagedIdentities = strings.Fields(string(output))
	}

	// Capture IdentityBindings
	cmd = exec.Command("kubectl", "get", "identitybindings", "-A",
		"-o", "jsonpath={range .items[*]}{.metadata.namespace}/{.metadata.name}{\" \"}{end}")
	output, err = utils.Run(cmd)
	if err == nil {
		snapshot.IdentityBindings = strings.Fields(string(output))
	}

	// Capture IdentityExceptions
	cmd = exec.Command("kubectl", "get", "identityexceptions", "-A",
		"-o", "jsonpath={range .items[*]}{.metadata.namespace}/{.metadata.name}{\" \"}{end}")
	output, err = utils.Run(cmd)
	if err == nil {
		snapshot.IdentityExceptions = strings.Fields(string(output))
	}

	// Capture credential secrets created by tests
	cmd = exec.Command("kubectl", "get", "secrets", "-A",
		"-l", "app.kubernetes.io/component=e2e-test",
		"-o", "jsonpath={range .items[*]}{.metadata.namespace}/{.metadata.name}{\" \"}{end}")
	output, err = utils.Run(cmd)
	if err == nil {
		snapshot.CredentialSecrets = strings.Fields(string(output))
	}

	// Capture ValidatingWebhookConfigurations (operator related)
	cmd = exec.Command("kubectl", "get", "validatingwebhookconfigurations", "-o", "name")
	output, err = utils.Run(cmd)
	if err == nil {
		for _, line := range utils.GetNonEmptyLines(string(output)) {
			if strings.Contains(line, "pod-identity-operator") {
				snapshot.ValidatingWebhooks = append(snapshot.ValidatingWebhooks, line)
			}
		}
	}

	// Capture MutatingWebhookConfigurations (operator related)
	cmd = exec.Command("kubectl", "get", "mutatingwebhookconfigurations", "-o", "name")
	output, err = utils.Run(cmd)
	if err == nil {
		for _, line := range utils.GetNonEmptyLines(string(output)) {
			if strings.Contains(line, "pod-identity-operator") {
				snapshot.MutatingWebhooks = append(snapshot.MutatingWebhooks, line)
			}
		}
	}

	return snapshot, nil
}

// DetectLeaks compares two snapshots and returns detected leaks
func DetectLeaks(before, after *ResourceSnapshot) []string {
	leaks := []string{}

	// Check for new namespaces
	newNS := difference(after.Namespaces, before.Namespaces)
	if len(newNS) > 0 {
		leaks = append(leaks, fmt.Sprintf("Leaked namespaces: %v", newNS))
	}

	// Check for remaining ManagedIdentities (should be 0 after cleanup)
	if len(after.ManagedIdentities) > 0 {
		leaked := difference(after.ManagedIdentities, before.ManagedIdentities)
		if len(leaked) > 0 {
			leaks = append(leaks, fmt.Sprintf("Remaining ManagedIdentities (%d): %v",
				len(leaked), leaked))
		}
	}

	// Check for remaining IdentityBindings
	if len(after.IdentityBindings) > 0 {
		leaked := difference(after.IdentityBindings, before.IdentityBindings)
		if len(leaked) > 0 {
			leaks = append(leaks, fmt.Sprintf("Remaining IdentityBindings (%d): %v",
				len(leaked), leaked))
		}
	}

	// Check for remaining IdentityExceptions
	if len(after.IdentityExceptions) > 0 {
		leaked := difference(after.IdentityExceptions, before.IdentityExceptions)
		if len(leaked) > 0 {
			leaks = append(leaks, fmt.Sprintf("Remaining IdentityExceptions (%d): %v",
				len(leaked), leaked))
		}
	}

	// Check for remaining credential secrets
	newSecrets := difference(after.CredentialSecrets, before.CredentialSecrets)
	if len(newSecrets) > 0 {
		leaks = append(leaks, fmt.Sprintf("Leaked credential secrets: %v", newSecrets))
	}

	// Check for remaining webhooks
	newVWH := difference(after.ValidatingWebhooks, before.ValidatingWebhooks)
	if len(newVWH) > 0 {
		leaks = append(leaks, fmt.Sprintf("Remaining validating webhooks: %v", newVWH))
	}

	newMWH := difference(after.MutatingWebhooks, before.MutatingWebhooks)
	if len(newMWH) > 0 {
		leaks = append(leaks, fmt.Sprintf("Remaining mutating webhooks: %v", newMWH))
	}

	return leaks
}

// PrintLeakReport prints a formatted leak report
func PrintLeakReport(leaks []string) {
	w := ginkgo.GinkgoWriter
	if len(leaks) == 0 {
		_, _ = fmt.Fprintf(w, "\n")
		_, _ = fmt.Fprintf(w, "╔═══════════════════════════════════════════════════════════════════════╗\n")
		_, _ = fmt.Fprintf(w, "║ ✓ NO RESOURCE LEAKS DETECTED                                         ║\n")
		_, _ = fmt.Fprintf(w, "║   All test resources were properly cleaned up.                       ║\n")
		_, _ = fmt.Fprintf(w, "╚═══════════════════════════════════════════════════════════════════════╝\n\n")
		return
	}

	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "╔═══════════════════════════════════════════════════════════════════════╗\n")
	_, _ = fmt.Fprintf(w, "║ ⚠️  RESOURCE LEAKS DETECTED                                            ║\n")
	_, _ = fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════════════════╣\n")

	for _, leak := range leaks {
		// Wrap long leak messages
		maxWidth := 69
		if len(leak) <= maxWidth {
			_, _ = fmt.Fprintf(w, "║ • %-67s ║\n", leak)
		} else {
			// Split long messages
			words := strings.Fields(leak)
			line := "• "
			for _, word := range words {
				if len(line)+len(word)+1 > maxWidth {
					_, _ = fmt.Fprintf(w, "║ %-69s ║\n", line)
					line = "  " + word + " "
				} else {
					line += word + " "
				}
			}
			if len(line) > 0 {
				_, _ = fmt.Fprintf(w, "║ %-69s ║\n", strings.TrimSpace(line))
			}
		}
	}

	_, _ = fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════════════════╣\n")
	_, _ = fmt.Fprintf(w, "║ Recommendation: Review AfterAll cleanup logic to ensure all          ║\n")
	_, _ = fmt.Fprintf(w, "║ resources are properly deleted. Leaks may affect subsequent tests.   ║\n")
	_, _ = fmt.Fprintf(w, "╚═══════════════════════════════════════════════════════════════════════╝\n\n")
}

// difference returns elements in 'a' that are not in 'b'
func difference(a, b []string) []string {
	mb := make(map[string]struct{}, len(b))
	for _, x := range b {
		mb[x] = struct{}{}
	}
	var diff []string
	for _, x := range a {
		if _, found := mb[x]; !found {
			diff = append(diff, x)
		}
	}
	return diff
}
