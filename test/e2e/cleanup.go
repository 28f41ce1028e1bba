package e2e

import (
	"os/exec"
	"time"

	"github.com/telekom/pod-identity-operator/test/utils"
)

// CleanupOptions configures cleanup behavior for test resources
type CleanupOptions struct {
	Namespaces       []string // Namespaces to delete
	RemoveCRs        bool     // Remove all CRs (ManagedIdentities, IdentityBindings, IdentityExceptions)
	RemoveFinalizers bool     // Remove finalizers from CRs before deletion
	WaitForDeletion  bool     // Wait for resources to be fully deleted
	WebhookSelector  string   // Cleanup webhooks matching label selector
}

// CleanupTestResources performs comprehensive cleanup of test resources
// This function centralizes cleanup logic to avoid duplication across test files
func CleanupTestResources(opts CleanupOptions) {
	// Step 1: Remove finalizers if requested (prevents stuck deletions)
	if opts.RemoveFinalizers {
		utils.RemoveFinalizersForAll("managedidentity")
		utils.RemoveFinalizersForAll("identitybinding")
		utils.RemoveFinalizersForAll("identityexception")
	}

	// Step 2: Delete CRs first (before operator teardown)
	if opts.RemoveCRs {
		cleanupAllCRs()
	}

	// Step 3: Cleanup webhooks BEFORE deleting namespaces
	// This is critical - if webhooks are deleted after the operator namespace,
	// the webhook service won't exist and namespace deletion will fail
	if opts.WebhookSelector != "" {
		utils.CleanupWebhooks(opts.WebhookSelector)
	}
	utils.CleanupAllOperatorWebhooks()

	// Step 4: Delete namespaces (now safe since webhooks are gone)
	for _, ns := range opts.Namespaces {
		utils.CleanupNamespace(ns)
	}

	// Step 5: Wait for deletion to complete
	if opts.WaitForDeletion {
		time.Sleep(5 * time.Second)
	}
}

// cleanupAllCRs deletes all identity custom resources
func cleanupAllCRs() {
	resources := []string{"identitybinding", "identityexception", "managedidentity"}
	for _, resource := range resources {
		cmd := exec.Command("kubectl", "delete", resource, "-A", "--all", "--ignore-not-found=true")
		_, _ = utils.Run(cmd)
	}
}

// CleanupMinimal performs minimal cleanup (CRs only, no cluster resources)
// Use when the operator deployment should persist
func CleanupMinimal() {
	CleanupTestResources(CleanupOptions{
		RemoveCRs:        true,
		RemoveFinalizers: true,
		WaitForDeletion:  true,
	})
}

// CleanupComplete performs complete cleanup (everything)
// Use in AfterAll to ensure clean state
func CleanupComplete(namespaces []string, webhookSelector string) {
	CleanupTestResources(CleanupOptions{
		Namespaces:       namespaces,
		RemoveCRs:        true,
		RemoveFinalizers: true,
		WaitForDeletion:  true,
		WebhookSelector:  webhookSelector,
	})
}

// CleanupCRsByName deletes specific CR instances by name within a namespace.
// Bindings go first so the assignment snapshot empties before the identities
// they reference disappear.
func CleanupCRsByName(namespace string, identities, bindings, exceptions []string) {
	for _, name := range bindings {
		cmd := exec.Command("kubectl", "delete", "identitybinding", name, "-n", namespace, "--ignore-not-found=true")
		_, _ = utils.Run(cmd)
	}
	for _, name := range exceptions {
		cmd := exec.Command("kubectl", "delete", "identityexception", name, "-n", namespace, "--ignore-not-found=true")
		_, _ = utils.Run(cmd)
	}
	for _, name := range identities {
		cmd := exec.Command("kubectl", "delete", "managedidentity", name, "-n", namespace, "--ignore-not-found=true")
		_, _ = utils.Run(cmd)
	}
}

// CleanupAllCRsInNamespace deletes all identity CRs in a namespace
func CleanupAllCRsInNamespace(namespace string) {
	resources := []string{"identitybinding", "identityexception", "managedidentity"}
	for _, resource := range resources {
		if namespace != "" {
			cmd := exec.Command("kubectl", "delete", resource, "--all", "-n", namespace, "--ignore-not-found=true")
			_, _ = utils.Run(cmd)
		} else {
			cmd := exec.Command("kubectl", "delete", resource, "--all", "--ignore-not-found=true")
			_, _ = utils.Run(cmd)
		}
	}
}
