/*
Copyright © 2026 Deutsche Telekom AG
SPDX-License-Identifier: Apache-2.0
*/
package v1alpha1

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

var _ = Describe("IdentityException Webhook", func() {

	Context("When creating IdentityException under Validating Webhook", func() {

		It("Should admit a valid IdentityException", func() {
			ie := &IdentityException{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-valid-exception",
					Namespace: "default",
				},
				Spec: IdentityExceptionSpec{
					PodLabels: map[string]string{"app.kubernetes.io/name": "metrics-agent"},
				},
			}
			Expect(k8sClient.Create(ctx, ie)).To(Succeed())

			// Cleanup
			Expect(k8sClient.Delete(ctx, ie)).To(Succeed())
		})

		It("Should deny an exception without podLabels", func() {
			// Rejected by the CRD schema before the webhook runs.
			ie := &IdentityException{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-empty-exception",
					Namespace: "default",
				},
				Spec: IdentityExceptionSpec{},
			}
			err := k8sClient.Create(ctx, ie)
			Expect(err).To(HaveOccurred())
		})

		It("Should deny an invalid label key", func() {
			ie := &IdentityException{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-bad-label-key",
					Namespace: "default",
				},
				Spec: IdentityExceptionSpec{
					PodLabels: map[string]string{"bad key!": "value"},
				},
			}
			err := k8sClient.Create(ctx, ie)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("is invalid"))
		})

		It("Should deny an invalid label value", func() {
			ie := &IdentityException{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-bad-label-value",
					Namespace: "default",
				},
				Spec: IdentityExceptionSpec{
					PodLabels: map[string]string{"app": "no spaces allowed"},
				},
			}
			err := k8sClient.Create(ctx, ie)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("is invalid"))
		})
	})
})
