package k8s

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

const pollInterval = 5 * time.Second

// WaitForPodsReady blocks until every pod matching the label selector
// in the namespace is running and ready, or the timeout expires. At
// least one pod must exist for the check to pass.
func (c *Client) WaitForPodsReady(ctx context.Context, namespace, labelSelector string, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		podList, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
			LabelSelector: labelSelector,
		})
		if err != nil {
			// Transient API errors do not fail the wait
			return false, nil
		}
		if len(podList.Items) == 0 {
			return false, nil
		}

		for i := range podList.Items {
			if !isPodReady(&podList.Items[i]) {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("pods matching %q in namespace %s not ready after %s: %w", labelSelector, namespace, timeout, err)
	}

	return nil
}

// isPodReady checks if a pod is running with its Ready condition true.
func isPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}

	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}

	return false
}
