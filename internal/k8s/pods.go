package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const crashLoopBackOff = "CrashLoopBackOff"

// DeleteCrashLoopingPods deletes every pod in the namespace whose
// containers are stuck in CrashLoopBackOff, so the next release rollout
// starts from fresh pods instead of waiting out the backoff. Returns
// the names of the pods it deleted.
func (c *Client) DeleteCrashLoopingPods(ctx context.Context, namespace, labelSelector string) ([]string, error) {
	podList, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in namespace %s: %w", namespace, err)
	}

	var deleted []string
	for _, pod := range podList.Items {
		if !isCrashLooping(&pod) {
			continue
		}

		err := c.clientset.CoreV1().Pods(namespace).Delete(ctx, pod.Name, metav1.DeleteOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				continue
			}
			return deleted, fmt.Errorf("failed to delete pod %s/%s: %w", namespace, pod.Name, err)
		}

		c.log.Info("deleted crash-looping pod", "namespace", namespace, "pod", pod.Name)
		deleted = append(deleted, pod.Name)
	}

	return deleted, nil
}

// isCrashLooping reports whether any container of the pod, init
// containers included, is waiting in CrashLoopBackOff.
func isCrashLooping(pod *corev1.Pod) bool {
	statuses := make([]corev1.ContainerStatus, 0, len(pod.Status.InitContainerStatuses)+len(pod.Status.ContainerStatuses))
	statuses = append(statuses, pod.Status.InitContainerStatuses...)
	statuses = append(statuses, pod.Status.ContainerStatuses...)

	for _, status := range statuses {
		if status.State.Waiting != nil && status.State.Waiting.Reason == crashLoopBackOff {
			return true
		}
	}

	return false
}
