package k8s

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// RecentEvents returns the events recorded in a namespace, oldest
// first, so a failure report reads in chronological order.
func (c *Client) RecentEvents(ctx context.Context, namespace string) ([]corev1.Event, error) {
	eventList, err := c.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list events in namespace %s: %w", namespace, err)
	}

	events := eventList.Items
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].LastTimestamp.Before(&events[j].LastTimestamp)
	})

	return events, nil
}

// FormatEvent renders one event the way kubectl describe does, for
// inclusion in deployment failure logs.
func FormatEvent(event *corev1.Event) string {
	return fmt.Sprintf("%s %s %s/%s: %s",
		event.Type, event.Reason, event.InvolvedObject.Kind, event.InvolvedObject.Name, event.Message)
}
