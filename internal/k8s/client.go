// Package k8s provides the Kubernetes API operations the deployment
// engine layers around helm: crash-pod cleanup, namespace event dumps,
// resource snapshot and restore, and pod readiness checks.
package k8s

import (
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the typed and dynamic surfaces of client-go behind the
// operations the chart pipeline needs.
type Client struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	mapper    meta.RESTMapper
	log       logr.Logger
}

// NewFromKubeconfigFile creates a Client from a kubeconfig file.
func NewFromKubeconfigFile(kubeconfigPath string, log logr.Logger) (*Client, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	// Typed clientset for pods and events
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	// Dynamic client for arbitrary resource kinds
	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	// REST mapper for GVK to GVR conversion
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	groupResources, err := restmapper.GetAPIGroupResources(discoveryClient)
	if err != nil {
		return nil, fmt.Errorf("failed to get API group resources: %w", err)
	}

	return &Client{
		clientset: clientset,
		dynamic:   dynamicClient,
		mapper:    restmapper.NewDiscoveryRESTMapper(groupResources),
		log:       log,
	}, nil
}

// NewFromClients creates a Client from pre-configured clients. This is
// useful for testing with fake clients.
func NewFromClients(clientset kubernetes.Interface, dynamicClient dynamic.Interface, mapper meta.RESTMapper, log logr.Logger) *Client {
	return &Client{
		clientset: clientset,
		dynamic:   dynamicClient,
		mapper:    mapper,
		log:       log,
	}
}
