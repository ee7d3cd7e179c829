package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Qovery/engine-sub003/internal/helm"
)

// ReleasesOptions configures the releases listing.
type ReleasesOptions struct {
	// Kubeconfig overrides the KUBECONFIG environment variable.
	Kubeconfig string

	// Namespace restricts the listing to one namespace. Empty means
	// helm's default namespace.
	Namespace string

	// AllNamespaces lists releases across every namespace.
	AllNamespaces bool
}

// Releases handles the releases command.
//
// It lists the helm releases on the target cluster, pending and failed
// ones included, as a fixed-width table.
func Releases(ctx context.Context, opts ReleasesOptions) error {
	log := setupLogger()

	kubeconfig := opts.Kubeconfig
	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	if kubeconfig == "" {
		return errors.New("no kubeconfig: set --kubeconfig or KUBECONFIG")
	}

	helmClient, err := newHelmClient(newRunner(), kubeconfig, nil, log.WithName("helm"))
	if err != nil {
		return fmt.Errorf("failed to create helm client: %w", err)
	}

	releases, err := helmClient.List(ctx, opts.Namespace, opts.AllNamespaces)
	if err != nil {
		return fmt.Errorf("failed to list releases: %w", err)
	}

	fmt.Print(releasesTable(releases))
	return nil
}

// releasesTable renders releases as a fixed-width table, one row per
// release.
func releasesTable(releases []helm.Release) string {
	if len(releases) == 0 {
		return "No releases found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-32s %-20s %-9s %-17s %-32s %s\n",
		"NAME", "NAMESPACE", "REVISION", "STATUS", "CHART", "APP VERSION")
	for _, r := range releases {
		fmt.Fprintf(&b, "%-32s %-20s %-9s %-17s %-32s %s\n",
			r.Name, r.Namespace, r.Revision, r.Status, r.Chart, r.AppVersion)
	}
	return b.String()
}
