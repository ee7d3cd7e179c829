// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/Qovery/engine-sub003/internal/charts"
	"github.com/Qovery/engine-sub003/internal/cmdexec"
	"github.com/Qovery/engine-sub003/internal/config"
	"github.com/Qovery/engine-sub003/internal/helm"
	"github.com/Qovery/engine-sub003/internal/k8s"
	"github.com/Qovery/engine-sub003/internal/metrics"
	"github.com/Qovery/engine-sub003/internal/store"
	"github.com/Qovery/engine-sub003/internal/util/prerequisites"
)

// Options configures a deploy or destroy run.
type Options struct {
	// PlanPath is the plan file. Empty means auto-detect engine.yaml in
	// the current directory.
	PlanPath string

	// Kubeconfig overrides the KUBECONFIG environment variable and the
	// plan's kubeconfig field.
	Kubeconfig string

	// Parallel runs the charts of each level concurrently. The plan's
	// parallel field turns this on as well.
	Parallel bool

	// DryRun validates and renders without mutating the cluster.
	DryRun bool

	// MetricsAddr serves Prometheus metrics for the duration of the run
	// when non-empty, e.g. ":8080".
	MetricsAddr string
}

// HelmClient interface for testing - matches helm.Client.
type HelmClient interface {
	charts.HelmClient
	List(ctx context.Context, namespace string, all bool) ([]helm.Release, error)
}

// SnapshotStore interface for testing - matches store.Store.
type SnapshotStore interface {
	charts.SnapshotStore
	EnsureBucket(ctx context.Context) error
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newRunner creates the subprocess runner helm and kubectl go through.
	newRunner = func() cmdexec.Runner {
		return cmdexec.NewExecRunner()
	}

	// newHelmClient creates the helm CLI client.
	newHelmClient = func(runner cmdexec.Runner, kubeconfig string, env map[string]string, log logr.Logger) (HelmClient, error) {
		return helm.NewClient(runner, kubeconfig, env, log)
	}

	// newKubeClient creates the Kubernetes client.
	newKubeClient = func(kubeconfig string, log logr.Logger) (charts.Kube, error) {
		return k8s.NewFromKubeconfigFile(kubeconfig, log)
	}

	// newStore creates the snapshot store.
	newStore = func(cfg store.Config, log logr.Logger) (SnapshotStore, error) {
		return store.New(cfg, log)
	}

	// loadPlanFile loads a plan from file (for testing injection).
	loadPlanFile = config.LoadPlan

	// findPlanFile finds the default plan file (for testing injection).
	findPlanFile = config.FindPlanFile

	// checkPrereqs runs prerequisite checks (for testing injection).
	checkPrereqs = prerequisites.CheckDefault
)

// Deploy handles the deploy command.
//
// This function orchestrates the complete deployment workflow:
//  1. Loads and validates the plan file (auto-detects engine.yaml)
//  2. Verifies helm and kubectl are installed
//  3. Resolves the target kubeconfig (flag, then KUBECONFIG, then plan)
//  4. Wires the helm client, Kubernetes client and optional snapshot store
//  5. Deploys every level in order, charts within a level sequentially
//     or concurrently depending on --parallel and the plan
//
// The run stops at the first failing level. Charts of that level that
// are already running finish before the error is returned.
func Deploy(ctx context.Context, opts Options) error {
	return run(ctx, helm.Deploy, opts)
}

// Destroy handles the destroy command.
//
// It processes the plan's levels in reverse deployment order and
// uninstalls every chart, autoscaler companions included. Releases
// that are already absent count as destroyed.
func Destroy(ctx context.Context, opts Options) error {
	return run(ctx, helm.Destroy, opts)
}

func run(ctx context.Context, action helm.Action, opts Options) error {
	log := setupLogger()

	plan, path, err := loadPlan(opts.PlanPath)
	if err != nil {
		return err
	}
	log.Info("plan loaded", "path", path, "levels", len(plan.Levels), "charts", plan.ChartCount())

	if err := checkPrerequisites(log); err != nil {
		return err
	}

	kubeconfig, err := resolveKubeconfig(opts.Kubeconfig, plan)
	if err != nil {
		return err
	}

	if opts.MetricsAddr != "" {
		addr, stop, err := serveMetrics(opts.MetricsAddr, log)
		if err != nil {
			return err
		}
		defer stop()
		log.Info("serving metrics", "addr", addr)
	}

	runner := newRunner()
	helmClient, err := newHelmClient(runner, kubeconfig, plan.Environment, log.WithName("helm"))
	if err != nil {
		return fmt.Errorf("failed to create helm client: %w", err)
	}

	kube, err := newKubeClient(kubeconfig, log.WithName("k8s"))
	if err != nil {
		return fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	deps := charts.Deps{
		Helm:       helmClient,
		Kube:       kube,
		Runner:     runner,
		Kubeconfig: kubeconfig,
		Env:        plan.Environment,
		Log:        log,
	}

	if plan.HasStore() {
		snapshots, err := newStore(plan.StoreConfig(), log.WithName("store"))
		if err != nil {
			return fmt.Errorf("failed to create snapshot store: %w", err)
		}
		if err := snapshots.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure snapshot bucket: %w", err)
		}
		deps.Store = snapshots
	}

	chartPlan, err := plan.Build(action, opts.DryRun)
	if err != nil {
		return fmt.Errorf("failed to build plan: %w", err)
	}

	parallel := opts.Parallel || plan.Parallel
	sequencer := charts.NewSequencer(charts.NewPipeline(deps), parallel, log)

	start := time.Now()
	if action == helm.Destroy {
		err = sequencer.Destroy(ctx, chartPlan)
	} else {
		err = sequencer.Deploy(ctx, chartPlan)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", action, err)
	}

	log.Info("plan completed", "action", string(action), "duration", time.Since(start).Round(time.Millisecond).String())
	return nil
}

// setupLogger builds the run logger and installs it as the global
// controller-runtime logger. Interactive terminals get development
// output, everything else structured JSON.
func setupLogger() logr.Logger {
	opts := zap.Options{
		Development: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
	logger := zap.New(zap.UseFlagOptions(&opts))
	ctrl.SetLogger(logger)
	return logger
}

// loadPlan loads and validates the plan file. If path is empty it looks
// for engine.yaml in the current directory.
func loadPlan(path string) (*config.Plan, string, error) {
	if path == "" {
		found, err := findPlanFile()
		if err != nil {
			return nil, "", fmt.Errorf("no plan file found: %w", err)
		}
		path = found
	}

	plan, err := loadPlanFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load plan: %w", err)
	}

	return plan, path, nil
}

// checkPrerequisites verifies required client tools are available.
func checkPrerequisites(log logr.Logger) error {
	results := checkPrereqs()

	for _, r := range results.Results {
		if r.Found {
			version := r.Version
			if version == "" {
				version = "unknown version"
			}
			log.V(1).Info("found tool", "name", r.Tool.Name, "version", version)
		}
	}

	if err := results.Error(); err != nil {
		return fmt.Errorf("prerequisites check failed: %w", err)
	}

	return nil
}

// resolveKubeconfig picks the kubeconfig path for the run: the
// --kubeconfig flag wins, then the KUBECONFIG environment variable,
// then the plan's kubeconfig field.
func resolveKubeconfig(flag string, plan *config.Plan) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return env, nil
	}
	if plan.Kubeconfig != "" {
		return plan.Kubeconfig, nil
	}
	return "", errors.New("no kubeconfig: set --kubeconfig, KUBECONFIG or the plan's kubeconfig field")
}

// serveMetrics exposes the Prometheus registry on addr until the
// returned stop function is called. The resolved listen address is
// returned so callers can report it when addr picks a random port.
func serveMetrics(addr string, log logr.Logger) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to bind metrics address %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server stopped")
		}
	}()

	stop := func() { _ = server.Close() }
	return listener.Addr().String(), stop, nil
}
