package helm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-logr/logr"

	"github.com/Qovery/engine-sub003/internal/cmdexec"
	"github.com/Qovery/engine-sub003/internal/metrics"
)

const helmBin = "helm"

// probeTimeout bounds non-mutating calls (status, list) so an unreachable
// API server cannot hang a deployment.
const probeTimeout = time.Minute

// processGrace sits on top of helm's own --timeout for mutating calls, so
// helm gets to report the timeout on stderr before the process is killed.
const processGrace = 30 * time.Second

// Operation names recorded on classified errors.
const (
	OpStatus    = "status"
	OpUpgrade   = "upgrade"
	OpRollback  = "rollback"
	OpUninstall = "uninstall"
	OpList      = "list"
)

// Client runs helm commands against one cluster. All methods probe or
// mutate through the injected runner; nothing is cached between calls.
type Client struct {
	runner     cmdexec.Runner
	kubeconfig string
	env        map[string]string
	log        logr.Logger
}

// NewClient returns a helm client for the cluster reachable through the
// given kubeconfig. env holds the caller's credential variables; they are
// merged into every invocation's environment and only their names ever
// surface in errors and logs.
func NewClient(runner cmdexec.Runner, kubeconfigPath string, env map[string]string, log logr.Logger) (*Client, error) {
	if _, err := os.Stat(kubeconfigPath); err != nil {
		return nil, &Error{
			Kind:      KindInvalidConfig,
			Operation: "new-client",
			EnvVars:   envNames(env),
			Err:       fmt.Errorf("kubeconfig is not usable: %w", err),
		}
	}
	return &Client{
		runner:     runner,
		kubeconfig: kubeconfigPath,
		env:        env,
		log:        log,
	}, nil
}

// Status probes the chart's release. A KindReleaseDoesNotExist error means
// the release is absent; callers treat it as "nothing to clean up".
func (c *Client) Status(ctx context.Context, chart *ChartInfo) (*ReleaseStatus, error) {
	args := []string{
		"status", chart.Name,
		"--kubeconfig", c.kubeconfig,
		"--namespace", chart.Namespace,
		"-o", "json",
	}

	var outLines, errLines []string
	runErr := c.run(ctx, args, probeTimeout, collect(&outLines), collect(&errLines))
	if runErr != nil {
		stderr := strings.Join(errLines, "\n")
		if strings.Contains(stderr, notFoundMessage) {
			return nil, c.newError(KindReleaseDoesNotExist, chart.Name, OpStatus, stderr, runErr)
		}
		return nil, c.failure(chart.Name, OpStatus, runErr, stderr)
	}

	status := parseStatus([]byte(strings.Join(outLines, "\n")))
	return &status, nil
}

// Upgrade installs or upgrades the chart's release, clearing a stale helm
// lock first. Output is streamed line by line to the given sinks; stderr
// lines also feed failure classification, except helm's debug chatter.
func (c *Client) Upgrade(ctx context.Context, chart *ChartInfo, stdout, stderr cmdexec.LineSink) error {
	c.clearLock(ctx, chart)

	args := []string{
		"upgrade", chart.Name, chart.Path,
		"--kubeconfig", c.kubeconfig,
		"--create-namespace",
		"--install",
		"--debug",
		"--timeout", timeoutArg(chart.EffectiveTimeout()),
		"--history-max", "50",
		"--namespace", chart.Namespace,
	}
	if chart.Atomic {
		args = append(args, "--atomic")
	}
	if chart.ForceUpgrade {
		args = append(args, "--force")
	}
	if chart.RecreatePods {
		args = append(args, "--recreate-pods")
	}
	if chart.DryRun {
		args = append(args, "--dry-run")
	}
	if chart.Wait {
		args = append(args, "--wait")
	}
	valueArgs, err := c.valuesArgs(chart)
	if err != nil {
		return c.newError(KindInvalidConfig, chart.Name, OpUpgrade, "", err)
	}
	args = append(args, valueArgs...)

	c.log.Info("upgrading release",
		"chart", chart.Name, "namespace", chart.Namespace, "timeout", chart.EffectiveTimeout().String())

	var errLines []string
	runErr := c.run(ctx, args, chart.EffectiveTimeout()+processGrace, stdout, accumulate(stderr, &errLines))
	if runErr != nil {
		return c.failure(chart.Name, OpUpgrade, runErr, strings.Join(errLines, "\n"))
	}
	return nil
}

// Rollback returns the chart's release to its previous revision. Revision
// 1 has no predecessor, so rolling it back fails with KindCannotRollback
// whatever its status says.
func (c *Client) Rollback(ctx context.Context, chart *ChartInfo) error {
	status, err := c.Status(ctx, chart)
	if err != nil {
		return err
	}
	if status.Revision <= 1 {
		return c.newError(KindCannotRollback, chart.Name, OpRollback, "",
			fmt.Errorf("revision %d has no predecessor to roll back to", status.Revision))
	}

	args := []string{
		"rollback", chart.Name,
		"--kubeconfig", c.kubeconfig,
		"--namespace", chart.Namespace,
		"--timeout", timeoutArg(chart.EffectiveTimeout()),
		"--history-max", "50",
		"--cleanup-on-fail",
		"--force",
		"--wait",
	}

	c.log.Info("rolling back release",
		"chart", chart.Name, "namespace", chart.Namespace, "revision", status.Revision)

	var errLines []string
	runErr := c.run(ctx, args, chart.EffectiveTimeout()+processGrace, nil, accumulate(nil, &errLines))
	if runErr != nil {
		return c.failure(chart.Name, OpRollback, runErr, strings.Join(errLines, "\n"))
	}
	return nil
}

// Uninstall removes the chart's release. Uninstalling a release that does
// not exist succeeds: the desired state is already reached.
func (c *Client) Uninstall(ctx context.Context, chart *ChartInfo) error {
	args := []string{
		"uninstall", chart.Name,
		"--kubeconfig", c.kubeconfig,
		"--namespace", chart.Namespace,
		"--timeout", timeoutArg(chart.EffectiveTimeout()),
		"--wait",
		"--debug",
	}

	c.log.Info("uninstalling release", "chart", chart.Name, "namespace", chart.Namespace)

	var errLines []string
	runErr := c.run(ctx, args, chart.EffectiveTimeout()+processGrace, nil, accumulate(nil, &errLines))
	if runErr != nil {
		stderr := strings.Join(errLines, "\n")
		if strings.Contains(stderr, notFoundMessage) {
			return nil
		}
		return c.failure(chart.Name, OpUninstall, runErr, stderr)
	}
	return nil
}

// List returns every release in the given namespace, or across all
// namespaces when all is set. Pending and failed releases are included.
func (c *Client) List(ctx context.Context, namespace string, all bool) ([]Release, error) {
	args := []string{"list", "-a", "--kubeconfig", c.kubeconfig}
	switch {
	case all:
		args = append(args, "-A")
	case namespace != "":
		args = append(args, "-n", namespace)
	}
	args = append(args, "-o", "json")

	var outLines, errLines []string
	runErr := c.run(ctx, args, probeTimeout, collect(&outLines), collect(&errLines))
	if runErr != nil {
		return nil, c.failure("", OpList, runErr, strings.Join(errLines, "\n"))
	}

	var releases []Release
	if err := json.Unmarshal([]byte(strings.Join(outLines, "\n")), &releases); err != nil {
		return nil, c.newError(KindCmdError, "", OpList, "", fmt.Errorf("failed to decode release list: %w", err))
	}
	return releases, nil
}

// InstalledChartVersion returns the deployed version of the chart's
// release, nil when the release is absent or its version is unparsable.
func (c *Client) InstalledChartVersion(ctx context.Context, chart *ChartInfo) (*semver.Version, error) {
	releases, err := c.List(ctx, chart.Namespace, false)
	if err != nil {
		return nil, err
	}
	for _, r := range releases {
		if r.Name == chart.Name {
			return r.ChartVersion(), nil
		}
	}
	return nil, nil
}

// clearLock probes the release and clears a stale helm lock when one is
// present. Failures are logged and swallowed: the mutation that follows
// may still succeed if the lock cleared on its own, and if not it fails
// with a classified error of its own.
func (c *Client) clearLock(ctx context.Context, chart *ChartInfo) {
	status, err := c.Status(ctx, chart)
	if err != nil {
		if !IsKind(err, KindReleaseDoesNotExist) {
			c.log.V(1).Info("release status probe failed before upgrade",
				"chart", chart.Name, "namespace", chart.Namespace, "error", err.Error())
		}
		return
	}

	switch RecoveryActionFor(status) {
	case RecoverNone:
	case RecoverUninstall:
		c.log.Info("release is locked with no usable revision, uninstalling it",
			"chart", chart.Name, "namespace", chart.Namespace, "status", status.Status)
		if err := c.Uninstall(ctx, chart); err != nil {
			c.log.Error(err, "lock recovery uninstall failed, attempting upgrade anyway",
				"chart", chart.Name, "namespace", chart.Namespace)
		}
	case RecoverRollback:
		c.log.Info("release is locked, rolling back to its previous revision",
			"chart", chart.Name, "namespace", chart.Namespace,
			"revision", status.Revision, "status", status.Status)
		if err := c.Rollback(ctx, chart); err != nil {
			c.log.Error(err, "lock recovery rollback failed, attempting upgrade anyway",
				"chart", chart.Name, "namespace", chart.Namespace)
		}
	}
}

// valuesArgs renders the chart's override surface: --set and --set-string
// pairs, then every static values file, then the generated fragments.
// Later -f entries win, so the generated caller overrides land last.
func (c *Client) valuesArgs(chart *ChartInfo) ([]string, error) {
	var args []string
	for _, v := range chart.Values {
		args = append(args, "--set", v.Key+"="+v.Value)
	}
	for _, v := range chart.StringValues {
		args = append(args, "--set-string", v.Key+"="+v.Value)
	}
	for _, file := range chart.ValuesFiles {
		args = append(args, "-f", file)
	}
	for _, fragment := range chart.GeneratedValues {
		path := filepath.Join(chart.Path, fragment.Name+"_override.yaml")
		if err := os.WriteFile(path, []byte(fragment.Content), 0600); err != nil {
			return nil, fmt.Errorf("failed to write values override %s: %w", path, err)
		}
		args = append(args, "-f", path)
	}
	return args, nil
}

func (c *Client) run(ctx context.Context, args []string, timeout time.Duration, stdout, stderr cmdexec.LineSink) error {
	start := time.Now()
	err := c.runner.Run(ctx, cmdexec.Command{
		Bin:     helmBin,
		Args:    args,
		Env:     c.env,
		Timeout: timeout,
	}, stdout, stderr)
	metrics.RecordHelmCommand(args[0], err, time.Since(start))
	return err
}

func (c *Client) newError(kind ErrorKind, chart, op, stderr string, err error) *Error {
	return &Error{
		Kind:      kind,
		Chart:     chart,
		Operation: op,
		Stderr:    stderr,
		EnvVars:   envNames(c.env),
		Err:       err,
	}
}

func (c *Client) failure(chart, op string, runErr error, stderr string) *Error {
	return c.newError(classify(runErr, stderr), chart, op, stderr, runErr)
}

// collect returns a sink that records every line.
func collect(lines *[]string) cmdexec.LineSink {
	return func(line string) {
		*lines = append(*lines, line)
	}
}

// accumulate forwards every raw line to next and records the ones usable
// as failure evidence, skipping helm's debug chatter.
func accumulate(next cmdexec.LineSink, lines *[]string) cmdexec.LineSink {
	return func(line string) {
		if next != nil {
			next(line)
		}
		if !strings.Contains(line, debugMarker) {
			*lines = append(*lines, line)
		}
	}
}

// envNames returns the sorted names of the credential environment the
// commands run with. Values never leave the process environment.
func envNames(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func timeoutArg(timeout time.Duration) string {
	return strconv.FormatInt(int64(timeout/time.Second), 10) + "s"
}
