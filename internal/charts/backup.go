package charts

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/Qovery/engine-sub003/internal/helm"
)

// fieldManager identifies this engine's server-side apply ownership.
const fieldManager = "deployment-engine"

// takeSnapshot captures the chart's designated resource kinds into a
// fresh local directory and, when a store is configured, uploads them
// under a deterministic prefix. The payload carries both forward.
func takeSnapshot(ctx context.Context, deps *Deps, chart *helm.ChartInfo, payload Payload) error {
	dir, err := os.MkdirTemp("", "engine-snapshot-")
	if err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	files, err := deps.Kube.SnapshotResources(ctx, chart.Namespace, chart.BackupResources, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	if len(files) == 0 {
		_ = os.RemoveAll(dir)
		deps.Log.Info("no resources to snapshot", "kinds", chart.BackupResources)
		return nil
	}

	payload[snapshotDirKey] = dir
	deps.Log.Info("snapshot taken", "dir", dir, "files", len(files))

	if deps.Store != nil {
		prefix := snapshotPrefix(ctx, deps, chart)
		if _, err := deps.Store.UploadSnapshot(ctx, prefix, dir); err != nil {
			// The local copy is still usable
			deps.Log.Error(err, "failed to upload snapshot", "prefix", prefix)
			return nil
		}
		payload[snapshotPrefixKey] = prefix
	}

	return nil
}

// snapshotPrefix derives the store key prefix for the release at its
// current revision, so a later run can find the snapshot again.
func snapshotPrefix(ctx context.Context, deps *Deps, chart *helm.ChartInfo) string {
	revision := 0
	if status, err := deps.Helm.Status(ctx, chart); err == nil {
		revision = status.Revision
	}
	return path.Join(chart.Namespace, chart.Name, fmt.Sprintf("rev-%d", revision))
}

// restoreSnapshot re-applies the snapshot after a successful upgrade,
// preferring the local directory and falling back to the store copy.
// Best-effort: the deploy already succeeded, failures are logged.
func restoreSnapshot(ctx context.Context, deps *Deps, payload Payload) {
	dir := payload[snapshotDirKey]
	if dir == "" {
		return
	}

	if _, err := os.Stat(dir); err != nil {
		prefix := payload[snapshotPrefixKey]
		if deps.Store == nil || prefix == "" {
			deps.Log.Error(err, "snapshot dir is gone and no store copy exists", "dir", dir)
			return
		}

		fresh, mkErr := os.MkdirTemp("", "engine-snapshot-")
		if mkErr != nil {
			deps.Log.Error(mkErr, "failed to create snapshot dir for download")
			return
		}
		if _, dlErr := deps.Store.DownloadSnapshot(ctx, prefix, fresh); dlErr != nil {
			deps.Log.Error(dlErr, "failed to download snapshot", "prefix", prefix)
			_ = os.RemoveAll(fresh)
			return
		}
		dir = fresh
		payload[snapshotDirKey] = dir
	}

	if err := deps.Kube.RestoreSnapshot(ctx, dir, fieldManager); err != nil {
		deps.Log.Error(err, "failed to restore snapshot", "dir", dir)
		return
	}
	deps.Log.Info("snapshot restored", "dir", dir)
}

// discardSnapshot drops the local snapshot directory and the store
// copy. Safe to call repeatedly; best-effort.
func discardSnapshot(ctx context.Context, deps *Deps, payload Payload) {
	if dir := payload[snapshotDirKey]; dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			deps.Log.Error(err, "failed to remove snapshot dir", "dir", dir)
		}
		delete(payload, snapshotDirKey)
	}

	if prefix := payload[snapshotPrefixKey]; prefix != "" && deps.Store != nil {
		if err := deps.Store.DeleteSnapshot(ctx, prefix); err != nil {
			deps.Log.Error(err, "failed to delete stored snapshot", "prefix", prefix)
		}
		delete(payload, snapshotPrefixKey)
	}
}
