package helm

// RecoveryAction is what must happen to a release before it can be
// mutated again.
type RecoveryAction string

const (
	// RecoverNone means the release is healthy or absent; proceed.
	RecoverNone RecoveryAction = "none"
	// RecoverUninstall clears a locked release that has no usable prior
	// revision.
	RecoverUninstall RecoveryAction = "uninstall"
	// RecoverRollback clears a locked release by returning to its
	// previous revision.
	RecoverRollback RecoveryAction = "rollback"
)

// RecoveryActionFor maps a probed release state to the action that clears
// a stale helm lock. A lock almost always means a mutating helm process
// was killed mid-flight; helm refuses further mutation until it is
// cleared. A locked release at revision 1 has no prior good state, so the
// only way out is a full uninstall; any later revision rolls back to its
// predecessor. A nil status (release absent or unreadable) needs nothing.
func RecoveryActionFor(status *ReleaseStatus) RecoveryAction {
	if status == nil || !status.IsLocked() {
		return RecoverNone
	}
	if status.Revision <= 1 {
		return RecoverUninstall
	}
	return RecoverRollback
}
