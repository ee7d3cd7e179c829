package helm

import (
	"encoding/json"

	"helm.sh/helm/v3/pkg/release"
)

// ReleaseStatus is a fresh probe of one release: its revision counter and
// the status phase helm reports. It is never cached across decisions;
// every lock check re-probes.
type ReleaseStatus struct {
	Revision int
	Status   string
}

// IsLocked reports whether the release sits in one of helm's pending-*
// states, which block any further mutation until cleared.
func (s ReleaseStatus) IsLocked() bool {
	return release.Status(s.Status).IsPending()
}

// Deployed reports whether the release's last mutation completed.
func (s ReleaseStatus) Deployed() bool {
	return release.Status(s.Status) == release.StatusDeployed
}

// statusPayload is the subset of `helm status -o json` the engine reads.
type statusPayload struct {
	Version int `json:"version"`
	Info    struct {
		Status string `json:"status"`
	} `json:"info"`
}

// parseStatus decodes a status probe's JSON output. Unparsable output
// degrades to the zero value instead of failing: the release exists (the
// command succeeded), the engine just cannot tell anything more about it.
func parseStatus(data []byte) ReleaseStatus {
	var payload statusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ReleaseStatus{}
	}
	return ReleaseStatus{
		Revision: payload.Version,
		Status:   payload.Info.Status,
	}
}
