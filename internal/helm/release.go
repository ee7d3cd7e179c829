package helm

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Release is one row of `helm list -o json`.
type Release struct {
	Name       string `json:"name"`
	Namespace  string `json:"namespace"`
	Revision   string `json:"revision"`
	Updated    string `json:"updated"`
	Status     string `json:"status"`
	Chart      string `json:"chart"`
	AppVersion string `json:"app_version"`
}

// ChartVersion returns the semantic version encoded in the chart field,
// e.g. "loki-v3.4.5" -> 3.4.5. Chart naming is not guaranteed SemVer
// compliant, so an unparsable version yields nil rather than an error.
func (r Release) ChartVersion() *semver.Version {
	idx := strings.LastIndex(r.Chart, "-")
	if idx < 0 || idx == len(r.Chart)-1 {
		return nil
	}
	return parseVersion(r.Chart[idx+1:])
}

// ParsedAppVersion returns the release's app version, nil if unparsable.
func (r Release) ParsedAppVersion() *semver.Version {
	return parseVersion(r.AppVersion)
}

func parseVersion(s string) *semver.Version {
	v, err := semver.NewVersion(strings.TrimPrefix(s, "v"))
	if err != nil {
		return nil
	}
	return v
}
