package testing

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Stderr lines helm emits in the failure states tests exercise.
const (
	NotFoundStderr   = `Error: release: not found`
	UninstallAbsent  = `Error: uninstall: Release not loaded: test: release: not found`
	LockedStderr     = `Error: UPGRADE FAILED: another operation (install/upgrade/rollback) is in progress`
	RolledBackStderr = `Error: UPGRADE FAILED: release failed, and has been rolled back due to atomic being set`
	TimedOutStderr   = `Error: UPGRADE FAILED: timed out waiting for the condition`
)

// StatusJSON renders a `helm status -o json` payload for one release.
func StatusJSON(name string, revision int, status string) string {
	return fmt.Sprintf(
		`{"name":%q,"info":{"first_deployed":"2024-10-01T10:00:00Z","last_deployed":"2024-10-01T10:05:00Z","deleted":"","description":"Upgrade complete","status":%q},"version":%d,"namespace":"default"}`,
		name, status, revision)
}

// ListRow is one release entry rendered by ListJSON.
type ListRow struct {
	Name       string
	Namespace  string
	Revision   int
	Status     string
	Chart      string
	AppVersion string
}

// ListJSON renders a `helm list -o json` payload.
func ListJSON(rows ...ListRow) string {
	type row struct {
		Name       string `json:"name"`
		Namespace  string `json:"namespace"`
		Revision   string `json:"revision"`
		Updated    string `json:"updated"`
		Status     string `json:"status"`
		Chart      string `json:"chart"`
		AppVersion string `json:"app_version"`
	}
	out := make([]row, 0, len(rows))
	for _, r := range rows {
		out = append(out, row{
			Name:       r.Name,
			Namespace:  r.Namespace,
			Revision:   strconv.Itoa(r.Revision),
			Updated:    "2024-10-01 10:00:00.000000 +0000 UTC",
			Status:     r.Status,
			Chart:      r.Chart,
			AppVersion: r.AppVersion,
		})
	}
	data, err := json.Marshal(out)
	if err != nil {
		panic(err)
	}
	return string(data)
}
