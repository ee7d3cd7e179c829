// Package config defines the deployment plan model the engine runs from.
//
// The [Plan] struct is the canonical representation of a plan file: the
// ordered chart levels, per-chart helm settings, the optional snapshot
// store, and the environment handed to the helm and kubectl subprocesses.
// It is loaded from YAML, validated, and then built into the executable
// form the chart pipeline consumes.
package config
