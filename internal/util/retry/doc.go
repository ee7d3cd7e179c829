// Package retry provides fixed-delay retry logic for transient failures.
//
// The [Do] function runs an operation under an optional [Policy] bounding
// the number of attempts and the wait between them. The deployment engine
// uses it around helm upgrades, whose failures are typically transient
// readiness-timing issues. Errors wrapped with [Fatal] stop the loop
// immediately.
package retry
