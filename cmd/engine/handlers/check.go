package handlers

import (
	"fmt"
	"strings"

	"github.com/Qovery/engine-sub003/internal/util/prerequisites"
)

// checkAllPrereqs runs the full prerequisite check (for testing injection).
var checkAllPrereqs = prerequisites.CheckAll

// Check handles the check command.
//
// It looks up every required and optional client tool, prints one row
// per tool, and fails when a required tool is missing.
func Check() error {
	results := checkAllPrereqs()

	fmt.Print(checkReport(results))

	if err := results.Error(); err != nil {
		return fmt.Errorf("prerequisites check failed: %w", err)
	}

	return nil
}

// checkReport renders one row per tool check result.
func checkReport(results *prerequisites.CheckResults) string {
	var b strings.Builder

	for _, r := range results.Results {
		switch {
		case r.Found && r.Version != "":
			fmt.Fprintf(&b, "  ✅  %-10s %s\n", r.Tool.Name, r.Version)
		case r.Found:
			fmt.Fprintf(&b, "  ✅  %s\n", r.Tool.Name)
		case r.Tool.Required:
			fmt.Fprintf(&b, "  ❌  %-10s not found, install it from %s\n", r.Tool.Name, r.Tool.InstallURL)
		default:
			fmt.Fprintf(&b, "  ❓  %-10s not found (optional): %s\n", r.Tool.Name, r.Tool.Description)
		}
	}

	return b.String()
}
