package prerequisites

import (
	"testing"
)

func TestCheck(t *testing.T) {
	// Test with a tool that definitely exists - try multiple common tools
	// because different environments have different tools available
	possibleTools := []string{"go", "bash", "sh", "ls", "cat"}

	var foundTool string
	for _, tool := range possibleTools {
		results := Check([]Tool{{Name: tool, Required: false}})
		if len(results.Results) > 0 && results.Results[0].Found {
			foundTool = tool
			break
		}
	}

	if foundTool == "" {
		t.Skip("no common tools found in PATH, skipping test")
	}

	tools := []Tool{
		{
			Name:        foundTool,
			Required:    true,
			Description: "Test tool",
			InstallURL:  "https://example.com",
		},
	}

	results := Check(tools)

	if len(results.Results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results.Results))
	}

	if !results.Results[0].Found {
		t.Errorf("expected %s to be found", foundTool)
	}

	if results.Results[0].Path == "" {
		t.Errorf("expected path to be set")
	}

	if results.HasErrors() {
		t.Errorf("expected no errors")
	}
}

func TestCheckMissingTool(t *testing.T) {
	tools := []Tool{
		{
			Name:        "nonexistent-tool-xyz123",
			Required:    true,
			Description: "A tool that does not exist",
			InstallURL:  "https://example.com",
		},
	}

	results := Check(tools)

	if len(results.Missing) != 1 {
		t.Errorf("expected 1 missing tool, got %d", len(results.Missing))
	}

	if !results.HasErrors() {
		t.Errorf("expected HasErrors to be true")
	}

	err := results.Error()
	if err == nil {
		t.Errorf("expected Error to return an error")
	}
}

func TestCheckOptionalMissing(t *testing.T) {
	tools := []Tool{
		{
			Name:        "nonexistent-tool-xyz123",
			Required:    false, // optional
			Description: "An optional tool that does not exist",
			InstallURL:  "https://example.com",
		},
	}

	results := Check(tools)

	if len(results.Missing) != 1 {
		t.Errorf("expected 1 missing tool, got %d", len(results.Missing))
	}

	// Optional tools don't cause errors
	if results.HasErrors() {
		t.Errorf("expected HasErrors to be false for optional tools")
	}

	err := results.Error()
	if err != nil {
		t.Errorf("expected Error to return nil for optional tools, got %v", err)
	}
}

func TestDefaultTools(t *testing.T) {
	tools := DefaultTools()

	// Every helm command and the CRD apply path depend on these binaries
	foundHelm := false
	foundKubectl := false
	for _, tool := range tools {
		if tool.Name == "helm" {
			foundHelm = true
		}
		if tool.Name == "kubectl" {
			foundKubectl = true
		}
		if !tool.Required {
			t.Errorf("default tool %s should have Required = true", tool.Name)
		}
	}

	if !foundHelm {
		t.Error("expected helm in DefaultTools")
	}
	if !foundKubectl {
		t.Error("expected kubectl in DefaultTools")
	}
}

func TestOptionalTools(t *testing.T) {
	tools := OptionalTools()

	if len(tools) == 0 {
		t.Error("expected OptionalTools to return at least one tool")
	}

	// All optional tools should have Required = false
	for _, tool := range tools {
		if tool.Required {
			t.Errorf("optional tool %s should have Required = false", tool.Name)
		}
	}
}

func TestCheckAll(t *testing.T) {
	results := CheckAll()

	want := len(DefaultTools()) + len(OptionalTools())
	if len(results.Results) != want {
		t.Errorf("expected %d results, got %d", want, len(results.Results))
	}
}
