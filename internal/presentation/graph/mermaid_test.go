package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/interlude/internal/presentation/graph"
	"github.com/aretw0/interlude/pkg/adapters/script"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		workflow string
		contains []string
	}{
		{
			name: "Gate Shape And Feedback Loop",
			workflow: `
steps:
  - id: plan
    gate: "ok?"
  - id: write
`,
			contains: []string{
				"__start --> plan",
				"plan[/\"plan\"/]",
				"plan -. \"feedback\" .-> plan",
				"plan -- \"approve\" --> write",
				"write[\"write\"]",
				"write --> __report",
			},
		},
		{
			name: "ID Sanitization",
			workflow: `
steps:
  - id: web-search.v2
`,
			contains: []string{
				"web_search_v2[\"web-search.v2\"]",
			},
		},
		{
			name: "Gate On Last Step",
			workflow: `
steps:
  - id: review
    gate: "final check"
`,
			contains: []string{
				"review -- \"approve\" --> __report",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, err := script.ParseWorkflow([]byte(tt.workflow))
			if err != nil {
				t.Fatalf("ParseWorkflow: %v", err)
			}
			got := graph.GenerateMermaid(wf)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Expected output to contain %q.\nGot:\n%s", want, got)
				}
			}
		})
	}
}

func TestGenerateMermaid_DefaultWorkflow(t *testing.T) {
	got := graph.GenerateMermaid(script.DefaultWorkflow())

	if !strings.HasPrefix(got, "graph TD\n") {
		t.Fatalf("missing header:\n%s", got)
	}
	if !strings.Contains(got, "generate_report_plan -- \"approve\" --> build_sections_with_web_research") {
		t.Errorf("expected the report plan gate to lead to section building:\n%s", got)
	}
}
