// Package graph renders workflow definitions as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/interlude/pkg/adapters/script"
)

// GenerateMermaid produces a Mermaid flowchart of wf. It applies semantic styling:
// - Start and report: ((Circle))
// - Feedback gate: [/Parallelogram/], with a dotted feedback loop onto itself
// - Default: [Rectangle]
func GenerateMermaid(wf *script.Workflow) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    __start((\"start\"))\n")

	prev, label := "__start", ""
	for _, step := range wf.Steps {
		safeID := sanitizeMermaidID(step.ID)

		opener, closer := "[", "]"
		if step.Gate != "" {
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, step.ID, closer)
		sb.WriteString(edge(prev, safeID, label))

		label = ""
		if step.Gate != "" {
			fmt.Fprintf(&sb, "    %s -. \"feedback\" .-> %s\n", safeID, safeID)
			label = "approve"
		}
		prev = safeID
	}

	sb.WriteString("    __report((\"report\"))\n")
	sb.WriteString(edge(prev, "__report", label))
	return sb.String()
}

func edge(from, to, label string) string {
	if label == "" {
		return fmt.Sprintf("    %s --> %s\n", from, to)
	}
	return fmt.Sprintf("    %s -- \"%s\" --> %s\n", from, label, to)
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
