/*
Package dsl builds script workflows in Go instead of YAML.

Example usage:

	b := dsl.New("brief")

	b.Step("plan").
		Progress("search_web", "write_plan").
		Output("Outline for {{.Topic}}").
		Gate("{{index .Values \"plan\"}}\nApprove?")

	b.Step("write").Progress("write_sections")

	b.Report("# {{.Topic}}")

	wf, err := b.Build()
	// ... pass script.New(wf) to interlude.New(...)
*/
package dsl
