package interlude_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/interlude"
	"github.com/aretw0/interlude/pkg/adapters/script"
)

// ExampleNew demonstrates a full conversation against an in-process workflow
// with a single feedback gate.
func ExampleNew() {
	wf, err := script.ParseWorkflow([]byte(`
name: plan
steps:
  - id: plan
    output: "Outline for {{.Topic}}{{range .Feedback}} (+ {{.}}){{end}}"
    gate: "{{index .Values \"plan\"}}. Approve?"
  - id: write
report: "Report on {{.Topic}}, revisions: {{.Revision}}"
`))
	if err != nil {
		log.Fatal(err)
	}

	eng, err := interlude.New(script.New(wf))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	reply, err := eng.Initiate(ctx, "demo", "tidal energy")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Status, "|", reply.Message)

	reply, err = eng.Continue(ctx, "demo", "add costs")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Prompts[0])
	fmt.Println(reply.Status, "|", reply.Message)

	// Output:
	// awaiting_input | Outline for tidal energy. Approve?
	// Outline for tidal energy (+ add costs). Approve?
	// completed | Report on tidal energy, revisions: 1
}
