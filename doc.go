/*
Package interlude turns a long-running, checkpointed workflow that pauses for
human input into a stateful, multi-turn conversation.

The workflow engine is reached through ports.WorkflowEngine: it starts or resumes
a run at a checkpoint coordinate and streams events back, some of which are
pauses carrying a prompt. Interlude owns the session protocol around it:

  - Initiate starts a run and returns the first prompt.
  - Continue resumes the run with the user's content, then sends the mandatory
    acknowledgement resume, and returns the next prompt or the final artifact.
  - Result reads the final artifact without advancing the run.

Drives on one session never overlap. By default a concurrent call fails fast with
domain.ErrSessionBusy; WithQueueing makes it wait instead.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/interlude"
		"github.com/aretw0/interlude/pkg/adapters/script"
	)

	func main() {
		eng, err := interlude.New(script.New(nil))
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		reply, err := eng.Initiate(ctx, "s1", "research quantum annealing")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(reply.Message) // the report plan, waiting for feedback

		reply, err = eng.Continue(ctx, "s1", "looks good")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(reply.Status) // completed
	}
*/
package interlude
