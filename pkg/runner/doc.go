/*
Package runner drives a session from an interactive terminal or a JSON-lines pipe.

The runner is the bridge between a session Conversation (usually *interlude.Engine)
and a person answering prompts. It initiates or resumes the session, shows each
pause prompt, reads the answer and continues until the final report is produced.
Leaving early keeps the session resumable: run again with the same session ID.

# Key Components

  - Runner: the chat loop.
  - IOHandler: decouples how prompts are shown and answers are read.
  - TextHandler: interactive terminal usage, with an optional markdown renderer.
  - JSONHandler: structured JSON-lines for scripting.

# Usage

	r := runner.NewRunner(
		runner.WithSessionID("user-1"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx, engine); err != nil {
		log.Fatal(err)
	}
*/
package runner
