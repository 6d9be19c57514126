/*
Package domain contains the core domain models for Interlude sessions.

It defines the values exchanged between the session orchestrator and an external,
checkpointed workflow engine. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Session: The registry record for one workflow instance (status, prompt, artifact).
  - Event: A value produced by the engine while it is being driven (Paused or Other).
  - Input: What is fed into a paused engine (user content or the acknowledgement sentinel).
  - Artifact: The terminal output of a completed workflow.
*/
package domain
