/*
Package ports defines the driven ports (interfaces) for the Interlude orchestrator.
These interfaces decouple the session protocol from the workflow engine, the
session storage backend, and cross-process coordination.

# Key Interfaces

  - WorkflowEngine: Starts, resumes and inspects runs of the external, checkpointed engine.
  - EventStream: A single-consumer, forward-only, cancellable sequence of engine events.
  - SessionStore: Persists session records (the registry).
  - DistributedLocker: Provides distributed locking for concurrent session access.
*/
package ports
