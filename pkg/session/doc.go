/*
Package session implements the session registry.

It maps session IDs to their records (checkpoint coordinate and orchestrator
status) through a ports.SessionStore, and enforces single-flight access per
session: at most one drive may be in flight for a given ID, across goroutines
and, with a DistributedLocker, across replicas.
*/
package session
