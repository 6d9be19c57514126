/*
Package stream provides cancellable EventStream implementations.

A stream is an explicit iterator with a defined "stop consuming, release resources"
operation: Close cancels the producer and waits for it to return, so an
abandoned stream never leaks a goroutine or an engine execution context.
*/
package stream
