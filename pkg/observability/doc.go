/*
Package observability exports session orchestration metrics to Prometheus.

Metrics are fed from domain.LifecycleHooks, so any façade built on the
orchestrator gets them by passing Metrics.Hooks() at construction time.
*/
package observability
