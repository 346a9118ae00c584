// Package metrics defines the Prometheus instrumentation of the intercom
// streams, peer liveness, echo suppression, alert tone and HTTP API.
package metrics
