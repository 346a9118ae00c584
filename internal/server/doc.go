// Package server implements the HTTP API: health, link status, configuration,
// feature switch control and Prometheus metrics.
package server
