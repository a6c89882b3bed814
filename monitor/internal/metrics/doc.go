// Package metrics exposes the monitor's evaluation results and its own
// polling health as Prometheus metrics under the pulsewatch namespace.
package metrics
