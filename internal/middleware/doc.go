// Package middleware provides HTTP middleware for the scene index API.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with optional health check filtering
//   - Prometheus request counters and latency histograms labelled by route template
package middleware
