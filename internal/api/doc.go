// Package api hosts the operator HTTP server. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to start a pipeline run, GET /v1/runs/latest for its summary.
//   - GET /v1/products for the stored feed.
package api
