// Package prometheus exposes engine counters through a client_golang collector.
//
// [NewCollector] reads teamauth.Engine.MetricsSnapshot on every scrape and reports each
// counter as dossier_auth_*_total and the validation latency as the
// dossier_auth_validate_latency_seconds histogram. [Handler] mounts it on a private
// registry; nothing is registered globally.
package prometheus
