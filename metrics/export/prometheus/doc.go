// Package prometheus exposes portalauth engine metrics as a
// prometheus.Collector.
//
// Counters are named portalauth_*_total; the single histogram is
// portalauth_login_latency_seconds. [Exporter.Handler] serves a private
// registry, so nothing is registered globally unless the caller passes the
// collector to its own registry.
package prometheus
