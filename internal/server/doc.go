// Package server implements the HTTP monitoring and management API. It
// exposes health and statistics endpoints, the audit event log, Prometheus
// metrics, and the enable/disable switch for the detection loop.
package server
